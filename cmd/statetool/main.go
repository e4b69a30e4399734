// Package main provides a CLI to operate a state database.
//
//	statetool init --backend leveldb --path /tmp/state --save state.yml
//	statetool set --config state.yml --text --set ab00=hello --set ab01=world
//	statetool get --config state.yml --root <ROOT> --address ab00 --text
//	statetool leaves --config state.yml --root <ROOT> --prefix ab
//	statetool inspect --config state.yml --root <ROOT>
//	statetool roots --config state.yml
//	statetool prune --config state.yml --root <ROOT>
//	statetool serve-metrics --config state.yml --listen :9100
package main

import (
	"fmt"
	"io"
	"os"

	"go.dedis.ch/statedb/cli"
	"go.dedis.ch/statedb/cli/statecli"
	"go.dedis.ch/statedb/cli/ucli"
)

var printer io.Writer = os.Stderr

func main() {
	err := run(os.Args, os.Stdout)
	if err != nil {
		fmt.Fprintf(printer, "%+v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	builder := ucli.NewBuilder("statetool", nil)
	builder.SetUsage("operate a persistent Merkle trie state database")
	builder.SetWriter(out)

	inits := []cli.Initializer{
		statecli.NewInitializer(out),
	}

	for _, init := range inits {
		init.SetCommands(builder)
	}

	return builder.Build().Run(args)
}
