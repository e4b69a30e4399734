// Package statecli defines the commands to operate a state database from the
// command line: reading and updating states, inspecting the change log,
// pruning old roots and exposing the metrics.
package statecli

import (
	"io"
	"os"

	"go.dedis.ch/statedb/cli"
	"go.dedis.ch/statedb/core/store/kv"
)

const (
	flagConfig   = "config"
	flagBackend  = "backend"
	flagPath     = "path"
	flagLogLevel = "log-level"
	flagCacheMB  = "cache-mb"

	flagRoot    = "root"
	flagAddress = "address"
	flagSet     = "set"
	flagDelete  = "delete"
	flagVirtual = "virtual"
	flagPrefix  = "prefix"
	flagText    = "text"
	flagSave    = "save"
	flagListen  = "listen"
)

// Initializer populates a builder with the state database commands.
//
// - implements cli.Initializer
type Initializer struct {
	action action
}

// NewInitializer returns an initializer whose commands print to the writer.
func NewInitializer(out io.Writer) Initializer {
	return Initializer{
		action: action{
			printer:  out,
			openDB:   openDB,
			readFile: os.ReadFile,
			serve:    listenAndServe,
		},
	}
}

// SetCommands implements cli.Initializer.
func (i Initializer) SetCommands(builder cli.Builder) {
	rootFlag := cli.StringFlag{
		Name:  flagRoot,
		Usage: "hex root of the state, the empty state if omitted",
	}

	textFlag := cli.BoolFlag{
		Name:  flagText,
		Usage: "values are plain text instead of hex",
	}

	cmd := builder.SetCommand("init")
	cmd.SetDescription("create the buckets and print the empty root")
	cmd.SetFlags(withStoreFlags(cli.StringFlag{
		Name:  flagSave,
		Usage: "if provided, save the effective configuration to that file",
	})...)
	cmd.SetAction(i.action.initAction)

	cmd = builder.SetCommand("get")
	cmd.SetDescription("print the value at an address")
	cmd.SetFlags(withStoreFlags(rootFlag, textFlag, cli.StringFlag{
		Name:     flagAddress,
		Usage:    "hex address of the value",
		Required: true,
	})...)
	cmd.SetAction(i.action.getAction)

	cmd = builder.SetCommand("set")
	cmd.SetDescription("apply changes to a state and print the new root")
	cmd.SetFlags(withStoreFlags(rootFlag, textFlag, cli.StringSliceFlag{
		Name:  flagSet,
		Usage: "address=value to set, can be repeated",
	}, cli.StringSliceFlag{
		Name:  flagDelete,
		Usage: "address to delete, can be repeated",
	}, cli.BoolFlag{
		Name:  flagVirtual,
		Usage: "compute the root without writing the state",
	})...)
	cmd.SetAction(i.action.setAction)

	cmd = builder.SetCommand("leaves")
	cmd.SetDescription("list the values of a state")
	cmd.SetFlags(withStoreFlags(rootFlag, textFlag, cli.StringFlag{
		Name:  flagPrefix,
		Usage: "only list the addresses below that prefix",
	})...)
	cmd.SetAction(i.action.leavesAction)

	cmd = builder.SetCommand("inspect")
	cmd.SetDescription("print the change log entry of a root")
	cmd.SetFlags(withStoreFlags(cli.StringFlag{
		Name:     flagRoot,
		Usage:    "hex root to inspect",
		Required: true,
	})...)
	cmd.SetAction(i.action.inspectAction)

	cmd = builder.SetCommand("roots")
	cmd.SetDescription("list the roots that have a change log entry")
	cmd.SetFlags(withStoreFlags()...)
	cmd.SetAction(i.action.rootsAction)

	cmd = builder.SetCommand("prune")
	cmd.SetDescription("remove the nodes of a root that other states do not use")
	cmd.SetFlags(withStoreFlags(cli.StringFlag{
		Name:     flagRoot,
		Usage:    "hex root to prune",
		Required: true,
	})...)
	cmd.SetAction(i.action.pruneAction)

	cmd = builder.SetCommand("serve-metrics")
	cmd.SetDescription("expose the sizes of the store over HTTP, the operation " +
		"counters only count what this process does")
	cmd.SetFlags(withStoreFlags(cli.StringFlag{
		Name:  flagListen,
		Usage: "address of the HTTP server",
		Value: "127.0.0.1:9100",
	})...)
	cmd.SetAction(i.action.serveMetricsAction)
}

func withStoreFlags(flags ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		cli.StringFlag{
			Name:  flagConfig,
			Usage: "path to a YAML configuration file",
		},
		cli.StringFlag{
			Name:  flagBackend,
			Usage: "database engine: bolt, leveldb or memory",
		},
		cli.StringFlag{
			Name:  flagPath,
			Usage: "path to the database",
		},
		cli.StringFlag{
			Name:  flagLogLevel,
			Usage: "logging level: debug, info, warn or error",
		},
		cli.IntFlag{
			Name:  flagCacheMB,
			Usage: "size in megabytes of the node cache, disabled if zero",
		},
	}, flags...)
}

func openDB(cfg Config) (kv.DB, error) {
	return kv.Open(kv.Backend(cfg.Backend), cfg.Path)
}
