// Package ucli provides a cli builder implementation based on the urfave/cli
// library.
package ucli

import (
	"fmt"
	"io"

	urfave "github.com/urfave/cli/v2"
	"go.dedis.ch/statedb/cli"
)

// Builder implements a cli builder based on urfave/cli
//
// - implements cli.Builder
type Builder struct {
	commands []*cmdBuilder
	name     string
	usage    string
	action   cli.Action
	flags    []cli.Flag
	writer   io.Writer
}

// NewBuilder returns a new initialized builder. Action allows one to define a
// primary action, but can be nil if we only needs to define commands. Flags
// provides the global flags available from all the commands/subcommands.
func NewBuilder(name string, action cli.Action, flags ...cli.Flag) *Builder {
	return &Builder{
		name:   name,
		action: action,
		flags:  flags,
	}
}

// SetUsage sets the one-line description of the application.
func (b *Builder) SetUsage(value string) {
	b.usage = value
}

// SetWriter sets the writer of the help and version outputs. The default is
// the standard output.
func (b *Builder) SetWriter(w io.Writer) {
	b.writer = w
}

// Build implements cli.builder.
func (b *Builder) Build() cli.Application {
	app := &urfave.App{
		Name:     b.name,
		Usage:    b.usage,
		Commands: buildCommand(b.commands),
		Action:   makeAction(b.action),
		Flags:    buildFlags(b.flags),
	}

	if b.writer != nil {
		app.Writer = b.writer
		app.ErrWriter = b.writer
	}

	app.Setup()

	return app
}

// SetCommand implements cli.Builder.
func (b *Builder) SetCommand(name string) cli.CommandBuilder {
	cmd := &cmdBuilder{
		name: name,
	}
	b.commands = append(b.commands, cmd)

	return cmd
}

// cmdBuilder is the struct provided to build commands.
//
// - implements cli.CommandBuilder
type cmdBuilder struct {
	name        string
	description string
	action      cli.Action
	flags       []urfave.Flag
	subcommands []*cmdBuilder
}

// SetDescription implements cli.CommandBuilder.
func (b *cmdBuilder) SetDescription(value string) {
	b.description = value
}

// SetFlags implements cli.CommandBuilder.
func (b *cmdBuilder) SetFlags(flags ...cli.Flag) {
	b.flags = buildFlags(flags)
}

// SetAction implements cli.CommandBuilder.
func (b *cmdBuilder) SetAction(action cli.Action) {
	b.action = action
}

// SetSubCommand implements cli.CommandBuilder.
func (b *cmdBuilder) SetSubCommand(name string) cli.CommandBuilder {
	builder := &cmdBuilder{
		name: name,
	}
	b.subcommands = append(b.subcommands, builder)

	return builder
}

// buildFlags converts the flag definitions to their urfave/cli form.
func buildFlags(flags []cli.Flag) []urfave.Flag {
	res := make([]urfave.Flag, 0, len(flags))

	for _, f := range flags {
		res = append(res, convertFlag(f))
	}

	return res
}

func convertFlag(f cli.Flag) urfave.Flag {
	switch e := f.(type) {
	case cli.StringFlag:
		return &urfave.StringFlag{Name: e.Name, Usage: e.Usage, Required: e.Required, Value: e.Value}
	case cli.StringSliceFlag:
		return &urfave.StringSliceFlag{
			Name:     e.Name,
			Usage:    e.Usage,
			Required: e.Required,
			Value:    urfave.NewStringSlice(e.Value...),
		}
	case cli.IntFlag:
		return &urfave.IntFlag{Name: e.Name, Usage: e.Usage, Required: e.Required, Value: e.Value}
	case cli.BoolFlag:
		return &urfave.BoolFlag{Name: e.Name, Usage: e.Usage, Required: e.Required, Value: e.Value}
	default:
		panic(fmt.Sprintf("flag type '%T' not supported", f))
	}
}

// buildCommand converts the command builders, and recursively their
// subcommands, to urfave commands.
func buildCommand(cmds []*cmdBuilder) []*urfave.Command {
	commands := make([]*urfave.Command, 0, len(cmds))

	for _, cmd := range cmds {
		commands = append(commands, cmd.build())
	}

	return commands
}

func (b *cmdBuilder) build() *urfave.Command {
	return &urfave.Command{
		Name:        b.name,
		Usage:       b.description,
		Action:      makeAction(b.action),
		Flags:       b.flags,
		Subcommands: buildCommand(b.subcommands),
	}
}

// makeAction transforms a cli.Action to its urfave form. The urfave context
// provides the flags to the action.
func makeAction(action cli.Action) urfave.ActionFunc {
	if action == nil {
		return nil
	}

	return func(ctx *urfave.Context) error {
		return action(ctx)
	}
}
