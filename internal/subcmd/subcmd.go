// Package subcmd defines the contract subcommands satisfy and the
// registry the dispatcher resolves them from.
package subcmd

import (
	"github.com/spf13/pflag"

	"github.com/memorydaemon/krep/internal/options"
)

// Descriptor identifies one subcommand.
type Descriptor interface {
	// Name returns the unique registration name.
	Name() string
	// Summary returns the one-line help text.
	Summary() string
	// Options declares the command's own flags on top of the global
	// grammar.
	Options(fs *pflag.FlagSet)
	// SupportInject reports whether the command accepts
	// --inject-option.
	SupportInject() bool
	// DisplayName derives the name used for logging from the
	// resolved options.
	DisplayName(vals *options.Values) string
	// Execute runs the command with the merged option set and the
	// leftover positional arguments.
	Execute(sess *Session, vals *options.Values, args []string) error
}

// Session carries the back-references a running command may use to
// delegate to other commands.
type Session struct {
	// Dispatch runs another named command through the full option
	// layering. The extra values are merged below the parsed
	// arguments; with ignoreErrors every failure, including an
	// unknown name, is logged and swallowed.
	Dispatch func(name string, extra *options.Values, args []string, ignoreErrors bool) error
	// Lookup resolves a descriptor by name.
	Lookup func(name string) (Descriptor, bool)
	// Flags builds the full recognized grammar of a named command.
	Flags func(name string) (*pflag.FlagSet, bool)
}

// Base supplies the default descriptor behavior; commands embed it
// and override what they need.
type Base struct {
	CmdName string
	Help    string
}

func (b Base) Name() string           { return b.CmdName }
func (b Base) Summary() string        { return b.Help }
func (b Base) Options(*pflag.FlagSet) {}
func (b Base) SupportInject() bool    { return false }

// DisplayName prefers an explicit "name" option over the
// registration name.
func (b Base) DisplayName(vals *options.Values) string {
	if vals != nil {
		if name := vals.GetString("name"); name != "" {
			return name
		}
	}
	return b.CmdName
}
