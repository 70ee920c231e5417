// Package optparse builds the recognized-flag grammar for a dispatch.
package optparse

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/memorydaemon/krep/internal/subcmd"
)

// Names of the global flags every subcommand shares.
const (
	FlagWorkingDir  = "working-dir"
	FlagRelativeDir = "relative-dir"
	FlagTryRun      = "tryrun"
	FlagVerbose     = "verbose"
	FlagForce       = "force"
	FlagInject      = "inject-option"
)

// Build composes the full grammar for a dispatch: the global flags,
// the repeatable inject flag when no command is resolved yet or the
// command supports injection, and finally the command's own flags.
// Flag-name conflicts between a command and the global set are a
// registration-time configuration error; pflag panics on redefinition.
func Build(cmd subcmd.Descriptor) *pflag.FlagSet {
	name := "krep"
	if cmd != nil {
		name = "krep " + cmd.Name()
	}

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	fs.StringP(FlagWorkingDir, "w", cwd, "set the working directory")
	fs.String(FlagRelativeDir, "", "relative directory under the working directory")
	fs.BoolP(FlagTryRun, "n", false, "print the external commands without running them")
	fs.CountP(FlagVerbose, "v", "raise the logging verbosity, repeatable")
	fs.BoolP(FlagForce, "f", false, "force to execute the operations")

	if cmd == nil || cmd.SupportInject() {
		fs.StringArray(FlagInject, nil, "inject an option with the format GROUP:OPTION[=VALUE]")
	}
	if cmd != nil {
		cmd.Options(fs)
	}

	return fs
}
