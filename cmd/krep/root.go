package main

import (
	"os"

	"github.com/memorydaemon/krep/internal/config"
	"github.com/memorydaemon/krep/internal/dispatch"
	"github.com/memorydaemon/krep/internal/log"
	"github.com/memorydaemon/krep/internal/subcmd"
)

// newRegistry assembles the static command table. Every command is
// registered here at startup; the table never changes afterwards.
func newRegistry() *subcmd.Registry {
	reg := subcmd.NewRegistry()
	reg.Register(newHelpCmd(reg))
	reg.Register(newVersionCmd())
	reg.Register(newRepoCmd())
	reg.Register(newRepoMirrorCmd())
	reg.Register(newBatchCmd())
	return reg
}

// Execute loads the process-wide defaults, applies their verbosity,
// and hands the raw arguments to the dispatcher. Unknown sub-commands
// and malformed options terminate with exit status 1; a logged domain
// error does not.
func Execute() {
	defaults := config.NewLoader()
	if vals, err := defaults.Load(); err != nil {
		log.Get("").Warnf("default configuration: %v", err)
	} else if vals.IsSet("verbose") {
		log.SetVerbosity(vals.GetInt("verbose"))
	}

	d := &dispatch.Dispatcher{Registry: newRegistry(), Defaults: defaults}
	if err := d.Run(os.Args[1:]); err != nil {
		log.Get("").Error(err.Error())
		os.Exit(1)
	}
}
