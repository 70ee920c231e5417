package main

import (
	"fmt"

	"github.com/memorydaemon/krep/internal/options"
	"github.com/memorydaemon/krep/internal/subcmd"
)

type versionCmd struct {
	subcmd.Base
}

func newVersionCmd() *versionCmd {
	return &versionCmd{Base: subcmd.Base{CmdName: "version", Help: "Print the version and exit"}}
}

func (c *versionCmd) Execute(_ *subcmd.Session, _ *options.Values, _ []string) error {
	fmt.Println(versionString())
	return nil
}
