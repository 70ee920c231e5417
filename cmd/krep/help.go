package main

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/memorydaemon/krep/internal/options"
	"github.com/memorydaemon/krep/internal/subcmd"
)

type helpCmd struct {
	subcmd.Base
	reg *subcmd.Registry
}

func newHelpCmd(reg *subcmd.Registry) *helpCmd {
	return &helpCmd{
		Base: subcmd.Base{CmdName: "help", Help: "Print the summary of the sub-commands"},
		reg:  reg,
	}
}

func (c *helpCmd) Execute(sess *subcmd.Session, vals *options.Values, args []string) error {
	if len(args) > 0 {
		return c.commandHelp(sess, args[0])
	}

	bold := color.New(color.Bold)
	fmt.Println("Usage: krep [OPTIONS] COMMAND [ARGS]...")
	fmt.Println()
	fmt.Println("The commands of krep are:")
	for _, name := range c.reg.Names() {
		d, _ := c.reg.Lookup(name)
		fmt.Printf("  %s  %s\n", bold.Sprintf("%-12s", name), d.Summary())
	}
	fmt.Println()
	fmt.Println("See 'krep help COMMAND' for more information on a specific command.")
	return nil
}

func (c *helpCmd) commandHelp(sess *subcmd.Session, name string) error {
	d, ok := c.reg.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown sub-command %q", name)
	}

	usage := ""
	if sess != nil {
		if fs, ok := sess.Flags(name); ok {
			usage = fs.FlagUsages()
		}
	}

	fmt.Printf("Usage: krep %s [OPTIONS] [ARGS]...\n", name)
	fmt.Println()
	fmt.Println(d.Summary())
	if usage != "" {
		fmt.Println()
		fmt.Println("Options:")
		fmt.Print(usage)
	}
	return nil
}
