package main

import (
	"github.com/spf13/pflag"

	"github.com/memorydaemon/krep/internal/subcmd"
)

// repoMirrorCmd imports a git-repo mirror: every project under the
// working directory is a bare <name>.git replica, including the
// manifest git itself.
type repoMirrorCmd struct {
	repoCmd
}

func newRepoMirrorCmd() *repoMirrorCmd {
	c := &repoMirrorCmd{}
	c.Base = subcmd.Base{
		CmdName: "repo-mirror",
		Help:    "Download and import git-repo mirror project",
	}
	c.bare = true
	return c
}

func (c *repoMirrorCmd) Options(fs *pflag.FlagSet) {
	c.repoCmd.Options(fs)

	// a mirror is always a mirror; the flag stays recognized but
	// forced and hidden
	mirror := fs.Lookup("mirror")
	mirror.DefValue = "true"
	_ = mirror.Value.Set("true")
	mirror.Hidden = true
}
