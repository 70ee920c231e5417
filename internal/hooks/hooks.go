// Package hooks runs preinstalled hook scripts around subcommand
// steps.
//
// A hook is an executable named after the step, looked up in the
// directory given by the --hook-dir option or, failing that, the
// KREP_HOOK_PATH environment variable. Hooks run in the command's
// resolved working directory and honor tryrun.
package hooks

import (
	"context"
	"os"
	"path/filepath"

	"github.com/memorydaemon/krep/internal/log"
	"github.com/memorydaemon/krep/internal/options"
	"github.com/memorydaemon/krep/internal/run"
	"github.com/memorydaemon/krep/internal/workdir"
)

// EnvHookPath names the environment fallback for the hook directory.
const EnvHookPath = "KREP_HOOK_PATH"

// Dir resolves the hook directory from the options or the
// environment; empty means hooks are disabled.
func Dir(vals *options.Values) string {
	if dir := vals.GetString("hook-dir"); dir != "" {
		return dir
	}
	return os.Getenv(EnvHookPath)
}

// Run executes the named hook with args for the command described by
// vals. A missing hook directory or script is not an error.
func Run(ctx context.Context, name string, vals *options.Values, args ...string) error {
	dir := Dir(vals)
	if dir == "" {
		return nil
	}

	hook := filepath.Join(dir, name)
	if _, err := os.Stat(hook); err != nil {
		log.Get("").Debugf("hook %s not found, skipped", hook)
		return nil
	}

	r := &run.Cmd{
		Dir:    workdir.Absolute(vals.GetString("working-dir"), vals.GetString("relative-dir")),
		TryRun: vals.GetBool("tryrun"),
	}
	return r.Run(ctx, hook, args...)
}
