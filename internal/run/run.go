// Package run executes external commands, honoring the tryrun flag
// and reporting captured stderr in errors.
package run

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/memorydaemon/krep/internal/log"
)

// Cmd describes how external commands are invoked: where, with which
// extra environment, and whether to only pretend.
type Cmd struct {
	// Dir is the working directory; empty means the process's own.
	Dir string
	// TryRun logs the command line and runs nothing.
	TryRun bool
	// Env entries are appended to the inherited environment.
	Env []string
}

// Run executes name with args, passing stdout through and capturing
// stderr for error reporting.
func (c *Cmd) Run(ctx context.Context, name string, args ...string) error {
	c.announce(name, args)
	if c.TryRun {
		return nil
	}

	cmd := c.build(ctx, name, args)
	cmd.Stdout = os.Stdout

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return wrapStderr(name, err, &stderr)
	}
	return nil
}

// Output executes name with args and returns its stdout.
func (c *Cmd) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	c.announce(name, args)
	if c.TryRun {
		return nil, nil
	}

	cmd := c.build(ctx, name, args)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, wrapStderr(name, err, &stderr)
	}
	return stdout.Bytes(), nil
}

// OutputLines is Output split into trimmed, non-empty lines.
func (c *Cmd) OutputLines(ctx context.Context, name string, args ...string) ([]string, error) {
	out, err := c.Output(ctx, name, args...)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (c *Cmd) build(ctx context.Context, name string, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	return cmd
}

func (c *Cmd) announce(name string, args []string) {
	dir := c.Dir
	if dir == "" {
		dir, _ = os.Getwd()
	}
	mark := ""
	if c.TryRun {
		mark = "[-] "
	}
	log.Get("").Infof("(%s) %s%s %s", dir, mark, name, strings.Join(args, " "))
}

func wrapStderr(name string, err error, stderr *bytes.Buffer) error {
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		return fmt.Errorf("%s: %s", name, msg)
	}
	return fmt.Errorf("%s: %w", name, err)
}
