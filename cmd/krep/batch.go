package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/memorydaemon/krep/internal/config"
	"github.com/memorydaemon/krep/internal/log"
	"github.com/memorydaemon/krep/internal/options"
	"github.com/memorydaemon/krep/internal/subcmd"
)

// batchCmd reads project definitions from batch files and executes
// each one through its own sub-command, a composite built entirely on
// the dispatcher's delegation hooks.
type batchCmd struct {
	subcmd.Base
}

func newBatchCmd() *batchCmd {
	return &batchCmd{
		Base: subcmd.Base{
			CmdName: "batch",
			Help:    "Load and execute projects from specified files",
		},
	}
}

func (c *batchCmd) SupportInject() bool { return true }

func (c *batchCmd) Options(fs *pflag.FlagSet) {
	fs.StringArray("file", nil, "set the batch config file")
	fs.StringP("group", "u", "", "set the handling groups")
	fs.Bool("list", false, "list the selected projects without running them")
	fs.IntP("job", "j", 1, "jobs passed to the project sub-commands")
	fs.Bool("ignore-errors", false, "ignore the running error and continue for next project")
}

func (c *batchCmd) Execute(sess *subcmd.Session, vals *options.Values, args []string) error {
	logger := log.Get(c.DisplayName(vals))

	files := append(vals.GetStringSlice("file"), args...)
	if err := subcmd.RequireOption(len(files) > 0, "batch file (--file) is not set"); err != nil {
		return err
	}

	ignore := vals.GetBool("ignore-errors")
	failed := 0
	for _, file := range files {
		err := c.checkAndRun(sess, vals, file)
		if err == nil {
			continue
		}
		failed++
		if !ignore {
			return err
		}
		logger.Errorf("%v (ignored)", err)
	}
	if failed > 0 {
		return subcmd.Errorf(subcmd.Processing, "failed to run %d of %d batch files", failed, len(files))
	}
	return nil
}

func (c *batchCmd) checkAndRun(sess *subcmd.Session, vals *options.Values, file string) error {
	if _, err := os.Stat(file); err != nil {
		return subcmd.Errorf(subcmd.Processing, "cannot open batch file %s", file)
	}
	return c.runFile(sess, vals, file)
}

func (c *batchCmd) runFile(sess *subcmd.Session, vals *options.Values, path string) error {
	logger := log.Get(c.DisplayName(vals))

	projects, err := config.ReadBatchFile(path)
	if err != nil {
		return &subcmd.Error{Kind: subcmd.Processing, Err: err}
	}

	limits := splitGroups(vals.GetString("group"))
	selected := make([]config.Project, 0, len(projects))
	for _, p := range projects {
		if inGroup(limits, projectGroups(p)) {
			selected = append(selected, p)
		} else {
			logger.Debugf("%s: %v not in %v", p.Name, limits, projectGroups(p))
		}
	}

	if vals.GetBool("list") {
		listProjects(path, selected)
		return nil
	}

	ignore := vals.GetBool("ignore-errors")
	for _, p := range selected {
		extra, err := c.projectValues(sess, vals, p)
		if err != nil {
			if ignore {
				logger.Errorf("%v (ignored)", err)
				continue
			}
			return err
		}
		if err := sess.Dispatch(p.Schema, extra, p.Args, ignore); err != nil {
			return err
		}
	}
	return nil
}

// projectValues assembles the option values handed down to a
// project's sub-command: the project's own keys, the batch command's
// options filling the gaps, both narrowed to what the target schema
// declares.
func (c *batchCmd) projectValues(sess *subcmd.Session, vals *options.Values, p config.Project) (*options.Values, error) {
	fs, ok := sess.Flags(p.Schema)
	if !ok {
		return nil, subcmd.Errorf(subcmd.Processing, "%s: schema %q is not recognized", p.Name, p.Schema)
	}

	extra := options.New()
	extra.Join(p.Vals, fs, true)
	extra.Join(vals, fs, false)
	extra.Set("name", p.Name)

	if wd := extra.GetString("working-dir"); wd != "" {
		if abs, err := filepath.Abs(wd); err == nil {
			extra.Set("working-dir", abs)
		}
	}
	return extra, nil
}

// projectGroups returns the tags a project is selectable by: its
// declared groups plus its name and the name's basename.
func projectGroups(p config.Project) []string {
	groups := slices.Clone(p.Groups)
	if p.Name != "" {
		groups = append(groups, p.Name, filepath.Base(p.Name))
	}
	return groups
}

func splitGroups(limit string) []string {
	if strings.TrimSpace(limit) == "" {
		limit = "default"
	}
	parts := strings.Split(limit, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// inGroup decides whether a project tagged with groups is selected
// by the limits. A leading '-' excludes a group. Projects matching no
// limit are still selected when every limit is an exclusion or
// "default" is limited, unless the project opted out with the
// "notdefault" tag.
func inGroup(limits, groups []string) bool {
	allMinus := true
	for _, limit := range limits {
		opposite := false
		if strings.HasPrefix(limit, "-") {
			limit = limit[1:]
			opposite = true
		} else {
			allMinus = false
		}
		if slices.Contains(groups, limit) {
			return !opposite
		}
	}

	if (allMinus || slices.Contains(limits, "default")) &&
		!slices.Contains(groups, "notdefault") && !slices.Contains(groups, "-default") {
		return true
	}
	return false
}

func listProjects(path string, projects []config.Project) {
	fmt.Printf("\nFile: %s\n", path)
	fmt.Println("==================================")

	counts := make(map[string]int)
	for _, p := range projects {
		counts[fmt.Sprintf("[%s] %s", p.Schema, p.Name)]++
	}

	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for i, key := range keys {
		suffix := ""
		if counts[key] > 1 {
			suffix = fmt.Sprintf(" (%d)", counts[key])
		}
		fmt.Printf("  %2d. %s%s\n", i+1, key, suffix)
	}
	fmt.Println()
}
