package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/memorydaemon/krep/internal/gerrit"
	"github.com/memorydaemon/krep/internal/hooks"
	"github.com/memorydaemon/krep/internal/log"
	"github.com/memorydaemon/krep/internal/manifest"
	"github.com/memorydaemon/krep/internal/options"
	"github.com/memorydaemon/krep/internal/pattern"
	"github.com/memorydaemon/krep/internal/run"
	"github.com/memorydaemon/krep/internal/subcmd"
)

// repoCmd downloads a project managed with git-repo and imports it
// to a remote server. With bare set it works on a mirror layout
// where every project is a bare <name>.git directory.
type repoCmd struct {
	subcmd.Base
	bare bool
}

func newRepoCmd() *repoCmd {
	return &repoCmd{
		Base: subcmd.Base{
			CmdName: "repo",
			Help:    "Download and import git-repo manifest project",
		},
	}
}

func (c *repoCmd) Options(fs *pflag.FlagSet) {
	fs.StringP("manifest-url", "u", "", "set the git-repo manifest url")
	fs.StringP("manifest-branch", "b", "", "set the project branch or revision")
	fs.StringP("manifest-name", "m", "", "initialize the manifest name")
	fs.Bool("mirror", false, "create a replica of the remote repositories")
	fs.String("reference", "", "set the local project mirror")
	fs.String("repo-url", "", "repo repository location")
	fs.String("repo-branch", "", "repo branch or revision")

	fs.String("remote", "", "set the remote server to push the imported projects")
	fs.String("refs", "", "set the prefix of the remote refs")
	fs.String("prefix", "", "prefix of the projects on the remote server")
	fs.String("gerrit", "", "gerrit server to create the projects on")
	fs.String("description", "", "description for projects created on gerrit")
	fs.Bool("all", false, "push all heads and tags")
	fs.Bool("heads", false, "push the local heads")
	fs.Bool("tags", false, "push the local tags")
	fs.Bool("offsite", false, "skip the download and import the local projects")

	fs.StringArrayP("pattern", "p", nil, "set the patterns to filter and rewrite the project names")
	fs.String("name", "", "set the project name for logging")
	fs.String("hook-dir", "", "directory with the preinstalled hooks")
	fs.IntP("job", "j", 1, "jobs to run with specified threads in parallel")
}

func (c *repoCmd) Execute(sess *subcmd.Session, vals *options.Values, args []string) error {
	ctx := context.Background()

	if prefix := vals.GetString("prefix"); prefix != "" && !strings.HasSuffix(prefix, "/") {
		vals.Set("prefix", prefix+"/")
	}

	if !vals.GetBool("offsite") {
		if err := subcmd.RequireOption(
			vals.GetString("manifest-url") != "", "manifest (--manifest-url) is not set"); err != nil {
			return err
		}
		if err := c.download(ctx, vals); err != nil {
			return err
		}
	}

	if err := subcmd.RequireOption(
		vals.GetString("remote") != "", "remote (--remote) is not set"); err != nil {
		return err
	}
	if remote := vals.GetString("remote"); !strings.Contains(remote, "://") {
		vals.Set("remote", "git://"+remote)
	}

	projects, err := c.projects(vals)
	if err != nil {
		return err
	}

	if err := hooks.Run(ctx, "pre-import", vals); err != nil {
		return err
	}
	if err := c.pushAll(ctx, vals, projects); err != nil {
		return err
	}
	return hooks.Run(ctx, "post-import", vals)
}

// download initializes the checkout when needed and syncs it.
func (c *repoCmd) download(ctx context.Context, vals *options.Values) error {
	r := &run.Cmd{TryRun: vals.GetBool("tryrun")}

	if _, err := os.Stat(".repo"); os.IsNotExist(err) {
		args := []string{"init", "-u", vals.GetString("manifest-url")}
		args = appendOpt(args, "-b", vals.GetString("manifest-branch"))
		args = appendOpt(args, "-m", vals.GetString("manifest-name"))
		if c.bare || vals.GetBool("mirror") {
			args = append(args, "--mirror")
		}
		args = appendOpt(args, "--reference", vals.GetString("reference"))
		args = appendOpt(args, "--repo-url", vals.GetString("repo-url"))
		args = appendOpt(args, "--repo-branch", vals.GetString("repo-branch"))

		if err := r.Run(ctx, "repo", args...); err != nil {
			return &subcmd.Error{
				Kind: subcmd.Download,
				Msg:  fmt.Sprintf("failed to init %q", vals.GetString("manifest-url")),
				Err:  err,
			}
		}
	}

	args := []string{"sync"}
	if job := vals.GetInt("job"); job > 1 {
		args = append(args, "-j", strconv.Itoa(job))
	}
	if err := r.Run(ctx, "repo", args...); err != nil {
		return &subcmd.Error{
			Kind: subcmd.Download,
			Msg:  fmt.Sprintf("failed to sync %q", vals.GetString("manifest-url")),
			Err:  err,
		}
	}
	return nil
}

// repoProject is one manifest project resolved to its local path and
// remote name.
type repoProject struct {
	Name     string
	Path     string
	Revision string
}

// projectCategories are the pattern aliases that select and rewrite
// manifest project names.
const projectCategories = "p,project"

// projects enumerates the manifest projects present on disk, filtered
// and renamed through the --pattern rules. Missing paths are warned
// about and skipped, the way the repo tool leaves gaps for projects
// the sync never fetched.
func (c *repoCmd) projects(vals *options.Values) ([]repoProject, error) {
	m, err := manifest.Load(".")
	if err != nil {
		return nil, &subcmd.Error{Kind: subcmd.Processing, Msg: "failed to read the manifest", Err: err}
	}

	pat, err := pattern.New(vals.GetStringSlice("pattern")...)
	if err != nil {
		return nil, &subcmd.Error{Kind: subcmd.Processing, Err: err}
	}

	logger := log.Get(c.DisplayName(vals))
	prefix := vals.GetString("prefix")

	var out []repoProject
	for _, p := range m.ResolvedProjects() {
		path := p.Path
		if c.bare {
			path = p.Name + ".git"
		}
		if _, err := os.Stat(path); err != nil {
			logger.Warnf("%s not existed, ignored", path)
			continue
		}
		if !pat.Match(projectCategories, p.Name) {
			logger.Debugf("%s ignored by the pattern", p.Name)
			continue
		}
		out = append(out, repoProject{
			Name:     prefix + pat.Replace(projectCategories, p.Name),
			Path:     path,
			Revision: p.Revision,
		})
	}
	return out, nil
}

// pushAll imports every project toward the remote, in parallel up to
// the configured number of jobs. Per-project failures are logged and
// collected; they never abort the remaining projects.
func (c *repoCmd) pushAll(ctx context.Context, vals *options.Values, projects []repoProject) error {
	remote := strings.TrimSuffix(vals.GetString("remote"), "/")
	tryrun := vals.GetBool("tryrun")

	var server *gerrit.Server
	if host := vals.GetString("gerrit"); host != "" {
		server = gerrit.New(host, tryrun)
		log.Get(c.DisplayName(vals)).Debugf("creating projects on gerrit %s", server.Host())
	}

	jobs := vals.GetInt("job")
	if jobs < 1 {
		jobs = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	failures := make([]error, len(projects))
	for i, p := range projects {
		g.Go(func() error {
			failures[i] = c.pushOne(ctx, vals, server, remote, p)
			return nil // failures are collected, not fatal
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range failures {
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		return subcmd.Errorf(subcmd.Processing, "failed to import %d of %d projects", failed, len(projects))
	}
	return nil
}

func (c *repoCmd) pushOne(ctx context.Context, vals *options.Values, server *gerrit.Server, remote string, p repoProject) error {
	logger := log.Get(p.Name)
	logger.Info("start processing ...")

	if server != nil {
		if err := server.CreateProject(ctx, p.Name, vals.GetString("description")); err != nil {
			logger.Error(err.Error())
			return err
		}
	}

	r := &run.Cmd{Dir: p.Path, TryRun: vals.GetBool("tryrun")}
	url := remote + "/" + p.Name
	refs := vals.GetString("refs")
	force := vals.GetBool("force")
	all := vals.GetBool("all")

	var firstErr error
	if vals.GetBool("heads") || all {
		spec := refspec(force, headsSource(all, p.Revision), refTarget(refs, "heads", headsTarget(all, p.Revision)))
		if err := r.Run(ctx, "git", "push", url, spec); err != nil {
			logger.Errorf("failed to push heads: %v", err)
			firstErr = err
		}
	}
	if vals.GetBool("tags") || all {
		spec := refspec(force, "refs/tags/*", refTarget(refs, "tags", "*"))
		if err := r.Run(ctx, "git", "push", url, spec); err != nil {
			logger.Errorf("failed to push tags: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// headsSource selects what to push: every head, or only the manifest
// revision of the project.
func headsSource(all bool, revision string) string {
	if all || revision == "" {
		return "refs/heads/*"
	}
	return revision
}

func headsTarget(all bool, revision string) string {
	if all || revision == "" {
		return "*"
	}
	return shortRef(revision)
}

// shortRef strips a full ref down to its branch name.
func shortRef(ref string) string {
	ref = strings.TrimPrefix(ref, "refs/heads/")
	return strings.TrimPrefix(ref, "refs/remotes/")
}

// refTarget places a remote ref under the optional refs prefix.
func refTarget(refs, kind, name string) string {
	if refs == "" {
		return "refs/" + kind + "/" + name
	}
	return strings.TrimSuffix(refs, "/") + "/" + kind + "/" + name
}

func refspec(force bool, source, target string) string {
	spec := source + ":" + target
	if force {
		return "+" + spec
	}
	return spec
}

func appendOpt(args []string, opt, value string) []string {
	if value == "" {
		return args
	}
	return append(args, opt, value)
}
