package dispatch

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/memorydaemon/krep/internal/config"
	"github.com/memorydaemon/krep/internal/options"
	"github.com/memorydaemon/krep/internal/subcmd"
)

// recordCmd captures what the dispatcher hands to Execute.
type recordCmd struct {
	subcmd.Base
	inject bool

	calls int
	vals  *options.Values
	args  []string
	cwd   string
	sess  *subcmd.Session
	ret   error
}

func (c *recordCmd) SupportInject() bool { return c.inject }

func (c *recordCmd) Options(fs *pflag.FlagSet) {
	fs.StringP("remote", "r", "", "remote name")
	fs.String("branch", "main", "branch name")
	fs.Bool("mirror", false, "mirror mode")
}

func (c *recordCmd) Execute(sess *subcmd.Session, vals *options.Values, args []string) error {
	c.calls++
	c.vals = vals
	c.args = args
	c.sess = sess
	c.cwd, _ = os.Getwd()
	return c.ret
}

func newDispatcher(cmds ...subcmd.Descriptor) (*Dispatcher, *subcmd.Registry) {
	reg := subcmd.NewRegistry()
	for _, c := range cmds {
		reg.Register(c)
	}
	return &Dispatcher{Registry: reg}, reg
}

func TestRun_ResolvesAndExecutes(t *testing.T) {
	cmd := &recordCmd{Base: subcmd.Base{CmdName: "repo"}}
	d, _ := newDispatcher(cmd)

	if err := d.Run([]string{"repo", "-r", "origin", "positional", "--mirror"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cmd.calls != 1 {
		t.Fatalf("calls = %d, want 1", cmd.calls)
	}
	if got := cmd.vals.GetString("remote"); got != "origin" {
		t.Errorf("remote = %q, want origin", got)
	}
	if !cmd.vals.GetBool("mirror") {
		t.Error("mirror should be true")
	}
	if len(cmd.args) != 1 || cmd.args[0] != "positional" {
		t.Errorf("args = %v, want [positional]", cmd.args)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	cmd := &recordCmd{Base: subcmd.Base{CmdName: "repo"}}
	d, _ := newDispatcher(cmd)

	err := d.Run([]string{"rpo"})
	var uerr *UnknownCommandError
	if !errors.As(err, &uerr) {
		t.Fatalf("err = %v, want UnknownCommandError", err)
	}
	if uerr.Name != "rpo" {
		t.Errorf("name = %q, want rpo", uerr.Name)
	}
	if len(uerr.Suggest) == 0 || uerr.Suggest[0] != "repo" {
		t.Errorf("suggest = %v, want repo first", uerr.Suggest)
	}
	if cmd.calls != 0 {
		t.Error("no command must run on an unknown name")
	}
}

func TestRun_BareInvocationFallsToHelp(t *testing.T) {
	help := &recordCmd{Base: subcmd.Base{CmdName: "help"}}
	d, _ := newDispatcher(help)

	if err := d.Run(nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if help.calls != 1 {
		t.Errorf("help calls = %d, want 1", help.calls)
	}
}

func TestRun_ParseError(t *testing.T) {
	cmd := &recordCmd{Base: subcmd.Base{CmdName: "repo"}}
	d, _ := newDispatcher(cmd)

	err := d.Run([]string{"repo", "--no-such-flag"})
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want ParseError", err)
	}
	if cmd.calls != 0 {
		t.Error("no command must run on a parse error")
	}
}

func TestRun_DomainErrorSwallowed(t *testing.T) {
	cmd := &recordCmd{
		Base: subcmd.Base{CmdName: "repo"},
		ret:  subcmd.Errorf(subcmd.Download, "fetch failed"),
	}
	d, _ := newDispatcher(cmd)

	if err := d.Run([]string{"repo"}); err != nil {
		t.Errorf("domain error should end the command quietly, got %v", err)
	}
}

func TestRun_OtherErrorsEscape(t *testing.T) {
	boom := errors.New("boom")
	cmd := &recordCmd{Base: subcmd.Base{CmdName: "repo"}, ret: boom}
	d, _ := newDispatcher(cmd)

	if err := d.Run([]string{"repo"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestRun_IgnoreErrorsSwallowsEverything(t *testing.T) {
	d, _ := newDispatcher()

	if err := d.run([]string{"missing"}, nil, true); err != nil {
		t.Errorf("err = %v, want nil with ignoreErrors", err)
	}
}

func TestRun_VerboseNeverReachesCommand(t *testing.T) {
	cmd := &recordCmd{Base: subcmd.Base{CmdName: "repo"}}
	d, _ := newDispatcher(cmd)

	if err := d.Run([]string{"repo", "-vv"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := cmd.vals.Get("verbose"); ok {
		t.Error("verbose must be popped before Execute")
	}
}

func TestRun_InjectScopedOption(t *testing.T) {
	cmd := &recordCmd{Base: subcmd.Base{CmdName: "repo"}, inject: true}
	d, _ := newDispatcher(cmd)

	err := d.Run([]string{
		"repo",
		"--inject-option", "repo:remote=gerrit",
		"--inject-option", "batch:remote=wrong",
		"--inject-option", "branch=release",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := cmd.vals.GetString("remote"); got != "gerrit" {
		t.Errorf("remote = %q, want gerrit (scoped injection)", got)
	}
	if got := cmd.vals.GetString("branch"); got != "release" {
		t.Errorf("branch = %q, want release (unqualified injection)", got)
	}
	if _, ok := cmd.vals.Get("inject-option"); ok {
		t.Error("inject-option must not reach the command")
	}
}

func TestRun_InjectOverridesCommandLine(t *testing.T) {
	cmd := &recordCmd{Base: subcmd.Base{CmdName: "repo"}, inject: true}
	d, _ := newDispatcher(cmd)

	err := d.Run([]string{
		"repo", "-r", "origin",
		"--inject-option", "repo:remote=gerrit",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := cmd.vals.GetString("remote"); got != "gerrit" {
		t.Errorf("remote = %q, want gerrit (injection ranks highest)", got)
	}
}

func TestRun_InjectUnparsableDropped(t *testing.T) {
	cmd := &recordCmd{Base: subcmd.Base{CmdName: "repo"}, inject: true}
	d, _ := newDispatcher(cmd)

	err := d.Run([]string{"repo", "--inject-option", "repo:no-such=1"})
	if err != nil {
		t.Fatalf("a bad injected token must not fail the dispatch: %v", err)
	}
	if cmd.calls != 1 {
		t.Error("command should still run")
	}
}

func TestRun_InjectRejectedWithoutSupport(t *testing.T) {
	cmd := &recordCmd{Base: subcmd.Base{CmdName: "repo"}}
	d, _ := newDispatcher(cmd)

	err := d.Run([]string{"repo", "--inject-option", "remote=x"})
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Errorf("err = %v, want ParseError for unsupported inject", err)
	}
}

func TestRun_ExtraValuesBelowCommandLine(t *testing.T) {
	cmd := &recordCmd{Base: subcmd.Base{CmdName: "repo"}}
	d, _ := newDispatcher(cmd)

	extra := options.New()
	extra.Set("remote", "gerrit")
	extra.Set("mirror", true)
	extra.Set("undeclared", "x")

	if err := d.run([]string{"repo", "-r", "origin"}, extra, false); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := cmd.vals.GetString("remote"); got != "origin" {
		t.Errorf("remote = %q, want origin (command line wins)", got)
	}
	if !cmd.vals.GetBool("mirror") {
		t.Error("mirror should be filled from the extra values")
	}
	if _, ok := cmd.vals.Get("undeclared"); ok {
		t.Error("extra values outside the grammar must be dropped")
	}
}

func TestRun_DefaultsLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		`branch = "global-branch"`,
		`remote = "global-remote"`,
		``,
		`[repo]`,
		`remote = "repo-remote"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := &recordCmd{Base: subcmd.Base{CmdName: "repo"}}
	d, _ := newDispatcher(cmd)
	d.Defaults = config.NewLoader(path)

	if err := d.Run([]string{"repo"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := cmd.vals.GetString("remote"); got != "repo-remote" {
		t.Errorf("remote = %q, want repo-remote (command group beats globals)", got)
	}
	if got := cmd.vals.GetString("branch"); got != "global-branch" {
		t.Errorf("branch = %q, want global-branch", got)
	}
}

func TestRun_OneShotFlagsNeverResurrected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		`verbose = 2`,
		`inject-option = ["repo:remote=sneaky"]`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := &recordCmd{Base: subcmd.Base{CmdName: "repo"}, inject: true}
	d, _ := newDispatcher(cmd)
	d.Defaults = config.NewLoader(path)

	if err := d.Run([]string{"repo"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := cmd.vals.Get("verbose"); ok {
		t.Error("a persisted verbose key must not re-enter the merged set")
	}
	if _, ok := cmd.vals.Get("inject-option"); ok {
		t.Error("a persisted inject-option key must not re-enter the merged set")
	}

	extra := options.New()
	extra.Set("verbose", 3)
	if err := d.run([]string{"repo"}, extra, false); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := cmd.vals.Get("verbose"); ok {
		t.Error("a caller's extra verbose must not re-enter the merged set")
	}
}

func TestRun_CommandLineBeatsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`remote = "from-file"`), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := &recordCmd{Base: subcmd.Base{CmdName: "repo"}}
	d, _ := newDispatcher(cmd)
	d.Defaults = config.NewLoader(path)

	if err := d.Run([]string{"repo", "-r", "origin"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := cmd.vals.GetString("remote"); got != "origin" {
		t.Errorf("remote = %q, want origin", got)
	}
}

func TestRun_WorkingDirScoped(t *testing.T) {
	before, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	target := t.TempDir()

	cmd := &recordCmd{Base: subcmd.Base{CmdName: "repo"}}
	d, _ := newDispatcher(cmd)

	if err := d.Run([]string{"repo", "-w", target}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// the command saw the requested directory
	want, _ := filepath.EvalSymlinks(target)
	got, _ := filepath.EvalSymlinks(cmd.cwd)
	if got != want {
		t.Errorf("cwd in command = %q, want %q", got, want)
	}

	// and the process is back where it started
	after, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if after != before {
		t.Errorf("cwd after dispatch = %q, want %q", after, before)
	}
}

func TestRun_WorkingDirRestoredOnDomainError(t *testing.T) {
	before, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	cmd := &recordCmd{
		Base: subcmd.Base{CmdName: "repo"},
		ret:  subcmd.Errorf(subcmd.Processing, "fail inside"),
	}
	d, _ := newDispatcher(cmd)

	if err := d.Run([]string{"repo", "-w", t.TempDir()}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	after, _ := os.Getwd()
	if after != before {
		t.Errorf("cwd after dispatch = %q, want %q", after, before)
	}
}

func TestRun_SessionDelegation(t *testing.T) {
	inner := &recordCmd{Base: subcmd.Base{CmdName: "inner"}}
	outer := &recordCmd{Base: subcmd.Base{CmdName: "outer"}}
	d, _ := newDispatcher(inner, outer)

	if err := d.Run([]string{"outer"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	extra := options.New()
	extra.Set("remote", "gerrit")
	if err := outer.sess.Dispatch("inner", extra, []string{"arg"}, false); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if inner.calls != 1 {
		t.Fatal("inner should have run")
	}
	if got := inner.vals.GetString("remote"); got != "gerrit" {
		t.Errorf("remote = %q, want gerrit", got)
	}
	if len(inner.args) != 1 || inner.args[0] != "arg" {
		t.Errorf("args = %v, want [arg]", inner.args)
	}

	fs, ok := outer.sess.Flags("inner")
	if !ok || fs.Lookup("remote") == nil {
		t.Error("Flags should expose the target grammar")
	}
	if _, ok := outer.sess.Flags("nope"); ok {
		t.Error("Flags for an unknown name should miss")
	}
}

func TestSplitName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		argv []string
		name string
		rest []string
	}{
		{[]string{"repo", "-r", "origin"}, "repo", []string{"-r", "origin"}},
		{[]string{"-v", "repo"}, "repo", []string{"-v"}},
		{[]string{"-v", "--mirror"}, "", []string{"-v", "--mirror"}},
		{nil, "", nil},
	}

	for _, tt := range tests {
		name, rest := splitName(tt.argv)
		if name != tt.name {
			t.Errorf("splitName(%v) name = %q, want %q", tt.argv, name, tt.name)
		}
		if len(rest) != len(tt.rest) {
			t.Errorf("splitName(%v) rest = %v, want %v", tt.argv, rest, tt.rest)
			continue
		}
		for i := range rest {
			if rest[i] != tt.rest[i] {
				t.Errorf("splitName(%v) rest = %v, want %v", tt.argv, rest, tt.rest)
				break
			}
		}
	}
}
