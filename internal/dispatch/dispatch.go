// Package dispatch resolves which subcommand runs and assembles its
// effective option set from the layered sources: command line,
// injected options, caller-supplied values, persisted defaults.
package dispatch

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/pflag"

	"github.com/memorydaemon/krep/internal/config"
	"github.com/memorydaemon/krep/internal/log"
	"github.com/memorydaemon/krep/internal/options"
	"github.com/memorydaemon/krep/internal/optparse"
	"github.com/memorydaemon/krep/internal/subcmd"
	"github.com/memorydaemon/krep/internal/workdir"
)

// UnknownCommandError reports a name with no registered descriptor.
type UnknownCommandError struct {
	Name    string
	Suggest []string
}

func (e *UnknownCommandError) Error() string {
	if e.Name == "" {
		return "no sub-command specified"
	}
	msg := fmt.Sprintf("unknown sub-command %q", e.Name)
	if len(e.Suggest) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(e.Suggest, ", "))
	}
	return msg
}

// ParseError reports a malformed top-level argument list.
type ParseError struct {
	Cmd string
	Err error
}

func (e *ParseError) Error() string {
	if e.Cmd == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Cmd, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Dispatcher owns the process's command dispatch. One dispatch is in
// flight at a time; the working directory is process-global state.
type Dispatcher struct {
	Registry *subcmd.Registry
	Defaults *config.Loader
}

// Run dispatches a raw argument list (without the program name).
// Unknown-command and parse errors come back to the caller; a domain
// error returned by the command itself is logged and swallowed here.
func (d *Dispatcher) Run(argv []string) error {
	return d.run(argv, nil, false)
}

// run applies the caller's error policy around one dispatch. With
// ignoreErrors every failure, including an unknown name, is logged
// and swallowed.
func (d *Dispatcher) run(argv []string, extra *options.Values, ignoreErrors bool) error {
	err := d.dispatch(argv, extra)
	if err != nil && ignoreErrors {
		log.Get("").Errorf("%v (ignored)", err)
		return nil
	}
	return err
}

func (d *Dispatcher) dispatch(argv []string, extra *options.Values) error {
	name, rest := splitName(argv)

	var cmd subcmd.Descriptor
	if name != "" {
		var ok bool
		if cmd, ok = d.Registry.Lookup(name); !ok {
			return &UnknownCommandError{Name: name, Suggest: d.suggest(name)}
		}
	} else {
		// a bare invocation falls through to the help command
		var ok bool
		if cmd, ok = d.Registry.Lookup("help"); !ok {
			return &UnknownCommandError{}
		}
	}

	fs := optparse.Build(cmd)
	if err := fs.Parse(rest); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &ParseError{Cmd: cmd.Name(), Err: err}
	}

	vals := options.FromFlags(fs)

	// The verbosity counter never reaches the command; when supplied
	// it overrides the process-wide level right away.
	supplied := vals.IsSet(optparse.FlagVerbose)
	popped, _ := vals.Pop(optparse.FlagVerbose)
	if supplied {
		if n, ok := popped.(int); ok {
			log.SetVerbosity(n)
		}
	}

	if cmd.SupportInject() {
		d.injectAll(cmd, vals)
	}

	// values a delegating caller handed down rank below the parsed
	// command line but above the persisted defaults
	if extra != nil {
		vals.Join(extra, fs, false)
	}

	if err := d.layerDefaults(cmd, fs, vals); err != nil {
		return err
	}

	// the grammar still declares the one-shot flags, so a persisted
	// key or a caller's extra value could slip back into the popped
	// slots
	vals.Pop(optparse.FlagVerbose)
	vals.Pop(optparse.FlagInject)

	dir := workdir.Absolute(
		vals.GetString(optparse.FlagWorkingDir),
		vals.GetString(optparse.FlagRelativeDir),
	)
	restore, err := workdir.Enter(dir, true)
	if err != nil {
		return fmt.Errorf("enter %s: %w", dir, err)
	}
	defer restore()

	sess := &subcmd.Session{
		Dispatch: func(name string, extra *options.Values, args []string, ignoreErrors bool) error {
			return d.run(append([]string{name}, args...), extra, ignoreErrors)
		},
		Lookup: d.Registry.Lookup,
		Flags: func(name string) (*pflag.FlagSet, bool) {
			c, ok := d.Registry.Lookup(name)
			if !ok {
				return nil, false
			}
			return optparse.Build(c), true
		},
	}

	logger := log.Get(cmd.DisplayName(vals))
	execErr := cmd.Execute(sess, vals, fs.Args())

	// a domain error ends the command, not the process
	var cerr *subcmd.Error
	if errors.As(execErr, &cerr) {
		logger.Error(cerr.Error())
		return nil
	}
	return execErr
}

// layerDefaults merges the cached persisted configuration below
// everything already claimed: the command's own group first, then the
// unqualified globals. Only options the grammar declares get in.
func (d *Dispatcher) layerDefaults(cmd subcmd.Descriptor, fs *pflag.FlagSet, vals *options.Values) error {
	if d.Defaults == nil {
		return nil
	}
	defaults, err := d.Defaults.Load()
	if err != nil {
		// bad persisted config degrades to built-in defaults
		log.Get("").Warnf("default configuration: %v", err)
		return nil
	}
	vals.Join(defaults.Group(cmd.Name()), fs, false)
	vals.Join(defaults.Group(""), fs, false)
	return nil
}

// injectAll applies the --inject-option tokens: the ones addressed
// to this command first, then the unqualified ones. Injection is
// best effort; a token that does not parse is dropped.
func (d *Dispatcher) injectAll(cmd subcmd.Descriptor, vals *options.Values) {
	popped, _ := vals.Pop(optparse.FlagInject)
	tokens, _ := popped.([]string)
	if len(tokens) == 0 {
		return
	}

	scoped := options.Extra(tokens, cmd.Name())
	global := options.Extra(tokens, "")
	for _, tok := range append(scoped, global...) {
		d.injectOne(cmd, vals, tok)
	}
}

// injectOne re-parses a single injected token through a fresh copy
// of the command grammar and merges its one value at the highest
// precedence.
func (d *Dispatcher) injectOne(cmd subcmd.Descriptor, vals *options.Values, token string) {
	if !strings.HasPrefix(token, "-") {
		token = "--" + token
	}

	fs := optparse.Build(cmd)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	if err := fs.Parse([]string{token}); err != nil {
		log.Get(cmd.Name()).Debugf("dropped injected option %q: %v", token, err)
		return
	}

	parsed := options.FromFlags(fs)
	one := options.New()
	for _, name := range parsed.Names() {
		if name == optparse.FlagInject || !parsed.IsSet(name) {
			continue
		}
		value, _ := parsed.Get(name)
		one.Set(name, value)
	}
	vals.Join(one, nil, true)
}

// suggest offers close command names for a typo.
func (d *Dispatcher) suggest(name string) []string {
	matches := fuzzy.Find(name, d.Registry.Names())
	var out []string
	for i, m := range matches {
		if i == 3 {
			break
		}
		out = append(out, m.Str)
	}
	return out
}

// splitName extracts the subcommand name: the first raw token not
// beginning with a dash, removed from the list.
func splitName(argv []string) (string, []string) {
	for i, arg := range argv {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		rest := make([]string, 0, len(argv)-1)
		rest = append(rest, argv[:i]...)
		rest = append(rest, argv[i+1:]...)
		return arg, rest
	}
	return "", argv
}
