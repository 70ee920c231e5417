// Package log provides the named, leveled loggers used across krep.
//
// The verbosity is process-global: it starts at warnings, is raised by
// the persisted configuration, and an explicit -v on the command line
// wins over both.
package log

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var root = newRoot()

func newRoot() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		ForceColors:      isatty.IsTerminal(os.Stderr.Fd()),
	})
	return l
}

// SetVerbosity maps the repeatable -v count onto the global level:
// warnings by default, info with one -v, debug from two on.
func SetVerbosity(n int) {
	switch {
	case n <= 0:
		root.SetLevel(logrus.WarnLevel)
	case n == 1:
		root.SetLevel(logrus.InfoLevel)
	default:
		root.SetLevel(logrus.DebugLevel)
	}
}

// Verbosity returns the current level expressed as a -v count.
func Verbosity() int {
	switch root.GetLevel() {
	case logrus.InfoLevel:
		return 1
	case logrus.DebugLevel, logrus.TraceLevel:
		return 2
	default:
		return 0
	}
}

// SetOutput redirects every logger; tests use it to capture output.
func SetOutput(w io.Writer) {
	root.SetOutput(w)
}

// Get returns the logger for a named command. An empty name returns
// the plain root logger.
func Get(name string) *logrus.Entry {
	if name == "" {
		return logrus.NewEntry(root)
	}
	return root.WithField("cmd", name)
}
