// Package workdir manages the scoped process working directory the
// dispatcher wraps around every subcommand execution.
package workdir

import (
	"os"
	"path/filepath"

	"github.com/memorydaemon/krep/internal/log"
)

// Absolute joins the working directory with an optional relative
// directory and makes the result absolute. The path does not need to
// exist.
func Absolute(working, relative string) string {
	if relative != "" {
		working = filepath.Join(working, relative)
	}
	abs, err := filepath.Abs(working)
	if err != nil {
		return working
	}
	return abs
}

// Enter changes into dir, creating it when missing, and returns a
// restore func that unconditionally changes back to the previous
// directory. When keep is false the restore also removes dir if
// Enter created it. Callers run the restore via defer so every exit
// path, including error paths, puts the directory back.
func Enter(dir string, keep bool) (func(), error) {
	prev, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	created := false
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		created = true
	}

	if err := os.Chdir(dir); err != nil {
		if created {
			os.RemoveAll(dir)
		}
		return nil, err
	}

	return func() {
		if err := os.Chdir(prev); err != nil {
			log.Get("").Errorf("restore working directory %s: %v", prev, err)
		}
		if !keep && created {
			if err := os.RemoveAll(dir); err != nil {
				log.Get("").Warnf("remove %s: %v", dir, err)
			}
		}
	}, nil
}
