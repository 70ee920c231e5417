// Package config loads the persisted default configuration.
//
// Two optional TOML files contribute defaults: a machine-wide file
// and a per-user file. The machine file is loaded first and wins on
// conflicts; the user file only fills options the machine file left
// unset. Top-level keys are global option defaults, keys inside a
// [group] table apply only when the matching command dispatches.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/BurntSushi/toml"

	"github.com/memorydaemon/krep/internal/options"
)

// SystemPath is the machine-wide defaults file.
const SystemPath = "/etc/krep/config.toml"

// UserPath returns the per-user defaults file.
func UserPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return filepath.Join(home, ".config", "krep", "config.toml"), nil
}

// Loader resolves the process-wide default option values exactly
// once. Concurrent first callers block until one read/parse cycle
// completes; everyone observes the same cached set afterwards.
type Loader struct {
	mu    sync.Mutex
	vals  atomic.Pointer[options.Values]
	paths []string
}

// NewLoader builds a loader over the given files in precedence
// order. With no arguments the standard system and user paths are
// used.
func NewLoader(paths ...string) *Loader {
	if len(paths) == 0 {
		paths = append(paths, SystemPath)
		if user, err := UserPath(); err == nil {
			paths = append(paths, user)
		}
	}
	return &Loader{paths: paths}
}

// Load returns the cached defaults, reading the config files on the
// first call. A missing file contributes nothing; an unreadable or
// malformed one is an error and nothing is cached, so a later call
// retries.
func (l *Loader) Load() (*options.Values, error) {
	if v := l.vals.Load(); v != nil {
		return v, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if v := l.vals.Load(); v != nil {
		return v, nil
	}

	vals := options.New()
	for _, path := range l.paths {
		file, err := ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		// earlier files win, later ones fill the blanks
		vals.Join(file, nil, false)
	}

	l.vals.Store(vals)
	return vals, nil
}

// ReadFile parses one TOML config file into option values. Keys
// inside tables become group-qualified entries ("group:key"); nested
// tables extend the qualifier.
func ReadFile(path string) (*options.Values, error) {
	raw := make(map[string]any)
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	vals := options.New()
	flatten(vals, "", raw)
	return vals, nil
}

// flatten walks a decoded TOML tree in sorted key order so the
// resulting option order is deterministic.
func flatten(vals *options.Values, prefix string, raw map[string]any) {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		name := prefix + key
		switch t := raw[key].(type) {
		case map[string]any:
			flatten(vals, name+":", t)
		case int64:
			vals.Set(name, int(t))
		default:
			vals.Set(name, t)
		}
	}
}
