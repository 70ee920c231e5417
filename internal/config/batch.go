package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/memorydaemon/krep/internal/options"
)

// Project is one entry of a batch file: a named unit of work run
// through another subcommand (its schema) with its own option values.
type Project struct {
	Name   string
	Schema string
	Groups []string
	Args   []string
	Vals   *options.Values
}

type batchFile struct {
	Projects []map[string]any `toml:"project"`
}

var groupSep = regexp.MustCompile(`\s*,\s*`)

// ReadBatchFile parses a TOML batch file of [[project]] tables. The
// reserved keys name, schema, group and args describe the project;
// every other key becomes an option value for the dispatched command.
func ReadBatchFile(path string) ([]Project, error) {
	var file batchFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	projects := make([]Project, 0, len(file.Projects))
	for i, raw := range file.Projects {
		p := Project{Vals: options.New()}

		keys := make([]string, 0, len(raw))
		for key := range raw {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			value := raw[key]
			switch key {
			case "name":
				p.Name, _ = value.(string)
			case "schema":
				p.Schema, _ = value.(string)
			case "group":
				p.Groups = parseGroups(value)
			case "args":
				p.Args = toStrings(value)
			default:
				if n, ok := value.(int64); ok {
					value = int(n)
				}
				p.Vals.Set(key, value)
			}
		}

		if p.Schema == "" {
			return nil, fmt.Errorf("%s: project %d (%s): schema is not set", path, i+1, p.Name)
		}
		projects = append(projects, p)
	}

	return projects, nil
}

func parseGroups(value any) []string {
	switch t := value.(type) {
	case string:
		if t == "" {
			return nil
		}
		return groupSep.Split(strings.TrimSpace(t), -1)
	default:
		return toStrings(value)
	}
}

func toStrings(value any) []string {
	items, ok := value.([]any)
	if !ok {
		if s, ok := value.(string); ok && s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprintf("%v", item))
	}
	return out
}
