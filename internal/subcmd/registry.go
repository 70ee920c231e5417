package subcmd

import (
	"fmt"
	"sort"
)

// Registry is the static name → descriptor table. It is populated by
// the entry point before the first dispatch and read-only afterwards.
type Registry struct {
	cmds map[string]Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{cmds: make(map[string]Descriptor)}
}

// Register adds a descriptor. A duplicate name is a configuration
// error of the program itself, not a runtime condition, so it panics.
func (r *Registry) Register(d Descriptor) {
	name := d.Name()
	if name == "" {
		panic("subcmd: descriptor with empty name")
	}
	if _, ok := r.cmds[name]; ok {
		panic(fmt.Sprintf("subcmd: %q registered twice", name))
	}
	r.cmds[name] = d
}

// Lookup resolves a descriptor by name. Absence is a first-class
// outcome reported through ok.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.cmds[name]
	return d, ok
}

// Names returns the registered command names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.cmds))
	for name := range r.cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
