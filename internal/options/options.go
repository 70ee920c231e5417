// Package options implements the layered option set the dispatcher
// assembles for every subcommand invocation.
//
// A Values knows the declared default of each option, so a merge can
// tell an option that was never touched apart from one explicitly set
// to its own default. Layers are applied in strict order (command
// line, injected options, caller-supplied values, persisted defaults);
// every non-override join only fills slots no earlier layer claimed.
package options

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

type entry struct {
	value any
	def   any
	set   bool
}

// Values is an ordered option name → value mapping. Keys are
// case-normalized. A Values is never shared between concurrent
// dispatches; each dispatch owns a private copy.
type Values struct {
	order []string
	vals  map[string]entry
}

// New returns an empty option set.
func New() *Values {
	return &Values{vals: make(map[string]entry)}
}

// FromFlags seeds an option set with every option the flag set
// declares, even the unset ones, and records which of them the user
// supplied explicitly.
func FromFlags(fs *pflag.FlagSet) *Values {
	v := New()
	fs.VisitAll(func(f *pflag.Flag) {
		v.put(f.Name, entry{
			value: flagValue(fs, f),
			def:   flagDefault(f),
			set:   fs.Changed(f.Name),
		})
	})
	return v
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (v *Values) put(name string, e entry) {
	name = normalize(name)
	if _, ok := v.vals[name]; !ok {
		v.order = append(v.order, name)
	}
	v.vals[name] = e
}

// Set stores a value and claims the slot as explicitly set.
func (v *Values) Set(name string, value any) {
	name = normalize(name)
	e := v.vals[name]
	e.value = value
	e.set = true
	v.put(name, e)
}

// SetDefault stores a value without claiming the slot, recording it
// as the option's declared default.
func (v *Values) SetDefault(name string, value any) {
	name = normalize(name)
	e, ok := v.vals[name]
	e.def = value
	if !ok || !e.set {
		e.value = value
	}
	v.put(name, e)
}

// Get returns the current value of an option.
func (v *Values) Get(name string) (any, bool) {
	e, ok := v.vals[normalize(name)]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// IsSet reports whether any layer explicitly claimed the option. An
// option sitting at its declared default may still be set.
func (v *Values) IsSet(name string) bool {
	return v.vals[normalize(name)].set
}

// Pop removes the named option and returns its value; callers use it
// to extract one-shot values that must not reach the subcommand.
func (v *Values) Pop(name string) (any, bool) {
	name = normalize(name)
	e, ok := v.vals[name]
	if !ok {
		return nil, false
	}
	delete(v.vals, name)
	for i, n := range v.order {
		if n == name {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
	return e.value, true
}

// Names returns the option names in insertion order.
func (v *Values) Names() []string {
	out := make([]string, len(v.order))
	copy(out, v.order)
	return out
}

// Len returns the number of options held.
func (v *Values) Len() int {
	return len(v.order)
}

// Clone returns an independent copy.
func (v *Values) Clone() *Values {
	c := New()
	for _, name := range v.order {
		c.put(name, v.vals[name])
	}
	return c
}

// Join merges src into v. With override, every option present in src
// is copied unconditionally. Without it, an option is copied only
// when no earlier layer explicitly claimed the slot, which makes
// repeated non-override joins safe for layering lower-precedence
// sources. Either way a copied slot counts as claimed afterwards,
// even when the copied value equals the declared default; a later
// layer cannot push it back (known, documented behavior).
//
// When flags is non-nil only options the flag set declares
// participate, keeping unrelated commands' stray options out.
func (v *Values) Join(src *Values, flags *pflag.FlagSet, override bool) {
	if src == nil {
		return
	}
	for _, name := range src.order {
		if flags != nil && flags.Lookup(name) == nil {
			continue
		}
		se := src.vals[name]
		te, ok := v.vals[name]
		if !ok {
			v.put(name, entry{value: se.value, def: se.def, set: true})
			continue
		}
		if override || !te.set {
			te.value = se.value
			te.set = true
			v.vals[name] = te
		}
	}
}

// Group returns the entries addressed to one group, qualifiers
// stripped. The empty group selects the unqualified entries.
func (v *Values) Group(group string) *Values {
	group = normalize(group)
	out := New()
	for _, name := range v.order {
		g, rest := splitGroup(name)
		if g != group {
			continue
		}
		out.put(rest, v.vals[name])
	}
	return out
}

// GetString returns the option as a string, or "" when absent.
func (v *Values) GetString(name string) string {
	val, ok := v.Get(name)
	if !ok || val == nil {
		return ""
	}
	switch t := val.(type) {
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// GetBool returns the option as a bool, parsing string forms.
func (v *Values) GetBool(name string) bool {
	val, ok := v.Get(name)
	if !ok || val == nil {
		return false
	}
	switch t := val.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(t)
		return err == nil && b
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return false
	}
}

// GetInt returns the option as an int, or 0 when absent or
// unparsable.
func (v *Values) GetInt(name string) int {
	val, ok := v.Get(name)
	if !ok || val == nil {
		return 0
	}
	switch t := val.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0
		}
		return n
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// GetStringSlice returns the option as a string list, wrapping a
// scalar into a single-element list.
func (v *Values) GetStringSlice(name string) []string {
	val, ok := v.Get(name)
	if !ok || val == nil {
		return nil
	}
	switch t := val.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return []string{fmt.Sprintf("%v", t)}
	}
}

// Extra filters group-qualified tokens of the form
// "group:option[=value]". With a group it returns the tokens
// addressed to that group, qualifiers stripped; with an empty group
// only the unqualified tokens. Pure: the input is never mutated and
// output order follows input order.
func Extra(tokens []string, group string) []string {
	group = normalize(group)
	var out []string
	for _, tok := range tokens {
		g, rest := splitGroup(tok)
		if g != group {
			continue
		}
		out = append(out, rest)
	}
	return out
}

// splitGroup splits a "group:option[=value]" token. Only a colon
// before the first '=' qualifies as a group separator, so values may
// contain colons freely.
func splitGroup(tok string) (group, rest string) {
	stop := strings.IndexByte(tok, '=')
	if stop == -1 {
		stop = len(tok)
	}
	if i := strings.IndexByte(tok[:stop], ':'); i >= 0 {
		return normalize(tok[:i]), tok[i+1:]
	}
	return "", tok
}

func flagValue(fs *pflag.FlagSet, f *pflag.Flag) any {
	switch f.Value.Type() {
	case "bool":
		b, err := fs.GetBool(f.Name)
		if err == nil {
			return b
		}
	case "int":
		n, err := fs.GetInt(f.Name)
		if err == nil {
			return n
		}
	case "count":
		n, err := fs.GetCount(f.Name)
		if err == nil {
			return n
		}
	case "stringArray":
		s, err := fs.GetStringArray(f.Name)
		if err == nil {
			return s
		}
	case "stringSlice":
		s, err := fs.GetStringSlice(f.Name)
		if err == nil {
			return s
		}
	}
	return f.Value.String()
}

func flagDefault(f *pflag.Flag) any {
	switch f.Value.Type() {
	case "bool":
		b, err := strconv.ParseBool(f.DefValue)
		if err == nil {
			return b
		}
		return false
	case "int", "count":
		n, err := strconv.Atoi(f.DefValue)
		if err == nil {
			return n
		}
		return 0
	case "stringArray", "stringSlice":
		return []string(nil)
	}
	return f.DefValue
}
