// Package pattern filters and rewrites names by category.
//
// A pattern token has the form CATEGORY:ITEM[,ITEM...] where each
// item is a regular expression to include, an expression prefixed
// with '!' to exclude, or a rewrite rule of the form ~EXPR~REPL~
// applied to matching names before they are used.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

type rewrite struct {
	expr *regexp.Regexp
	repl string
}

type rules struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp
	subst   []rewrite
}

// filters reports whether the rules constrain matching at all; a
// category holding only rewrites accepts every name.
func (r *rules) filters() bool {
	return len(r.include)+len(r.exclude) > 0
}

func (r *rules) match(value string) bool {
	for _, re := range r.include {
		if re.MatchString(value) {
			return true
		}
	}
	for _, re := range r.exclude {
		if re.MatchString(value) {
			return false
		}
	}
	if len(r.include) > 0 {
		return false
	}
	return true
}

func (r *rules) replace(value string) string {
	for _, s := range r.subst {
		value = s.expr.ReplaceAllString(value, s.repl)
	}
	return value
}

// Pattern holds the parsed rules per category. The zero token set
// matches everything and rewrites nothing.
type Pattern struct {
	categories map[string]*rules
}

// New parses the pattern tokens. A token without a category
// qualifier or with an unparsable expression is an error.
func New(tokens ...string) (*Pattern, error) {
	p := &Pattern{categories: make(map[string]*rules)}
	for _, tok := range tokens {
		category, items, ok := strings.Cut(tok, ":")
		if !ok || category == "" {
			return nil, fmt.Errorf("pattern %q: missing category", tok)
		}
		r := p.categories[category]
		if r == nil {
			r = &rules{}
			p.categories[category] = r
		}
		if err := r.add(items); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", tok, err)
		}
	}
	return p, nil
}

func (r *rules) add(items string) error {
	for _, item := range strings.Split(items, ",") {
		item = strings.TrimSpace(item)
		switch {
		case item == "":
		case strings.HasPrefix(item, "~"):
			parts := strings.Split(item, "~")
			if len(parts) != 4 || parts[1] == "" {
				return fmt.Errorf("bad rewrite %q", item)
			}
			expr, err := regexp.Compile(parts[1])
			if err != nil {
				return err
			}
			r.subst = append(r.subst, rewrite{expr: expr, repl: parts[2]})
		case strings.HasPrefix(item, "!"):
			expr, err := regexp.Compile(item[1:])
			if err != nil {
				return err
			}
			r.exclude = append(r.exclude, expr)
		default:
			expr, err := regexp.Compile(item)
			if err != nil {
				return err
			}
			r.include = append(r.include, expr)
		}
	}
	return nil
}

// Match reports whether value passes the filters of the given
// categories, a comma-separated list of aliases. Categories with no
// filtering rules do not vote; when none votes the value passes.
func (p *Pattern) Match(categories, value string) bool {
	matched := false
	voted := false
	for _, category := range strings.Split(categories, ",") {
		r := p.categories[strings.TrimSpace(category)]
		if r == nil || !r.filters() {
			continue
		}
		voted = true
		matched = matched || r.match(value)
	}
	if !voted {
		return true
	}
	return matched
}

// Replace runs value through the rewrite rules of the given
// categories, in order.
func (p *Pattern) Replace(categories, value string) string {
	for _, category := range strings.Split(categories, ",") {
		if r := p.categories[strings.TrimSpace(category)]; r != nil {
			value = r.replace(value)
		}
	}
	return value
}
