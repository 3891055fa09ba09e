package actions

import (
	"cmp"
	"errors"
	"slices"
	"strconv"
	"strings"
)

// Resolve finds the action for an id, an alias or a short id. A short id
// matches actions whose id ends in ":<id>", then actions whose sanitized
// title equals it, then actions whose command starts with it. When several
// match, the one that the given context can fill best wins.
func (c *Catalog) Resolve(id string, actx Context) (Def, error) {
	id = strings.TrimSpace(id)
	if i, ok := c.byID[id]; ok {
		return c.defs[i], nil
	}
	if i, ok := c.aliases[id]; ok {
		return c.defs[i], nil
	}
	if id == "" || strings.Contains(id, ":") {
		return Def{}, &UnknownActionError{ID: id}
	}

	matchers := []func(Def) bool{
		func(d Def) bool { return strings.HasSuffix(d.ID, ":"+id) },
		func(d Def) bool { return sanitizeID(d.Title) == id },
		func(d Def) bool { return strings.EqualFold(firstWord(d.Source()), id) },
	}
	for _, match := range matchers {
		var candidates []int
		for i, d := range c.defs {
			if match(d) {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) > 0 {
			return c.defs[c.best(candidates, actx)], nil
		}
	}
	return Def{}, &UnknownActionError{ID: id}
}

type rank struct {
	missing  int
	shell    bool
	params   int
	template int
	order    int
}

func (c *Catalog) best(candidates []int, actx Context) int {
	values := actx.Values()
	ranks := make([]rank, len(candidates))
	for j, i := range candidates {
		d := c.defs[i]
		ranks[j] = rank{
			missing:  unresolvedCount(d, actx, values),
			shell:    d.Shell,
			params:   len(d.Params),
			template: len(d.Source()),
			order:    i,
		}
	}
	best := slices.MinFunc(ranks, func(a, b rank) int {
		return cmp.Or(
			cmp.Compare(a.missing, b.missing),
			cmp.Compare(boolRank(a.shell), boolRank(b.shell)),
			cmp.Compare(a.params, b.params),
			cmp.Compare(a.template, b.template),
			cmp.Compare(a.order, b.order),
		)
	})
	return best.order
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// unresolvedCount counts the static placeholders of d the context cannot
// fill, including the keys required by its scope.
func unresolvedCount(d Def, actx Context, values map[string]string) int {
	n := 0
	var sv *ScopeViolationError
	if errors.As(CheckScope(d.Scope, actx), &sv) {
		n += len(sv.Missing)
	}
	tmpl, err := Parse(d.Source())
	if err != nil {
		return n + 1_000
	}
	for _, f := range tmpl.Fragments {
		for _, node := range f.Nodes {
			switch node.Kind {
			case NodeContextRef:
				if _, ok := values[node.Text]; !ok {
					if _, ok := d.param(node.Text); !ok {
						n++
					}
				}
			case NodePositional:
				key := strconv.Itoa(node.Index)
				if node.Index >= 1 && node.Index <= len(actx.Args) {
					continue
				}
				if _, ok := values[key]; ok {
					continue
				}
				if p, ok := d.param(key); !ok || p.Default == "" {
					n++
				}
			}
		}
	}
	return n
}

// firstWord returns the git subcommand a command line starts with.
func firstWord(src string) string {
	fields := strings.Fields(src)
	if len(fields) > 1 && fields[0] == "git" {
		return fields[1]
	}
	if len(fields) > 0 {
		return fields[0]
	}
	return ""
}
