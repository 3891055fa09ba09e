package actions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/shlex"
)

// Resolver answers dynamic placeholders. backend.Backend satisfies it.
type Resolver interface {
	ConfigValue(ctx context.Context, key string) (string, error)
	Exec(ctx context.Context, args []string) (string, error)
}

// Entry is one command of a plan. Args holds the argument vector handed to
// git; a substituted value never becomes more than the words it contains.
// Shell entries carry a script in Command instead, with every substituted
// value quoted for sh.
type Entry struct {
	// Command renders the entry for display, or holds the script of a
	// shell entry.
	Command string
	Args    []string
	Shell   bool
	Next    Continuation
	// Unresolved lists the dynamic placeholder markers left in the entry by
	// a tolerant preview.
	Unresolved []string
}

// Plan is an expanded action, ready for the executor.
type Plan struct {
	ActionID         string
	Title            string
	Entries          []Entry
	IgnoreErrors     bool
	AllowNonZeroExit bool
}

// Validate refuses plans that still carry unresolved placeholders.
func (p Plan) Validate() error {
	var markers []string
	for _, e := range p.Entries {
		markers = append(markers, e.Unresolved...)
	}
	if len(markers) > 0 {
		return fmt.Errorf("%w: %s", ErrUnresolvedPlaceholder, strings.Join(markers, ", "))
	}
	if len(p.Entries) == 0 {
		return fmt.Errorf("action %s expands to no command", p.ActionID)
	}
	for i, e := range p.Entries {
		if !e.Shell && len(e.Args) == 0 {
			return fmt.Errorf("action %s: command %d expands to no arguments", p.ActionID, i+1)
		}
	}
	return nil
}

// String renders the plan as a single command line.
func (p Plan) String() string {
	var sb strings.Builder
	for i, e := range p.Entries {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(e.Command)
		if op := e.Next.String(); op != "" && i < len(p.Entries)-1 {
			sb.WriteByte(' ')
			sb.WriteString(op)
		}
	}
	return sb.String()
}

// Expand checks the scope of def against actx and expands its template.
// Any failed placeholder is an error.
func Expand(ctx context.Context, def Def, actx Context, r Resolver) (Plan, error) {
	return expand(ctx, def, actx, r, false)
}

// Preview expands like Expand, except that failed GIT_CONFIG and GIT_EXEC
// lookups leave their marker in the command. The lookup errors are joined
// and returned together with the plan.
func Preview(ctx context.Context, def Def, actx Context, r Resolver) (Plan, error) {
	return expand(ctx, def, actx, r, true)
}

// maxDefaultDepth bounds parameter defaults that refer to other parameters.
const maxDefaultDepth = 8

type expander struct {
	ctx      context.Context
	def      Def
	actx     Context
	values   map[string]string
	resolver Resolver
	tolerant bool

	lookupErrs []error
}

func expand(ctx context.Context, def Def, actx Context, r Resolver, tolerant bool) (Plan, error) {
	if err := CheckScope(def.Scope, actx); err != nil {
		return Plan{}, err
	}
	src := def.Source()
	for _, o := range def.Options {
		if actx.optionEnabled(o) {
			src += " " + o.Flag
		}
	}
	tmpl, err := Parse(src)
	if err != nil {
		return Plan{}, err
	}

	e := &expander{ctx: ctx, def: def, actx: actx, values: actx.Values(), resolver: r, tolerant: tolerant}
	plan := Plan{
		ActionID:         def.ID,
		Title:            def.Title,
		Entries:          make([]Entry, 0, len(tmpl.Fragments)),
		IgnoreErrors:     def.IgnoreErrors,
		AllowNonZeroExit: def.AllowNonZeroExit,
	}
	for _, f := range tmpl.Fragments {
		entry, err := e.entry(f)
		if err != nil {
			return Plan{}, err
		}
		plan.Entries = append(plan.Entries, entry)
	}
	return plan, errors.Join(e.lookupErrs...)
}

// wordMark delimits the index of a substituted value while a fragment is
// split into words.
const wordMark = '\x00'

type substitution struct {
	value string
	// whole values are kept in one word; others are split on whitespace.
	whole bool
}

// entry expands one fragment. Placeholders are replaced by marks before the
// fragment is split into words, so values are never parsed as syntax.
func (e *expander) entry(f Fragment) (Entry, error) {
	entry := Entry{Next: f.Next, Shell: e.def.Shell}
	var (
		sb   strings.Builder
		subs []substitution
	)
	for _, n := range f.Nodes {
		v, unresolved, err := e.eval(n, 0)
		if err != nil {
			return Entry{}, err
		}
		if unresolved {
			entry.Unresolved = append(entry.Unresolved, n.marker())
		}
		switch {
		case n.Kind == NodeLiteral:
			sb.WriteString(v)
		case entry.Shell:
			sb.WriteString(quoteIn(n.Quote, v))
		default:
			sb.WriteByte(wordMark)
			sb.WriteString(strconv.Itoa(len(subs)))
			sb.WriteByte(wordMark)
			subs = append(subs, substitution{value: v, whole: n.Quote != 0 || unresolved})
		}
	}
	if entry.Shell {
		entry.Command = strings.TrimSpace(sb.String())
		return entry, nil
	}
	words, err := shlex.Split(sb.String())
	if err != nil {
		return Entry{}, &TemplateSyntaxError{Reason: err.Error()}
	}
	for _, w := range words {
		entry.Args = append(entry.Args, splice(w, subs)...)
	}
	entry.Command = JoinArgs(entry.Args)
	return entry, nil
}

// splice replaces the marks in word with their values. Values that are not
// whole are split on whitespace like an unquoted shell expansion, and words
// made only of empty values are dropped.
func splice(word string, subs []substitution) []string {
	var (
		out  []string
		cur  strings.Builder
		have = word == ""
	)
	flush := func() {
		if have {
			out = append(out, cur.String())
		}
		cur.Reset()
		have = false
	}
	for word != "" {
		i := strings.IndexByte(word, wordMark)
		j := -1
		if i >= 0 {
			j = strings.IndexByte(word[i+1:], wordMark)
		}
		if j < 0 {
			cur.WriteString(word)
			have = true
			break
		}
		if i > 0 {
			cur.WriteString(word[:i])
			have = true
		}
		k, err := strconv.Atoi(word[i+1 : i+1+j])
		word = word[i+j+2:]
		if err != nil || k >= len(subs) {
			continue
		}
		if sub := subs[k]; sub.whole {
			cur.WriteString(sub.value)
			have = true
			continue
		}
		for _, r := range subs[k].value {
			if unicode.IsSpace(r) {
				flush()
				continue
			}
			cur.WriteRune(r)
			have = true
		}
	}
	flush()
	return out
}

// eval returns the value of n. In tolerant mode a failed dynamic lookup
// yields the node's marker and unresolved=true instead of an error.
func (e *expander) eval(n Node, depth int) (string, bool, error) {
	switch n.Kind {
	case NodeLiteral:
		return n.Text, false, nil
	case NodeContextRef:
		if v, ok := e.values[n.Text]; ok {
			return v, false, nil
		}
		if p, ok := e.def.param(n.Text); ok {
			return e.paramDefault(p, depth)
		}
		return "", false, &MissingContextParamError{Key: n.Text}
	case NodePositional:
		key := strconv.Itoa(n.Index)
		if n.Index >= 1 && n.Index <= len(e.actx.Args) {
			return e.actx.Args[n.Index-1], false, nil
		}
		if v, ok := e.values[key]; ok {
			return v, false, nil
		}
		if p, ok := e.def.param(key); ok && p.Default != "" {
			return e.paramDefault(p, depth)
		}
		return "", false, &MissingContextParamError{Key: "$" + key}
	case NodeConfigLookup, NodeExecLookup:
		v, err := e.lookup(n)
		if err == nil {
			return v, false, nil
		}
		if !e.tolerant {
			return "", false, err
		}
		e.lookupErrs = append(e.lookupErrs, err)
		return n.marker(), true, nil
	default:
		return "", false, fmt.Errorf("unknown template node kind %d", n.Kind)
	}
}

// paramDefault expands the default value of p. A default that refers to a
// missing value is used verbatim.
func (e *expander) paramDefault(p Param, depth int) (string, bool, error) {
	if depth >= maxDefaultDepth {
		return "", false, &MissingContextParamError{Key: p.ID}
	}
	nodes, err := parseNodes(p.Default)
	if err != nil {
		return "", false, err
	}
	var (
		sb         strings.Builder
		unresolved bool
	)
	for _, n := range nodes {
		v, u, err := e.eval(n, depth+1)
		if err != nil {
			var missing *MissingContextParamError
			if errors.As(err, &missing) {
				return p.Default, false, nil
			}
			return "", false, err
		}
		unresolved = unresolved || u
		sb.WriteString(v)
	}
	return sb.String(), unresolved, nil
}

func (e *expander) lookup(n Node) (string, error) {
	kind, key := "GIT_CONFIG", n.Text
	if n.Kind == NodeExecLookup {
		kind = "GIT_EXEC"
	}
	if e.resolver == nil {
		return "", &DynamicPlaceholderError{Kind: kind, Key: key, Err: errors.New("no resolver")}
	}
	var (
		out string
		err error
	)
	if n.Kind == NodeConfigLookup {
		out, err = e.resolver.ConfigValue(e.ctx, key)
	} else {
		var args []string
		args, err = shlex.Split(key)
		if err == nil {
			out, err = e.resolver.Exec(e.ctx, args)
		}
	}
	if err != nil {
		return "", &DynamicPlaceholderError{Kind: kind, Key: key, Err: err}
	}
	return strings.TrimSpace(out), nil
}
