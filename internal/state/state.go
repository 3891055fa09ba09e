// Package state holds the persisted session state and its versioned JSON
// encoding.
package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/gitgraph-dev/gitgraph/internal/actions"
	"github.com/gitgraph-dev/gitgraph/internal/git/backend"
)

// CurrentSchemaVersion is written by Encode. Version 1 documents have no
// default_remote and no actions.
const CurrentSchemaVersion = 2

const (
	DefaultGitBinary = "git"
	DefaultRemote    = "origin"
)

type QueryDefaults struct {
	Limit          int  `json:"limit"`
	Skip           int  `json:"skip"`
	AllRefs        bool `json:"all_refs"`
	IncludeStashes bool `json:"include_stashes"`
}

func DefaultQuery() QueryDefaults {
	q := backend.DefaultHistoryQuery()
	return QueryDefaults{
		Limit:          q.Limit,
		Skip:           q.Skip,
		AllRefs:        q.AllRefs,
		IncludeStashes: q.IncludeStashes,
	}
}

// HistoryQuery converts the defaults into a history query.
func (q QueryDefaults) HistoryQuery() backend.HistoryQuery {
	return backend.HistoryQuery{
		Limit:          q.Limit,
		Skip:           q.Skip,
		AllRefs:        q.AllRefs,
		IncludeStashes: q.IncludeStashes,
	}
}

// State is owned by the caller for the whole session and handed to the
// operations that need it.
type State struct {
	SchemaVersion   int           `json:"schema_version"`
	SelectedRepo    string        `json:"selected_repo"`
	GitBinary       string        `json:"git_binary"`
	DefaultRemote   string        `json:"default_remote"`
	QueryDefaults   QueryDefaults `json:"query_defaults"`
	SelectedCommits []string      `json:"selected_commits"`
	Actions         []actions.Def `json:"actions"`
}

// Default returns the state of a fresh installation.
func Default() State {
	return State{
		SchemaVersion:   CurrentSchemaVersion,
		GitBinary:       DefaultGitBinary,
		DefaultRemote:   DefaultRemote,
		QueryDefaults:   DefaultQuery(),
		SelectedCommits: []string{},
		Actions:         defaultActions(),
	}
}

func defaultActions() []actions.Def {
	cat, err := actions.Defaults()
	if err != nil {
		slog.Error("load built-in actions", slog.Any("error", err))
		return []actions.Def{}
	}
	return cat.Defs()
}

// Catalog returns the built-in catalog with the snapshot merged over it.
func (s State) Catalog() (*actions.Catalog, error) {
	cat, err := actions.Defaults()
	if err != nil {
		return nil, err
	}
	if len(s.Actions) == 0 {
		return cat, nil
	}
	merged, err := cat.Merge(s.Actions)
	if err != nil {
		return nil, fmt.Errorf("state actions: %w", err)
	}
	return merged, nil
}

func (s *State) SetSelectedRepo(path string) { s.SelectedRepo = path }

// SetGitBinary resets to the default for an empty name.
func (s *State) SetGitBinary(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultGitBinary
	}
	s.GitBinary = name
}

func (s *State) SetDefaultRemote(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultRemote
	}
	s.DefaultRemote = name
}

func (s *State) SetQueryDefaults(q QueryDefaults) error {
	if err := q.validate(); err != nil {
		return err
	}
	s.QueryDefaults = q
	return nil
}

// SelectCommits replaces the selection, dropping repeated hashes.
func (s *State) SelectCommits(hashes ...string) {
	out := make([]string, 0, len(hashes))
	for _, h := range hashes {
		h = strings.TrimSpace(h)
		if h != "" && !slices.Contains(out, h) {
			out = append(out, h)
		}
	}
	s.SelectedCommits = out
}

func (s *State) SetActions(defs []actions.Def) {
	s.Actions = slices.Clone(defs)
}

func (q QueryDefaults) validate() error {
	if q.Limit < 0 || q.Skip < 0 {
		return fmt.Errorf("query defaults: limit and skip must not be negative (limit=%d skip=%d)", q.Limit, q.Skip)
	}
	return nil
}

// Report describes how a document was decoded.
type Report struct {
	// FromVersion is the schema version found in the document.
	FromVersion int
	// Defaulted lists the fields that were absent or null, in document
	// schema order.
	Defaulted []string
	// Unknown lists top-level keys this version does not know, sorted.
	Unknown []string
}

// DefaultedError is informational: the document decoded, but some fields
// took their defaults.
type DefaultedError struct {
	Fields []string
}

func (e *DefaultedError) Error() string {
	return "state fields defaulted: " + strings.Join(e.Fields, ", ")
}

// Err returns a *DefaultedError when any field was defaulted.
func (r Report) Err() error {
	if len(r.Defaulted) == 0 {
		return nil
	}
	return &DefaultedError{Fields: slices.Clone(r.Defaulted)}
}

var topLevelKeys = []string{
	"schema_version",
	"selected_repo",
	"git_binary",
	"default_remote",
	"query_defaults",
	"selected_commits",
	"actions",
}

// Decode reads any schema version. Absent fields take their defaults and
// are listed in the report; only malformed JSON or wrong-typed fields fail.
func Decode(data []byte) (State, Report, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return State{}, Report{}, fmt.Errorf("decode state: %w", err)
	}
	if raw == nil {
		return State{}, Report{}, errors.New("decode state: document is null")
	}

	st := Default()
	var rep Report
	p := &projector{raw: raw, report: &rep}
	st.SchemaVersion = 1
	field(p, "schema_version", &st.SchemaVersion)
	field(p, "selected_repo", &st.SelectedRepo)
	field(p, "git_binary", &st.GitBinary)
	field(p, "default_remote", &st.DefaultRemote)
	p.queryDefaults(&st.QueryDefaults)
	field(p, "selected_commits", &st.SelectedCommits)
	field(p, "actions", &st.Actions)
	if p.err != nil {
		return State{}, Report{}, p.err
	}
	if err := st.QueryDefaults.validate(); err != nil {
		return State{}, Report{}, fmt.Errorf("decode state: %w", err)
	}
	if st.SelectedCommits == nil {
		st.SelectedCommits = []string{}
	}
	if st.Actions == nil {
		st.Actions = []actions.Def{}
	}

	for key := range raw {
		if !slices.Contains(topLevelKeys, key) {
			rep.Unknown = append(rep.Unknown, key)
		}
	}
	slices.Sort(rep.Unknown)
	rep.FromVersion = st.SchemaVersion
	if st.SchemaVersion != CurrentSchemaVersion {
		slog.Debug("state schema upgraded",
			slog.Int("from", st.SchemaVersion),
			slog.Int("to", CurrentSchemaVersion),
			slog.Any("defaulted", rep.Defaulted))
		st.SchemaVersion = CurrentSchemaVersion
	}
	return st, rep, nil
}

type projector struct {
	raw    map[string]json.RawMessage
	prefix string
	report *Report
	err    error
}

// field decodes key into a zero T and stores it in dst on success, so that
// nothing of the default in dst leaks into the decoded value.
func field[T any](p *projector, key string, dst *T) {
	if p.err != nil {
		return
	}
	raw, ok := p.raw[key]
	if !ok || isNull(raw) {
		p.report.Defaulted = append(p.report.Defaulted, p.prefix+key)
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		p.err = fmt.Errorf("decode state field %s%s: %w", p.prefix, key, err)
		return
	}
	*dst = v
}

func (p *projector) queryDefaults(dst *QueryDefaults) {
	if p.err != nil {
		return
	}
	v, ok := p.raw["query_defaults"]
	if !ok || isNull(v) {
		p.report.Defaulted = append(p.report.Defaulted, "query_defaults")
		return
	}
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(v, &nested); err != nil {
		p.err = fmt.Errorf("decode state field query_defaults: %w", err)
		return
	}
	q := &projector{raw: nested, prefix: "query_defaults.", report: p.report}
	field(q, "limit", &dst.Limit)
	field(q, "skip", &dst.Skip)
	field(q, "all_refs", &dst.AllRefs)
	field(q, "include_stashes", &dst.IncludeStashes)
	p.err = q.err
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// Encode writes the current schema version as indented JSON.
func Encode(s State) ([]byte, error) {
	s.SchemaVersion = CurrentSchemaVersion
	if s.SelectedCommits == nil {
		s.SelectedCommits = []string{}
	}
	if s.Actions == nil {
		s.Actions = []actions.Def{}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return append(data, '\n'), nil
}
