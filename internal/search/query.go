// Package search filters a commit graph by metadata and by the content of a
// file across history.
package search

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gitgraph-dev/gitgraph/internal/graph"
)

// Field selects which commit metadata a query looks at.
type Field uint8

const (
	FieldSubject Field = 1 << iota
	FieldBody
	FieldAuthorName
	FieldAuthorEmail
	FieldHash
	FieldRefs

	AllFields = FieldSubject | FieldBody | FieldAuthorName | FieldAuthorEmail | FieldHash | FieldRefs
)

// maxLineMatches caps how many matching lines are kept per commit.
const maxLineMatches = 5

var ErrInvalidQuery = errors.New("invalid search query")

type InvalidRegexError struct {
	Pattern string
	Err     error
}

func (e *InvalidRegexError) Error() string {
	return fmt.Sprintf("invalid regex %q: %v", e.Pattern, e.Err)
}

func (e *InvalidRegexError) Unwrap() error { return e.Err }

type Query struct {
	Text          string
	Regex         bool
	CaseSensitive bool
	// File restricts the search to the content of this path at each
	// commit. Metadata is ignored unless Prefilter is set.
	File string
	// Limit caps the number of results; 0 means unbounded.
	Limit int
	Skip  int
	// Fields defaults to AllFields when zero.
	Fields Field
	// Prefilter only reads file content for commits whose metadata matches.
	Prefilter bool
}

func (q Query) validate() error {
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidQuery, q.Limit)
	}
	if q.Skip < 0 {
		return fmt.Errorf("%w: negative skip %d", ErrInvalidQuery, q.Skip)
	}
	return nil
}

func (q Query) fields() Field {
	if q.Fields == 0 {
		return AllFields
	}
	return q.Fields
}

// Matcher tests strings against a compiled query.
type Matcher struct {
	re            *regexp.Regexp
	needle        string
	caseSensitive bool
}

// Compile prepares the text of q for matching.
func Compile(q Query) (*Matcher, error) {
	text := strings.TrimSpace(q.Text)
	m := &Matcher{caseSensitive: q.CaseSensitive}
	if text == "" {
		return m, nil
	}
	if q.Regex {
		pattern := text
		if !q.CaseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &InvalidRegexError{Pattern: text, Err: err}
		}
		m.re = re
		return m, nil
	}
	m.needle = text
	if !q.CaseSensitive {
		m.needle = strings.ToLower(text)
	}
	return m, nil
}

// MatchAll reports whether the matcher accepts everything.
func (m *Matcher) MatchAll() bool { return m.re == nil && m.needle == "" }

func (m *Matcher) MatchString(s string) bool {
	switch {
	case m.MatchAll():
		return true
	case m.re != nil:
		return m.re.MatchString(s)
	case m.caseSensitive:
		return strings.Contains(s, m.needle)
	default:
		return strings.Contains(strings.ToLower(s), m.needle)
	}
}

// MatchHash matches a full hash or a prefix of it. Regex queries see the
// full hash.
func (m *Matcher) MatchHash(hash string) bool {
	switch {
	case m.MatchAll():
		return true
	case m.re != nil:
		return m.re.MatchString(hash)
	default:
		return strings.HasPrefix(strings.ToLower(hash), strings.ToLower(m.needle))
	}
}

// MatchCommit applies the matcher to the selected metadata fields of c.
func (m *Matcher) MatchCommit(c *graph.Commit, fields Field) bool {
	if m.MatchAll() {
		return true
	}
	if fields&FieldHash != 0 && m.MatchHash(c.Hash) {
		return true
	}
	if fields&FieldSubject != 0 && m.MatchString(c.Subject) {
		return true
	}
	if fields&FieldBody != 0 && m.MatchString(c.Body) {
		return true
	}
	if fields&FieldAuthorName != 0 && m.MatchString(c.AuthorName) {
		return true
	}
	if fields&FieldAuthorEmail != 0 && m.MatchString(c.AuthorEmail) {
		return true
	}
	if fields&FieldRefs != 0 {
		for _, r := range c.Refs {
			name := r.Name
			if r.Kind == graph.RefHead {
				name = "HEAD"
			}
			if m.MatchString(name) || (r.FullName != name && m.MatchString(r.FullName)) {
				return true
			}
		}
	}
	return false
}

type LineMatch struct {
	Line int
	Text string
}

// MatchContent returns whether content matches and up to limit matching
// lines.
func (m *Matcher) MatchContent(content []byte, limit int) (bool, []LineMatch) {
	if m.MatchAll() {
		return true, nil
	}
	var (
		lines   []LineMatch
		matched bool
	)
	for n := 1; len(content) > 0; n++ {
		line := content
		if i := bytes.IndexByte(content, '\n'); i >= 0 {
			line, content = content[:i], content[i+1:]
		} else {
			content = nil
		}
		text := strings.TrimRight(string(line), "\r")
		if !m.MatchString(text) {
			continue
		}
		matched = true
		if len(lines) >= limit {
			break
		}
		lines = append(lines, LineMatch{Line: n, Text: text})
	}
	return matched, lines
}
