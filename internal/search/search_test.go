package search

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitgraph-dev/gitgraph/internal/git/backend"
	"github.com/gitgraph-dev/gitgraph/internal/graph"
)

func hashOf(n int) string { return fmt.Sprintf("%040x", n+1) }

// linearGraph builds n commits newest first. Commit i has subject
// "change i" and every third commit is authored by Bob.
func linearGraph(t *testing.T, n int) *graph.Graph {
	t.Helper()
	records := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		parents := ""
		if i > 0 {
			parents = hashOf(i - 1)
		}
		author, email := "Alice", "alice@example.com"
		if i%3 == 0 {
			author, email = "Bob", "bob@example.com"
		}
		decorations := ""
		if i == n-1 {
			decorations = "HEAD -> refs/heads/main, tag: refs/tags/v2"
		}
		records = append(records, strings.Join([]string{
			hashOf(i), hashOf(i)[:7], parents, author, email, "1700000000", "1700000000",
			decorations, fmt.Sprintf("change %d", i), "Body mentions Parser", "",
		}, string(backend.FieldSep)))
	}
	g, err := graph.Build(records, graph.Options{})
	require.NoError(t, err)
	return g
}

func hashes(commits []*graph.Commit) []string {
	out := make([]string, len(commits))
	for i, c := range commits {
		out[i] = c.Hash
	}
	return out
}

type fakeSource struct {
	files map[string]string
	err   error
	calls atomic.Int32
}

func (f *fakeSource) FileSnapshot(_ context.Context, commit, path string) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	content, ok := f.files[commit]
	if !ok {
		return nil, fmt.Errorf("%s at %s: %w", path, commit, fs.ErrNotExist)
	}
	return []byte(content), nil
}

func TestMetadataSearch(t *testing.T) {
	t.Parallel()

	g := linearGraph(t, 10)
	e := &Engine{}
	ctx := context.Background()

	tests := []struct {
		name  string
		query Query
		want  int
	}{
		{name: "empty_matches_all", query: Query{}, want: 10},
		{name: "substring_case_insensitive", query: Query{Text: "PARSER"}, want: 10},
		{name: "case_sensitive", query: Query{Text: "PARSER", CaseSensitive: true}, want: 0},
		{name: "author", query: Query{Text: "bob", Fields: FieldAuthorName}, want: 4},
		{name: "email", query: Query{Text: "bob@", Fields: FieldAuthorEmail}, want: 4},
		{name: "subject_regex", query: Query{Text: `^change [0-4]$`, Regex: true}, want: 5},
		{name: "regex_case_insensitive", query: Query{Text: `^CHANGE 1$`, Regex: true}, want: 1},
		{name: "hash_full", query: Query{Text: hashOf(3), Fields: FieldHash}, want: 1},
		{name: "hash_prefix_matches_all", query: Query{Text: "0000", Fields: FieldHash}, want: 10},
		{name: "hash_not_infix", query: Query{Text: hashOf(3)[2:], Fields: FieldHash}, want: 0},
		{name: "tag_ref", query: Query{Text: "v2", Fields: FieldRefs}, want: 1},
		{name: "head_ref", query: Query{Text: "HEAD", Fields: FieldRefs, CaseSensitive: true}, want: 1},
		{name: "body_only", query: Query{Text: "change", Fields: FieldBody}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := e.Search(ctx, g, tt.query)
			require.NoError(t, err)
			assert.Len(t, res.Commits, tt.want)
			assert.True(t, res.Complete)
		})
	}
}

func TestSearchInvalidRegex(t *testing.T) {
	t.Parallel()

	g := linearGraph(t, 3)
	_, err := (&Engine{}).Search(context.Background(), g, Query{Text: "(", Regex: true})
	var re *InvalidRegexError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "(", re.Pattern)

	_, err = (&Engine{Source: &fakeSource{}}).Search(context.Background(), g, Query{Text: "(", Regex: true, File: "a.txt"})
	require.ErrorAs(t, err, &re)
}

func TestSearchInvalidQuery(t *testing.T) {
	t.Parallel()

	g := linearGraph(t, 3)
	for _, q := range []Query{{Limit: -1}, {Skip: -2}} {
		_, err := (&Engine{}).Search(context.Background(), g, q)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	}
}

func contentSource(n int) *fakeSource {
	files := map[string]string{}
	for i := range n {
		switch {
		case i%4 == 0:
			// file absent at this commit
		case i%2 == 0:
			files[hashOf(i)] = fmt.Sprintf("package main\n\n// needle %d\nfunc main() {}\n", i)
		default:
			files[hashOf(i)] = "package main\n"
		}
	}
	return &fakeSource{files: files}
}

func TestPaginationEquivalence(t *testing.T) {
	t.Parallel()

	const n = 40
	g := linearGraph(t, n)
	ctx := context.Background()

	queries := map[string]Query{
		"metadata": {Text: "bob", Fields: FieldAuthorName},
		"content":  {Text: "needle", File: "main.go"},
		"prefilter": {
			Text: `needle|Bob`, Regex: true, File: "main.go", Prefilter: true,
		},
	}
	for name, base := range queries {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			for _, workers := range []int{1, 3, 8} {
				e := &Engine{Source: contentSource(n), Workers: workers}
				full, err := e.Search(ctx, g, base)
				require.NoError(t, err)
				require.True(t, full.Complete)
				all := hashes(full.Commits)
				require.NotEmpty(t, all)

				for skip := 0; skip <= len(all)+1; skip++ {
					for limit := 1; limit <= len(all)+1; limit++ {
						q := base
						q.Skip, q.Limit = skip, limit
						res, err := e.Search(ctx, g, q)
						require.NoError(t, err)

						lo, hi := min(skip, len(all)), min(skip+limit, len(all))
						assert.Equal(t, all[lo:hi], hashes(res.Commits), "workers=%d skip=%d limit=%d", workers, skip, limit)
					}
				}
			}
		})
	}
}

func TestContentSearchLineMatches(t *testing.T) {
	t.Parallel()

	g := linearGraph(t, 8)
	src := contentSource(8)
	res, err := (&Engine{Source: src, Workers: 2}).Search(context.Background(), g, Query{Text: "needle", File: "main.go"})
	require.NoError(t, err)
	// 2 and 6 carry the needle; 0 and 4 lack the file
	assert.Equal(t, []string{hashOf(6), hashOf(2)}, hashes(res.Commits))
	assert.Equal(t, []LineMatch{{Line: 3, Text: "// needle 6"}}, res.Matches[hashOf(6)])
	assert.EqualValues(t, 8, src.calls.Load())
}

func TestContentSearchSourceError(t *testing.T) {
	t.Parallel()

	g := linearGraph(t, 5)
	boom := errors.New("boom")
	_, err := (&Engine{Source: &fakeSource{err: boom}}).Search(context.Background(), g, Query{Text: "x", File: "a.txt"})
	require.ErrorIs(t, err, boom)

	_, err = (&Engine{}).Search(context.Background(), g, Query{Text: "x", File: "a.txt"})
	require.Error(t, err)
}

func TestContentSearchCanceled(t *testing.T) {
	t.Parallel()

	g := linearGraph(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Engine{Source: contentSource(5)}).Search(ctx, g, Query{Text: "needle", File: "main.go"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestMatchContentCapsLines(t *testing.T) {
	t.Parallel()

	m, err := Compile(Query{Text: "x"})
	require.NoError(t, err)
	matched, lines := m.MatchContent([]byte(strings.Repeat("x\r\n", 10)), maxLineMatches)
	assert.True(t, matched)
	assert.Len(t, lines, maxLineMatches)
	assert.Equal(t, LineMatch{Line: 1, Text: "x"}, lines[0])

	matched, lines = m.MatchContent([]byte("a\nb"), maxLineMatches)
	assert.False(t, matched)
	assert.Empty(t, lines)
}
