package graph

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitgraph-dev/gitgraph/internal/git/backend"
)

func hashOf(n int) string { return fmt.Sprintf("%040x", n+1) }

type rec struct {
	hash    string
	parents []string
	refs    string
	stash   bool
}

func (r rec) String() string {
	marker := ""
	if r.stash {
		marker = backend.StashMarker
	}
	s := backend.EncodeRecord(r.hash, r.hash[:7], strings.Join(r.parents, " "),
		"Alice", "alice@example.com", "1700000000", "1700000100", r.refs,
		"subject "+r.hash[:7], "body\n", marker)
	return strings.TrimSuffix(s, string(backend.RecordSep))
}

func build(t *testing.T, opts Options, recs ...rec) *Graph {
	t.Helper()
	records := make([]string, len(recs))
	for i, r := range recs {
		records[i] = r.String()
	}
	g, err := Build(records, opts)
	require.NoError(t, err)
	checkLaneInvariant(t, g)
	return g
}

// checkLaneInvariant asserts that no lane index is occupied by two
// segments over overlapping rows and that the width never exceeds the
// recorded maximum.
func checkLaneInvariant(t *testing.T, g *Graph) {
	t.Helper()
	type key struct {
		ns   Namespace
		lane int
	}
	last := map[key]Segment{}
	for _, s := range g.Segments {
		require.LessOrEqual(t, s.StartRow, s.EndRow, "segment %+v", s)
		k := key{s.Namespace, s.Lane}
		if prev, ok := last[k]; ok {
			require.LessOrEqual(t, prev.EndRow, s.StartRow, "overlap on %v lane %d: %+v then %+v", s.Namespace, s.Lane, prev, s)
		}
		last[k] = s
		switch s.Namespace {
		case NamespaceBranch:
			require.Less(t, s.Lane, g.MaxLanes)
		case NamespaceStash:
			require.Less(t, s.Lane, g.MaxStashLanes)
		}
	}
	for _, c := range g.Commits {
		require.LessOrEqual(t, c.ActiveLanes, g.MaxLanes)
	}
}

func TestBuildLinearHistoryUsesOneLane(t *testing.T) {
	t.Parallel()

	const n = 20
	recs := make([]rec, n)
	for i := range n {
		r := rec{hash: hashOf(n - 1 - i)}
		if i < n-1 {
			r.parents = []string{hashOf(n - 2 - i)}
		}
		recs[i] = r
	}
	g := build(t, Options{}, recs...)

	assert.Equal(t, 1, g.MaxLanes)
	for _, c := range g.Commits {
		assert.Equal(t, 0, c.Lane)
		assert.Equal(t, 1, c.ActiveLanes)
	}
	assert.True(t, g.Commits[n-1].IsRoot())
	assert.Empty(t, g.Dangling)
	assert.Len(t, g.Segments, 1)
}

func TestBuildMergeUsesTwoLanesThenConverges(t *testing.T) {
	t.Parallel()

	m, b, a, root := hashOf(3), hashOf(2), hashOf(1), hashOf(0)
	g := build(t, Options{},
		rec{hash: m, parents: []string{a, b}},
		rec{hash: b, parents: []string{a}},
		rec{hash: a, parents: []string{root}},
		rec{hash: root},
	)

	assert.Equal(t, 2, g.MaxLanes)
	assert.Equal(t, []int{2, 2, 1, 1}, activeLanes(g))
	assert.Equal(t, 0, g.Commits[0].Lane)
	assert.Equal(t, 1, g.Commits[1].Lane)
	assert.Equal(t, 0, g.Commits[2].Lane)

	require.Len(t, g.Commits[0].Edges, 2)
	assert.Equal(t, EdgeParent, g.Commits[0].Edges[0].Kind)
	assert.Equal(t, EdgeMerge, g.Commits[0].Edges[1].Kind)
	assert.Equal(t, 1, g.Commits[0].Edges[1].Lane)
	// the side branch joins the lane already waiting for its parent
	assert.Equal(t, 0, g.Commits[1].Edges[0].Lane)

	i, ok := g.Lookup(a)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1}, g.Children(i))
}

func TestBuildBranchTipsReuseFreedLanes(t *testing.T) {
	t.Parallel()

	// two unmerged tips on a common base followed by a third after the
	// first two have converged
	t1, t2, base, t3, root := hashOf(4), hashOf(3), hashOf(2), hashOf(1), hashOf(0)
	g := build(t, Options{},
		rec{hash: t1, parents: []string{base}},
		rec{hash: t2, parents: []string{base}},
		rec{hash: base, parents: []string{root}},
		rec{hash: t3, parents: []string{root}},
		rec{hash: root},
	)
	assert.Equal(t, 2, g.MaxLanes)
	assert.Equal(t, 0, g.Commits[0].Lane)
	assert.Equal(t, 1, g.Commits[1].Lane)
	assert.Equal(t, 0, g.Commits[2].Lane)
	assert.Equal(t, 1, g.Commits[3].Lane, "freed lane 1 is reused")
}

func TestBuildOctopusAndDuplicateParents(t *testing.T) {
	t.Parallel()

	m, p1, p2, p3 := hashOf(3), hashOf(2), hashOf(1), hashOf(0)
	g := build(t, Options{},
		rec{hash: m, parents: []string{p1, p2, p2, p3}},
		rec{hash: p1},
		rec{hash: p2},
		rec{hash: p3},
	)
	assert.Equal(t, 3, g.MaxLanes)
	assert.Len(t, g.Commits[0].Edges, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{g.Commits[1].Lane, g.Commits[2].Lane, g.Commits[3].Lane})
}

func TestBuildWindowedHistoryRecordsDangling(t *testing.T) {
	t.Parallel()

	c2, c1, outside := hashOf(2), hashOf(1), hashOf(0)
	g := build(t, Options{},
		rec{hash: c2, parents: []string{c1}},
		rec{hash: c1, parents: []string{outside}},
	)
	assert.Equal(t, []string{outside}, g.Dangling)
	assert.Equal(t, 1, g.MaxLanes)
}

func TestBuildStashNamespace(t *testing.T) {
	t.Parallel()

	head, stash, index, base := hashOf(3), hashOf(2), hashOf(1), hashOf(0)
	recs := []rec{
		{hash: stash, parents: []string{base, index}, stash: true, refs: "refs/stash"},
		{hash: head, parents: []string{base}, refs: "HEAD -> refs/heads/main"},
		{hash: index, parents: []string{base}},
		{hash: base},
	}

	g := build(t, Options{}, recs...)
	assert.Equal(t, NamespaceStash, g.Commits[0].Namespace)
	assert.Equal(t, NamespaceBranch, g.Commits[1].Namespace)
	assert.Equal(t, NamespaceStash, g.Commits[2].Namespace, "stash helper commit stays in the stash namespace")
	assert.Equal(t, NamespaceBranch, g.Commits[3].Namespace)
	assert.Equal(t, 1, g.MaxLanes, "stash lanes never widen the branch lanes")
	assert.Equal(t, 2, g.MaxStashLanes)
	for _, e := range g.Commits[0].Edges {
		assert.Equal(t, EdgeStash, e.Kind)
	}
	for _, c := range g.Commits {
		if c.Namespace == NamespaceBranch {
			assert.Equal(t, 1, c.ActiveLanes)
		}
	}

	folded := build(t, Options{IncludeStashes: true}, recs...)
	for _, c := range folded.Commits {
		assert.Equal(t, NamespaceBranch, c.Namespace)
	}
	assert.Zero(t, folded.MaxStashLanes)
	assert.Equal(t, 3, folded.MaxLanes)
}

func TestBuildRandomDAGLaneInvariant(t *testing.T) {
	t.Parallel()

	for seed := range uint64(50) {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			t.Parallel()

			r := rand.New(rand.NewPCG(seed, seed*7+1))
			n := 50 + r.IntN(150)
			// commit i may only have parents with a smaller index, and
			// records are emitted newest (largest index) first
			recs := make([]rec, 0, n)
			for i := n - 1; i >= 0; i-- {
				x := rec{hash: hashOf(i)}
				if i > 0 {
					np := 1
					if r.IntN(4) == 0 {
						np = 2 + r.IntN(2)
					}
					for range np {
						x.parents = append(x.parents, hashOf(r.IntN(i)))
					}
				}
				x.stash = i > 0 && r.IntN(20) == 0
				recs = append(recs, x)
			}
			g := build(t, Options{}, recs...)
			assert.Equal(t, distinctLanes(g, NamespaceBranch), g.MaxLanes)
			assert.Len(t, Lines(g), n)

			folded := build(t, Options{IncludeStashes: true}, recs...)
			assert.Equal(t, distinctLanes(folded, NamespaceBranch), folded.MaxLanes)
		})
	}
}

func distinctLanes(g *Graph, ns Namespace) int {
	seen := map[int]bool{}
	for _, s := range g.Segments {
		if s.Namespace == ns {
			seen[s.Lane] = true
		}
	}
	return len(seen)
}

func activeLanes(g *Graph) []int {
	out := make([]int, len(g.Commits))
	for i, c := range g.Commits {
		out[i] = c.ActiveLanes
	}
	return out
}

func TestBuildMalformedRecords(t *testing.T) {
	t.Parallel()

	good := rec{hash: hashOf(1)}.String()
	tests := []struct {
		name   string
		record string
	}{
		{name: "field_count", record: "abc\x1fdef"},
		{name: "empty_hash", record: strings.Replace(good, hashOf(1), "", 1)},
		{name: "non_hex_hash", record: strings.Replace(good, hashOf(1), "zzzzzzzz", 1)},
		{name: "bad_time", record: strings.Replace(good, "1700000000", "yesterday", 1)},
		{name: "bad_marker", record: strings.TrimSuffix(good, string(backend.FieldSep)) + string(backend.FieldSep) + "X"},
		{name: "body_with_separator", record: strings.Replace(good, "body\n", "bo\x1fdy", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Build([]string{rec{hash: hashOf(2)}.String(), tt.record}, Options{})
			var malformed *MalformedRecordError
			require.True(t, errors.As(err, &malformed), "got %v", err)
			assert.Equal(t, 1, malformed.Index)
		})
	}

	_, err := Build([]string{good, good}, Options{})
	var malformed *MalformedRecordError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Error(), "duplicate")
}

func TestBuildEmpty(t *testing.T) {
	t.Parallel()

	g, err := Build(nil, Options{})
	require.NoError(t, err)
	assert.Zero(t, g.Len())
	assert.Zero(t, g.MaxLanes)
	assert.Nil(t, Lines(g))
}

func TestAttachRef(t *testing.T) {
	t.Parallel()

	h := hashOf(0)
	g := build(t, Options{}, rec{hash: h, refs: "tag: refs/tags/v1"})
	assert.True(t, g.AttachRef(h, Ref{Kind: RefTag, Name: "v1", FullName: "refs/tags/v1"}))
	assert.True(t, g.AttachRef(h, Ref{Kind: RefLocalBranch, Name: "main", FullName: "refs/heads/main"}))
	assert.False(t, g.AttachRef(hashOf(9), Ref{Kind: RefTag, Name: "v2"}))
	assert.Len(t, g.Commits[0].Refs, 2)
}
