package refs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitgraph-dev/gitgraph/internal/git/backend"
	"github.com/gitgraph-dev/gitgraph/internal/graph"
)

const (
	hashA = "1111111111111111111111111111111111111111"
	hashB = "2222222222222222222222222222222222222222"
)

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	record := func(hash, parents, decorations string) string {
		return strings.Join([]string{hash, hash[:7], parents, "A", "a@example.com", "1", "1", decorations, "s", "", ""}, string(backend.FieldSep))
	}
	g, err := graph.Build([]string{
		record(hashB, hashA, "HEAD -> refs/heads/main"),
		record(hashA, "", ""),
	}, graph.Options{})
	require.NoError(t, err)
	return g
}

func TestResolve(t *testing.T) {
	t.Parallel()

	g := testGraph(t)
	records := []backend.BranchRecord{
		{Name: "main", FullRef: "refs/heads/main", Hash: hashB, Kind: backend.RefKindBranch, Upstream: "origin/main", RemoteName: "origin"},
		{Name: "topic", FullRef: "refs/heads/topic", Hash: hashA, Kind: backend.RefKindBranch},
		{Name: "origin/HEAD", FullRef: "refs/remotes/origin/HEAD", Hash: hashB, Kind: backend.RefKindRemoteBranch},
		{Name: "origin/main", FullRef: "refs/remotes/origin/main", Hash: hashA, Kind: backend.RefKindRemoteBranch, RemoteName: "origin"},
		{Name: "v1", FullRef: "refs/tags/v1", Hash: hashA, Kind: backend.RefKindTag},
		{Name: "gone", FullRef: "refs/heads/gone", Hash: "3333333333333333333333333333333333333333", Kind: backend.RefKindBranch},
	}

	branches, err := Resolve(records, g)
	require.NoError(t, err)
	require.Len(t, branches, 4)
	assert.Equal(t, Branch{Name: "main", FullRef: "refs/heads/main", Upstream: "origin/main", Head: hashB, RemoteName: "origin"}, branches[0])
	assert.Equal(t, "topic", branches[1].Name)
	assert.True(t, branches[2].Remote)
	assert.Equal(t, "gone", branches[3].Name)

	assert.Equal(t, []string{"HEAD -> main"}, Labels(g, hashB))
	assert.Equal(t, []string{"topic", "origin/main", "tag: v1"}, Labels(g, hashA))
}

func TestResolveDuplicateBranch(t *testing.T) {
	t.Parallel()

	g := testGraph(t)
	before := Labels(g, hashB)
	_, err := Resolve([]backend.BranchRecord{
		{Name: "v1", Hash: hashA, Kind: backend.RefKindTag},
		{Name: "main", Hash: hashA, Kind: backend.RefKindBranch},
		{Name: "main", Hash: hashA, Kind: backend.RefKindRemoteBranch},
		{Name: "main", Hash: hashB, Kind: backend.RefKindBranch},
	}, g)
	var dup *DuplicateBranchError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "main", dup.Name)
	assert.False(t, dup.Remote)

	assert.Empty(t, Labels(g, hashA), "a rejected list leaves the graph unlabeled")
	assert.Equal(t, before, Labels(g, hashB))
}

func TestAttachHeadDetached(t *testing.T) {
	t.Parallel()

	g := testGraph(t)
	AttachHead(g, hashA, "HEAD")
	AttachHead(g, hashB, "other")
	assert.Equal(t, []string{"HEAD"}, Labels(g, hashA))
	assert.Equal(t, []string{"HEAD -> main"}, Labels(g, hashB), "existing HEAD label wins")
	assert.Nil(t, Labels(g, "ffff"))
}
