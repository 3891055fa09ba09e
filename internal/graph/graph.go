// Package graph turns bulk history records into a commit graph with a lane
// layout suitable for rendering.
package graph

import (
	"slices"
	"time"
)

type EdgeKind uint8

const (
	EdgeParent EdgeKind = iota
	EdgeMerge
	EdgeStash
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeMerge:
		return "merge"
	case EdgeStash:
		return "stash"
	default:
		return "parent-continuation"
	}
}

// Namespace separates stash lanes from ordinary branch lanes. Lane indices
// are only comparable within one namespace.
type Namespace uint8

const (
	NamespaceBranch Namespace = iota
	NamespaceStash
)

func (n Namespace) String() string {
	if n == NamespaceStash {
		return "stash"
	}
	return "branch"
}

type RefKind uint8

const (
	RefHead RefKind = iota
	RefLocalBranch
	RefRemoteBranch
	RefTag
	RefStash
	RefOther
)

// Ref is a label attached to a commit. For RefHead, Name is the checked out
// branch, or empty when HEAD is detached.
type Ref struct {
	Kind     RefKind
	Name     string
	FullName string
}

type Edge struct {
	From      string
	To        string
	Lane      int
	Namespace Namespace
	Kind      EdgeKind
}

type Commit struct {
	Hash        string
	ShortHash   string
	Parents     []string
	Refs        []Ref
	AuthorName  string
	AuthorEmail string
	AuthorTime  time.Time
	CommitTime  time.Time
	Subject     string
	Body        string
	Stash       bool

	Lane      int
	Namespace Namespace
	// ActiveLanes is the number of branch lanes in use while this row is
	// drawn.
	ActiveLanes int
	Edges       []Edge
}

// IsRoot reports whether the commit has no parents.
func (c *Commit) IsRoot() bool { return len(c.Parents) == 0 }

// Segment is the row interval during which a lane index is occupied.
type Segment struct {
	Lane      int
	Namespace Namespace
	StartRow  int
	EndRow    int
}

// Graph holds commits in row order. Commits refer to each other by hash and
// position only.
type Graph struct {
	Commits  []*Commit
	Segments []Segment
	// MaxLanes is the largest number of branch lanes open at any row.
	MaxLanes      int
	MaxStashLanes int
	// Dangling lists parent hashes that are not part of this graph, which
	// happens when the history was windowed with skip/limit.
	Dangling []string

	index    map[string]int
	children [][]int
}

func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Commits)
}

// Lookup returns the row of hash.
func (g *Graph) Lookup(hash string) (int, bool) {
	if g == nil {
		return 0, false
	}
	i, ok := g.index[hash]
	return i, ok
}

func (g *Graph) Commit(hash string) *Commit {
	if i, ok := g.Lookup(hash); ok {
		return g.Commits[i]
	}
	return nil
}

// Children returns the rows of the commits that list row i as a parent.
func (g *Graph) Children(i int) []int {
	if g == nil || i < 0 || i >= len(g.children) {
		return nil
	}
	return g.children[i]
}

// AttachRef adds ref to the commit with the given hash unless an equal ref
// is already present. It reports whether the commit exists.
func (g *Graph) AttachRef(hash string, ref Ref) bool {
	c := g.Commit(hash)
	if c == nil {
		return false
	}
	if !slices.ContainsFunc(c.Refs, func(r Ref) bool { return r.Kind == ref.Kind && r.Name == ref.Name }) {
		c.Refs = append(c.Refs, ref)
	}
	return true
}
