package graph

import (
	"cmp"
	"fmt"
	"slices"
)

// Options controls how a Graph is built.
type Options struct {
	// IncludeStashes lays stash entries out in the ordinary branch lanes
	// instead of their own namespace.
	IncludeStashes bool
}

// Build parses records (newest first, as emitted by the history source) and
// assigns every commit a lane. Lane lookups go through a hash index, so the
// build is linear in commits plus edges.
func Build(records []string, opts Options) (*Graph, error) {
	g := &Graph{
		Commits: make([]*Commit, 0, len(records)),
		index:   make(map[string]int, len(records)),
	}
	for i, rec := range records {
		c, err := parseRecord(rec)
		if err != nil {
			return nil, &MalformedRecordError{Index: i, Reason: err.Error()}
		}
		if _, dup := g.index[c.Hash]; dup {
			return nil, &MalformedRecordError{Index: i, Reason: fmt.Sprintf("duplicate commit %s", c.Hash)}
		}
		g.index[c.Hash] = len(g.Commits)
		g.Commits = append(g.Commits, c)
	}

	b := &builder{
		fold:   opts.IncludeStashes,
		branch: newLaneSet(NamespaceBranch),
		stash:  newLaneSet(NamespaceStash),
	}
	for row, c := range g.Commits {
		b.place(row, c)
		g.MaxLanes = max(g.MaxLanes, c.ActiveLanes)
	}
	last := max(len(g.Commits)-1, 0)
	b.branch.closeAll(last)
	b.stash.closeAll(last)
	g.MaxStashLanes = b.stash.width()

	g.Segments = append(b.branch.segments, b.stash.segments...)
	slices.SortFunc(g.Segments, func(a, b Segment) int {
		return cmp.Or(
			cmp.Compare(a.Namespace, b.Namespace),
			cmp.Compare(a.Lane, b.Lane),
			cmp.Compare(a.StartRow, b.StartRow),
		)
	})

	g.children = make([][]int, len(g.Commits))
	dangling := map[string]struct{}{}
	for i, c := range g.Commits {
		for _, p := range uniqueParents(c.Parents) {
			pi, ok := g.index[p]
			if !ok {
				dangling[p] = struct{}{}
				continue
			}
			g.children[pi] = append(g.children[pi], i)
		}
	}
	for h := range dangling {
		g.Dangling = append(g.Dangling, h)
	}
	slices.Sort(g.Dangling)
	return g, nil
}

type builder struct {
	fold   bool
	branch *laneSet
	stash  *laneSet
}

func (b *builder) place(row int, c *Commit) {
	stashy := c.Stash && !b.fold

	set, lane := b.locate(row, c.Hash, stashy)
	if set == b.branch {
		// A stash lane waiting for a commit that sits on a branch ends here.
		if l, ok := b.stash.lookup(c.Hash); ok {
			b.stash.release(l, row)
		}
	}
	c.Lane = lane
	c.Namespace = set.ns
	opened := b.branch.open

	parents := uniqueParents(c.Parents)
	if len(parents) == 0 {
		set.release(lane, row)
	}
	for i, p := range parents {
		kind := EdgeMerge
		switch {
		case c.Stash:
			kind = EdgeStash
		case i == 0:
			kind = EdgeParent
		}
		if target, l, ok := b.find(p, set); ok {
			if i == 0 {
				set.release(lane, row)
			}
			c.Edges = append(c.Edges, Edge{From: c.Hash, To: p, Lane: l, Namespace: target.ns, Kind: kind})
			continue
		}
		l := lane
		if i > 0 {
			l = set.allocate(row)
			if set == b.stash {
				set.helper[l] = true
			}
		}
		set.wait(l, p)
		c.Edges = append(c.Edges, Edge{From: c.Hash, To: p, Lane: l, Namespace: set.ns, Kind: kind})
	}
	c.ActiveLanes = max(opened, b.branch.open)
}

// locate finds the lane a commit occupies, opening a new one for tips.
func (b *builder) locate(row int, hash string, stashy bool) (*laneSet, int) {
	if l, ok := b.branch.take(hash); ok {
		return b.branch, l
	}
	if l, ok := b.stash.lookup(hash); ok && (stashy || b.stash.helper[l]) {
		b.stash.take(hash)
		return b.stash, l
	}
	if stashy {
		return b.stash, b.stash.allocate(row)
	}
	return b.branch, b.branch.allocate(row)
}

// find looks for a lane already waiting for hash. Branch commits only see
// branch lanes; stash commits may also join their own namespace.
func (b *builder) find(hash string, from *laneSet) (*laneSet, int, bool) {
	if l, ok := b.branch.lookup(hash); ok {
		return b.branch, l, true
	}
	if from == b.stash {
		if l, ok := b.stash.lookup(hash); ok {
			return b.stash, l, true
		}
	}
	return nil, 0, false
}

func uniqueParents(parents []string) []string {
	if len(parents) < 2 {
		return parents
	}
	out := make([]string, 0, len(parents))
	for _, p := range parents {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}
