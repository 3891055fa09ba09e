// Package refs turns the ref listing of a repository into branches and
// attaches ref labels to graph commits.
package refs

import (
	"fmt"
	"strings"

	"github.com/gitgraph-dev/gitgraph/internal/git/backend"
	"github.com/gitgraph-dev/gitgraph/internal/graph"
)

type Branch struct {
	Name     string
	FullRef  string
	Upstream string
	Head     string
	Remote   bool
	// RemoteName is the remote of a remote branch, or the upstream remote of
	// a local one.
	RemoteName string
}

// DuplicateBranchError is returned when two records name the same branch in
// the same namespace.
type DuplicateBranchError struct {
	Name   string
	Remote bool
}

func (e *DuplicateBranchError) Error() string {
	kind := "local"
	if e.Remote {
		kind = "remote"
	}
	return fmt.Sprintf("duplicate %s branch %q", kind, e.Name)
}

type branchKey struct {
	remote bool
	name   string
}

// Resolve builds the branch list from records, keeping their order, and
// attaches a label for every record to the matching commit of g. g may be
// nil; heads outside the graph are skipped.
func Resolve(records []backend.BranchRecord, g *graph.Graph) ([]Branch, error) {
	seen := make(map[branchKey]struct{}, len(records))
	var (
		branches []Branch
		labeled  []backend.BranchRecord
	)
	for _, rec := range records {
		name := strings.TrimSpace(rec.Name)
		if name == "" || rec.Hash == "" {
			continue
		}
		if rec.Kind == backend.RefKindRemoteBranch && strings.HasSuffix(name, "/HEAD") {
			continue
		}
		labeled = append(labeled, rec)
		if rec.Kind == backend.RefKindTag {
			continue
		}

		key := branchKey{remote: rec.Kind == backend.RefKindRemoteBranch, name: name}
		if _, dup := seen[key]; dup {
			return nil, &DuplicateBranchError{Name: name, Remote: key.remote}
		}
		seen[key] = struct{}{}
		branches = append(branches, Branch{
			Name:       name,
			FullRef:    rec.FullRef,
			Upstream:   rec.Upstream,
			Head:       rec.Hash,
			Remote:     key.remote,
			RemoteName: rec.RemoteName,
		})
	}
	// g is only labeled once the whole list is known to be consistent.
	if g != nil {
		for _, rec := range labeled {
			g.AttachRef(rec.Hash, refOf(rec))
		}
	}
	return branches, nil
}

// AttachHead labels the commit HEAD points at. headName is the checked out
// branch, or empty when HEAD is detached.
func AttachHead(g *graph.Graph, hash, headName string) {
	if g == nil || hash == "" {
		return
	}
	if headName == "HEAD" {
		headName = ""
	}
	c := g.Commit(hash)
	if c == nil {
		return
	}
	for _, r := range c.Refs {
		if r.Kind == graph.RefHead {
			return
		}
	}
	c.Refs = append([]graph.Ref{{Kind: graph.RefHead, Name: headName, FullName: "HEAD"}}, c.Refs...)
}

func refOf(rec backend.BranchRecord) graph.Ref {
	full := rec.FullRef
	if full == "" {
		switch rec.Kind {
		case backend.RefKindTag:
			full = "refs/tags/" + rec.Name
		case backend.RefKindRemoteBranch:
			full = "refs/remotes/" + rec.Name
		default:
			full = "refs/heads/" + rec.Name
		}
	}
	ref := graph.ParseRefName(full)
	ref.Name = rec.Name
	return ref
}

// Labels formats the ref labels of a commit for display: HEAD first, then
// the remaining refs in attachment order. A local branch that HEAD points
// at is folded into the "HEAD -> name" label.
func Labels(g *graph.Graph, hash string) []string {
	c := g.Commit(hash)
	if c == nil {
		return nil
	}
	var (
		head   string
		hasHd  bool
		labels []string
	)
	for _, r := range c.Refs {
		if r.Kind == graph.RefHead {
			hasHd, head = true, r.Name
		}
	}
	if hasHd {
		if head == "" {
			labels = append(labels, "HEAD")
		} else {
			labels = append(labels, "HEAD -> "+head)
		}
	}
	for _, r := range c.Refs {
		switch r.Kind {
		case graph.RefHead:
		case graph.RefLocalBranch:
			if !hasHd || r.Name != head {
				labels = append(labels, r.Name)
			}
		case graph.RefTag:
			labels = append(labels, "tag: "+r.Name)
		default:
			labels = append(labels, r.Name)
		}
	}
	return labels
}
