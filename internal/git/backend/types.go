package backend

import "time"

type RefKind uint8

const (
	RefKindBranch RefKind = iota
	RefKindRemoteBranch
	RefKindTag
)

func (k RefKind) String() string {
	switch k {
	case RefKindRemoteBranch:
		return "remote"
	case RefKindTag:
		return "tag"
	default:
		return "branch"
	}
}

// BranchRecord is one ref as reported by the Record Source.
type BranchRecord struct {
	Name    string // short name: main, origin/main, v1
	FullRef string // refs/heads/main
	Hash    string // commit hash; tags are peeled
	Kind    RefKind
	// Upstream is the short upstream name (origin/main) for local branches.
	Upstream string
	// RemoteName is the remote owning a remote branch, or the upstream
	// remote of a local branch.
	RemoteName string
}

type BlameRecord struct {
	Hash        string
	AuthorName  string
	AuthorEmail string
	AuthorTime  time.Time
	Summary     string
}

type FileChange struct {
	Path string
	// Added and Removed are -1 for binary files.
	Added   int
	Removed int
}
