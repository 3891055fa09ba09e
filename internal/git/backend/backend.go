package backend

import "context"

// Backend abstracts access to repository data.
//
// The default implementation shells out to the git executable; OpenNative reads
// the repository through go-git. Callers only see this interface.
type Backend interface {
	RepoPath() string

	// HistoryRecords runs the bulk history query and returns the raw record
	// stream (see FieldSep/RecordSep for the format).
	HistoryRecords(ctx context.Context, q HistoryQuery) ([]byte, error)

	HeadState(ctx context.Context) (hash string, headName string, ok bool, err error)
	BranchRecords(ctx context.Context) ([]BranchRecord, error)

	// FileSnapshot returns the content of path at commit. The error wraps
	// fs.ErrNotExist when the path does not exist at that commit.
	FileSnapshot(ctx context.Context, commit, path string) ([]byte, error)
	// LineCount returns the number of lines of path in the current checkout.
	LineCount(ctx context.Context, path string) (int, error)
	BlameLine(ctx context.Context, path string, line int) (BlameRecord, error)
	CommitFiles(ctx context.Context, commit string) ([]FileChange, error)

	ConfigValue(ctx context.Context, key string) (string, error)
	Exec(ctx context.Context, args []string) (string, error)
}

const (
	DefaultLimit = 15000
)

// HistoryQuery selects which commits the bulk history query returns.
type HistoryQuery struct {
	// Limit caps the number of commits; 0 means unbounded.
	Limit int
	Skip  int
	// AllRefs walks every ref instead of HEAD only.
	AllRefs bool
	// IncludeStashes adds every stash entry as a starting point.
	IncludeStashes bool
	// FoldStashes lays stash entries out in the branch lanes instead of
	// their own namespace. It only affects the layout.
	FoldStashes bool
	// Revisions are explicit starting points used in addition to the above.
	Revisions []string
}

func DefaultHistoryQuery() HistoryQuery {
	return HistoryQuery{
		Limit:          DefaultLimit,
		AllRefs:        true,
		IncludeStashes: true,
	}
}
