package git

import (
	"context"
	"errors"

	"github.com/gitgraph-dev/gitgraph/internal/git/backend"
)

type fakeBackend struct {
	repoPath string

	historyRecordsFunc func(q backend.HistoryQuery) ([]byte, error)
	headStateFunc      func() (hash string, headName string, ok bool, err error)
	branchRecordsFunc  func() ([]backend.BranchRecord, error)
	fileSnapshotFunc   func(commit, path string) ([]byte, error)
	lineCountFunc      func(path string) (int, error)
	blameLineFunc      func(path string, line int) (backend.BlameRecord, error)
	commitFilesFunc    func(commit string) ([]backend.FileChange, error)
	configValueFunc    func(key string) (string, error)
	execFunc           func(args []string) (string, error)

	lastQuery *backend.HistoryQuery
}

func (f *fakeBackend) RepoPath() string { return f.repoPath }

func (f *fakeBackend) HistoryRecords(_ context.Context, q backend.HistoryQuery) ([]byte, error) {
	f.lastQuery = &q
	if f.historyRecordsFunc != nil {
		return f.historyRecordsFunc(q)
	}
	return nil, errors.New("unexpected HistoryRecords call")
}

func (f *fakeBackend) HeadState(context.Context) (string, string, bool, error) {
	if f.headStateFunc != nil {
		return f.headStateFunc()
	}
	return "", "", false, errors.New("unexpected HeadState call")
}

func (f *fakeBackend) BranchRecords(context.Context) ([]backend.BranchRecord, error) {
	if f.branchRecordsFunc != nil {
		return f.branchRecordsFunc()
	}
	return nil, errors.New("unexpected BranchRecords call")
}

func (f *fakeBackend) FileSnapshot(_ context.Context, commit, path string) ([]byte, error) {
	if f.fileSnapshotFunc != nil {
		return f.fileSnapshotFunc(commit, path)
	}
	return nil, errors.New("unexpected FileSnapshot call")
}

func (f *fakeBackend) LineCount(_ context.Context, path string) (int, error) {
	if f.lineCountFunc != nil {
		return f.lineCountFunc(path)
	}
	return 0, errors.New("unexpected LineCount call")
}

func (f *fakeBackend) BlameLine(_ context.Context, path string, line int) (backend.BlameRecord, error) {
	if f.blameLineFunc != nil {
		return f.blameLineFunc(path, line)
	}
	return backend.BlameRecord{}, errors.New("unexpected BlameLine call")
}

func (f *fakeBackend) CommitFiles(_ context.Context, commit string) ([]backend.FileChange, error) {
	if f.commitFilesFunc != nil {
		return f.commitFilesFunc(commit)
	}
	return nil, errors.New("unexpected CommitFiles call")
}

func (f *fakeBackend) ConfigValue(_ context.Context, key string) (string, error) {
	if f.configValueFunc != nil {
		return f.configValueFunc(key)
	}
	return "", errors.New("unexpected ConfigValue call")
}

func (f *fakeBackend) Exec(_ context.Context, args []string) (string, error) {
	if f.execFunc != nil {
		return f.execFunc(args)
	}
	return "", errors.New("unexpected Exec call")
}
