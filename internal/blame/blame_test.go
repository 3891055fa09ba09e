package blame

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitgraph-dev/gitgraph/internal/git/backend"
)

type fakeSource struct {
	root  string
	lines map[string]int
	err   error
	asked []string
}

func (f *fakeSource) RepoPath() string { return f.root }

func (f *fakeSource) LineCount(_ context.Context, path string) (int, error) {
	n, ok := f.lines[path]
	if !ok {
		return 0, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	return n, nil
}

func (f *fakeSource) BlameLine(_ context.Context, path string, line int) (backend.BlameRecord, error) {
	f.asked = append(f.asked, fmt.Sprintf("%s:%d", path, line))
	if f.err != nil {
		return backend.BlameRecord{}, f.err
	}
	return backend.BlameRecord{
		Hash:       "abc123",
		AuthorName: "Alice",
		AuthorTime: time.Unix(1700000000, 0).UTC(),
		Summary:    "init",
	}, nil
}

func TestBlameBoundaries(t *testing.T) {
	t.Parallel()

	root := filepath.Join(string(filepath.Separator), "repo")
	tests := []struct {
		name    string
		file    string
		line    int
		wantErr error
	}{
		{name: "first_line", file: "main.go", line: 1},
		{name: "last_line", file: "main.go", line: 10},
		{name: "absolute_inside_repo", file: filepath.Join(root, "main.go"), line: 3},
		{name: "line_zero", file: "main.go", line: 0, wantErr: ErrLineOutOfRange},
		{name: "negative_line", file: "main.go", line: -2, wantErr: ErrLineOutOfRange},
		{name: "past_end", file: "main.go", line: 11, wantErr: ErrLineOutOfRange},
		{name: "missing_file", file: "gone.go", line: 1, wantErr: ErrFileNotFound},
		{name: "outside_repo", file: filepath.Join(string(filepath.Separator), "elsewhere", "x.go"), line: 1, wantErr: ErrFileNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := &fakeSource{root: root, lines: map[string]int{"main.go": 10}}
			res, err := (&Resolver{Source: src}).Blame(context.Background(), tt.file, tt.line)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, src.asked)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "main.go", res.File)
			assert.Equal(t, tt.line, res.Line)
			assert.Equal(t, "abc123", res.Hash)
			assert.Equal(t, "Alice", res.AuthorName)
		})
	}
}

func TestBlameLineOutOfRangeDetails(t *testing.T) {
	t.Parallel()

	src := &fakeSource{root: "/repo", lines: map[string]int{"a.txt": 2}}
	_, err := (&Resolver{Source: src}).Blame(context.Background(), "a.txt", 5)
	var rangeErr *LineOutOfRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, 5, rangeErr.Line)
	assert.Equal(t, 2, rangeErr.Count)
}

func TestBlameWrapsSourceError(t *testing.T) {
	t.Parallel()

	cause := &backend.CommandError{Op: "git blame", ExitCode: 128, Stderr: "fatal: no such path"}
	src := &fakeSource{root: "/repo", lines: map[string]int{"a.txt": 2}, err: cause}
	_, err := (&Resolver{Source: src}).Blame(context.Background(), "a.txt", 1)
	var cmdErr *backend.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 128, cmdErr.ExitCode)
	assert.False(t, errors.Is(err, ErrFileNotFound))
}
