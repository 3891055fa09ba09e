// Package blame maps a file line to the commit that last touched it.
package blame

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/gitgraph-dev/gitgraph/internal/git/backend"
)

var (
	ErrFileNotFound   = errors.New("file not found at the current checkout")
	ErrLineOutOfRange = errors.New("line out of range")
	errEmptyPath      = errors.New("empty path")
)

// LineOutOfRangeError reports a line outside 1..Count.
type LineOutOfRangeError struct {
	Line  int
	Count int
}

func (e *LineOutOfRangeError) Error() string {
	return fmt.Sprintf("line %d out of range 1..%d", e.Line, e.Count)
}

func (e *LineOutOfRangeError) Is(target error) bool { return target == ErrLineOutOfRange }

// Source is the part of the record source blame needs.
type Source interface {
	RepoPath() string
	LineCount(ctx context.Context, path string) (int, error)
	BlameLine(ctx context.Context, path string, line int) (backend.BlameRecord, error)
}

type Result struct {
	File        string
	Line        int
	Hash        string
	AuthorName  string
	AuthorEmail string
	AuthorTime  time.Time
	Summary     string
}

type Resolver struct {
	Source Source
}

// Blame validates file and line against the current checkout before asking
// the source for the attribution.
func (r *Resolver) Blame(ctx context.Context, file string, line int) (Result, error) {
	rel, err := r.relative(file)
	if err != nil {
		return Result{}, err
	}
	count, err := r.Source.LineCount(ctx, rel)
	if errors.Is(err, fs.ErrNotExist) {
		return Result{}, fmt.Errorf("%s: %w", rel, ErrFileNotFound)
	}
	if err != nil {
		return Result{}, fmt.Errorf("count lines of %s: %w", rel, err)
	}
	if line < 1 || line > count {
		return Result{}, fmt.Errorf("%s: %w", rel, &LineOutOfRangeError{Line: line, Count: count})
	}
	rec, err := r.Source.BlameLine(ctx, rel, line)
	if err != nil {
		return Result{}, fmt.Errorf("blame %s:%d: %w", rel, line, err)
	}
	return Result{
		File:        rel,
		Line:        line,
		Hash:        rec.Hash,
		AuthorName:  rec.AuthorName,
		AuthorEmail: rec.AuthorEmail,
		AuthorTime:  rec.AuthorTime,
		Summary:     rec.Summary,
	}, nil
}

// relative turns an absolute path inside the repository into a
// slash-separated path relative to the root.
func (r *Resolver) relative(file string) (string, error) {
	file = strings.TrimSpace(file)
	if file == "" {
		return "", errEmptyPath
	}
	if !filepath.IsAbs(file) {
		return filepath.ToSlash(filepath.Clean(file)), nil
	}
	root := r.Source.RepoPath()
	rel, err := filepath.Rel(root, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s: %w", file, root, ErrFileNotFound)
	}
	return filepath.ToSlash(rel), nil
}
