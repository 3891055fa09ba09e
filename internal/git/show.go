package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/gitgraph-dev/gitgraph/internal/graph"
)

const DefaultContextLines = 3

// FileSection marks where the diff of one file starts in Show output.
type FileSection struct {
	Path string
	Line int
}

// FormatCommitHeader renders a commit the way `git show` prints its header.
func FormatCommitHeader(c *graph.Commit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "commit %s\n", c.Hash)
	if len(c.Parents) > 1 {
		short := make([]string, len(c.Parents))
		for i, p := range c.Parents {
			short[i] = p[:min(7, len(p))]
		}
		fmt.Fprintf(&b, "Merge: %s\n", strings.Join(short, " "))
	}
	appendSignatureLine(&b, "Author", c.AuthorName, c.AuthorEmail, c.AuthorTime)
	appendSignatureLine(&b, "Date", "", "", c.CommitTime)
	b.WriteString("\n")
	message := strings.TrimRight(c.Subject+"\n\n"+c.Body, "\n")
	if strings.TrimSpace(message) == "" {
		b.WriteString("    (no commit message)\n")
		return b.String()
	}
	for line := range strings.SplitSeq(message, "\n") {
		if line == "" {
			b.WriteString("\n")
			continue
		}
		fmt.Fprintf(&b, "    %s\n", line)
	}
	return b.String()
}

func appendSignatureLine(b *strings.Builder, label, name, email string, when time.Time) {
	b.WriteString(label + ":")
	if name != "" || email != "" {
		fmt.Fprintf(b, " %s <%s>", name, email)
	}
	if !when.IsZero() {
		fmt.Fprintf(b, "  %s", when.Format("2006-01-02 15:04:05 -0700"))
	}
	b.WriteByte('\n')
}

// FileDiff returns a unified diff of path between the first parent of hash
// and hash. Files added or removed by the commit diff against empty content.
func (s *Service) FileDiff(ctx context.Context, hash, path string, contextLines int) (string, error) {
	c, err := s.Commit(ctx, hash)
	if err != nil {
		return "", err
	}
	return s.fileDiff(ctx, c, path, contextLines)
}

func (s *Service) fileDiff(ctx context.Context, c *graph.Commit, path string, contextLines int) (string, error) {
	if contextLines < 0 {
		contextLines = DefaultContextLines
	}
	var before []byte
	if !c.IsRoot() {
		var err error
		if before, err = s.optionalSnapshot(ctx, c.Parents[0], path); err != nil {
			return "", err
		}
	}
	after, err := s.optionalSnapshot(ctx, c.Hash, path)
	if err != nil {
		return "", err
	}
	if isBinary(before) || isBinary(after) {
		if bytes.Equal(before, after) {
			return "", nil
		}
		return fmt.Sprintf("Binary files a/%s and b/%s differ\n", path, path), nil
	}
	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  contextLines,
	})
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", path, err)
	}
	return out, nil
}

func (s *Service) optionalSnapshot(ctx context.Context, hash, path string) ([]byte, error) {
	data, err := s.backend.FileSnapshot(ctx, hash, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", path, hash, err)
	}
	return data, nil
}

func isBinary(data []byte) bool {
	return bytes.IndexByte(data[:min(len(data), 8000)], 0) >= 0
}

// Show renders the commit header followed by the diff of every file the
// commit touches, and reports where each file's diff starts.
func (s *Service) Show(ctx context.Context, hash string, contextLines int) (string, []FileSection, error) {
	c, err := s.Commit(ctx, hash)
	if err != nil {
		return "", nil, err
	}
	header := FormatCommitHeader(c)
	files, err := s.CommitFiles(ctx, c.Hash)
	if err != nil {
		return "", nil, err
	}
	if len(files) == 0 {
		return header + "\nNo file level changes.\n", nil, nil
	}
	var diffText strings.Builder
	for _, f := range files {
		d, err := s.fileDiff(ctx, c, f.Path, contextLines)
		if err != nil {
			return "", nil, err
		}
		fmt.Fprintf(&diffText, "diff --git %s %s\n", quoteDiffPath("a/"+f.Path), quoteDiffPath("b/"+f.Path))
		diffText.WriteString(d)
		if d != "" && !strings.HasSuffix(d, "\n") {
			diffText.WriteByte('\n')
		}
	}
	text := diffText.String()
	lineOffset := strings.Count(header, "\n")
	return header + text, parseGitDiffSections(text, lineOffset), nil
}

func quoteDiffPath(p string) string {
	if !strings.ContainsAny(p, " \t\"\\") {
		return p
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(p) + `"`
}
