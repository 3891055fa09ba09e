package backend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

func (g *gitCLI) HeadState(ctx context.Context) (hash string, headName string, ok bool, err error) {
	if g == nil || g.path == "" {
		return "", "", false, fmt.Errorf("repository root not set")
	}
	out, err := g.runGitCommand(ctx, []string{"rev-parse", "-q", "--verify", "HEAD"}, true, "git rev-parse")
	if err != nil {
		return "", "", false, err
	}
	hash = strings.TrimSpace(out)
	if hash == "" {
		return "", "", false, nil
	}
	ref, err := g.runGitCommand(ctx, []string{"symbolic-ref", "-q", "--short", "HEAD"}, true, "git symbolic-ref")
	if err != nil {
		return "", "", false, err
	}
	headName = strings.TrimSpace(ref)
	if headName == "" {
		headName = "HEAD"
	}
	return hash, headName, true, nil
}

const forEachRefFormat = "%(refname)%1f%(objectname)%1f%(*objectname)%1f%(upstream:short)%1f%(upstream:remotename)"

func (g *gitCLI) BranchRecords(ctx context.Context) ([]BranchRecord, error) {
	out, err := g.runGitCommand(ctx, []string{
		"for-each-ref",
		"--sort=-committerdate",
		"--format=" + forEachRefFormat,
		"refs/heads",
		"refs/remotes",
		"refs/tags",
	}, false, "git for-each-ref")
	if err != nil {
		return nil, err
	}
	return parseForEachRef(out)
}

func parseForEachRef(out string) ([]BranchRecord, error) {
	var records []BranchRecord
	for _, rawLine := range strings.Split(out, "\n") {
		line := strings.TrimRight(rawLine, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, string(FieldSep))
		if len(parts) != 5 {
			return nil, fmt.Errorf("unexpected for-each-ref output line: %q", rawLine)
		}
		refName := strings.TrimSpace(parts[0])
		hash := strings.TrimSpace(parts[1])
		if refName == "" || hash == "" {
			return nil, fmt.Errorf("unexpected for-each-ref output line: %q", rawLine)
		}
		// annotated tags point at a tag object; prefer the peeled commit
		if peeled := strings.TrimSpace(parts[2]); peeled != "" {
			hash = peeled
		}
		rec := BranchRecord{
			FullRef:    refName,
			Hash:       hash,
			Upstream:   strings.TrimSpace(parts[3]),
			RemoteName: strings.TrimSpace(parts[4]),
		}
		switch {
		case strings.HasPrefix(refName, "refs/heads/"):
			rec.Kind = RefKindBranch
			rec.Name = strings.TrimPrefix(refName, "refs/heads/")
		case strings.HasPrefix(refName, "refs/remotes/"):
			rec.Kind = RefKindRemoteBranch
			rec.Name = strings.TrimPrefix(refName, "refs/remotes/")
			rec.Upstream = ""
			rec.RemoteName, _, _ = strings.Cut(rec.Name, "/")
		case strings.HasPrefix(refName, "refs/tags/"):
			rec.Kind = RefKindTag
			rec.Name = strings.TrimPrefix(refName, "refs/tags/")
			rec.Upstream = ""
			rec.RemoteName = ""
		default:
			continue
		}
		if rec.Name == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (g *gitCLI) FileSnapshot(ctx context.Context, commit, path string) ([]byte, error) {
	commit = strings.TrimSpace(commit)
	if commit == "" {
		return nil, fmt.Errorf("commit not specified")
	}
	path = filepath.ToSlash(g.relPath(path))
	out, err := g.runGitCommand(ctx, []string{"show", "--no-color", commit + ":" + path}, false, "git show")
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && isMissingPathMessage(cmdErr.Stderr) {
			return nil, fmt.Errorf("%s at %s: %w", path, commit, fs.ErrNotExist)
		}
		return nil, err
	}
	return []byte(out), nil
}

func isMissingPathMessage(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "does not exist in") ||
		strings.Contains(s, "exists on disk, but not in")
}

func (g *gitCLI) LineCount(_ context.Context, path string) (int, error) {
	f, err := os.Open(filepath.Join(g.path, g.relPath(path)))
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory: %w", path, fs.ErrNotExist)
	}
	return countLines(f)
}

func countLines(r io.Reader) (int, error) {
	br := bufio.NewReader(r)
	lines := 0
	pending := false
	for {
		b, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		pending = true
		if b == '\n' {
			lines++
			pending = false
		}
	}
	if pending {
		lines++
	}
	return lines, nil
}

func (g *gitCLI) BlameLine(ctx context.Context, path string, line int) (BlameRecord, error) {
	rel := g.relPath(path)
	out, err := g.runGitCommand(ctx, []string{
		"blame",
		fmt.Sprintf("-L%d,%d", line, line),
		"--porcelain",
		"--",
		rel,
	}, false, "git blame")
	if err != nil {
		return BlameRecord{}, err
	}
	return parseBlamePorcelain(out)
}

func parseBlamePorcelain(out string) (BlameRecord, error) {
	var rec BlameRecord
	for idx, line := range strings.Split(out, "\n") {
		if idx == 0 {
			fields := strings.Fields(line)
			if len(fields) == 0 {
				return rec, fmt.Errorf("unexpected blame output: %q", out)
			}
			rec.Hash = fields[0]
			continue
		}
		switch {
		case strings.HasPrefix(line, "author "):
			rec.AuthorName = strings.TrimPrefix(line, "author ")
		case strings.HasPrefix(line, "author-mail "):
			rec.AuthorEmail = strings.Trim(strings.TrimPrefix(line, "author-mail "), "<>")
		case strings.HasPrefix(line, "author-time "):
			sec, err := strconv.ParseInt(strings.TrimPrefix(line, "author-time "), 10, 64)
			if err == nil {
				rec.AuthorTime = time.Unix(sec, 0).UTC()
			}
		case strings.HasPrefix(line, "summary "):
			rec.Summary = strings.TrimPrefix(line, "summary ")
		case strings.HasPrefix(line, "\t"):
			// the line content closes the header block
			return rec, nil
		}
	}
	if rec.Hash == "" {
		return rec, fmt.Errorf("unexpected blame output: %q", out)
	}
	return rec, nil
}

func (g *gitCLI) CommitFiles(ctx context.Context, commit string) ([]FileChange, error) {
	out, err := g.runGitCommand(ctx, []string{
		"-c", "core.quotePath=false",
		"show",
		"--numstat",
		"--no-color",
		"--no-ext-diff",
		"--format=",
		"--find-renames",
		commit,
	}, false, "git show")
	if err != nil {
		return nil, err
	}
	return parseNumstat(out), nil
}

func parseNumstat(out string) []FileChange {
	var files []FileChange
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			continue
		}
		files = append(files, FileChange{
			Path:    normalizeNumstatPath(parts[2]),
			Added:   parseNumstatValue(parts[0]),
			Removed: parseNumstatValue(parts[1]),
		})
	}
	return files
}

func parseNumstatValue(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}

// normalizeNumstatPath resolves rename notation to the new path:
// "a => b" and "dir/{old => new}/file".
func normalizeNumstatPath(raw string) string {
	if open := strings.Index(raw, "{"); open >= 0 {
		if end := strings.Index(raw[open:], "}"); end > 0 {
			inner := raw[open+1 : open+end]
			if _, after, ok := strings.Cut(inner, " => "); ok {
				joined := raw[:open] + after + raw[open+end+1:]
				return strings.ReplaceAll(joined, "//", "/")
			}
		}
	}
	if _, after, ok := strings.Cut(raw, " => "); ok {
		return after
	}
	return raw
}

func (g *gitCLI) ConfigValue(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("config key not specified")
	}
	out, err := g.runGitCommand(ctx, []string{"config", "--get", key}, false, "git config")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (g *gitCLI) Exec(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("git subcommand not specified")
	}
	out, err := g.runGitCommand(ctx, args, false, "git "+args[0])
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (g *gitCLI) relPath(path string) string {
	if filepath.IsAbs(path) {
		if rel, err := filepath.Rel(g.path, path); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return path
}
