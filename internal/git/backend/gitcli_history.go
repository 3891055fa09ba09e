package backend

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

func (g *gitCLI) HistoryRecords(ctx context.Context, q HistoryQuery) ([]byte, error) {
	start := time.Now()
	var stashes []string
	if q.IncludeStashes {
		var err error
		stashes, err = g.stashHashes(ctx)
		if err != nil {
			return nil, err
		}
	}
	args := historyArgs(q, stashes)
	stream, err := g.startRecordStream(ctx, args)
	if err != nil {
		return nil, err
	}
	stashSet := make(map[string]struct{}, len(stashes))
	for _, h := range stashes {
		stashSet[h] = struct{}{}
	}

	var out bytes.Buffer
	count := 0
	for {
		rec, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = stream.Close()
			return nil, err
		}
		hash, _, _ := strings.Cut(rec, string(FieldSep))
		out.WriteString(rec)
		out.WriteByte(FieldSep)
		out.WriteString(stashField(stashSet, hash))
		out.WriteByte(RecordSep)
		count++
	}
	if err := stream.Close(); err != nil {
		return nil, err
	}
	slog.Debug("history records loaded",
		slog.Int("commits", count),
		slog.Int("stashes", len(stashes)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return out.Bytes(), nil
}

func historyArgs(q HistoryQuery, stashes []string) []string {
	args := []string{
		"log",
		"--no-color",
		"--topo-order",
		"--decorate=full",
		"--no-patch",
		"--pretty=format:" + logFormat + "%x1e",
	}
	if q.Skip > 0 {
		args = append(args, "--skip="+strconv.Itoa(q.Skip))
	}
	if q.Limit > 0 {
		args = append(args, "-n", strconv.Itoa(q.Limit))
	}
	if q.AllRefs {
		if !q.IncludeStashes {
			args = append(args, "--exclude=refs/stash")
		}
		args = append(args, "--all")
	}
	args = append(args, q.Revisions...)
	args = append(args, stashes...)
	if !q.AllRefs && len(q.Revisions) == 0 {
		args = append(args, "HEAD")
	}
	return append(args, "--")
}

func (g *gitCLI) stashHashes(ctx context.Context) ([]string, error) {
	out, err := g.runGitCommand(ctx, []string{"stash", "list", "--format=%H"}, true, "git stash list")
	if err != nil {
		return nil, err
	}
	var hashes []string
	for _, line := range strings.Split(out, "\n") {
		if h := strings.TrimSpace(line); h != "" {
			hashes = append(hashes, h)
		}
	}
	return hashes, nil
}

type recordStream struct {
	cmd    interface{ Wait() error }
	cancel context.CancelFunc
	stdout io.ReadCloser
	stderr bytes.Buffer
	r      *bufio.Reader
	done   bool
	err    error
}

func (g *gitCLI) startRecordStream(ctx context.Context, args []string) (*recordStream, error) {
	if g == nil || g.path == "" {
		return nil, fmt.Errorf("repository root not set")
	}
	ctx, cancel := context.WithCancel(ctx)
	cmd := g.command(ctx, args)
	stream := &recordStream{cancel: cancel}
	cmd.Stderr = &stream.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("git log stdout: %w", err)
	}
	stream.stdout = stdout
	stream.r = bufio.NewReaderSize(stdout, 64*1024)
	if err := cmd.Start(); err != nil {
		cancel()
		_ = stdout.Close()
		return nil, fmt.Errorf("git log start: %w", err)
	}
	stream.cmd = cmd
	return stream, nil
}

// Next returns the next record without its trailing separator.
func (s *recordStream) Next() (string, error) {
	for {
		rec, err := s.r.ReadString(RecordSep)
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		eof := errors.Is(err, io.EOF)
		rec = strings.TrimSuffix(rec, string(RecordSep))
		// format: puts a newline between records
		rec = strings.TrimLeft(rec, "\r\n")
		if rec != "" {
			if eof && !strings.Contains(rec, string(FieldSep)) {
				return "", io.EOF
			}
			return rec, nil
		}
		if eof {
			return "", io.EOF
		}
	}
}

func (s *recordStream) Close() error {
	if s.done {
		return s.err
	}
	s.done = true
	// drain so git is not killed mid-write on a clean finish
	_, _ = io.Copy(io.Discard, s.r)
	waitErr := s.cmd.Wait()
	s.cancel()
	if waitErr != nil {
		s.err = &CommandError{
			Op:       "git log",
			ExitCode: exitCode(waitErr),
			Stderr:   strings.TrimSpace(s.stderr.String()),
			Err:      waitErr,
		}
	}
	return s.err
}

func exitCode(err error) int {
	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	return -1
}
