package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const DefaultGitBinary = "git"

type gitCLI struct {
	path   string
	binary string
}

// OpenCLI opens the repository containing repoPath using the git executable.
func OpenCLI(ctx context.Context, repoPath string, gitBinary string) (Backend, error) {
	return openCLI(ctx, repoPath, gitBinary)
}

func openCLI(ctx context.Context, repoPath string, gitBinary string) (*gitCLI, error) {
	if gitBinary == "" {
		gitBinary = DefaultGitBinary
	}
	if err := ensureMinGitVersion(gitBinary); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("open repository %s: %w", abs, ErrNotAGitRepository)
	}
	tmp := &gitCLI{path: abs, binary: gitBinary}
	root, err := tmp.runGitCommand(ctx, []string{"rev-parse", "--show-toplevel"}, false, "git rev-parse")
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && isNotARepositoryMessage(cmdErr.Stderr) {
			return nil, fmt.Errorf("open repository %s: %w", abs, ErrNotAGitRepository)
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("open repository: git rev-parse returned empty root")
	}
	return &gitCLI{path: root, binary: gitBinary}, nil
}

func (g *gitCLI) RepoPath() string {
	if g == nil {
		return ""
	}
	return g.path
}

func (g *gitCLI) command(ctx context.Context, args []string) *exec.Cmd {
	cmdArgs := append([]string{"--no-pager", "-C", g.path}, args...)
	return exec.CommandContext(ctx, g.binary, cmdArgs...)
}

func (g *gitCLI) runGitCommand(ctx context.Context, args []string, allowExit1 bool, op string) (string, error) {
	if g == nil || g.path == "" {
		return "", fmt.Errorf("repository root not set")
	}
	cmd := g.command(ctx, args)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if allowExit1 && exitErr.ExitCode() == 1 && stderr.Len() == 0 {
			// exit status 1 without output is how git signals "nothing found"
			return stdout.String(), nil
		}
		return "", &CommandError{
			Op:       op,
			Args:     args,
			ExitCode: exitErr.ExitCode(),
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}
	return stdout.String(), nil
}
