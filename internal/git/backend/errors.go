package backend

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotAGitRepository = errors.New("not a git repository")

// CommandError reports a git invocation that exited unsuccessfully.
type CommandError struct {
	Op       string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

func isNotARepositoryMessage(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "not a git repository")
}
