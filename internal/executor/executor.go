// Package executor runs expanded action plans.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gitgraph-dev/gitgraph/internal/actions"
)

const defaultShell = "sh"

// Runner executes one process. argv[0] is the program.
type Runner interface {
	Run(ctx context.Context, dir string, argv []string) (stdout, stderr string, exitCode int, err error)
}

// Executor runs plan entries one after the other, following the
// continuation of each entry like a POSIX command list.
type Executor struct {
	Dir       string
	GitBinary string
	// Shell runs the scripts of shell entries. It defaults to sh.
	Shell  string
	Runner Runner
}

type Step struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Skipped  bool
	Duration time.Duration
}

type Result struct {
	ID       string
	ActionID string
	Steps    []Step
	// ExitCode is the status of the last step that ran.
	ExitCode int
	Duration time.Duration
}

// StepError reports an action whose final status is non-zero.
type StepError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *StepError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.ExitCode, e.Stderr)
}

func (e *Executor) Run(ctx context.Context, plan actions.Plan) (Result, error) {
	if err := plan.Validate(); err != nil {
		return Result{}, err
	}
	runner := e.Runner
	if runner == nil {
		runner = ProcessRunner{}
	}

	res := Result{ID: uuid.NewString(), ActionID: plan.ActionID}
	start := time.Now()
	status := 0
	var last *Step
	for i, entry := range plan.Entries {
		argv := e.argv(entry)
		cmd := actions.JoinArgs(argv)
		if entry.Shell {
			cmd = argv[len(argv)-1]
		}
		if i > 0 && !shouldRun(plan.Entries[i-1].Next, status) {
			res.Steps = append(res.Steps, Step{Command: cmd, Skipped: true})
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		stepStart := time.Now()
		stdout, stderr, code, err := runner.Run(ctx, e.Dir, argv)
		if err != nil {
			return res, fmt.Errorf("run %q: %w", cmd, err)
		}
		res.Steps = append(res.Steps, Step{
			Command:  cmd,
			ExitCode: code,
			Stdout:   stdout,
			Stderr:   stderr,
			Duration: time.Since(stepStart),
		})
		last = &res.Steps[len(res.Steps)-1]
		status = code
		if plan.AllowNonZeroExit {
			status = 0
		}
		slog.Debug("action step finished",
			slog.String("action", plan.ActionID),
			slog.String("command", cmd),
			slog.Int("exit_code", code),
			slog.Duration("elapsed", last.Duration))
	}
	res.Duration = time.Since(start)
	if last != nil {
		res.ExitCode = last.ExitCode
	}
	if status != 0 && !plan.IgnoreErrors {
		return res, &StepError{Command: last.Command, ExitCode: last.ExitCode, Stderr: strings.TrimSpace(last.Stderr)}
	}
	return res, nil
}

func shouldRun(prev actions.Continuation, status int) bool {
	switch prev {
	case actions.RunNextOnSuccess:
		return status == 0
	case actions.RunNextOnFailure:
		return status != 0
	default:
		return true
	}
}

// argv builds the process arguments of entry. Plain entries run the git
// binary directly; a leading git word is replaced by the binary. Shell
// entries run their script with "<shell> -c".
func (e *Executor) argv(entry actions.Entry) []string {
	binary := e.GitBinary
	if binary == "" {
		binary = "git"
	}
	if entry.Shell {
		shell := e.Shell
		if shell == "" {
			shell = defaultShell
		}
		return []string{shell, "-c", scriptLine(binary, entry.Command)}
	}
	args := entry.Args
	if first := args[0]; first == binary || filepath.Base(first) == "git" {
		args = args[1:]
	}
	return append([]string{binary}, args...)
}

// scriptLine prefixes the git binary unless the script already invokes git.
func scriptLine(binary, script string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(script), " ")
	if first == "git" || first == binary || first == actions.Quote(binary) || filepath.Base(first) == "git" {
		return script
	}
	return actions.Quote(binary) + " " + script
}

// ProcessRunner starts argv[0] with the remaining arguments, without a
// shell in between.
type ProcessRunner struct{}

func (ProcessRunner) Run(ctx context.Context, dir string, argv []string) (string, string, int, error) {
	if len(argv) == 0 {
		return "", "", -1, errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.String(), stderr.String(), exitErr.ExitCode(), nil
	}
	if err != nil {
		return "", "", -1, err
	}
	return stdout.String(), stderr.String(), 0, nil
}
