package executor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitgraph-dev/gitgraph/internal/actions"
)

type fakeRunner struct {
	codes map[string]int
	err   error
	ran   []string
}

func (f *fakeRunner) Run(_ context.Context, _ string, argv []string) (string, string, int, error) {
	command := strings.Join(argv, " ")
	f.ran = append(f.ran, command)
	if f.err != nil {
		return "", "", -1, f.err
	}
	code := f.codes[command]
	if code != 0 {
		return "", "boom", code, nil
	}
	return "ok", "", 0, nil
}

func plan(entries ...actions.Entry) actions.Plan {
	return actions.Plan{ActionID: "t", Entries: entries}
}

func entry(next actions.Continuation, args ...string) actions.Entry {
	return actions.Entry{Command: actions.JoinArgs(args), Args: args, Next: next}
}

func TestRunContinuation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		plan    actions.Plan
		codes   map[string]int
		ran     []string
		wantErr bool
	}{
		{
			name: "and_success",
			plan: plan(entry(actions.RunNextOnSuccess, "add", "-A"), entry(actions.RunNext, "commit")),
			ran:  []string{"git add -A", "git commit"},
		},
		{
			name:    "and_failure_skips",
			plan:    plan(entry(actions.RunNextOnSuccess, "add", "-A"), entry(actions.RunNext, "commit")),
			codes:   map[string]int{"git add -A": 1},
			ran:     []string{"git add -A"},
			wantErr: true,
		},
		{
			name:  "or_recovers",
			plan:  plan(entry(actions.RunNextOnFailure, "merge", "--ff-only", "x"), entry(actions.RunNext, "merge", "x")),
			codes: map[string]int{"git merge --ff-only x": 1},
			ran:   []string{"git merge --ff-only x", "git merge x"},
		},
		{
			name: "or_skipped_on_success",
			plan: plan(entry(actions.RunNextOnFailure, "a"), entry(actions.RunNext, "b")),
			ran:  []string{"git a"},
		},
		{
			name:  "semicolon_always_runs",
			plan:  plan(entry(actions.Unconditional, "a"), entry(actions.RunNext, "b")),
			codes: map[string]int{"git a": 2},
			ran:   []string{"git a", "git b"},
		},
		{
			name: "skipped_keeps_status",
			plan: plan(
				entry(actions.RunNextOnSuccess, "a"),
				entry(actions.RunNextOnFailure, "b"),
				entry(actions.RunNext, "c"),
			),
			codes: map[string]int{"git a": 1},
			ran:   []string{"git a", "git c"},
		},
		{
			name: "git_word_replaced_by_binary",
			plan: plan(entry(actions.RunNextOnSuccess, "git", "status"), entry(actions.RunNext, "/usr/bin/git", "log")),
			ran:  []string{"git status", "git log"},
		},
		{
			name: "shell_script",
			plan: plan(actions.Entry{Command: "log --oneline | head -1", Shell: true}),
			ran:  []string{"sh -c git log --oneline | head -1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := &fakeRunner{codes: tt.codes}
			res, err := (&Executor{Runner: r}).Run(context.Background(), tt.plan)
			assert.Equal(t, tt.ran, r.ran)
			if tt.wantErr {
				var stepErr *StepError
				require.ErrorAs(t, err, &stepErr)
				assert.Equal(t, "boom", stepErr.Stderr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, res.Steps, len(tt.plan.Entries))
			_, err = uuid.Parse(res.ID)
			assert.NoError(t, err)
			assert.Equal(t, "t", res.ActionID)
		})
	}
}

func TestRunIgnoreErrorsAndAllowNonZero(t *testing.T) {
	t.Parallel()

	r := &fakeRunner{codes: map[string]int{"git a": 1}}
	p := plan(entry(actions.RunNextOnSuccess, "a"), entry(actions.RunNext, "b"))
	p.AllowNonZeroExit = true
	res, err := (&Executor{Runner: r}).Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"git a", "git b"}, r.ran)
	assert.Equal(t, 1, res.Steps[0].ExitCode)

	r = &fakeRunner{codes: map[string]int{"git a": 3}}
	p = plan(entry(actions.RunNext, "a"))
	p.IgnoreErrors = true
	res, err = (&Executor{Runner: r}).Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
}

func TestRunRefusesUnresolvedPlan(t *testing.T) {
	t.Parallel()

	r := &fakeRunner{}
	_, err := (&Executor{Runner: r}).Run(context.Background(), plan(actions.Entry{Command: "push {GIT_CONFIG:x}", Unresolved: []string{"{GIT_CONFIG:x}"}}))
	require.ErrorIs(t, err, actions.ErrUnresolvedPlaceholder)
	assert.Empty(t, r.ran)
}

func TestRunRunnerError(t *testing.T) {
	t.Parallel()

	spawn := errors.New("no shell")
	_, err := (&Executor{Runner: &fakeRunner{err: spawn}}).Run(context.Background(), plan(entry(actions.RunNext, "status")))
	require.ErrorIs(t, err, spawn)
}

func TestArgv(t *testing.T) {
	t.Parallel()

	e := &Executor{GitBinary: "/opt/my git/bin/git", Shell: "bash"}
	assert.Equal(t, []string{"/opt/my git/bin/git", "status"}, e.argv(entry(actions.RunNext, "status")))
	assert.Equal(t, []string{"/opt/my git/bin/git", "status"}, e.argv(entry(actions.RunNext, "git", "status")))
	assert.Equal(t,
		[]string{"bash", "-c", `'/opt/my git/bin/git' log | head`},
		e.argv(actions.Entry{Command: "log | head", Shell: true}))
	assert.Equal(t, "git status", scriptLine("/opt/my git/bin/git", "git status"))
}

func TestValuesAreNotShellSyntax(t *testing.T) {
	t.Parallel()

	for _, bin := range []string{"true", "sh"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skip(bin + " not available")
		}
	}
	c, err := actions.Defaults()
	require.NoError(t, err)
	def, ok := c.Lookup("global:add-commit")
	require.True(t, ok)

	dir := t.TempDir()
	msg := "run `touch owned`; echo $(touch owned2) && touch owned3"
	p, err := actions.Expand(context.Background(), def, actions.Context{Args: []string{msg}}, nil)
	require.NoError(t, err)
	require.Len(t, p.Entries, 2)
	assert.Equal(t, []string{"commit", "-m", msg}, p.Entries[1].Args)

	res, err := (&Executor{Dir: dir, GitBinary: "true"}).Run(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, res.Steps, 2)

	shellDef := actions.Def{ID: "t", Scope: actions.ScopeGlobal, Template: `commit -m "$1" {MSG} '{MSG}'`, Shell: true}
	actx := actions.Context{Args: []string{msg}, Extra: map[string]string{"MSG": "it's `touch owned4`"}}
	p, err = actions.Expand(context.Background(), shellDef, actx, nil)
	require.NoError(t, err)
	_, err = (&Executor{Dir: dir, GitBinary: "true"}).Run(context.Background(), p)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcessRunner(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	stdout, _, code, err := ProcessRunner{}.Run(context.Background(), t.TempDir(), []string{"sh", "-c", "echo hi && exit 3"})
	require.NoError(t, err)
	assert.Equal(t, "hi\n", stdout)
	assert.Equal(t, 3, code)

	stdout, _, code, err = ProcessRunner{}.Run(context.Background(), t.TempDir(), []string{"echo", "a && b", "$(c)"})
	require.NoError(t, err)
	assert.Equal(t, "a && b $(c)\n", stdout)
	assert.Zero(t, code)
}
