// Package git exposes the core operations front ends call: graph building,
// search, blame, branch listing and actions.
package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gitgraph-dev/gitgraph/internal/actions"
	"github.com/gitgraph-dev/gitgraph/internal/blame"
	"github.com/gitgraph-dev/gitgraph/internal/executor"
	"github.com/gitgraph-dev/gitgraph/internal/git/backend"
	"github.com/gitgraph-dev/gitgraph/internal/graph"
	"github.com/gitgraph-dev/gitgraph/internal/refs"
	"github.com/gitgraph-dev/gitgraph/internal/search"
	"github.com/gitgraph-dev/gitgraph/internal/state"
)

type BackendKind string

const (
	BackendCLI    BackendKind = "cli"
	BackendNative BackendKind = "native"
)

// OpenBackend opens the repository containing repoPath.
func OpenBackend(ctx context.Context, kind BackendKind, repoPath, gitBinary string) (backend.Backend, error) {
	switch kind {
	case BackendCLI, "":
		return backend.OpenCLI(ctx, repoPath, gitBinary)
	case BackendNative:
		return backend.OpenNative(repoPath, gitBinary)
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
}

type Options struct {
	Backend backend.Backend
	// State is shared with the caller, who decides when to save it. Nil
	// means a fresh default state.
	State *state.State
	// Catalog overrides the catalog derived from State.
	Catalog       *actions.Catalog
	SearchWorkers int
	// Runner and Shell configure the action executor; zero values run
	// commands with sh.
	Runner executor.Runner
	Shell  string
}

type Service struct {
	mu      sync.Mutex
	backend backend.Backend
	state   *state.State
	catalog *actions.Catalog

	search search.Engine
	blame  blame.Resolver
	runner executor.Runner
	shell  string
}

func New(opts Options) (*Service, error) {
	if opts.Backend == nil {
		return nil, errors.New("backend not specified")
	}
	st := opts.State
	if st == nil {
		def := state.Default()
		st = &def
	}
	cat := opts.Catalog
	if cat == nil {
		var err error
		if cat, err = st.Catalog(); err != nil {
			return nil, err
		}
	}
	return &Service{
		backend: opts.Backend,
		state:   st,
		catalog: cat,
		search:  search.Engine{Source: opts.Backend, Workers: opts.SearchWorkers},
		blame:   blame.Resolver{Source: opts.Backend},
		runner:  opts.Runner,
		shell:   opts.Shell,
	}, nil
}

func (s *Service) RepoPath() string { return s.backend.RepoPath() }

// State returns a copy of the session state.
func (s *Service) State() state.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.state
}

// UpdateState applies fn to the session state under the service lock.
func (s *Service) UpdateState(fn func(*state.State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// BuildGraph reads the history selected by q, lays it out and attaches
// branch, tag and HEAD labels.
func (s *Service) BuildGraph(ctx context.Context, q backend.HistoryQuery) (*graph.Graph, error) {
	start := time.Now()
	data, err := s.backend.HistoryRecords(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	g, err := graph.Build(graph.SplitRecords(data), graph.Options{IncludeStashes: q.FoldStashes})
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	records, err := s.backend.BranchRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	if _, err := refs.Resolve(records, g); err != nil {
		return nil, fmt.Errorf("resolve refs: %w", err)
	}
	hash, headName, ok, err := s.backend.HeadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	if ok {
		refs.AttachHead(g, hash, headName)
	}
	slog.Debug("graph built",
		slog.Int("commits", g.Len()),
		slog.Int("lanes", g.MaxLanes),
		slog.Int("dangling", len(g.Dangling)),
		slog.Duration("elapsed", time.Since(start)))
	return g, nil
}

func (s *Service) Search(ctx context.Context, hq backend.HistoryQuery, q search.Query) (search.Result, error) {
	g, err := s.BuildGraph(ctx, hq)
	if err != nil {
		return search.Result{}, err
	}
	return s.search.Search(ctx, g, q)
}

func (s *Service) Blame(ctx context.Context, file string, line int) (blame.Result, error) {
	return s.blame.Blame(ctx, file, line)
}

func (s *Service) ListBranches(ctx context.Context) ([]refs.Branch, error) {
	records, err := s.backend.BranchRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return refs.Resolve(records, nil)
}

// ListActions returns the catalog in catalog order.
func (s *Service) ListActions() []actions.Def { return s.catalog.Defs() }

func (s *Service) ActionsForScope(scope actions.Scope) []actions.Def {
	return s.catalog.ForScope(scope)
}

func (s *Service) actionContext(actx actions.Context) actions.Context {
	s.mu.Lock()
	remote := s.state.DefaultRemote
	s.mu.Unlock()
	return actx.WithDefaultRemote(remote)
}

// PreviewAction expands the action without running it. Failed dynamic
// lookups leave their marker in the plan and are returned joined.
func (s *Service) PreviewAction(ctx context.Context, id string, actx actions.Context) (actions.Plan, error) {
	actx = s.actionContext(actx)
	def, err := s.catalog.Resolve(id, actx)
	if err != nil {
		return actions.Plan{}, err
	}
	return actions.Preview(ctx, def, actx, s.backend)
}

// RunAction expands the action strictly and hands the plan to the
// executor. A plan with unresolved placeholders never runs.
func (s *Service) RunAction(ctx context.Context, id string, actx actions.Context) (executor.Result, error) {
	actx = s.actionContext(actx)
	def, err := s.catalog.Resolve(id, actx)
	if err != nil {
		return executor.Result{}, err
	}
	plan, err := actions.Expand(ctx, def, actx, s.backend)
	if err != nil {
		return executor.Result{}, err
	}
	s.mu.Lock()
	gitBinary := s.state.GitBinary
	s.mu.Unlock()
	ex := executor.Executor{
		Dir:       s.backend.RepoPath(),
		GitBinary: gitBinary,
		Shell:     s.shell,
		Runner:    s.runner,
	}
	res, err := ex.Run(ctx, plan)
	slog.Debug("action finished",
		slog.String("action", def.ID),
		slog.String("run", res.ID),
		slog.Int("exit_code", res.ExitCode),
		slog.Duration("elapsed", res.Duration))
	if err != nil {
		return res, fmt.Errorf("action %s: %w", def.ID, err)
	}
	return res, nil
}

func (s *Service) CommitFiles(ctx context.Context, hash string) ([]backend.FileChange, error) {
	files, err := s.backend.CommitFiles(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("files of %s: %w", hash, err)
	}
	return files, nil
}

func (s *Service) Snapshot(ctx context.Context, hash, path string) ([]byte, error) {
	return s.backend.FileSnapshot(ctx, hash, path)
}

// Commit reads a single commit.
func (s *Service) Commit(ctx context.Context, rev string) (*graph.Commit, error) {
	data, err := s.backend.HistoryRecords(ctx, backend.HistoryQuery{Limit: 1, Revisions: []string{rev}})
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", rev, err)
	}
	g, err := graph.Build(graph.SplitRecords(data), graph.Options{IncludeStashes: true})
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", rev, err)
	}
	if g.Len() == 0 {
		return nil, fmt.Errorf("commit %s not found", rev)
	}
	return g.Commits[0], nil
}
