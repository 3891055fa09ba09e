package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gitgraph-dev/gitgraph/internal/actions"
	"github.com/gitgraph-dev/gitgraph/internal/config"
	"github.com/gitgraph-dev/gitgraph/internal/git"
	"github.com/gitgraph-dev/gitgraph/internal/state"
)

func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

// app is the per-invocation environment shared by every subcommand.
type app struct {
	v          *viper.Viper
	repo       string
	configFile string
	verbose    bool

	cfg   config.Config
	store state.FileStore
	state state.State
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}
	root := &cobra.Command{
		Use:           "gitgraph",
		Short:         "Commit graph, history search and scripted git actions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.repo, "repo", "", "repository path (default: the selected repository, then the current directory)")
	pf.StringVar(&a.configFile, "config", "", "config file (default: <config dir>/gitgraph/config.{yaml,toml,json})")
	pf.String("backend", "cli", "history backend: cli or native")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	_ = a.v.BindPFlag("backend", pf.Lookup("backend"))

	root.AddCommand(
		newGraphCmd(a),
		newSearchCmd(a),
		newBlameCmd(a),
		newBranchesCmd(a),
		newActionsCmd(a),
		newShowCmd(a),
		newStateCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	level := cfg.Level()
	if a.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	a.store = state.FileStore{Path: cfg.StatePath}
	st, rep, err := a.store.Load()
	if err != nil {
		return err
	}
	if err := rep.Err(); err != nil {
		slog.Info("state upgraded",
			slog.Int("from_version", rep.FromVersion),
			slog.Any("defaulted", err))
	}
	if len(rep.Unknown) > 0 {
		slog.Debug("unknown state fields ignored", slog.Any("fields", rep.Unknown))
	}
	cfg.ApplyState(st)
	a.cfg, a.state = cfg, st
	return nil
}

func (a *app) repoPath() string {
	switch {
	case a.repo != "":
		return a.repo
	case a.state.SelectedRepo != "":
		return a.state.SelectedRepo
	default:
		return "."
	}
}

// session returns the persisted state with this invocation's overrides.
func (a *app) session() state.State {
	st := a.state
	st.SetGitBinary(a.cfg.GitBinary)
	st.SetDefaultRemote(a.cfg.DefaultRemote)
	return st
}

func (a *app) service(ctx context.Context) (*git.Service, error) {
	be, err := git.OpenBackend(ctx, git.BackendKind(a.cfg.Backend), a.repoPath(), a.cfg.GitBinary)
	if err != nil {
		return nil, err
	}
	st := a.session()
	cat, err := st.Catalog()
	if err != nil {
		return nil, err
	}
	if a.cfg.ActionsFile != "" {
		defs, err := actions.LoadFile(a.cfg.ActionsFile)
		if err != nil {
			return nil, err
		}
		if cat, err = cat.Merge(defs); err != nil {
			return nil, fmt.Errorf("%s: %w", a.cfg.ActionsFile, err)
		}
	}
	return git.New(git.Options{
		Backend:       be,
		State:         &st,
		Catalog:       cat,
		SearchWorkers: a.cfg.SearchWorkers,
	})
}

func (a *app) save() error {
	return a.store.Save(a.state)
}

func absPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	return abs, nil
}
