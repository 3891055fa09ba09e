package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/gitgraph-dev/gitgraph/internal/git/backend"
	"github.com/gitgraph-dev/gitgraph/internal/graph"
	"github.com/gitgraph-dev/gitgraph/internal/highlight"
	"github.com/gitgraph-dev/gitgraph/internal/refs"
	"github.com/gitgraph-dev/gitgraph/internal/watch"
)

type historyFlags struct {
	limit   int
	skip    int
	all     bool
	stashes bool
	fold    bool
}

func (f *historyFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.IntVar(&f.limit, "limit", 0, "maximum number of commits (default from state)")
	fs.IntVar(&f.skip, "skip", 0, "number of commits to skip")
	fs.BoolVar(&f.all, "all", true, "include every ref, not just HEAD")
	fs.BoolVar(&f.stashes, "stashes", true, "include stash entries")
	fs.BoolVar(&f.fold, "fold-stashes", false, "lay stash entries out in the branch lanes")
}

// query starts from the persisted defaults and applies the flags the user
// set explicitly.
func (f *historyFlags) query(cmd *cobra.Command, a *app) (backend.HistoryQuery, error) {
	q := a.state.QueryDefaults.HistoryQuery()
	fs := cmd.Flags()
	if fs.Changed("limit") {
		q.Limit = f.limit
	}
	if fs.Changed("skip") {
		q.Skip = f.skip
	}
	if fs.Changed("all") {
		q.AllRefs = f.all
	}
	if fs.Changed("stashes") {
		q.IncludeStashes = f.stashes
	}
	q.FoldStashes = f.fold
	if q.Limit < 0 || q.Skip < 0 {
		return q, errors.New("limit and skip must not be negative")
	}
	return q, nil
}

func newGraphCmd(a *app) *cobra.Command {
	var (
		hf        historyFlags
		watchRepo bool
	)
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the commit graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			q, err := hf.query(cmd, a)
			if err != nil {
				return err
			}
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			p := newPalette(out, colorEnabled(a.cfg.Color, out), highlight.ParseTheme(a.cfg.Theme))

			var mu sync.Mutex
			draw := func() error {
				mu.Lock()
				defer mu.Unlock()
				g, err := svc.BuildGraph(ctx, q)
				if err != nil {
					return err
				}
				return writeGraph(out, p, g)
			}
			if err := draw(); err != nil {
				return err
			}
			if !watchRepo {
				return nil
			}
			w := watch.Watcher{
				Root:  svc.RepoPath(),
				Delay: a.cfg.WatchDebounce,
				OnChange: func() {
					fmt.Fprintln(out)
					if err := draw(); err != nil {
						slog.Error("rebuild graph", slog.Any("error", err))
					}
				},
			}
			return w.Run(ctx)
		},
	}
	hf.register(cmd)
	cmd.Flags().BoolVarP(&watchRepo, "watch", "w", false, "redraw when the repository changes")
	cmd.Flags().String("color", "auto", "colorize output: auto, always or never")
	_ = a.v.BindPFlag("color", cmd.Flags().Lookup("color"))
	return cmd
}

func writeGraph(w io.Writer, p *palette, g *graph.Graph) error {
	lines := graph.Lines(g)
	width := 2*(g.MaxLanes+g.MaxStashLanes) - 1
	for row, c := range g.Commits {
		var sb strings.Builder
		line := lines[row]
		sb.WriteString(p.graphColumn(g, line))
		sb.WriteString(strings.Repeat(" ", max(width-len(line), 0)+1))
		sb.WriteString(p.hash.Render(c.ShortHash))
		if labels := refs.Labels(g, c.Hash); len(labels) > 0 {
			styled := make([]string, len(labels))
			for i, l := range labels {
				styled[i] = p.label(l)
			}
			sb.WriteString(" (" + strings.Join(styled, ", ") + ")")
		}
		sb.WriteString(" " + c.Subject)
		sb.WriteString(" " + p.dim.Render(fmt.Sprintf("<%s> %s", c.AuthorName, c.AuthorTime.Format("2006-01-02"))))
		if _, err := fmt.Fprintln(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}
