package search

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gitgraph-dev/gitgraph/internal/graph"
)

// SnapshotSource reads a file as it was at a commit. The error wraps
// fs.ErrNotExist when the file is absent there.
type SnapshotSource interface {
	FileSnapshot(ctx context.Context, commit, path string) ([]byte, error)
}

type Engine struct {
	Source SnapshotSource
	// Workers bounds concurrent snapshot reads; 0 means runtime.NumCPU().
	Workers int
}

type Result struct {
	// Commits are the matches in graph order after skip and limit.
	Commits []*graph.Commit
	// Matches holds matching lines per commit hash for content searches.
	Matches map[string][]LineMatch
	// Complete is false when the search stopped before looking at every
	// commit because enough results were found.
	Complete bool
}

// Search returns the commits of g matching q. The result of a search with
// Limit N and Skip M equals an unlimited search sliced at [M, M+N).
func (e *Engine) Search(ctx context.Context, g *graph.Graph, q Query) (Result, error) {
	if err := q.validate(); err != nil {
		return Result{}, err
	}
	m, err := Compile(q)
	if err != nil {
		return Result{}, err
	}
	start := time.Now()
	var res Result
	if q.File == "" {
		res = metadataSearch(g, m, q)
	} else {
		res, err = e.contentSearch(ctx, g, m, q)
		if err != nil {
			return Result{}, err
		}
	}
	slog.Debug("search finished",
		slog.String("text", q.Text),
		slog.String("file", q.File),
		slog.Int("results", len(res.Commits)),
		slog.Bool("complete", res.Complete),
		slog.Duration("elapsed", time.Since(start)))
	return res, nil
}

// wanted is the number of in-order matches needed before stopping, or -1.
func wanted(q Query) int {
	if q.Limit == 0 {
		return -1
	}
	return q.Skip + q.Limit
}

func metadataSearch(g *graph.Graph, m *Matcher, q Query) Result {
	want := wanted(q)
	fields := q.fields()
	res := Result{Complete: true}
	found := 0
	for _, c := range g.Commits {
		if want >= 0 && found >= want {
			res.Complete = false
			break
		}
		if !m.MatchCommit(c, fields) {
			continue
		}
		if found >= q.Skip {
			res.Commits = append(res.Commits, c)
		}
		found++
	}
	return res
}

type outcome struct {
	index int
	match bool
	lines []LineMatch
	done  bool
}

func (e *Engine) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return runtime.NumCPU()
}

func (e *Engine) contentSearch(ctx context.Context, g *graph.Graph, m *Matcher, q Query) (Result, error) {
	if e.Source == nil {
		return Result{}, errors.New("search: no snapshot source configured")
	}
	candidates := g.Commits
	if q.Prefilter {
		fields := q.fields()
		candidates = nil
		for _, c := range g.Commits {
			if m.MatchCommit(c, fields) {
				candidates = append(candidates, c)
			}
		}
	}

	want := wanted(q)
	workers := e.workers()
	var stop atomic.Bool
	results := make(chan outcome, workers)
	outcomes := make([]outcome, len(candidates))
	frontier := 0
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		found := 0
		for o := range results {
			o.done = true
			outcomes[o.index] = o
			for frontier < len(outcomes) && outcomes[frontier].done {
				if outcomes[frontier].match {
					found++
				}
				frontier++
			}
			if want >= 0 && found >= want {
				stop.Store(true)
			}
		}
	}()

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, c := range candidates {
		if stop.Load() || ectx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if stop.Load() {
				return nil
			}
			data, err := e.Source.FileSnapshot(ectx, c.Hash, q.File)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					results <- outcome{index: i}
					return nil
				}
				return fmt.Errorf("read %s at %s: %w", q.File, c.ShortHash, err)
			}
			match, lines := m.MatchContent(data, maxLineMatches)
			results <- outcome{index: i, match: match, lines: lines}
			return nil
		})
	}
	err := eg.Wait()
	close(results)
	<-collected
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{Complete: frontier == len(candidates), Matches: map[string][]LineMatch{}}
	found := 0
	for _, o := range outcomes[:frontier] {
		if !o.match {
			continue
		}
		if want >= 0 && found >= want {
			break
		}
		if found >= q.Skip {
			c := candidates[o.index]
			res.Commits = append(res.Commits, c)
			if len(o.lines) > 0 {
				res.Matches[c.Hash] = o.lines
			}
		}
		found++
	}
	return res, nil
}
