package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gitgraph-dev/gitgraph/internal/highlight"
	"github.com/gitgraph-dev/gitgraph/internal/search"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		q            search.Query
		all, stashes bool
	)
	cmd := &cobra.Command{
		Use:   "search TEXT",
		Short: "Search commit metadata, or file content with --file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			q.Text = args[0]
			// --limit and --skip page the results, not the history
			hq := a.state.QueryDefaults.HistoryQuery()
			hq.Skip = 0
			if cmd.Flags().Changed("all") {
				hq.AllRefs = all
			}
			if cmd.Flags().Changed("stashes") {
				hq.IncludeStashes = stashes
			}
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			res, err := svc.Search(ctx, hq, q)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			p := newPalette(out, colorEnabled(a.cfg.Color, out), highlight.ParseTheme(a.cfg.Theme))
			for _, c := range res.Commits {
				fmt.Fprintf(out, "%s %s\n", p.hash.Render(c.ShortHash), c.Subject)
				for _, m := range res.Matches[c.Hash] {
					fmt.Fprintf(out, "    %s:%d: %s\n", q.File, m.Line, p.code(q.File, m.Text))
				}
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.BoolVarP(&q.Regex, "regex", "E", false, "treat TEXT as a regular expression")
	fs.BoolVar(&q.CaseSensitive, "case-sensitive", false, "match case")
	fs.StringVar(&q.File, "file", "", "search the content of this file at each commit")
	fs.IntVar(&q.Limit, "limit", 0, "maximum number of results")
	fs.IntVar(&q.Skip, "skip", 0, "number of results to skip")
	fs.BoolVar(&q.Prefilter, "prefilter", false, "with --file, only read content of commits whose metadata matches")
	fs.BoolVar(&all, "all", true, "search every ref, not just HEAD")
	fs.BoolVar(&stashes, "stashes", true, "include stash entries")
	return cmd
}

func newBlameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "blame FILE LINE",
		Short: "Show the commit that last changed a line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			line, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid line %q", args[1])
			}
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			res, err := svc.Blame(ctx, args[0], line)
			if err != nil {
				return err
			}
			hash := res.Hash
			if len(hash) > 12 {
				hash = hash[:12]
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s <%s> %s) %s\n",
				hash, res.AuthorName, res.AuthorEmail,
				res.AuthorTime.Format("2006-01-02 15:04:05 -0700"), res.Summary)
			return nil
		},
	}
}

func newBranchesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "branches",
		Short: "List local and remote branches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			branches, err := svc.ListBranches(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, b := range branches {
				head := b.Head
				if len(head) > 7 {
					head = head[:7]
				}
				line := fmt.Sprintf("%-7s %s", head, b.Name)
				if b.Remote {
					line = fmt.Sprintf("%-7s remotes/%s", head, b.Name)
				} else if b.Upstream != "" {
					line += " [" + b.Upstream + "]"
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}
