package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitgraph-dev/gitgraph/internal/git"
	"github.com/gitgraph-dev/gitgraph/internal/highlight"
)

func newShowCmd(a *app) *cobra.Command {
	var (
		file         string
		diff         bool
		stat         bool
		contextLines int
	)
	cmd := &cobra.Command{
		Use:   "show HASH",
		Short: "Show a commit, one of its files, or a file diff",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			p := newPalette(out, colorEnabled(a.cfg.Color, out), highlight.ParseTheme(a.cfg.Theme))
			rev := args[0]

			switch {
			case stat:
				c, err := svc.Commit(ctx, rev)
				if err != nil {
					return err
				}
				files, err := svc.CommitFiles(ctx, c.Hash)
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintf(out, "%d\t%d\t%s\n", f.Added, f.Removed, f.Path)
				}
			case file != "" && diff:
				text, err := svc.FileDiff(ctx, rev, file, contextLines)
				if err != nil {
					return err
				}
				fmt.Fprint(out, p.diff(text))
			case file != "":
				c, err := svc.Commit(ctx, rev)
				if err != nil {
					return err
				}
				data, err := svc.Snapshot(ctx, c.Hash, file)
				if err != nil {
					return err
				}
				fmt.Fprint(out, p.code(file, string(data)))
			default:
				text, _, err := svc.Show(ctx, rev, contextLines)
				if err != nil {
					return err
				}
				fmt.Fprint(out, p.diff(text))
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&file, "file", "", "restrict to this path")
	fs.BoolVar(&diff, "diff", false, "with --file, print the file's diff against the first parent")
	fs.BoolVar(&stat, "stat", false, "list changed files with added and removed line counts")
	fs.IntVarP(&contextLines, "unified", "U", git.DefaultContextLines, "lines of diff context")
	return cmd
}
