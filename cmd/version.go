package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gitgraph-dev/gitgraph/internal/buildinfo"
	"github.com/gitgraph-dev/gitgraph/internal/git"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "gitgraph %s\n", buildinfo.String())
			v, err := git.GitVersion(a.cfg.GitBinary)
			if err != nil {
				slog.Debug("git version probe failed", slog.Any("error", err))
				fmt.Fprintf(out, "git: unavailable (need %s or newer)\n", git.MinGitVersion())
				return nil
			}
			fmt.Fprintln(out, v)
			return nil
		},
	}
}
