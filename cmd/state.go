package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gitgraph-dev/gitgraph/internal/state"
)

func newStateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and edit the persisted application state",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the state document",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				data, err := state.Encode(a.state)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the state file location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), a.store.Path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "select-repo PATH",
			Short: "Remember the repository used when --repo is not given",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a.repo = args[0]
				svc, err := a.service(cmd.Context())
				if err != nil {
					return err
				}
				root, err := absPath(svc.RepoPath())
				if err != nil {
					return err
				}
				a.state.SetSelectedRepo(root)
				return a.save()
			},
		},
		&cobra.Command{
			Use:   "select-commits HASH...",
			Short: "Remember the commits actions use when --commit is not given; no HASH clears the selection",
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := a.service(cmd.Context())
				if err != nil {
					return err
				}
				hashes := make([]string, 0, len(args))
				for _, rev := range args {
					c, err := svc.Commit(cmd.Context(), rev)
					if err != nil {
						return err
					}
					hashes = append(hashes, c.Hash)
				}
				a.state.SelectCommits(hashes...)
				return a.save()
			},
		},
	)
	return cmd
}
