package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gitgraph-dev/gitgraph/internal/actions"
)

func newActionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List, preview and run catalog actions",
	}
	cmd.AddCommand(newActionsListCmd(a), newActionsPreviewCmd(a), newActionsRunCmd(a))
	return cmd
}

func newActionsListCmd(a *app) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List actions in catalog order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			defs := svc.ListActions()
			if scope != "" {
				defs = svc.ActionsForScope(actions.Scope(scope))
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSCOPE\tALIASES\tCOMMAND")
			for _, d := range defs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, d.Scope, strings.Join(d.Aliases, ","), d.Source())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "only list actions of this scope")
	return cmd
}

type contextFlags struct {
	commits []string
	branch  string
	tag     string
	stash   string
	remote  string
	args    []string
	options []string
	params  map[string]string
	confirm bool
}

func (f *contextFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringArrayVar(&f.commits, "commit", nil, "selected commit (repeatable; default: the selected commits in state)")
	fs.StringVar(&f.branch, "branch", "", "selected branch")
	fs.StringVar(&f.tag, "tag", "", "selected tag")
	fs.StringVar(&f.stash, "stash", "", "selected stash, e.g. stash@{0}")
	fs.StringVar(&f.remote, "remote", "", "remote name")
	fs.StringArrayVar(&f.args, "arg", nil, "positional argument for $1, $2, ... (repeatable)")
	fs.StringSliceVar(&f.options, "option", nil, "enable an action option by id or flag")
	fs.StringToStringVar(&f.params, "set", nil, "set a parameter or placeholder value, KEY=VALUE")
	fs.BoolVar(&f.confirm, "confirm", false, "confirm a destructive action")
}

func (f *contextFlags) context(a *app) actions.Context {
	commits := f.commits
	if len(commits) == 0 {
		commits = a.state.SelectedCommits
	}
	actx := actions.Context{
		BranchName:     f.branch,
		TagName:        f.tag,
		StashName:      f.stash,
		RemoteName:     f.remote,
		CommitHashes:   commits,
		Args:           f.args,
		EnabledOptions: f.options,
		Params:         f.params,
		Confirmed:      f.confirm,
	}
	if len(commits) > 0 {
		actx.CommitHash = commits[0]
	}
	if f.branch != "" {
		actx.BranchDisplayName = f.branch
		actx.LocalBranchName = f.branch
		if remote, name, ok := strings.Cut(f.branch, "/"); ok && remote == f.remote {
			actx.LocalBranchName = name
		}
	}
	return actx
}

func newActionsPreviewCmd(a *app) *cobra.Command {
	var cf contextFlags
	cmd := &cobra.Command{
		Use:   "preview ID",
		Short: "Print the commands an action would run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			plan, err := svc.PreviewAction(cmd.Context(), args[0], cf.context(a))
			if len(plan.Entries) == 0 {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), plan.String())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			return nil
		},
	}
	cf.register(cmd)
	return cmd
}

func newActionsRunCmd(a *app) *cobra.Command {
	var cf contextFlags
	cmd := &cobra.Command{
		Use:   "run ID",
		Short: "Run an action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.RunAction(cmd.Context(), args[0], cf.context(a))
			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
			for _, step := range res.Steps {
				if step.Skipped {
					fmt.Fprintf(errOut, "skipped: %s\n", step.Command)
					continue
				}
				fmt.Fprintf(errOut, "$ %s\n", step.Command)
				fmt.Fprint(out, step.Stdout)
				fmt.Fprint(errOut, step.Stderr)
			}
			return err
		},
	}
	cf.register(cmd)
	return cmd
}
