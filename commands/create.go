package commands

import (
	"context"
	"io"

	"github.com/roasbeef/gitum/gitconfig"
	"github.com/roasbeef/gitum/orchestrator"
	"github.com/roasbeef/gitum/output"
	"github.com/spf13/cobra"
)

// NewCreateCmd creates the create command.
func NewCreateCmd() *cobra.Command {
	var (
		upstream string
		rebased  string
		mainline string
		patches  string
		remote   string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Lay down the upstream/rebased/mainline/patches branches",
		Long: `Create turns the current branch into the upstream tracking branch
and creates the rebased, mainline, and patches branches on top of it.

Run this once, at the root of a fresh clone of the project you intend
to track.`,
		Example: `  # Use the default branch names
  gitum create

  # Use a custom layout
  gitum create --upstream vendor --mainline main

  # Remember a default merge branch for future "gitum merge" calls
  gitum create --remote origin/master`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCreate(cmd.Context(), cmd.OutOrStdout(), createOptions{
				upstream: upstream,
				rebased:  rebased,
				mainline: mainline,
				patches:  patches,
				remote:   remote,
			})
		},
	}

	cmd.Flags().StringVar(&upstream, "upstream", gitconfig.DefaultUpstream, "upstream branch name")
	cmd.Flags().StringVar(&rebased, "rebased", gitconfig.DefaultRebased, "rebased branch name")
	cmd.Flags().StringVar(&mainline, "mainline", gitconfig.DefaultMainline, "mainline branch name")
	cmd.Flags().StringVar(&patches, "patches", gitconfig.DefaultPatches, "patches branch name")
	cmd.Flags().StringVar(&remote, "remote", "", "default branch to merge from")

	return cmd
}

type createOptions struct {
	upstream, rebased, mainline, patches, remote string
}

func runCreate(ctx context.Context, w io.Writer, opts createOptions) error {
	cfg := getConfig(ctx)
	exec := executor(cfg)

	branchCfg := gitconfig.Config{
		Upstream: opts.upstream,
		Rebased:  opts.rebased,
		Mainline: opts.mainline,
		Patches:  opts.patches,
	}

	log := func(format string, args ...any) {
		output.FormatProgress(w, cfg.JSONOut, format, args...)
	}

	err := orchestrator.Create(ctx, exec, branchCfg, opts.remote, log)

	return output.FormatResult(w, cfg.JSONOut, "", err)
}
