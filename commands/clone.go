package commands

import (
	"context"
	"io"

	"github.com/roasbeef/gitum/orchestrator"
	"github.com/roasbeef/gitum/output"
	"github.com/spf13/cobra"
)

// NewCloneCmd creates the clone command.
func NewCloneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clone <remote-repo>",
		Short: "Set up a local repository tracking a shared gitum remote",
		Long: `Clone fetches the upstream/mainline/patches branches (and
gitum-config, if present) from remoteRepo, rebuilds rebased from the
patches branch, and remembers remoteRepo as the default pull/push
target.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClone(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}

	return cmd
}

func runClone(ctx context.Context, w io.Writer, remoteRepo string) error {
	cfg := getConfig(ctx)
	exec := executor(cfg)

	log := func(format string, args ...any) {
		output.FormatProgress(w, cfg.JSONOut, format, args...)
	}

	_, err := orchestrator.Clone(ctx, exec, remoteRepo, log)

	return output.FormatResult(w, cfg.JSONOut, "", err)
}
