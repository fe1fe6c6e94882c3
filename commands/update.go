package commands

import (
	"context"
	"io"

	"github.com/roasbeef/gitum/orchestrator"
	"github.com/roasbeef/gitum/output"
	"github.com/spf13/cobra"
)

// NewUpdateCmd creates the update command.
func NewUpdateCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Record local edits made directly on the rebased branch",
		Long: `Update folds commits added directly to the rebased branch (or
changes to its existing history) into mainline, and records a fresh
patches-branch snapshot. It never touches the upstream branch.`,
		Example: `  # Record new commits on rebased
  gitum update

  # Supply a message for the resulting mainline commit, when the
  # rebased history was rewritten rather than appended to
  gitum update -m "local tweak"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUpdate(cmd.Context(), cmd.OutOrStdout(), message)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message for a rewritten history")

	return cmd
}

func runUpdate(ctx context.Context, w io.Writer, message string) error {
	cfg := getConfig(ctx)
	exec := executor(cfg)

	branchCfg, err := loadConfig(ctx, exec)
	if err != nil {
		return output.FormatResult(w, cfg.JSONOut, "", err)
	}

	log := func(format string, args ...any) {
		output.FormatProgress(w, cfg.JSONOut, format, args...)
	}

	err = orchestrator.Update(ctx, exec, branchCfg, message, log)

	return output.FormatResult(w, cfg.JSONOut, "", err)
}
