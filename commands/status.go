package commands

import (
	"context"
	"io"

	"github.com/roasbeef/gitum/orchestrator"
	"github.com/roasbeef/gitum/output"
	"github.com/spf13/cobra"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether the rebased branch has unrecorded work",
		Long: `Status compares the rebased branch's tip to the last recorded
patches-branch snapshot, and reports whether it has moved, and if so
whether that's new commits on top or a rewrite of existing history.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout())
		},
	}

	return cmd
}

func runStatus(ctx context.Context, w io.Writer) error {
	cfg := getConfig(ctx)
	exec := executor(cfg)

	branchCfg, err := loadConfig(ctx, exec)
	if err != nil {
		return output.FormatResult(w, cfg.JSONOut, "", err)
	}

	report, err := orchestrator.Status(ctx, exec, branchCfg)
	if err != nil {
		return output.FormatResult(w, cfg.JSONOut, "", err)
	}

	return output.FormatStatus(w, cfg.JSONOut, report)
}
