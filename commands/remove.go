package commands

import (
	"context"
	"io"

	"github.com/roasbeef/gitum/orchestrator"
	"github.com/roasbeef/gitum/output"
	"github.com/spf13/cobra"
)

// NewRemoveCmd creates the remove command.
func NewRemoveCmd() *cobra.Command {
	var (
		branchesOnly bool
		configOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Tear down gitum's work branches and on-disk state",
		Long: `Remove deletes the managed branches (rebased/mainline/patches and
gitum-config) and the on-disk checkpoint files under .git/. The upstream
branch is kept and left checked out.

With --branches-only, only the branches are deleted. With
--config-only, only the checkpoint files are deleted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRemove(cmd.Context(), cmd.OutOrStdout(), branchesOnly, configOnly)
		},
	}

	cmd.Flags().BoolVar(&branchesOnly, "branches-only", false, "only remove the work branches")
	cmd.Flags().BoolVar(&configOnly, "config-only", false, "only remove on-disk state files")

	return cmd
}

func runRemove(ctx context.Context, w io.Writer, branchesOnly, configOnly bool) error {
	cfg := getConfig(ctx)
	exec := executor(cfg)

	log := func(format string, args ...any) {
		output.FormatProgress(w, cfg.JSONOut, format, args...)
	}

	var err error
	switch {
	case branchesOnly:
		branchCfg, loadErr := loadConfig(ctx, exec)
		if loadErr != nil {
			return output.FormatResult(w, cfg.JSONOut, "", loadErr)
		}

		err = orchestrator.RemoveBranches(ctx, exec, branchCfg, log)
	case configOnly:
		err = orchestrator.RemoveConfigFiles(ctx, exec, log)
	default:
		branchCfg, loadErr := loadConfig(ctx, exec)
		if loadErr != nil {
			return output.FormatResult(w, cfg.JSONOut, "", loadErr)
		}

		err = orchestrator.RemoveAll(ctx, exec, branchCfg, log)
	}

	return output.FormatResult(w, cfg.JSONOut, "", err)
}
