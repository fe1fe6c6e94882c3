package commands

import (
	"context"
	"io"

	"github.com/roasbeef/gitum/orchestrator"
	"github.com/roasbeef/gitum/output"
	"github.com/spf13/cobra"
)

// NewRestoreCmd creates the restore command.
func NewRestoreCmd() *cobra.Command {
	var rebasedOnly bool

	cmd := &cobra.Command{
		Use:   "restore [commit]",
		Short: "Rebuild the work branches from a patches-branch commit",
		Long: `Restore rebuilds the rebased branch (and, unless --rebased-only is
given, the upstream/mainline/patches branches too) from a commit on the
patches branch. With no commit, it uses the patches branch's current
tip.`,
		Example: `  # Rebuild everything from the current patches tip
  gitum restore

  # Rebuild only the rebased branch from an older snapshot
  gitum restore --rebased-only patches~3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var commit string
			if len(args) > 0 {
				commit = args[0]
			}

			return runRestore(cmd.Context(), cmd.OutOrStdout(), commit, rebasedOnly)
		},
	}

	cmd.Flags().BoolVar(&rebasedOnly, "rebased-only", false, "rebuild only the rebased branch")

	return cmd
}

func runRestore(ctx context.Context, w io.Writer, commit string, rebasedOnly bool) error {
	cfg := getConfig(ctx)
	exec := executor(cfg)

	branchCfg, err := loadConfig(ctx, exec)
	if err != nil {
		return output.FormatResult(w, cfg.JSONOut, "", err)
	}

	log := func(format string, args ...any) {
		output.FormatProgress(w, cfg.JSONOut, format, args...)
	}

	err = orchestrator.Restore(ctx, exec, branchCfg, commit, rebasedOnly, log)

	return output.FormatResult(w, cfg.JSONOut, "", err)
}
