package commands

import (
	"context"
	"io"

	"github.com/roasbeef/gitum/engine"
	"github.com/roasbeef/gitum/gitconfig"
	"github.com/roasbeef/gitum/output"
	"github.com/spf13/cobra"
)

// NewPushCmd creates the push command.
func NewPushCmd() *cobra.Command {
	var (
		remote string
		track  bool
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Publish the work branches to a shared gitum remote",
		Long: `Push publishes the upstream/mainline/patches branches (and
gitum-config, if present) to remote.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPush(cmd.Context(), cmd.OutOrStdout(), remote, track)
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "", "remote gitum repository name")
	cmd.Flags().BoolVar(&track, "track", false, "remember remote as the default gitum remote")

	return cmd
}

func runPush(ctx context.Context, w io.Writer, remote string, track bool) error {
	cfg := getConfig(ctx)
	exec := executor(cfg)

	branchCfg, err := loadConfig(ctx, exec)
	if err != nil {
		return output.FormatResult(w, cfg.JSONOut, "", err)
	}

	log := func(format string, args ...any) {
		output.FormatProgress(w, cfg.JSONOut, format, args...)
	}

	eng := engine.NewPullEngine(exec, branchCfg, log)

	if err := eng.Push(ctx, remote); err != nil {
		return output.FormatResult(w, cfg.JSONOut, "", err)
	}

	if track && remote != "" {
		if err := gitconfig.SaveRemoteTracking(ctx, exec, remote); err != nil {
			return output.FormatResult(w, cfg.JSONOut, "", err)
		}
	}

	return output.FormatResult(w, cfg.JSONOut, "", nil)
}
