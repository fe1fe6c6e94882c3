package commands

import (
	"context"
	"io"

	"github.com/roasbeef/gitum/engine"
	"github.com/roasbeef/gitum/git"
	"github.com/roasbeef/gitum/gitconfig"
	"github.com/roasbeef/gitum/output"
	"github.com/spf13/cobra"
)

// NewPullCmd creates the pull command.
func NewPullCmd() *cobra.Command {
	var (
		remote   string
		resolved bool
		skip     bool
		doAbort  bool
		track    bool
	)

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Sync the work branches against a shared gitum remote",
		Long: `Pull fetches remote, resets upstream/patches/mainline to its tips,
and replays every locally-recorded patches-branch commit the remote
didn't already have, on top of the reset mainline.

A conflict applying a local patch suspends the run; resolve it and
re-run with --resolved, or --skip the patch, or --abort to cancel.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPull(cmd.Context(), cmd.OutOrStdout(), pullOptions{
				remote:   remote,
				resolved: resolved,
				skip:     skip,
				abort:    doAbort,
				track:    track,
			})
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "", "remote gitum repository name")
	cmd.Flags().BoolVar(&resolved, "resolved", false, "continue after resolving a conflict")
	cmd.Flags().BoolVar(&skip, "skip", false, "skip the conflicting patch and continue")
	cmd.Flags().BoolVar(&doAbort, "abort", false, "discard a suspended pull")
	cmd.Flags().BoolVar(&track, "track", false, "remember remote as the default gitum remote")

	return cmd
}

type pullOptions struct {
	remote         string
	resolved, skip bool
	abort          bool
	track          bool
}

func runPull(ctx context.Context, w io.Writer, opts pullOptions) error {
	cfg := getConfig(ctx)
	exec := executor(cfg)

	branchCfg, err := loadConfig(ctx, exec)
	if err != nil {
		return output.FormatResult(w, cfg.JSONOut, "", err)
	}

	if opts.abort {
		err := engine.Abort(ctx, exec, branchCfg, true)
		return output.FormatResult(w, cfg.JSONOut, "", err)
	}

	log := func(format string, args ...any) {
		output.FormatProgress(w, cfg.JSONOut, format, args...)
	}

	eng := engine.NewPullEngine(exec, branchCfg, log)

	switch {
	case opts.resolved:
		err = eng.ContinuePull(ctx, git.AmResolved)
	case opts.skip:
		err = eng.ContinuePull(ctx, git.AmSkip)
	default:
		err = eng.Pull(ctx, opts.remote)
	}

	if err != nil {
		return output.FormatResult(w, cfg.JSONOut, "", err)
	}

	if opts.track && opts.remote != "" {
		if err := gitconfig.SaveRemoteTracking(ctx, exec, opts.remote); err != nil {
			return output.FormatResult(w, cfg.JSONOut, "", err)
		}
	}

	return output.FormatResult(w, cfg.JSONOut, "", nil)
}
