package commands

import (
	"context"
	"io"

	"github.com/roasbeef/gitum/engine"
	"github.com/roasbeef/gitum/gitconfig"
	"github.com/roasbeef/gitum/output"
	"github.com/spf13/cobra"
)

// NewMergeCmd creates the merge command.
func NewMergeCmd() *cobra.Command {
	var (
		doContinue bool
		doSkip     bool
		doAbort    bool
		track      bool
	)

	cmd := &cobra.Command{
		Use:   "merge [branch]",
		Short: "Fold new upstream commits into the rebased and mainline branches",
		Long: `Merge walks every commit reachable from branch but not yet on the
upstream branch, one at a time: merging it into upstream, rebasing
rebased onto the new upstream tip, and replaying the resulting delta
onto mainline as a single commit.

A conflict at any stage suspends the run; resolve it and re-run with
--continue, or discard the attempt with --abort.`,
		Example: `  # Merge in new commits from origin/master
  gitum merge origin/master

  # Resume after resolving a conflict
  gitum merge --continue

  # Give up and restore the pre-merge state
  gitum merge --abort`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var branch string
			if len(args) > 0 {
				branch = args[0]
			}

			return runMerge(
				cmd.Context(), cmd.OutOrStdout(), branch,
				doContinue, doSkip, doAbort, track,
			)
		},
	}

	cmd.Flags().BoolVar(&doContinue, "continue", false, "resume a suspended merge")
	cmd.Flags().BoolVar(&doSkip, "skip", false, "skip the conflicting commit and continue")
	cmd.Flags().BoolVar(&doAbort, "abort", false, "discard a suspended merge")
	cmd.Flags().BoolVar(&track, "track", false, "remember branch as the default merge branch")

	return cmd
}

func runMerge(
	ctx context.Context, w io.Writer, branch string,
	doContinue, doSkip, doAbort, track bool,
) error {

	cfg := getConfig(ctx)
	exec := executor(cfg)

	branchCfg, err := loadConfig(ctx, exec)
	if err != nil {
		return output.FormatResult(w, cfg.JSONOut, "", err)
	}

	log := func(format string, args ...any) {
		output.FormatProgress(w, cfg.JSONOut, format, args...)
	}

	if doAbort {
		err := engine.Abort(ctx, exec, branchCfg, false)
		return output.FormatResult(w, cfg.JSONOut, "", err)
	}

	eng := engine.NewMergeEngine(exec, branchCfg, log)

	if doContinue || doSkip {
		action := engine.ContinueResolved
		if doSkip {
			action = engine.ContinueSkip
		}

		err := eng.Continue(ctx, action)
		return output.FormatResult(w, cfg.JSONOut, "", err)
	}

	if branch == "" {
		branch, _, err = gitconfig.LoadMergeBranch(ctx, exec)
		if err != nil {
			return output.FormatResult(w, cfg.JSONOut, "", err)
		}
	}

	if err := eng.Run(ctx, branch); err != nil {
		return output.FormatResult(w, cfg.JSONOut, "", err)
	}

	if track && branch != "" {
		if err := gitconfig.SaveMergeBranch(ctx, exec, branch); err != nil {
			return output.FormatResult(w, cfg.JSONOut, "", err)
		}
	}

	return output.FormatResult(w, cfg.JSONOut, "", nil)
}
