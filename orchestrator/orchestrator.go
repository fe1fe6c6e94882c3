// Package orchestrator implements gitum's branch-lifecycle operations:
// create, remove, restore, clone, status, and update. These sit above
// engine's merge/pull state machines and operate on the branch layout as
// a whole rather than folding individual upstream commits.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roasbeef/gitum/git"
	"github.com/roasbeef/gitum/gitconfig"
	"github.com/roasbeef/gitum/gitumerr"
	"github.com/roasbeef/gitum/series"
)

// Logf is how orchestrator operations report progress.
type Logf func(format string, args ...any)

func noopLog(string, ...any) {}

// Create lays down the four work branches rooted at the current branch
// (treated as upstream) and seeds the patches branch, writing a
// gitum-config commit only when a non-default layout is requested.
func Create(
	ctx context.Context, exec git.Executor, cfg gitconfig.Config,
	remote string, log Logf,
) error {

	if log == nil {
		log = noopLog
	}

	for _, branch := range []string{cfg.Mainline, cfg.Rebased, cfg.Patches} {
		exists, err := exec.BranchExists(ctx, branch)
		if err != nil {
			return err
		}
		if exists {
			return gitumerr.New(
				gitumerr.BranchExists, false, "%s branch exists", branch,
			)
		}
	}

	needsConfig := !cfg.IsDefault()
	if needsConfig {
		exists, err := exec.BranchExists(ctx, gitconfig.ConfigBranch)
		if err != nil {
			return err
		}
		if exists {
			return gitumerr.New(
				gitumerr.BranchExists, false,
				"%s branch exists", gitconfig.ConfigBranch,
			)
		}
	}

	hasUpstream, err := exec.BranchExists(ctx, cfg.Upstream)
	if err != nil {
		return err
	}
	if !hasUpstream {
		if err := exec.CreateBranch(ctx, cfg.Upstream, ""); err != nil {
			return fmt.Errorf(
				"creating %s from the current branch: %w", cfg.Upstream, err,
			)
		}
	}

	if err := exec.Checkout(ctx, cfg.Upstream, false); err != nil {
		return err
	}
	if err := exec.CreateBranch(ctx, cfg.Mainline, ""); err != nil {
		return err
	}
	if err := exec.CreateBranch(ctx, cfg.Rebased, ""); err != nil {
		return err
	}

	b := series.FromConfig(cfg)
	if err := series.Genesis(ctx, exec, b); err != nil {
		return err
	}

	if needsConfig {
		if err := gitconfig.SaveConfig(ctx, exec, cfg); err != nil {
			return err
		}
	}

	if remote != "" {
		if err := gitconfig.SaveMergeBranch(ctx, exec, remote); err != nil {
			return err
		}
	}

	if err := exec.Checkout(ctx, cfg.Rebased, false); err != nil {
		return err
	}

	if err := recordTips(ctx, exec, cfg); err != nil {
		return err
	}

	log("created work branches %s/%s/%s/%s",
		cfg.Upstream, cfg.Mainline, cfg.Rebased, cfg.Patches)

	return nil
}

// RemoveBranches deletes the mainline, rebased and patches branches, and
// gitum-config if present. The upstream branch is kept and left checked
// out.
func RemoveBranches(
	ctx context.Context, exec git.Executor, cfg gitconfig.Config, log Logf,
) error {

	if log == nil {
		log = noopLog
	}

	if exists, _ := exec.BranchExists(ctx, cfg.Upstream); exists {
		if err := exec.Checkout(ctx, cfg.Upstream, true); err != nil {
			return err
		}
	}

	for _, branch := range []string{cfg.Mainline, cfg.Rebased, cfg.Patches} {
		exists, err := exec.BranchExists(ctx, branch)
		if err != nil {
			return err
		}
		if exists {
			if err := exec.DeleteBranch(ctx, branch, true); err != nil {
				return err
			}
		}
	}

	if exists, _ := exec.BranchExists(ctx, gitconfig.ConfigBranch); exists {
		_ = exec.DeleteBranch(ctx, gitconfig.ConfigBranch, true)
	}

	log("removed work branches")

	return nil
}

// RemoveConfigFiles deletes every on-disk state file gitum maintains
// under .git/ (but never the committed gitum-config branch).
func RemoveConfigFiles(ctx context.Context, exec git.Executor, log Logf) error {
	if log == nil {
		log = noopLog
	}

	if err := gitconfig.DiscardState(ctx, exec); err != nil {
		return err
	}

	gitDir, err := exec.GitDir(ctx)
	if err != nil {
		return err
	}
	for _, name := range []string{
		".gitum-remote", ".gitum-mbranch",
		".gitum-current-rebased", ".gitum-current-mainline",
	} {
		err := os.Remove(filepath.Join(gitDir, name))
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	log("removed gitum config files")

	return nil
}

// RemoveAll removes both the work branches and the on-disk config files.
func RemoveAll(
	ctx context.Context, exec git.Executor, cfg gitconfig.Config, log Logf,
) error {

	if err := RemoveBranches(ctx, exec, cfg, log); err != nil {
		return err
	}

	return RemoveConfigFiles(ctx, exec, log)
}

// Restore rebuilds the rebased branch (and, unless rebasedOnly, the
// upstream/mainline/patches branches too) from a patches-branch commit.
func Restore(
	ctx context.Context, exec git.Executor, cfg gitconfig.Config,
	commit string, rebasedOnly bool, log Logf,
) error {

	if log == nil {
		log = noopLog
	}

	b := series.FromConfig(cfg)

	if rebasedOnly {
		if err := series.Read(ctx, exec, b, commit); err != nil {
			return err
		}

		tip, err := exec.RevParse(ctx, cfg.Rebased)
		if err != nil {
			return err
		}

		return gitconfig.SaveCurrentRebased(ctx, exec, tip)
	}

	if commit == "" {
		commit = cfg.Patches
	}

	commits, err := exec.IterCommits(ctx, commit)
	if err != nil {
		return err
	}

	found := false
	var chain []string
	for i := len(commits) - 1; i >= 0; i-- {
		chain = append(chain, commits[i].Hash)
		if strings.HasPrefix(commits[i].Subject, "gitum-patches: begin") {
			found = true
			break
		}
	}
	if !found {
		return gitumerr.New(
			gitumerr.BrokenRepo, false, "broken %s commit history", commit,
		)
	}

	marker, err := exec.Show(ctx, commit+":"+series.UpstreamCommitFile)
	if err != nil {
		return gitumerr.Wrap(
			gitumerr.BrokenRepo, false, err,
			"reading upstream marker at %s", commit,
		)
	}
	if err := exec.Checkout(ctx, cfg.Upstream, true); err != nil {
		return err
	}
	if err := exec.ResetHard(ctx, strings.TrimSpace(string(marker))); err != nil {
		return err
	}

	for i := len(chain) - 1; i >= 0; i-- {
		if err := series.Read(ctx, exec, b, chain[i]); err != nil {
			return err
		}
	}

	if exists, _ := exec.BranchExists(ctx, cfg.Mainline); exists {
		if err := exec.DeleteBranch(ctx, cfg.Mainline, true); err != nil {
			return err
		}
	}
	if err := exec.CreateBranch(ctx, cfg.Mainline, ""); err != nil {
		return err
	}

	if exists, _ := exec.BranchExists(ctx, cfg.Patches); exists {
		if err := exec.DeleteBranch(ctx, cfg.Patches, true); err != nil {
			return err
		}
	}
	if err := exec.CreateBranch(ctx, cfg.Patches, commit); err != nil {
		return err
	}

	if err := exec.Checkout(ctx, cfg.Rebased, false); err != nil {
		return err
	}

	if err := recordTips(ctx, exec, cfg); err != nil {
		return err
	}

	log("restored work branches to %s from %s", commit, cfg.Patches)

	return nil
}

// Clone sets up a local repository tracking remoteRepo: fetches its
// upstream/mainline/patches (and gitum-config, if present) branches and
// rebuilds rebased from the patches branch.
func Clone(
	ctx context.Context, exec git.Executor, remoteRepo string, log Logf,
) (gitconfig.Config, error) {

	if log == nil {
		log = noopLog
	}

	if remoteRepo == "" {
		return gitconfig.Config{}, gitumerr.New(
			gitumerr.NoGitumRemote, false, "specify a remote repo",
		)
	}

	if err := exec.RemoteAdd(ctx, "origin", remoteRepo); err != nil {
		return gitconfig.Config{}, err
	}
	if err := exec.Fetch(ctx, "origin"); err != nil {
		return gitconfig.Config{}, err
	}

	if exists, _ := exec.BranchExists(ctx, gitconfig.ConfigBranch); !exists {
		_ = exec.CreateBranch(ctx, gitconfig.ConfigBranch, "origin/"+gitconfig.ConfigBranch)
	}

	cfg, err := gitconfig.LoadConfig(ctx, exec)
	if err != nil {
		return gitconfig.Config{}, err
	}

	for _, branch := range []string{cfg.Upstream, cfg.Patches, cfg.Mainline} {
		if err := exec.CreateBranch(ctx, branch, "origin/"+branch); err != nil {
			return gitconfig.Config{}, err
		}
	}

	if err := gitconfig.SaveRemoteTracking(ctx, exec, "origin"); err != nil {
		return gitconfig.Config{}, err
	}

	b := series.FromConfig(cfg)
	if err := series.Read(ctx, exec, b, ""); err != nil {
		return gitconfig.Config{}, err
	}

	if err := recordTips(ctx, exec, cfg); err != nil {
		return gitconfig.Config{}, err
	}

	log("cloned %s", remoteRepo)

	return cfg, nil
}

// StatusReport summarizes whether rebased has unrecorded work.
type StatusReport struct {
	UpToDate    bool
	NewCommits  bool
	ModifiedSet bool
	Commits     []git.CommitInfo
	Diff        string
}

// Status reports whether rebased has moved since the last recorded
// patches-branch snapshot, and whether that movement is a simple new
// commit or a modification of existing history.
func Status(
	ctx context.Context, exec git.Executor, cfg gitconfig.Config,
) (StatusReport, error) {

	if err := checkMainlineLocal(ctx, exec, cfg); err != nil {
		return StatusReport{}, err
	}

	curRebased, ok, err := gitconfig.LoadCurrentRebased(ctx, exec)
	if err != nil {
		return StatusReport{}, err
	}

	rebasedTip, err := exec.RevParse(ctx, cfg.Rebased)
	if err != nil {
		return StatusReport{}, err
	}

	if ok && curRebased == rebasedTip {
		return StatusReport{UpToDate: true}, nil
	}

	diff, err := exec.Diff(ctx, cfg.Mainline, cfg.Rebased, true)
	if err != nil {
		return StatusReport{}, err
	}

	ca, err := exec.MergeBase(ctx, curRebased, cfg.Rebased)
	if err != nil {
		return StatusReport{}, err
	}

	if ca == curRebased {
		commits, err := exec.IterCommits(ctx, ca+".."+cfg.Rebased)
		if err != nil {
			return StatusReport{}, err
		}

		return StatusReport{NewCommits: true, Commits: commits}, nil
	}

	return StatusReport{ModifiedSet: true, Diff: diff}, nil
}

// Update folds rebased's new or modified history into mainline and
// records a patches-branch snapshot, without touching upstream.
func Update(
	ctx context.Context, exec git.Executor, cfg gitconfig.Config,
	message string, log Logf,
) error {

	if log == nil {
		log = noopLog
	}

	dirty, err := exec.IsDirty(ctx)
	if err != nil {
		return err
	}
	if dirty {
		return gitumerr.New(
			gitumerr.RepoIsDirty, false,
			"you have local changes, commit them and try again",
		)
	}

	if err := checkMainlineLocal(ctx, exec, cfg); err != nil {
		return err
	}

	curRebased, ok, err := gitconfig.LoadCurrentRebased(ctx, exec)
	if err != nil {
		return err
	}

	rebasedTip, err := exec.RevParse(ctx, cfg.Rebased)
	if err != nil {
		return err
	}

	if ok && curRebased == rebasedTip {
		log("nothing to update")

		return nil
	}

	diff, err := exec.Diff(ctx, cfg.Mainline, cfg.Rebased, true)
	if err != nil {
		return err
	}

	b := series.FromConfig(cfg)

	ca, err := exec.MergeBase(ctx, curRebased, cfg.Rebased)
	if err != nil {
		return err
	}

	if ca == curRebased {
		commits, err := exec.IterCommits(ctx, ca+".."+cfg.Rebased)
		if err != nil {
			return err
		}

		for _, c := range commits {
			log("applying commit: %s", c.Subject)

			if err := exec.Checkout(ctx, cfg.Mainline, false); err != nil {
				return err
			}
			if err := exec.CherryPick(ctx, c.Hash); err != nil {
				return gitumerr.Wrap(
					gitumerr.CherryPickFailed, true, err,
					"conflict replaying %s onto %s", c.Hash, cfg.Mainline,
				)
			}

			mainlineCommit := ""
			if diff != "" {
				mainlineCommit, err = exec.RevParse(ctx, cfg.Mainline)
				if err != nil {
					return err
				}
			}

			if err := series.Save(
				ctx, exec, b, mainlineCommit, "", nil, "",
			); err != nil {
				return err
			}
		}
	} else {
		if diff != "" {
			log("applying result diff between %s and %s", cfg.Mainline, cfg.Rebased)

			if err := exec.Checkout(ctx, cfg.Mainline, false); err != nil {
				return err
			}
			if err := applyResultDiff(ctx, exec, diff); err != nil {
				return err
			}

			commitMsg := message
			if commitMsg == "" {
				commitMsg = "fold rewritten rebased history"
			}
			if err := exec.Commit(ctx, commitMsg, nil); err != nil {
				return err
			}
		}

		mainlineCommit := ""
		if diff != "" {
			mainlineCommit, err = exec.RevParse(ctx, cfg.Mainline)
			if err != nil {
				return err
			}
		}

		if err := series.Save(
			ctx, exec, b, mainlineCommit, message, nil, "",
		); err != nil {
			return err
		}
	}

	if err := exec.Checkout(ctx, cfg.Rebased, false); err != nil {
		return err
	}

	return recordTips(ctx, exec, cfg)
}

func applyResultDiff(ctx context.Context, exec git.Executor, diff string) error {
	if err := exec.Apply(ctx, diff); err != nil {
		return gitumerr.Wrap(
			gitumerr.PatchFailed, true, err, "applying result diff",
		)
	}

	return exec.Add(ctx)
}

func recordTips(ctx context.Context, exec git.Executor, cfg gitconfig.Config) error {
	rebasedSHA, err := exec.RevParse(ctx, cfg.Rebased)
	if err != nil {
		return err
	}
	if err := gitconfig.SaveCurrentRebased(ctx, exec, rebasedSHA); err != nil {
		return err
	}

	mainlineSHA, err := exec.RevParse(ctx, cfg.Mainline)
	if err != nil {
		return err
	}

	return gitconfig.SaveCurrentMainline(ctx, exec, mainlineSHA)
}

func checkMainlineLocal(
	ctx context.Context, exec git.Executor, cfg gitconfig.Config,
) error {

	saved, ok, err := gitconfig.LoadCurrentMainline(ctx, exec)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	current, err := exec.RevParse(ctx, cfg.Mainline)
	if err != nil {
		return err
	}

	if saved != current {
		return gitumerr.New(
			gitumerr.RepoIsDirty, false,
			"unexpected HEAD of %s branch (%s instead of %s)",
			cfg.Mainline, current, saved,
		)
	}

	return nil
}
