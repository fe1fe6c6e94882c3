package engine

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/roasbeef/gitum/git"
	"github.com/roasbeef/gitum/gitconfig"
	"github.com/roasbeef/gitum/gitumerr"
	"github.com/roasbeef/gitum/series"
)

// PullEngine resets the managed branches to a shared remote's state and
// replays locally-recorded patches-branch commits on top, then (via
// Push) publishes the result back.
type PullEngine struct {
	Exec git.Executor
	Cfg  gitconfig.Config
	Log  Logf

	branches series.Branches

	saved   map[string]string
	commits []string
	id      int
}

// NewPullEngine builds a PullEngine for the given config.
func NewPullEngine(exec git.Executor, cfg gitconfig.Config, log Logf) *PullEngine {
	if log == nil {
		log = func(string, ...any) {}
	}

	return &PullEngine{
		Exec:     exec,
		Cfg:      cfg,
		Log:      log,
		branches: series.FromConfig(cfg),
	}
}

// Pull fetches remote, resets upstream/patches/mainline to its tips, and
// replays every locally-recorded patches-branch commit the remote didn't
// already have on top of the reset mainline.
func (p *PullEngine) Pull(ctx context.Context, remote string) error {
	if err := checkMainline(ctx, p.Exec, p.Cfg); err != nil {
		return err
	}

	if remote == "" {
		var ok bool
		var err error
		remote, ok, err = gitconfig.LoadRemoteTracking(ctx, p.Exec)
		if err != nil {
			return err
		}
		if !ok {
			return gitumerr.New(
				gitumerr.NoGitumRemote, false,
				"specify a remote gitum repository",
			)
		}
	}

	if err := p.snapshotBranches(ctx); err != nil {
		return err
	}

	curPatches, err := p.Exec.RevParse(ctx, p.Cfg.Patches)
	if err != nil {
		return err
	}

	if err := p.Exec.Fetch(ctx, remote); err != nil {
		return err
	}

	for _, branch := range []string{p.Cfg.Upstream, p.Cfg.Patches, p.Cfg.Mainline} {
		if err := p.Exec.Checkout(ctx, branch, true); err != nil {
			return err
		}
		if err := p.Exec.ResetHard(ctx, remote+"/"+branch); err != nil {
			return err
		}
	}

	if err := series.Read(ctx, p.Exec, p.branches, ""); err != nil {
		return err
	}

	p.Log("reset work branches to remote state, applying local commits on top")

	if err := p.Exec.Checkout(ctx, p.Cfg.Mainline, false); err != nil {
		return err
	}

	prevID, err := p.Exec.MergeBase(ctx, remote+"/"+p.Cfg.Patches, curPatches)
	if err != nil {
		return err
	}

	commits, err := p.Exec.IterCommits(ctx, prevID+".."+curPatches)
	if err != nil {
		return err
	}

	p.commits = make([]string, len(commits))
	for i, c := range commits {
		p.commits[i] = c.Hash
	}
	p.id = 0

	if err := p.pullCommits(ctx); err != nil {
		return err
	}

	if err := p.Exec.Checkout(ctx, p.Cfg.Rebased, false); err != nil {
		return err
	}

	return checkoutAndRecord(ctx, p.Exec, p.Cfg)
}

// ContinuePull resumes a suspended pull after an `am` conflict was
// resolved, per action.
func (p *PullEngine) ContinuePull(ctx context.Context, action git.AmAction) error {
	state, ok, err := gitconfig.LoadState(ctx, p.Exec, p.Cfg)
	if err != nil {
		return err
	}
	if !ok {
		return gitumerr.New(gitumerr.NoStateFile, false, "nothing to continue")
	}

	p.saved = state.Branches
	p.commits = state.Remaining
	p.id = 0

	if err := p.Exec.AmContinue(ctx, action); err != nil {
		return gitumerr.Wrap(
			gitumerr.RebaseFailed, true, err, "resuming am session",
		)
	}

	if action == git.AmResolved {
		if err := p.Exec.Checkout(ctx, p.Cfg.Rebased, false); err != nil {
			return err
		}
		if err := p.Exec.CherryPick(ctx, p.Cfg.Mainline); err != nil {
			return err
		}

		mainlineTip, err := p.Exec.RevParse(ctx, p.Cfg.Mainline)
		if err != nil {
			return err
		}

		if err := series.Save(
			ctx, p.Exec, p.branches, mainlineTip, "", nil, "",
		); err != nil {
			return err
		}
	}

	if err := p.Exec.Checkout(ctx, p.Cfg.Upstream, true); err != nil {
		return err
	}

	upstreamMarker, err := p.Exec.Show(
		ctx, p.commits[0]+":"+series.UpstreamCommitFile,
	)
	if err != nil {
		return err
	}

	if err := p.Exec.Merge(ctx, strings.TrimSpace(string(upstreamMarker))); err != nil {
		return err
	}

	if err := p.Exec.Checkout(ctx, p.Cfg.Mainline, false); err != nil {
		return err
	}

	p.id++
	p.commits = p.commits[p.id:]
	p.id = 0

	if err := p.pullCommits(ctx); err != nil {
		return err
	}

	if err := p.Exec.Checkout(ctx, p.Cfg.Rebased, false); err != nil {
		return err
	}

	if err := checkoutAndRecord(ctx, p.Exec, p.Cfg); err != nil {
		return err
	}

	return gitconfig.DiscardState(ctx, p.Exec)
}

// Push publishes upstream/mainline/patches (and gitum-config, if present)
// to remote.
func (p *PullEngine) Push(ctx context.Context, remote string) error {
	if err := checkMainline(ctx, p.Exec, p.Cfg); err != nil {
		return err
	}

	if remote == "" {
		var ok bool
		var err error
		remote, ok, err = gitconfig.LoadRemoteTracking(ctx, p.Exec)
		if err != nil {
			return err
		}
		if !ok {
			return gitumerr.New(
				gitumerr.NoGitumRemote, false,
				"specify a remote gitum repository",
			)
		}
	}

	for _, branch := range []string{p.Cfg.Upstream, p.Cfg.Mainline, p.Cfg.Patches} {
		if err := p.Exec.Push(ctx, remote, branch); err != nil {
			return err
		}
	}

	hasConfig, err := p.Exec.BranchExists(ctx, gitconfig.ConfigBranch)
	if err != nil {
		return err
	}
	if hasConfig {
		if err := p.Exec.Push(ctx, remote, gitconfig.ConfigBranch); err != nil {
			return err
		}
	}

	p.Log("pushed work branches to %s", remote)

	return nil
}

func (p *PullEngine) snapshotBranches(ctx context.Context) error {
	saved := make(map[string]string, 5)

	for _, branch := range []string{
		p.Cfg.Upstream, p.Cfg.Rebased, p.Cfg.Mainline, p.Cfg.Patches,
	} {
		sha, err := p.Exec.RevParse(ctx, branch)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", branch, err)
		}

		saved[branch] = sha
	}

	rebasedSHA := saved[p.Cfg.Rebased]
	saved["prev_head"] = rebasedSHA
	p.saved = saved

	return nil
}

func (p *PullEngine) pullCommits(ctx context.Context) error {
	for p.id < len(p.commits) {
		commit := p.commits[p.id]

		lastPatch, err := p.Exec.Show(ctx, commit+":"+series.LastPatchFile)
		if err != nil {
			return err
		}

		if len(strings.TrimSpace(string(lastPatch))) > 0 {
			tmp, err := writeTempPatch(lastPatch)
			if err != nil {
				return err
			}
			defer os.Remove(tmp)

			p.Log("applying commit from patch series at %s", commit)

			if err := p.Exec.Am(ctx, tmp, git.AmThreeWay); err != nil {
				_ = gitconfig.SaveState(ctx, p.Exec, p.Cfg, gitconfig.OpState{
					Branches: p.saved, Remaining: p.commits[p.id:],
				})

				return gitumerr.Wrap(
					gitumerr.RebaseFailed, true, err,
					"conflict applying patch from %s, resolve and run "+
						"gitum pull --resolved", commit,
				)
			}

			if err := p.Exec.Checkout(ctx, p.Cfg.Rebased, false); err != nil {
				return err
			}
			if err := p.Exec.CherryPick(ctx, p.Cfg.Mainline); err != nil {
				_ = gitconfig.SaveState(ctx, p.Exec, p.Cfg, gitconfig.OpState{
					Branches: p.saved, Remaining: p.commits[p.id:],
				})

				return gitumerr.Wrap(
					gitumerr.CherryPickFailed, true, err,
					"conflict replaying %s onto %s", p.Cfg.Mainline,
					p.Cfg.Rebased,
				)
			}

			mainlineTip, err := p.Exec.RevParse(ctx, p.Cfg.Mainline)
			if err != nil {
				return err
			}

			if err := series.Save(
				ctx, p.Exec, p.branches, mainlineTip, "", nil, "",
			); err != nil {
				return err
			}
		}

		if err := p.Exec.Checkout(ctx, p.Cfg.Upstream, false); err != nil {
			return err
		}

		upstreamMarker, err := p.Exec.Show(ctx, commit+":"+series.UpstreamCommitFile)
		if err != nil {
			return err
		}

		if err := p.Exec.Merge(ctx, strings.TrimSpace(string(upstreamMarker))); err != nil {
			return err
		}

		if err := p.Exec.Checkout(ctx, p.Cfg.Mainline, false); err != nil {
			return err
		}

		p.id++
	}

	return nil
}

func writeTempPatch(content []byte) (string, error) {
	f, err := os.CreateTemp("", "gitum-pull-*.patch")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.Write(content); err != nil {
		return "", err
	}

	return f.Name(), nil
}
