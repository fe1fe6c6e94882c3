// Package engine drives the resumable MERGE -> REBASE -> COMMIT state
// machine that folds upstream commits into the rebased/mainline branches,
// and its pull/push counterpart for syncing against a shared gitum remote.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/roasbeef/gitum/git"
	"github.com/roasbeef/gitum/gitconfig"
	"github.com/roasbeef/gitum/gitumerr"
	"github.com/roasbeef/gitum/patch"
	"github.com/roasbeef/gitum/series"
)

// Logf is how engines report progress; nil is treated as a no-op.
type Logf func(format string, args ...any)

// MergeEngine folds commits from a merge branch into the managed
// branches, one upstream commit at a time, checkpointing after every
// stage so a conflict can be resolved and the run resumed.
type MergeEngine struct {
	Exec git.Executor
	Cfg  gitconfig.Config
	Log  Logf

	branches series.Branches

	saved    map[string]string
	state    gitconfig.Stage
	total    int
	consumed int
	commits  []string
	id       int
}

// NewMergeEngine builds a MergeEngine for the given config.
func NewMergeEngine(exec git.Executor, cfg gitconfig.Config, log Logf) *MergeEngine {
	if log == nil {
		log = func(string, ...any) {}
	}

	return &MergeEngine{
		Exec:     exec,
		Cfg:      cfg,
		Log:      log,
		branches: series.FromConfig(cfg),
	}
}

// Run folds every commit reachable from mergeBranch but not yet on
// upstream into rebased/mainline, committing a new patches-branch
// snapshot after each one.
func (m *MergeEngine) Run(ctx context.Context, mergeBranch string) error {
	dirty, err := m.Exec.IsDirty(ctx)
	if err != nil {
		return err
	}
	if dirty {
		return gitumerr.New(
			gitumerr.RepoIsDirty, false,
			"you have local changes, commit them and run update first",
		)
	}

	if err := checkMainline(ctx, m.Exec, m.Cfg); err != nil {
		return err
	}

	diff, err := m.Exec.Diff(ctx, m.Cfg.Rebased, m.Cfg.Mainline, false)
	if err != nil {
		return err
	}
	if diff != "" {
		return gitumerr.New(
			gitumerr.NotUptodate, false,
			"you have locally committed changes, run update to save them",
		)
	}

	commits, err := m.Exec.IterCommits(
		ctx, m.Cfg.Upstream+".."+mergeBranch,
	)
	if err != nil {
		return gitumerr.Wrap(
			gitumerr.NoMergeBranch, false, err, "merging from %s", mergeBranch,
		)
	}
	if len(commits) == 0 {
		m.Log("repository is up to date - nothing to merge")

		return nil
	}

	m.total = len(commits)
	m.consumed = 0
	m.id = 0
	m.commits = make([]string, len(commits))
	for i, c := range commits {
		m.commits[i] = c.Hash
	}

	if err := m.snapshotBranches(ctx); err != nil {
		return err
	}

	if err := m.processCommits(ctx); err != nil {
		return err
	}

	return m.finish(ctx)
}

// ContinueAction selects how a suspended rebase is resumed.
type ContinueAction int

const (
	// ContinueResolved resumes the rebase with `git rebase --continue`,
	// for when the operator has staged a conflict resolution.
	ContinueResolved ContinueAction = iota

	// ContinueSkip resumes the rebase with `git rebase --skip`,
	// dropping the conflicting commit.
	ContinueSkip
)

// Continue resumes a suspended merge after the operator resolved a
// conflict and re-ran `gitum merge --continue`/`--skip` as instructed.
func (m *MergeEngine) Continue(ctx context.Context, action ContinueAction) error {
	state, ok, err := gitconfig.LoadState(ctx, m.Exec, m.Cfg)
	if err != nil {
		return err
	}
	if !ok {
		return gitumerr.New(gitumerr.NoStateFile, false, "nothing to continue")
	}

	m.saved = state.Branches
	m.state = state.Stage
	m.total = state.Total
	m.consumed = state.Consumed
	m.commits = state.Remaining
	m.id = 0

	switch state.Stage {
	case gitconfig.StageRebase:
		diffStr, err := m.resumeRebase(ctx, action)
		if err != nil {
			return err
		}

		if err := m.stage3(ctx, m.commits[0], diffStr); err != nil {
			if gitumerr.Is(err, gitumerr.PatchFailed) {
				_ = gitconfig.SaveState(ctx, m.Exec, m.Cfg, m.toOpState())
			}

			return err
		}

		mainlineCommit := ""
		if diffStr != "" {
			mainlineCommit, err = m.Exec.RevParse(ctx, m.Cfg.Mainline)
			if err != nil {
				return err
			}
		}

		if err := m.saveSnapshot(ctx, mainlineCommit); err != nil {
			return err
		}

		m.id++
		m.consumed++
	case gitconfig.StageMerge:
		// Nothing additional needed: merge conflicts are resolved by
		// the operator directly on the upstream branch.
	default:
		return gitumerr.New(
			gitumerr.NotSupported, false,
			"continue is only supported from merge or rebase stage",
		)
	}

	m.commits = m.commits[m.id:]
	m.id = 0

	if err := m.processCommits(ctx); err != nil {
		return err
	}

	return m.finish(ctx)
}

// resumeRebase resumes the already-suspended rebase recorded by stage2,
// rather than restarting one, and returns the diff between rebased's old
// and new state. The working tree is already positioned by the suspended
// rebase, so no checkout is needed (and would fail mid-rebase).
func (m *MergeEngine) resumeRebase(ctx context.Context, action ContinueAction) (string, error) {
	var err error
	switch action {
	case ContinueSkip:
		err = m.Exec.RebaseSkip(ctx)
	default:
		err = m.Exec.RebaseContinue(ctx)
	}
	if err != nil {
		return "", gitumerr.Wrap(
			gitumerr.RebaseFailed, true, err,
			"rebase conflict replaying %s, resolve and run gitum merge "+
				"--continue", m.Cfg.Rebased,
		)
	}

	return m.Exec.Diff(ctx, m.saved["prev_head"], m.Cfg.Rebased, true)
}

// Abort restores every work branch to its pre-operation tip and discards
// the checkpoint. am selects whether the in-progress session to cancel
// is a rebase (merge engine) or an am session (pull engine).
func Abort(ctx context.Context, exec git.Executor, cfg gitconfig.Config, am bool) error {
	state, ok, err := gitconfig.LoadState(ctx, exec, cfg)
	if err != nil {
		return err
	}
	if !ok {
		return gitumerr.New(gitumerr.NoStateFile, false, "nothing to abort")
	}

	if am {
		_ = exec.AmContinue(ctx, git.AmAbort)
	} else {
		_ = exec.RebaseAbort(ctx)
	}

	if err := restoreBranches(ctx, exec, cfg, state.Branches); err != nil {
		return err
	}

	if err := exec.Checkout(ctx, cfg.Rebased, false); err != nil {
		return err
	}

	if err := checkoutAndRecord(ctx, exec, cfg); err != nil {
		return err
	}

	return gitconfig.DiscardState(ctx, exec)
}

func (m *MergeEngine) snapshotBranches(ctx context.Context) error {
	saved := make(map[string]string, 5)

	for _, branch := range []string{
		m.Cfg.Upstream, m.Cfg.Rebased, m.Cfg.Mainline, m.Cfg.Patches,
	} {
		sha, err := m.Exec.RevParse(ctx, branch)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", branch, err)
		}

		saved[branch] = sha
	}

	rebasedSHA, err := m.Exec.RevParse(ctx, m.Cfg.Rebased)
	if err != nil {
		return err
	}
	saved["prev_head"] = rebasedSHA

	m.saved = saved

	return nil
}

func (m *MergeEngine) processCommits(ctx context.Context) error {
	for m.id < len(m.commits) {
		commit := m.commits[m.id]

		m.Log("[%d/%d] applying commit %s", m.consumed+1, m.total, commit)

		if err := m.stage1(ctx, commit); err != nil {
			m.persistAndWrap(ctx)
			return err
		}

		diffStr, err := m.stage2(ctx, commit)
		if err != nil {
			m.persistAndWrap(ctx)
			return err
		}

		if err := m.stage3(ctx, commit, diffStr); err != nil {
			if gitumerr.Is(err, gitumerr.PatchFailed) {
				_ = gitconfig.SaveState(ctx, m.Exec, m.Cfg, m.toOpState())
			}

			return err
		}

		mainlineCommit := ""
		if diffStr != "" {
			mainlineCommit, err = m.Exec.RevParse(ctx, m.Cfg.Mainline)
			if err != nil {
				return err
			}
		}

		if err := m.saveSnapshot(ctx, mainlineCommit); err != nil {
			return err
		}

		m.id++
		m.consumed++
	}

	return nil
}

func (m *MergeEngine) persistAndWrap(ctx context.Context) {
	_ = gitconfig.SaveState(ctx, m.Exec, m.Cfg, m.toOpState())
}

func (m *MergeEngine) toOpState() gitconfig.OpState {
	return gitconfig.OpState{
		Branches:  m.saved,
		Stage:     m.state,
		Total:     m.total,
		Consumed:  m.consumed,
		Remaining: m.commits[m.id:],
	}
}

// stage1 merges commit into upstream.
func (m *MergeEngine) stage1(ctx context.Context, commit string) error {
	m.state = gitconfig.StageMerge

	if err := m.Exec.Checkout(ctx, m.Cfg.Upstream, false); err != nil {
		return err
	}

	if err := m.Exec.Merge(ctx, commit); err != nil {
		return gitumerr.Wrap(
			gitumerr.RebaseFailed, true, err,
			"merge conflict applying %s, resolve and run gitum merge "+
				"--continue", commit,
		)
	}

	return nil
}

// stage2 rebases rebased onto upstream's new tip and returns the diff
// between the branch's old and new state.
func (m *MergeEngine) stage2(ctx context.Context, commit string) (string, error) {
	m.state = gitconfig.StageRebase

	if err := m.Exec.Checkout(ctx, m.Cfg.Rebased, false); err != nil {
		return "", err
	}

	m.saved["prev_head"], _ = m.Exec.RevParse(ctx, m.Cfg.Rebased)

	if err := m.Exec.Rebase(ctx, commit); err != nil {
		return "", gitumerr.Wrap(
			gitumerr.RebaseFailed, true, err,
			"rebase conflict replaying %s onto %s, resolve and run "+
				"gitum merge --continue", m.Cfg.Rebased, commit,
		)
	}

	return m.Exec.Diff(ctx, m.saved["prev_head"], m.Cfg.Rebased, true)
}

// stage3 applies the rebased/mainline delta to mainline as a single
// commit, carrying commit's subject line and author forward when
// possible; the body of commit's message is not carried over.
func (m *MergeEngine) stage3(ctx context.Context, commit, diffStr string) error {
	m.state = gitconfig.StageCommit

	if err := m.Exec.Checkout(ctx, m.Cfg.Mainline, false); err != nil {
		return err
	}

	if diffStr == "" {
		m.Log("nothing to commit in %s, skipping %s", m.Cfg.Mainline, commit)

		return nil
	}

	if err := m.Exec.CleanWorkingTree(ctx); err != nil {
		return err
	}

	if err := patch.Apply(ctx, m.Exec, diffStr); err != nil {
		m.id++
		m.state = gitconfig.StageMerge

		return err
	}

	if err := m.Exec.Add(ctx); err != nil {
		return err
	}

	commits, err := m.Exec.IterCommits(ctx, commit+"~1.."+commit)
	if err != nil || len(commits) == 0 {
		return m.Exec.Commit(ctx, fmt.Sprintf("fold %s", commit), nil)
	}

	info := commits[len(commits)-1]
	parts := splitNameEmail(info.Author)

	return m.Exec.Commit(ctx, info.Subject, &git.Author{
		Name: parts[0], Email: parts[1],
	})
}

func (m *MergeEngine) saveSnapshot(ctx context.Context, mainlineCommit string) error {
	if err := series.Save(
		ctx, m.Exec, m.branches, mainlineCommit, "", nil, "",
	); err != nil {
		return err
	}

	return nil
}

func (m *MergeEngine) finish(ctx context.Context) error {
	if err := m.Exec.Checkout(ctx, m.Cfg.Rebased, false); err != nil {
		return err
	}

	if err := checkoutAndRecord(ctx, m.Exec, m.Cfg); err != nil {
		return err
	}

	return gitconfig.DiscardState(ctx, m.Exec)
}

func checkoutAndRecord(
	ctx context.Context, exec git.Executor, cfg gitconfig.Config,
) error {

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

func checkMainline(
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

func restoreBranches(
	ctx context.Context, exec git.Executor, cfg gitconfig.Config,
	saved map[string]string,
) error {

	for _, branch := range []string{
		cfg.Upstream, cfg.Rebased, cfg.Mainline, cfg.Patches,
	} {
		if err := exec.Checkout(ctx, branch, true); err != nil {
			return err
		}
		if err := exec.ResetHard(ctx, saved[branch]); err != nil {
			return err
		}
	}

	return nil
}

func splitNameEmail(s string) [2]string {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '<' {
			name := s[:i]
			email := strings.TrimSuffix(s[i+1:], ">")

			return [2]string{strings.TrimSpace(name), strings.TrimSpace(email)}
		}
	}

	return [2]string{strings.TrimSpace(s), ""}
}
