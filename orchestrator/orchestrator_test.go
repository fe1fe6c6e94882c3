package orchestrator_test

import (
	"context"
	"testing"

	"github.com/roasbeef/gitum/gitconfig"
	"github.com/roasbeef/gitum/gitumerr"
	"github.com/roasbeef/gitum/orchestrator"
	"github.com/roasbeef/gitum/testutil"
	"github.com/stretchr/testify/require"
)

func setupManagedRepo(t *testing.T, repo *testutil.GitTestRepo) gitconfig.Config {
	repo.WriteFile("base.go", "package base\n")
	repo.CommitAll("initial")
	repo.Git("branch", "-m", "upstream")

	ctx := context.Background()
	exec := repo.Executor()
	cfg := gitconfig.Default()

	require.NoError(t, orchestrator.Create(ctx, exec, cfg, "", nil))

	return cfg
}

func TestCreateLaysDownDefaultBranches(t *testing.T) {
	repo := testutil.NewGitTestRepo(t)
	cfg := setupManagedRepo(t, repo)

	ctx := context.Background()
	exec := repo.Executor()

	for _, branch := range []string{cfg.Upstream, cfg.Mainline, cfg.Rebased, cfg.Patches} {
		exists, err := exec.BranchExists(ctx, branch)
		require.NoError(t, err)
		require.True(t, exists, "%s should exist", branch)
	}

	configExists, err := exec.BranchExists(ctx, gitconfig.ConfigBranch)
	require.NoError(t, err)
	require.False(t, configExists, "default layout should not need gitum-config")

	require.Equal(t, cfg.Rebased, repo.CurrentBranch())
}

func TestCreateWithNonDefaultLayoutWritesConfig(t *testing.T) {
	repo := testutil.NewGitTestRepo(t)
	repo.WriteFile("base.go", "package base\n")
	repo.CommitAll("initial")
	repo.Git("branch", "-m", "vendor")

	ctx := context.Background()
	exec := repo.Executor()

	cfg := gitconfig.Config{
		Upstream: "vendor",
		Rebased:  "local",
		Mainline: "prod",
		Patches:  "series",
	}

	require.NoError(t, orchestrator.Create(ctx, exec, cfg, "origin/vendor", nil))

	exists, err := exec.BranchExists(ctx, gitconfig.ConfigBranch)
	require.NoError(t, err)
	require.True(t, exists)

	loaded, err := gitconfig.LoadConfig(ctx, exec)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)

	branch, ok, err := gitconfig.LoadMergeBranch(ctx, exec)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "origin/vendor", branch)
}

func TestCreateRejectsExistingBranch(t *testing.T) {
	repo := testutil.NewGitTestRepo(t)
	cfg := setupManagedRepo(t, repo)

	ctx := context.Background()
	exec := repo.Executor()

	err := orchestrator.Create(ctx, exec, cfg, "", nil)
	require.Error(t, err)
	require.True(t, gitumerr.Is(err, gitumerr.BranchExists))
}

func TestRemoveAll(t *testing.T) {
	repo := testutil.NewGitTestRepo(t)
	cfg := setupManagedRepo(t, repo)

	ctx := context.Background()
	exec := repo.Executor()

	require.NoError(t, orchestrator.RemoveAll(ctx, exec, cfg, nil))

	for _, branch := range []string{cfg.Mainline, cfg.Rebased, cfg.Patches} {
		exists, err := exec.BranchExists(ctx, branch)
		require.NoError(t, err)
		require.False(t, exists, "%s should be gone", branch)
	}

	_, ok, err := gitconfig.LoadCurrentRebased(ctx, exec)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStatusUpToDate(t *testing.T) {
	repo := testutil.NewGitTestRepo(t)
	cfg := setupManagedRepo(t, repo)

	ctx := context.Background()
	exec := repo.Executor()

	report, err := orchestrator.Status(ctx, exec, cfg)
	require.NoError(t, err)
	require.True(t, report.UpToDate)
}

func TestStatusReportsNewCommits(t *testing.T) {
	repo := testutil.NewGitTestRepo(t)
	cfg := setupManagedRepo(t, repo)

	ctx := context.Background()
	repo.WriteFile("addition.go", "package addition\n")
	repo.CommitAll("local addition")

	report, err := orchestrator.Status(ctx, repo.Executor(), cfg)
	require.NoError(t, err)
	require.True(t, report.NewCommits)
	require.Len(t, report.Commits, 1)
	require.Equal(t, "local addition", report.Commits[0].Subject)
}

func TestUpdateCherryPicksNewCommit(t *testing.T) {
	repo := testutil.NewGitTestRepo(t)
	cfg := setupManagedRepo(t, repo)

	ctx := context.Background()
	exec := repo.Executor()

	repo.WriteFile("addition.go", "package addition\n")
	repo.CommitAll("local addition")

	require.NoError(t, orchestrator.Update(ctx, exec, cfg, "", nil))

	require.NoError(t, exec.Checkout(ctx, cfg.Mainline, false))
	require.True(t, repo.FileExists("addition.go"))

	require.NoError(t, exec.Checkout(ctx, cfg.Rebased, false))

	diffText, err := exec.Diff(ctx, cfg.Mainline, cfg.Rebased, true)
	require.NoError(t, err)
	require.Empty(t, diffText)
}

func TestUpdateSquashesModifiedHistory(t *testing.T) {
	repo := testutil.NewGitTestRepo(t)
	cfg := setupManagedRepo(t, repo)

	ctx := context.Background()
	exec := repo.Executor()

	repo.WriteFile("addition.go", "package addition\n")
	repo.CommitAll("local addition")

	require.NoError(t, orchestrator.Update(ctx, exec, cfg, "", nil))

	require.NoError(t, exec.Checkout(ctx, cfg.Rebased, false))
	repo.Git("commit", "--amend", "-m", "local addition, reworded")

	require.NoError(t, orchestrator.Update(ctx, exec, cfg, "squash update", nil))

	diffText, err := exec.Diff(ctx, cfg.Mainline, cfg.Rebased, true)
	require.NoError(t, err)
	require.Empty(t, diffText)

	require.Equal(t, cfg.Rebased, repo.CurrentBranch())
}

func TestRestoreRebuildsFromPatches(t *testing.T) {
	repo := testutil.NewGitTestRepo(t)
	cfg := setupManagedRepo(t, repo)

	ctx := context.Background()
	exec := repo.Executor()

	repo.WriteFile("addition.go", "package addition\n")
	repo.CommitAll("local addition")
	require.NoError(t, orchestrator.Update(ctx, exec, cfg, "", nil))

	patchesTip, err := exec.RevParse(ctx, cfg.Patches)
	require.NoError(t, err)

	require.NoError(t, exec.Checkout(ctx, cfg.Upstream, false))
	require.NoError(t, exec.DeleteBranch(ctx, cfg.Mainline, true))
	require.NoError(t, exec.DeleteBranch(ctx, cfg.Rebased, true))

	require.NoError(t, orchestrator.Restore(ctx, exec, cfg, patchesTip, false, nil))

	for _, branch := range []string{cfg.Mainline, cfg.Rebased, cfg.Patches} {
		exists, err := exec.BranchExists(ctx, branch)
		require.NoError(t, err)
		require.True(t, exists)
	}

	require.NoError(t, exec.Checkout(ctx, cfg.Rebased, false))
	require.True(t, repo.FileExists("addition.go"))
}

func TestRestoreRebasedOnly(t *testing.T) {
	repo := testutil.NewGitTestRepo(t)
	cfg := setupManagedRepo(t, repo)

	ctx := context.Background()
	exec := repo.Executor()

	repo.WriteFile("addition.go", "package addition\n")
	repo.CommitAll("local addition")
	require.NoError(t, orchestrator.Update(ctx, exec, cfg, "", nil))

	require.NoError(t, exec.Checkout(ctx, cfg.Upstream, false))
	require.NoError(t, exec.DeleteBranch(ctx, cfg.Rebased, true))

	require.NoError(t, orchestrator.Restore(ctx, exec, cfg, "", true, nil))

	exists, err := exec.BranchExists(ctx, cfg.Rebased)
	require.NoError(t, err)
	require.True(t, exists)
}
