package series_test

import (
	"context"
	"testing"

	"github.com/roasbeef/gitum/gitumerr"
	"github.com/roasbeef/gitum/series"
	"github.com/roasbeef/gitum/testutil"
	"github.com/stretchr/testify/require"
)

// setupBranches lays down the upstream/mainline/rebased trio used by every
// series test, with upstream's initial commit as their shared root.
func setupBranches(t *testing.T, repo *testutil.GitTestRepo) series.Branches {
	repo.WriteFile("base.go", "package base\n")
	repo.CommitAll("initial")
	repo.Git("branch", "-m", "upstream")

	ctx := context.Background()
	exec := repo.Executor()

	require.NoError(t, exec.CreateBranch(ctx, "mainline", ""))
	require.NoError(t, exec.CreateBranch(ctx, "rebased", ""))

	return series.Branches{
		Upstream: "upstream",
		Rebased:  "rebased",
		Mainline: "mainline",
		Patches:  "patches",
	}
}

func TestGenesis(t *testing.T) {
	repo := testutil.NewGitTestRepo(t)
	b := setupBranches(t, repo)

	ctx := context.Background()
	exec := repo.Executor()

	require.NoError(t, series.Genesis(ctx, exec, b))

	exists, err := exec.BranchExists(ctx, b.Patches)
	require.NoError(t, err)
	require.True(t, exists)

	marker, err := exec.Show(ctx, b.Patches+":"+series.UpstreamCommitFile)
	require.NoError(t, err)

	upstreamSHA, err := exec.RevParse(ctx, b.Upstream)
	require.NoError(t, err)
	require.Equal(t, upstreamSHA, string(marker))
}

func TestSaveWithoutCodeChanges(t *testing.T) {
	repo := testutil.NewGitTestRepo(t)
	b := setupBranches(t, repo)

	ctx := context.Background()
	exec := repo.Executor()

	require.NoError(t, series.Genesis(ctx, exec, b))

	require.NoError(t, series.Save(ctx, exec, b, "", "", nil, ""))

	commits, err := exec.IterCommits(ctx, b.Patches)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	require.Contains(t, commits[1].Subject, "branch updated without code changes")
}

func TestSaveRejectsDivergentTrees(t *testing.T) {
	repo := testutil.NewGitTestRepo(t)
	b := setupBranches(t, repo)

	ctx := context.Background()
	exec := repo.Executor()

	require.NoError(t, series.Genesis(ctx, exec, b))

	repo.Checkout("rebased")
	repo.WriteFile("only-on-rebased.go", "package feature\n")
	repo.CommitAll("feature commit")

	err := series.Save(ctx, exec, b, "", "", nil, "")
	require.Error(t, err)
	require.True(t, gitumerr.Is(err, gitumerr.NotUptodate))
}

func TestSaveAndReadRoundTrip(t *testing.T) {
	repo := testutil.NewGitTestRepo(t)
	b := setupBranches(t, repo)

	ctx := context.Background()
	exec := repo.Executor()

	require.NoError(t, series.Genesis(ctx, exec, b))

	repo.Checkout("rebased")
	repo.WriteFile("feature.go", "package feature\n")
	repo.CommitAll("add feature")
	featureHead := repo.Head()

	repo.Checkout("mainline")
	repo.Git("cherry-pick", featureHead)
	mainlineHead := repo.Head()

	require.NoError(t, series.Save(ctx, exec, b, mainlineHead, "", nil, ""))

	snapshot, err := exec.RevParse(ctx, b.Patches)
	require.NoError(t, err)

	reconstructed := series.Branches{
		Upstream: b.Upstream,
		Mainline: b.Mainline,
		Patches:  b.Patches,
		Rebased:  "rebased-restored",
	}

	require.NoError(t, series.Read(ctx, exec, reconstructed, snapshot))

	require.NoError(t, exec.Checkout(ctx, "rebased-restored", false))
	diffText, err := exec.Diff(ctx, "rebased", "rebased-restored", false)
	require.NoError(t, err)
	require.Empty(t, diffText)
}

func TestReadDefaultsToPatchesBranch(t *testing.T) {
	repo := testutil.NewGitTestRepo(t)
	b := setupBranches(t, repo)

	ctx := context.Background()
	exec := repo.Executor()

	require.NoError(t, series.Genesis(ctx, exec, b))

	// Deleting rebased and reading with an empty commit should rebuild it
	// from the patches branch's current tip.
	require.NoError(t, exec.DeleteBranch(ctx, "rebased", true))

	require.NoError(t, series.Read(ctx, exec, b, ""))

	exists, err := exec.BranchExists(ctx, "rebased")
	require.NoError(t, err)
	require.True(t, exists)
}
