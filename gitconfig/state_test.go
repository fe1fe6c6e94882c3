package gitconfig_test

import (
	"context"
	"testing"

	"github.com/roasbeef/gitum/gitconfig"
	"github.com/roasbeef/gitum/testutil"
	"github.com/stretchr/testify/require"
)

func TestStateRoundTrip(t *testing.T) {
	repo := testutil.NewGitTestRepo(t)
	repo.WriteFile("a.go", "package a\n")
	repo.CommitAll("initial")

	exec := repo.Executor()
	ctx := context.Background()
	cfg := gitconfig.Default()

	_, ok, err := gitconfig.LoadState(ctx, exec, cfg)
	require.NoError(t, err)
	require.False(t, ok)

	state := gitconfig.OpState{
		Branches: map[string]string{
			cfg.Upstream: "aaa",
			cfg.Rebased:  "bbb",
			cfg.Mainline: "ccc",
			cfg.Patches:  "ddd",
			"prev_head":  "eee",
		},
		Stage:     gitconfig.StageRebase,
		Total:     3,
		Consumed:  1,
		Remaining: []string{"commit1", "commit2"},
	}

	require.NoError(t, gitconfig.SaveState(ctx, exec, cfg, state))

	loaded, ok, err := gitconfig.LoadState(ctx, exec, cfg)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, state.Stage, loaded.Stage)
	require.Equal(t, state.Total, loaded.Total)
	require.Equal(t, state.Consumed, loaded.Consumed)
	require.Equal(t, state.Remaining, loaded.Remaining)
	require.Equal(t, state.Branches, loaded.Branches)

	require.NoError(t, gitconfig.DiscardState(ctx, exec))

	_, ok, err = gitconfig.LoadState(ctx, exec, cfg)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDiscardStateWhenAbsent(t *testing.T) {
	repo := testutil.NewGitTestRepo(t)
	repo.WriteFile("a.go", "package a\n")
	repo.CommitAll("initial")

	exec := repo.Executor()
	ctx := context.Background()

	require.NoError(t, gitconfig.DiscardState(ctx, exec))
}

func TestRemoteTrackingRoundTrip(t *testing.T) {
	repo := testutil.NewGitTestRepo(t)
	repo.WriteFile("a.go", "package a\n")
	repo.CommitAll("initial")

	exec := repo.Executor()
	ctx := context.Background()

	_, ok, err := gitconfig.LoadRemoteTracking(ctx, exec)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, gitconfig.SaveRemoteTracking(ctx, exec, "origin"))

	remote, ok, err := gitconfig.LoadRemoteTracking(ctx, exec)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "origin", remote)
}

func TestMergeBranchRoundTrip(t *testing.T) {
	repo := testutil.NewGitTestRepo(t)
	repo.WriteFile("a.go", "package a\n")
	repo.CommitAll("initial")

	exec := repo.Executor()
	ctx := context.Background()

	require.NoError(t, gitconfig.SaveMergeBranch(ctx, exec, "origin/main"))

	branch, ok, err := gitconfig.LoadMergeBranch(ctx, exec)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "origin/main", branch)
}

func TestCurrentRebasedAndMainlineRoundTrip(t *testing.T) {
	repo := testutil.NewGitTestRepo(t)
	repo.WriteFile("a.go", "package a\n")
	repo.CommitAll("initial")
	head := repo.Head()

	exec := repo.Executor()
	ctx := context.Background()

	require.NoError(t, gitconfig.SaveCurrentRebased(ctx, exec, head))
	require.NoError(t, gitconfig.SaveCurrentMainline(ctx, exec, head))

	rebased, ok, err := gitconfig.LoadCurrentRebased(ctx, exec)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, head, rebased)

	mainline, ok, err := gitconfig.LoadCurrentMainline(ctx, exec)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, head, mainline)
}
