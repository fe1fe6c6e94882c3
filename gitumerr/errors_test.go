package gitumerr_test

import (
	"errors"
	"testing"

	"github.com/roasbeef/gitum/gitumerr"
	"github.com/stretchr/testify/require"
)

func TestNewNonSuspendable(t *testing.T) {
	err := gitumerr.New(gitumerr.RepoIsDirty, false, "working tree has changes")
	require.Equal(t, gitumerr.RepoIsDirty, err.Category)
	require.False(t, err.Persisted)
	require.Contains(t, err.Error(), "RepoIsDirty")
}

func TestNewSuspendablePanicsWithoutPersist(t *testing.T) {
	require.Panics(t, func() {
		gitumerr.New(gitumerr.RebaseFailed, false, "conflict")
	})
}

func TestNewSuspendableOK(t *testing.T) {
	err := gitumerr.New(gitumerr.RebaseFailed, true, "conflict in %s", "file.go")
	require.True(t, err.Persisted)
	require.Equal(t, "conflict in file.go", err.Message)
}

func TestWrapUnwrap(t *testing.T) {
	root := errors.New("exit status 1")
	err := gitumerr.Wrap(gitumerr.PatchFailed, true, root, "apply failed")

	require.ErrorIs(t, err, root)
	require.True(t, gitumerr.Is(err, gitumerr.PatchFailed))
	require.False(t, gitumerr.Is(err, gitumerr.BrokenRepo))
}

func TestIsSuspendable(t *testing.T) {
	require.True(t, gitumerr.IsSuspendable(gitumerr.RebaseFailed))
	require.True(t, gitumerr.IsSuspendable(gitumerr.CherryPickFailed))
	require.False(t, gitumerr.IsSuspendable(gitumerr.NoStateFile))
}
