// Package patch applies the result diff between the rebased and mainline
// branches onto mainline's working tree during the COMMIT stage, turning
// a PatchFailed error into a suspended, resumable operation.
package patch

import (
	"context"

	"github.com/roasbeef/gitum/git"
	"github.com/roasbeef/gitum/gitumerr"
)

// Apply applies diffText to the current working tree; the index is left
// untouched, so callers stage the result themselves. On
// failure it returns a gitumerr.Error with category PatchFailed,
// persisted so callers can checkpoint state before surfacing it.
func Apply(ctx context.Context, exec git.Executor, diffText string) error {
	if diffText == "" {
		return nil
	}

	if err := exec.Apply(ctx, diffText); err != nil {
		return gitumerr.Wrap(
			gitumerr.PatchFailed, true, err,
			"failed to apply result diff to working tree",
		)
	}

	return nil
}
