package gitconfig

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/roasbeef/gitum/git"
)

// Stage identifies where in the MERGE -> REBASE -> COMMIT pipeline a
// suspended operation stopped.
type Stage int

const (
	StageStart Stage = iota
	StageMerge
	StageRebase
	StageCommit
)

// OpState is the resumable checkpoint for an in-progress merge or pull.
// It is serialized to .git/.gitum-state and removed once the operation
// either completes or is aborted.
type OpState struct {
	// Branches snapshots the tip SHA of each work branch (upstream,
	// rebased, mainline, patches) at the start of the operation, plus
	// "prev_head" for the rebased branch's position before the current
	// commit's replay began.
	Branches map[string]string

	Stage Stage

	// Total is the number of upstream commits queued for this run.
	Total int

	// Consumed is how many of Total have already been folded in.
	Consumed int

	// Remaining holds the SHAs of upstream commits not yet processed,
	// oldest first.
	Remaining []string
}

const (
	stateFileName  = ".gitum-state"
	remoteFileName = ".gitum-remote"
	mbranchFile    = ".gitum-mbranch"
	currentRebased = ".gitum-current-rebased"
	currentMain    = ".gitum-current-mainline"
)

func gitPath(ctx context.Context, exec git.Executor, name string) (string, error) {
	dir, err := exec.GitDir(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving git dir: %w", err)
	}

	return filepath.Join(dir, name), nil
}

// SaveState writes state's checkpoint to disk, keyed by the branch names
// in branches (upstream, rebased, mainline, patches order).
func SaveState(
	ctx context.Context, exec git.Executor, cfg Config, state OpState,
) error {

	path, err := gitPath(ctx, exec, stateFileName)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintln(&b, state.Branches[cfg.Upstream])
	fmt.Fprintln(&b, state.Branches[cfg.Rebased])
	fmt.Fprintln(&b, state.Branches[cfg.Mainline])
	fmt.Fprintln(&b, state.Branches[cfg.Patches])
	fmt.Fprintln(&b, state.Branches["prev_head"])
	fmt.Fprintln(&b, int(state.Stage))
	fmt.Fprintln(&b, state.Total)
	fmt.Fprintln(&b, state.Consumed)
	for _, sha := range state.Remaining {
		fmt.Fprintln(&b, sha)
	}

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// LoadState reads back a previously-saved OpState. If no state file
// exists, ok is false.
func LoadState(
	ctx context.Context, exec git.Executor, cfg Config,
) (state OpState, ok bool, err error) {

	path, err := gitPath(ctx, exec, stateFileName)
	if err != nil {
		return OpState{}, false, err
	}

	raw, readErr := os.ReadFile(path)
	if readErr != nil {
		return OpState{}, false, nil
	}

	var lines []string
	for _, line := range strings.Split(string(raw), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, strings.TrimSpace(line))
		}
	}

	if len(lines) < 8 {
		return OpState{}, false, nil
	}

	stageNum, err := strconv.Atoi(lines[5])
	if err != nil {
		return OpState{}, false, fmt.Errorf("corrupt state stage: %w", err)
	}

	total, err := strconv.Atoi(lines[6])
	if err != nil {
		return OpState{}, false, fmt.Errorf("corrupt state total: %w", err)
	}

	consumed, err := strconv.Atoi(lines[7])
	if err != nil {
		return OpState{}, false, fmt.Errorf("corrupt state consumed: %w", err)
	}

	state = OpState{
		Branches: map[string]string{
			cfg.Upstream:  lines[0],
			cfg.Rebased:   lines[1],
			cfg.Mainline:  lines[2],
			cfg.Patches:   lines[3],
			"prev_head":   lines[4],
		},
		Stage:    Stage(stageNum),
		Total:    total,
		Consumed: consumed,
	}

	state.Remaining = append(state.Remaining, lines[8:]...)

	return state, true, nil
}

// DiscardState removes the on-disk checkpoint, if any.
func DiscardState(ctx context.Context, exec git.Executor) error {
	path, err := gitPath(ctx, exec, stateFileName)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

// SaveRemoteTracking persists the default push/pull remote name.
func SaveRemoteTracking(ctx context.Context, exec git.Executor, remote string) error {
	return saveParam(ctx, exec, remoteFileName, remote)
}

// LoadRemoteTracking reads back the default remote name, if saved.
func LoadRemoteTracking(ctx context.Context, exec git.Executor) (string, bool, error) {
	return loadParam(ctx, exec, remoteFileName)
}

// SaveMergeBranch persists the default branch `gitum merge` folds from.
func SaveMergeBranch(ctx context.Context, exec git.Executor, branch string) error {
	return saveParam(ctx, exec, mbranchFile, branch)
}

// LoadMergeBranch reads back the default merge branch, if saved.
func LoadMergeBranch(ctx context.Context, exec git.Executor) (string, bool, error) {
	return loadParam(ctx, exec, mbranchFile)
}

// SaveCurrentRebased records the rebased branch's SHA after an operation
// leaves the working tree checked out to it, so the next invocation can
// detect unexpected manual changes.
func SaveCurrentRebased(
	ctx context.Context, exec git.Executor, rebasedSHA string,
) error {

	return saveParam(ctx, exec, currentRebased, rebasedSHA)
}

// LoadCurrentRebased reads back the last-known rebased SHA.
func LoadCurrentRebased(ctx context.Context, exec git.Executor) (string, bool, error) {
	return loadParam(ctx, exec, currentRebased)
}

// SaveCurrentMainline records the mainline branch's SHA for drift checks.
func SaveCurrentMainline(
	ctx context.Context, exec git.Executor, mainlineSHA string,
) error {

	return saveParam(ctx, exec, currentMain, mainlineSHA)
}

// LoadCurrentMainline reads back the last-known mainline SHA.
func LoadCurrentMainline(ctx context.Context, exec git.Executor) (string, bool, error) {
	return loadParam(ctx, exec, currentMain)
}

func saveParam(
	ctx context.Context, exec git.Executor, name, value string,
) error {

	path, err := gitPath(ctx, exec, name)
	if err != nil {
		return err
	}

	return os.WriteFile(path, []byte(value+"\n"), 0o644)
}

func loadParam(
	ctx context.Context, exec git.Executor, name string,
) (string, bool, error) {

	path, err := gitPath(ctx, exec, name)
	if err != nil {
		return "", false, err
	}

	raw, readErr := os.ReadFile(path)
	if readErr != nil {
		return "", false, nil
	}

	line := strings.TrimSpace(strings.SplitN(string(raw), "\n", 2)[0])

	return line, true, nil
}
