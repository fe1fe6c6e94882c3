// Package git provides an abstraction layer for git operations.
// This enables testing without actual git repositories.
package git

import (
	"context"
	"time"
)

// Author identifies the author/committer of a commit.
type Author struct {
	Name  string
	Email string
}

// AmMode selects the conflict-resolution strategy for Am.
type AmMode int

const (
	// AmPlain applies the patch, failing outright on conflicts.
	AmPlain AmMode = iota

	// AmThreeWay applies the patch with a three-way merge fallback
	// (git am -3), the mode gitum uses for all patch replay.
	AmThreeWay
)

// AmAction selects how an in-progress `git am` session should be resumed.
type AmAction int

const (
	// AmResolved continues after the operator staged conflict resolutions.
	AmResolved AmAction = iota

	// AmSkip drops the current patch and continues with the next one.
	AmSkip

	// AmAbort restores the tree to its pre-am state.
	AmAbort
)

// Executor abstracts every git operation gitum's engines perform. It exists
// so the merge/pull state machines can be driven against a fake in tests
// without ever shelling out to a real git binary.
type Executor interface {
	// IsDirty reports whether the working tree has uncommitted changes.
	IsDirty(ctx context.Context) (bool, error)

	// Fetch retrieves refs from remote.
	Fetch(ctx context.Context, remote string) error

	// Checkout switches to ref. If force is true, local modifications are
	// discarded (`checkout -f`).
	Checkout(ctx context.Context, ref string, force bool) error

	// CreateBranch creates branch at startPoint (HEAD if empty).
	CreateBranch(ctx context.Context, branch, startPoint string) error

	// DeleteBranch removes branch. If force is true uses -D, else -d.
	DeleteBranch(ctx context.Context, branch string, force bool) error

	// BranchExists reports whether branch is a known local branch.
	BranchExists(ctx context.Context, branch string) (bool, error)

	// ResetHard resets the current branch to ref, discarding the tree.
	ResetHard(ctx context.Context, ref string) error

	// Merge merges ref into the current branch.
	Merge(ctx context.Context, ref string) error

	// Rebase replays the current branch's commits onto upstream.
	Rebase(ctx context.Context, upstream string) error

	// RebaseContinue continues an in-progress rebase.
	RebaseContinue(ctx context.Context) error

	// RebaseAbort aborts an in-progress rebase.
	RebaseAbort(ctx context.Context) error

	// RebaseSkip skips the current commit during rebase.
	RebaseSkip(ctx context.Context) error

	// Am applies the patch file at patchPath to the current branch.
	Am(ctx context.Context, patchPath string, mode AmMode) error

	// AmContinue resumes an in-progress `git am` session per action.
	AmContinue(ctx context.Context, action AmAction) error

	// CherryPick replays ref's changes onto the current branch.
	CherryPick(ctx context.Context, ref string) error

	// Apply applies a raw unified diff to the working tree (`git apply`),
	// without staging it in the index or creating a commit.
	Apply(ctx context.Context, diffText string) error

	// FormatPatch writes one patch file per commit in rangeSpec into
	// outDir and returns their paths, sorted.
	FormatPatch(ctx context.Context, rangeSpec, outDir string) ([]string, error)

	// Show returns the contents of objectSpec (e.g. "ref:path").
	Show(ctx context.Context, objectSpec string) ([]byte, error)

	// ListTree lists every path tracked at ref.
	ListTree(ctx context.Context, ref string) ([]string, error)

	// Add stages paths (or everything, if paths is empty).
	Add(ctx context.Context, paths ...string) error

	// RemoveGlob removes files matching pattern from the index and
	// working tree, ignoring unmatched globs.
	RemoveGlob(ctx context.Context, pattern string) error

	// CleanWorkingTree removes untracked files and directories.
	CleanWorkingTree(ctx context.Context) error

	// Commit records a commit with message, optionally overriding the
	// author/committer identity.
	Commit(ctx context.Context, message string, author *Author) error

	// Diff returns the unified diff between a and b. If fullIndex is
	// true, includes full blob SHAs (`--full-index`), needed to replay
	// a diff with `git apply` against a differently-initialized index.
	Diff(ctx context.Context, a, b string, fullIndex bool) (string, error)

	// IterCommits lists commits in rangeSpec, oldest first.
	IterCommits(ctx context.Context, rangeSpec string) ([]CommitInfo, error)

	// MergeBase returns the best common ancestor of a and b.
	MergeBase(ctx context.Context, a, b string) (string, error)

	// RemoteAdd registers a remote named name pointing at url.
	RemoteAdd(ctx context.Context, name, url string) error

	// Push pushes branch to remote.
	Push(ctx context.Context, remote, branch string) error

	// HashObjectAndTree writes each entry in files (path -> content) as a
	// blob, assembles a tree from them, and returns the tree SHA. Used to
	// build commits without a working-tree checkout.
	HashObjectAndTree(ctx context.Context, files map[string][]byte) (string, error)

	// CommitTree creates a commit object with the given tree and parents,
	// without touching the working tree or index, and returns its SHA.
	CommitTree(
		ctx context.Context, tree, message string, parents ...string,
	) (string, error)

	// RevParse resolves ref to a full SHA.
	RevParse(ctx context.Context, ref string) (string, error)

	// GitDir returns the repository's .git directory, resolving the
	// worktree-file indirection when the repo is a linked worktree.
	GitDir(ctx context.Context) (string, error)

	// RepoRoot returns the repository's working-tree root.
	RepoRoot(ctx context.Context) (string, error)
}

// CommitInfo contains metadata about a commit.
type CommitInfo struct {
	// Hash is the full commit hash.
	Hash string

	// ShortHash is the abbreviated commit hash (7 characters).
	ShortHash string

	// Subject is the first line of the commit message.
	Subject string

	// Author is the commit author in "Name <email>" format.
	Author string

	// Date is when the commit was authored.
	Date time.Time
}
