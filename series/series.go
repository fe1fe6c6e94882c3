// Package series implements the patch-series branch: the append-only
// history of format-patch snapshots that mirrors the rebased branch and
// lets gitum reconstruct it later from nothing but the patches branch.
package series

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roasbeef/gitum/git"
	"github.com/roasbeef/gitum/gitconfig"
	"github.com/roasbeef/gitum/gitumerr"
)

const (
	// UpstreamCommitFile records the upstream branch tip a patches-branch
	// commit was generated against.
	UpstreamCommitFile = "_upstream_commit_"

	// LastPatchFile holds the mainline commit's patch, empty when that
	// commit changed nothing relative to rebased.
	LastPatchFile = "_current_patch_"

	// genesisMessage marks the root commit of a patches branch.
	genesisMessage = "gitum-patches: begin"
)

// Branches names the four work branches a Save/Read call operates on.
type Branches struct {
	Upstream string
	Rebased  string
	Mainline string
	Patches  string
}

// FromConfig builds a Branches from a loaded Config.
func FromConfig(cfg gitconfig.Config) Branches {
	return Branches{
		Upstream: cfg.Upstream,
		Rebased:  cfg.Rebased,
		Mainline: cfg.Mainline,
		Patches:  cfg.Patches,
	}
}

// Genesis creates the initial patches branch: a single commit recording
// the upstream branch's starting tip, with no parent.
func Genesis(
	ctx context.Context, exec git.Executor, b Branches,
) error {

	upstreamSHA, err := exec.RevParse(ctx, b.Upstream)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", b.Upstream, err)
	}

	tree, err := exec.HashObjectAndTree(
		ctx, map[string][]byte{UpstreamCommitFile: []byte(upstreamSHA)},
	)
	if err != nil {
		return fmt.Errorf("building patches tree: %w", err)
	}

	commit, err := exec.CommitTree(ctx, tree, genesisMessage)
	if err != nil {
		return fmt.Errorf("committing patches genesis: %w", err)
	}

	return exec.CreateBranch(ctx, b.Patches, commit)
}

// Author is re-exported for callers building a Save call.
type Author = git.Author

// Save records the current state of rebased (relative to upstream) and,
// if mainlineCommit is non-empty, the corresponding mainline commit, as a
// new commit on the patches branch. It is the Go counterpart of the
// reference implementation's repo-state snapshot: every patches-branch
// commit is a full, self-contained series plus the single last-applied
// patch, never a delta against the previous snapshot.
func Save(
	ctx context.Context, exec git.Executor, b Branches,
	mainlineCommit, message string, author *Author, curRebased string,
) error {

	rebased := b.Rebased
	if curRebased != "" {
		rebased = curRebased
	}

	mainlineRef := b.Mainline
	if mainlineCommit != "" {
		mainlineRef = mainlineCommit
	}

	diff, err := exec.Diff(ctx, rebased, mainlineRef, false)
	if err != nil {
		return fmt.Errorf("diffing %s..%s: %w", rebased, mainlineRef, err)
	}
	if strings.TrimSpace(diff) != "" {
		return gitumerr.New(
			gitumerr.NotUptodate, true,
			"%s and %s work trees are not equal - can't save state",
			rebased, mainlineRef,
		)
	}

	tmpDir, err := os.MkdirTemp("", "gitum-series-*")
	if err != nil {
		return fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	seriesDir := filepath.Join(tmpDir, "series")
	if err := os.Mkdir(seriesDir, 0o755); err != nil {
		return err
	}

	seriesPatches, err := exec.FormatPatch(
		ctx, b.Upstream+".."+rebased, seriesDir,
	)
	if err != nil {
		return fmt.Errorf("generating series patches: %w", err)
	}

	var lastPatch []byte
	if mainlineCommit != "" {
		lastDir := filepath.Join(tmpDir, "last")
		if err := os.Mkdir(lastDir, 0o755); err != nil {
			return err
		}

		lastPaths, err := exec.FormatPatch(
			ctx, mainlineCommit+"^.."+mainlineCommit, lastDir,
		)
		if err != nil {
			return fmt.Errorf("generating last-commit patch: %w", err)
		}
		if len(lastPaths) > 0 {
			lastPatch, err = os.ReadFile(lastPaths[0])
			if err != nil {
				return err
			}
		}
	}

	files := make(map[string][]byte, len(seriesPatches)+2)
	for _, p := range seriesPatches {
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}

		files[filepath.Base(p)] = content
	}
	files[LastPatchFile] = lastPatch

	upstreamSHA, err := exec.RevParse(ctx, b.Upstream)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", b.Upstream, err)
	}
	files[UpstreamCommitFile] = []byte(upstreamSHA)

	tree, err := exec.HashObjectAndTree(ctx, files)
	if err != nil {
		return fmt.Errorf("building series tree: %w", err)
	}

	mess := message
	if mess == "" && mainlineCommit != "" {
		commits, err := exec.IterCommits(ctx, mainlineCommit+"~1.."+mainlineCommit)
		if err == nil && len(commits) > 0 {
			mess = commits[len(commits)-1].Subject
		}
	}
	if mess == "" {
		mess = fmt.Sprintf("%s branch updated without code changes", b.Rebased)
	}

	patchesTip, err := exec.RevParse(ctx, b.Patches)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", b.Patches, err)
	}

	newCommit, err := exec.CommitTree(ctx, tree, mess, patchesTip)
	if err != nil {
		return fmt.Errorf("committing series snapshot: %w", err)
	}

	if err := exec.Checkout(ctx, b.Patches, true); err != nil {
		return fmt.Errorf("checking out %s: %w", b.Patches, err)
	}

	if err := exec.ResetHard(ctx, newCommit); err != nil {
		return fmt.Errorf("updating %s to %s: %w", b.Patches, newCommit, err)
	}

	return nil
}

// Read reconstructs the rebased branch from a patches-branch commit: it
// replays every NNNN-*.patch file found at that commit onto the upstream
// tip recorded in UpstreamCommitFile.
func Read(
	ctx context.Context, exec git.Executor, b Branches, commit string,
) error {

	if commit == "" {
		commit = b.Patches
	}

	upstreamRaw, err := exec.Show(ctx, commit+":"+UpstreamCommitFile)
	if err != nil {
		return gitumerr.Wrap(
			gitumerr.BrokenRepo, false, err,
			"reading upstream marker at %s", commit,
		)
	}
	upstreamSHA := strings.TrimSpace(string(upstreamRaw))

	patchNames, err := listPatchFiles(ctx, exec, commit)
	if err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "gitum-rebased-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	var patchPaths []string
	for _, name := range patchNames {
		content, err := exec.Show(ctx, commit+":"+name)
		if err != nil {
			return fmt.Errorf("reading %s at %s: %w", name, commit, err)
		}

		path := filepath.Join(tmpDir, name)
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return err
		}

		patchPaths = append(patchPaths, path)
	}
	sort.Strings(patchPaths)

	// Detach HEAD first so rebased can be deleted even when it is the
	// checked-out branch.
	if err := exec.Checkout(ctx, upstreamSHA, true); err != nil {
		return err
	}

	exists, err := exec.BranchExists(ctx, b.Rebased)
	if err != nil {
		return err
	}
	if exists {
		if err := exec.DeleteBranch(ctx, b.Rebased, true); err != nil {
			return err
		}
	}

	if err := exec.CreateBranch(ctx, b.Rebased, upstreamSHA); err != nil {
		return err
	}
	if err := exec.Checkout(ctx, b.Rebased, true); err != nil {
		return err
	}

	for _, path := range patchPaths {
		if err := exec.Am(ctx, path, git.AmPlain); err != nil {
			return gitumerr.Wrap(
				gitumerr.BrokenRepo, false, err,
				"replaying %s while rebuilding %s", filepath.Base(path),
				b.Rebased,
			)
		}
	}

	return nil
}

// listPatchFiles lists the NNNN-*.patch entries present in commit's tree,
// sorted lexically (which is chronological, since format-patch zero-pads
// the sequence number).
func listPatchFiles(
	ctx context.Context, exec git.Executor, commit string,
) ([]string, error) {

	paths, err := exec.ListTree(ctx, commit)
	if err != nil {
		return nil, fmt.Errorf("listing tree at %s: %w", commit, err)
	}

	var patches []string
	for _, p := range paths {
		if strings.HasSuffix(p, ".patch") {
			patches = append(patches, p)
		}
	}
	sort.Strings(patches)

	return patches, nil
}
