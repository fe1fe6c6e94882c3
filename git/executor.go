package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ShellExecutor implements Executor by shelling out to git.
type ShellExecutor struct {
	// WorkDir is the working directory for git commands.
	// If empty, uses current directory.
	WorkDir string
}

// NewShellExecutor creates a new ShellExecutor.
func NewShellExecutor(workDir string) *ShellExecutor {
	return &ShellExecutor{WorkDir: workDir}
}

// run executes a git command and returns stdout.
func (e *ShellExecutor) run(
	ctx context.Context, args ...string,
) (string, error) {

	return e.runStdin(ctx, nil, args...)
}

// runStdin executes a git command with stdin attached and returns stdout.
func (e *ShellExecutor) runStdin(
	ctx context.Context, stdin *bytes.Reader, args ...string,
) (string, error) {

	cmd := exec.CommandContext(ctx, "git", args...)
	if e.WorkDir != "" {
		cmd.Dir = e.WorkDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = stdin
	}

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf(
			"git %s failed: %w: %s",
			strings.Join(args, " "), err, stderr.String(),
		)
	}

	return stdout.String(), nil
}

// IsDirty reports whether the working tree has uncommitted changes.
func (e *ShellExecutor) IsDirty(ctx context.Context) (bool, error) {
	out, err := e.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}

	return strings.TrimSpace(out) != "", nil
}

// Fetch retrieves refs from remote.
func (e *ShellExecutor) Fetch(ctx context.Context, remote string) error {
	_, err := e.run(ctx, "fetch", remote)

	return err
}

// Checkout switches to ref, optionally discarding local modifications.
func (e *ShellExecutor) Checkout(
	ctx context.Context, ref string, force bool,
) error {

	args := []string{"checkout"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, ref)

	_, err := e.run(ctx, args...)

	return err
}

// CreateBranch creates branch at startPoint (HEAD if empty).
func (e *ShellExecutor) CreateBranch(
	ctx context.Context, branch, startPoint string,
) error {

	args := []string{"branch", branch}
	if startPoint != "" {
		args = append(args, startPoint)
	}

	_, err := e.run(ctx, args...)

	return err
}

// DeleteBranch removes branch, forcibly if requested.
func (e *ShellExecutor) DeleteBranch(
	ctx context.Context, branch string, force bool,
) error {

	flag := "-d"
	if force {
		flag = "-D"
	}

	_, err := e.run(ctx, "branch", flag, branch)

	return err
}

// BranchExists reports whether branch is a known local branch.
func (e *ShellExecutor) BranchExists(
	ctx context.Context, branch string,
) (bool, error) {

	_, err := e.run(
		ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+branch,
	)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// ResetHard resets the current branch to ref, discarding the tree.
func (e *ShellExecutor) ResetHard(ctx context.Context, ref string) error {
	_, err := e.run(ctx, "reset", "--hard", ref)

	return err
}

// Merge merges ref into the current branch.
func (e *ShellExecutor) Merge(ctx context.Context, ref string) error {
	_, err := e.run(ctx, "merge", ref)

	return err
}

// Rebase replays the current branch's commits onto upstream.
func (e *ShellExecutor) Rebase(ctx context.Context, upstream string) error {
	_, err := e.run(ctx, "rebase", upstream)

	return err
}

// RebaseContinue continues an in-progress rebase.
func (e *ShellExecutor) RebaseContinue(ctx context.Context) error {
	_, err := e.run(ctx, "rebase", "--continue")

	return err
}

// RebaseAbort aborts an in-progress rebase.
func (e *ShellExecutor) RebaseAbort(ctx context.Context) error {
	_, err := e.run(ctx, "rebase", "--abort")

	return err
}

// RebaseSkip skips the current commit during rebase.
func (e *ShellExecutor) RebaseSkip(ctx context.Context) error {
	_, err := e.run(ctx, "rebase", "--skip")

	return err
}

// Am applies the patch file at patchPath to the current branch.
func (e *ShellExecutor) Am(
	ctx context.Context, patchPath string, mode AmMode,
) error {

	args := []string{"am"}
	if mode == AmThreeWay {
		args = append(args, "-3")
	}
	args = append(args, patchPath)

	_, err := e.run(ctx, args...)

	return err
}

// AmContinue resumes an in-progress `git am` session per action.
func (e *ShellExecutor) AmContinue(ctx context.Context, action AmAction) error {
	var flag string

	switch action {
	case AmResolved:
		flag = "--resolved"
	case AmSkip:
		flag = "--skip"
	case AmAbort:
		flag = "--abort"
	default:
		return fmt.Errorf("unknown am action %v", action)
	}

	_, err := e.run(ctx, "am", flag)

	return err
}

// CherryPick replays ref's changes onto the current branch.
func (e *ShellExecutor) CherryPick(ctx context.Context, ref string) error {
	_, err := e.run(ctx, "cherry-pick", ref)

	return err
}

// Apply applies a raw unified diff to the working tree; the index is not
// updated.
func (e *ShellExecutor) Apply(ctx context.Context, diffText string) error {
	cmd := exec.CommandContext(ctx, "git", "apply", "-")
	if e.WorkDir != "" {
		cmd.Dir = e.WorkDir
	}
	cmd.Stdin = strings.NewReader(diffText)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git apply failed: %w: %s", err, stderr.String())
	}

	return nil
}

// FormatPatch writes one patch file per commit in rangeSpec into outDir.
func (e *ShellExecutor) FormatPatch(
	ctx context.Context, rangeSpec, outDir string,
) ([]string, error) {

	_, err := e.run(ctx, "format-patch", "-o", outDir, rangeSpec)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("reading format-patch output: %w", err)
	}

	var paths []string
	for _, ent := range entries {
		if strings.HasSuffix(ent.Name(), ".patch") {
			paths = append(paths, filepath.Join(outDir, ent.Name()))
		}
	}

	sort.Strings(paths)

	return paths, nil
}

// Show returns the contents of objectSpec (e.g. "ref:path").
func (e *ShellExecutor) Show(
	ctx context.Context, objectSpec string,
) ([]byte, error) {

	out, err := e.run(ctx, "show", objectSpec)
	if err != nil {
		return nil, err
	}

	return []byte(out), nil
}

// ListTree lists every path tracked at ref.
func (e *ShellExecutor) ListTree(ctx context.Context, ref string) ([]string, error) {
	out, err := e.run(ctx, "ls-tree", "--name-only", "-r", ref)
	if err != nil {
		return nil, err
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}

	return strings.Split(out, "\n"), nil
}

// Add stages paths (or everything, if paths is empty).
func (e *ShellExecutor) Add(ctx context.Context, paths ...string) error {
	args := []string{"add"}
	if len(paths) == 0 {
		args = append(args, "-A")
	} else {
		args = append(args, paths...)
	}

	_, err := e.run(ctx, args...)

	return err
}

// RemoveGlob removes files matching pattern, ignoring unmatched globs.
func (e *ShellExecutor) RemoveGlob(ctx context.Context, pattern string) error {
	_, err := e.run(ctx, "rm", "--ignore-unmatch", "-r", "-f", pattern)

	return err
}

// CleanWorkingTree removes untracked files and directories.
func (e *ShellExecutor) CleanWorkingTree(ctx context.Context) error {
	_, err := e.run(ctx, "clean", "-d", "-f")

	return err
}

// Commit records a commit, optionally overriding the author identity.
func (e *ShellExecutor) Commit(
	ctx context.Context, message string, author *Author,
) error {

	args := []string{"commit", "-m", message}
	if author != nil {
		args = append(
			args, fmt.Sprintf("--author=%s <%s>", author.Name, author.Email),
		)
	}

	_, err := e.run(ctx, args...)

	return err
}

// Diff returns the unified diff between a and b.
func (e *ShellExecutor) Diff(
	ctx context.Context, a, b string, fullIndex bool,
) (string, error) {

	args := []string{"diff"}
	if fullIndex {
		args = append(args, "--full-index")
	}
	args = append(args, a, b)

	return e.run(ctx, args...)
}

// IterCommits lists commits in rangeSpec, oldest first.
func (e *ShellExecutor) IterCommits(
	ctx context.Context, rangeSpec string,
) ([]CommitInfo, error) {

	format := "%H|%h|%s|%an <%ae>|%aI"
	out, err := e.run(
		ctx, "log", "--format="+format, "--reverse", rangeSpec,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits: %w", err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}

	var commits []CommitInfo

	for _, line := range strings.Split(out, "\n") {
		parts := strings.SplitN(line, "|", 5)
		if len(parts) < 5 {
			continue
		}

		date, _ := time.Parse(time.RFC3339, parts[4])

		commits = append(commits, CommitInfo{
			Hash:      parts[0],
			ShortHash: parts[1],
			Subject:   parts[2],
			Author:    parts[3],
			Date:      date,
		})
	}

	return commits, nil
}

// MergeBase returns the best common ancestor of a and b.
func (e *ShellExecutor) MergeBase(ctx context.Context, a, b string) (string, error) {
	out, err := e.run(ctx, "merge-base", a, b)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out), nil
}

// RemoteAdd registers a remote named name pointing at url.
func (e *ShellExecutor) RemoteAdd(ctx context.Context, name, url string) error {
	_, err := e.run(ctx, "remote", "add", name, url)

	return err
}

// Push pushes branch to remote.
func (e *ShellExecutor) Push(ctx context.Context, remote, branch string) error {
	_, err := e.run(ctx, "push", remote, branch)

	return err
}

// HashObjectAndTree writes each file as a blob and assembles a tree.
func (e *ShellExecutor) HashObjectAndTree(
	ctx context.Context, files map[string][]byte,
) (string, error) {

	type entry struct {
		path string
		sha  string
	}

	var entries []entry

	for path, content := range files {
		sha, err := e.hashObject(ctx, content)
		if err != nil {
			return "", fmt.Errorf("hashing %s: %w", path, err)
		}

		entries = append(entries, entry{path: path, sha: sha})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].path < entries[j].path
	})

	var treeInput bytes.Buffer
	for _, ent := range entries {
		fmt.Fprintf(&treeInput, "100644 blob %s\t%s\n", ent.sha, ent.path)
	}

	cmd := exec.CommandContext(ctx, "git", "mktree")
	if e.WorkDir != "" {
		cmd.Dir = e.WorkDir
	}
	cmd.Stdin = bytes.NewReader(treeInput.Bytes())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("mktree failed: %w: %s", err, stderr.String())
	}

	return strings.TrimSpace(stdout.String()), nil
}

// hashObject writes content as a blob and returns its SHA.
func (e *ShellExecutor) hashObject(
	ctx context.Context, content []byte,
) (string, error) {

	cmd := exec.CommandContext(ctx, "git", "hash-object", "-w", "--stdin")
	if e.WorkDir != "" {
		cmd.Dir = e.WorkDir
	}
	cmd.Stdin = bytes.NewReader(content)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf(
			"hash-object failed: %w: %s", err, stderr.String(),
		)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// CommitTree creates a commit object with the given tree and parents.
func (e *ShellExecutor) CommitTree(
	ctx context.Context, tree, message string, parents ...string,
) (string, error) {

	args := []string{"commit-tree", tree}
	for _, p := range parents {
		args = append(args, "-p", p)
	}
	args = append(args, "-m", message)

	out, err := e.run(ctx, args...)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out), nil
}

// RevParse resolves ref to a full SHA.
func (e *ShellExecutor) RevParse(ctx context.Context, ref string) (string, error) {
	out, err := e.run(ctx, "rev-parse", ref)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out), nil
}

// GitDir returns the git directory path. This correctly handles worktrees
// where .git is a file pointing to the actual git directory.
func (e *ShellExecutor) GitDir(ctx context.Context) (string, error) {
	out, err := e.run(ctx, "rev-parse", "--git-dir")
	if err != nil {
		return "", err
	}

	dir := strings.TrimSpace(out)

	if !filepath.IsAbs(dir) && e.WorkDir != "" {
		dir = filepath.Join(e.WorkDir, dir)
	}

	return dir, nil
}

// RepoRoot returns the repository's working-tree root.
func (e *ShellExecutor) RepoRoot(ctx context.Context) (string, error) {
	out, err := e.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out), nil
}

// Compile-time check that ShellExecutor implements Executor.
var _ Executor = (*ShellExecutor)(nil)
