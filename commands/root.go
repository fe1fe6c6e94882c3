// Package commands contains the gitum CLI command implementations.
package commands

import (
	"context"
	"os"

	"github.com/roasbeef/gitum/git"
	"github.com/roasbeef/gitum/gitconfig"
	"github.com/spf13/cobra"
)

// configKey is the context key for runtime config.
type configKey struct{}

// Config holds runtime configuration shared by every command.
type Config struct {
	WorkDir string
	JSONOut bool
}

// getConfig retrieves Config from ctx, or returns defaults.
func getConfig(ctx context.Context) Config {
	if cfg, ok := ctx.Value(configKey{}).(Config); ok {
		return cfg
	}

	return Config{}
}

// executor builds the ShellExecutor rooted at cfg.WorkDir.
func executor(cfg Config) *git.ShellExecutor {
	return git.NewShellExecutor(cfg.WorkDir)
}

// loadConfig resolves the branch layout for the current repository,
// falling back to gitum's defaults.
func loadConfig(ctx context.Context, exec *git.ShellExecutor) (gitconfig.Config, error) {
	return gitconfig.LoadConfig(ctx, exec)
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	var (
		workDir string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:     "gitum",
		Short:   "Manage a local mirror of an upstream project with a private patch set",
		Version: Version,
		Long: `gitum tracks an upstream project's history on one branch while
maintaining a second, locally-modified branch on top of it, and keeps a
patch series that can reconstruct the local modifications from nothing
but the upstream history and the series itself.

Examples:
  # Lay down the four work branches from the current branch
  gitum create

  # Fold new upstream commits into the local branches
  gitum merge origin/master

  # Resume after resolving a conflict
  gitum merge --continue

  # Record local edits made directly on the rebased branch
  gitum update -m "local tweak"

  # Check whether the rebased branch has unrecorded work
  gitum status

  # Sync against a shared gitum remote
  gitum pull
  gitum push`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cfg := Config{WorkDir: workDir, JSONOut: jsonOut}
			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			cmd.SetContext(ctx)
		},
	}

	cmd.PersistentFlags().StringVarP(
		&workDir, "repo", "C", "",
		"run as if gitum was started in this directory",
	)
	cmd.PersistentFlags().BoolVar(
		&jsonOut, "json", false,
		"output in JSON format (for machine consumption)",
	)

	cmd.AddCommand(NewCreateCmd())
	cmd.AddCommand(NewMergeCmd())
	cmd.AddCommand(NewUpdateCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewRestoreCmd())
	cmd.AddCommand(NewCloneCmd())
	cmd.AddCommand(NewPullCmd())
	cmd.AddCommand(NewPushCmd())
	cmd.AddCommand(NewRemoveCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
