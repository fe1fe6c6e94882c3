// Package gitconfig persists gitum's configuration and operation state
// inside the repository itself: a dedicated orphan branch for the branch
// layout, and small plain-text files under .git/ for transient state.
package gitconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/roasbeef/gitum/git"
)

const (
	// ConfigBranch holds the committed Config as a single file.
	ConfigBranch = "gitum-config"

	// ConfigFile is the name of the config file on ConfigBranch.
	ConfigFile = ".gitum-config"

	// DefaultUpstream is the default upstream tracking branch name.
	DefaultUpstream = "upstream"

	// DefaultRebased is the default rebased branch name.
	DefaultRebased = "rebased"

	// DefaultMainline is the default mainline (current) branch name.
	DefaultMainline = "mainline"

	// DefaultPatches is the default patch-series branch name.
	DefaultPatches = "patches"
)

// Config describes the four work branches gitum manages.
type Config struct {
	Upstream string
	Rebased  string
	Mainline string
	Patches  string
}

// IsDefault reports whether c uses every default branch name, which
// determines whether a ConfigBranch needs to be written at all.
func (c Config) IsDefault() bool {
	return c.Upstream == DefaultUpstream &&
		c.Rebased == DefaultRebased &&
		c.Mainline == DefaultMainline &&
		c.Patches == DefaultPatches
}

// Default returns a Config with every branch set to its default name.
func Default() Config {
	return Config{
		Upstream: DefaultUpstream,
		Rebased:  DefaultRebased,
		Mainline: DefaultMainline,
		Patches:  DefaultPatches,
	}
}

// LoadConfig reads Config from ConfigBranch, falling back to defaults for
// any field the branch or file doesn't exist or doesn't mention.
func LoadConfig(ctx context.Context, exec git.Executor) (Config, error) {
	cfg := Default()

	raw, err := exec.Show(ctx, ConfigBranch+":"+ConfigFile)
	if err != nil {
		// No config branch/file means the repo uses every default.
		return cfg, nil
	}

	for i, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(strings.SplitN(line, "#", 2)[0])
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) != 3 || parts[1] != "=" {
			// Malformed and unrecognized keys are tolerated, not fatal:
			// an older or newer gitum build may write keys this one
			// doesn't understand.
			continue
		}

		switch parts[0] {
		case "upstream":
			cfg.Upstream = parts[2]
		case "rebased":
			cfg.Rebased = parts[2]
		case "current":
			cfg.Mainline = parts[2]
		case "patches":
			cfg.Patches = parts[2]
		}
	}

	return cfg, nil
}

// SaveConfig commits cfg to ConfigBranch as a standalone commit with no
// parent, without touching the working tree or index.
func SaveConfig(ctx context.Context, exec git.Executor, cfg Config) error {
	body := fmt.Sprintf(
		"current = %s\nupstream = %s\nrebased = %s\npatches = %s\n",
		cfg.Mainline, cfg.Upstream, cfg.Rebased, cfg.Patches,
	)

	tree, err := exec.HashObjectAndTree(
		ctx, map[string][]byte{ConfigFile: []byte(body)},
	)
	if err != nil {
		return fmt.Errorf("building config tree: %w", err)
	}

	commit, err := exec.CommitTree(ctx, tree, "Save config file")
	if err != nil {
		return fmt.Errorf("committing config: %w", err)
	}

	if err := exec.CreateBranch(ctx, ConfigBranch, commit); err != nil {
		return fmt.Errorf("creating %s: %w", ConfigBranch, err)
	}

	return nil
}
