package cli

import (
	"fmt"
	"os"

	"github.com/worksonmyai/relay/internal/config"
	"github.com/worksonmyai/relay/internal/debug"
	"github.com/worksonmyai/relay/internal/loop"
	"github.com/worksonmyai/relay/internal/prompt"
	"github.com/worksonmyai/relay/internal/snapshot"
	"github.com/worksonmyai/relay/internal/state"
	"github.com/worksonmyai/relay/internal/workspace"
)

// buildLoop wires the loop's collaborators for the current working
// directory. A missing git repository degrades snapshots to logged
// no-ops rather than failing.
func buildLoop() (*loop.Loop, *config.Config, string, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, nil, "", fmt.Errorf("get working directory: %w", err)
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return nil, nil, "", fmt.Errorf("load config: %w", err)
	}

	tmpls, err := prompt.LoadTemplates(cfg.GlobalDir(), cfg.LocalDir())
	if err != nil {
		return nil, nil, "", fmt.Errorf("load prompt templates: %w", err)
	}

	var committer loop.Committer
	if repo, err := snapshot.Open(workDir); err == nil {
		committer = repo
	} else {
		debug.Logf("no git repository at %s: %v", workDir, err)
	}

	l := loop.New(
		state.NewStore(workDir),
		committer,
		workspace.New(workDir),
		tmpls,
		newLogger(),
		loop.WithItemsGlob(cfg.ItemsGlob),
		loop.WithHistoryWindow(cfg.HistoryWindow),
	)
	return l, cfg, workDir, nil
}
