// Package snapshot records workflow progress as labeled git commits and
// exposes a capped history window for prompt context.
package snapshot

import (
	"fmt"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Repo wraps the version-control collaborator for one working directory.
type Repo struct {
	repo *gogit.Repository
	dir  string
}

// Open opens the repository containing dir.
func Open(dir string) (*Repo, error) {
	r, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open git repo: %w", err)
	}
	return &Repo{repo: r, dir: dir}, nil
}

// Commit stages the full working tree and commits it under label. Returns
// the snapshot id, or "" when there is nothing to snapshot. Failures are
// returned as errors but callers treat them as soft: a missing snapshot
// never blocks workflow advancement.
func (r *Repo) Commit(label string) (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("get worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("get worktree status: %w", err)
	}
	if status.IsClean() {
		return "", nil
	}

	if err := wt.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("stage changes: %w", err)
	}

	hash, err := wt.Commit(label, &gogit.CommitOptions{
		Author: r.author(),
	})
	if err != nil {
		return "", fmt.Errorf("commit snapshot: %w", err)
	}
	return hash.String(), nil
}

// RecentHistory returns up to n recent commits formatted one per line,
// newest first. It is display data for prompt context only; relay never
// parses it to make decisions. Returns "" on any failure.
func (r *Repo) RecentHistory(n int) string {
	head, err := r.repo.Head()
	if err != nil {
		return ""
	}
	iter, err := r.repo.Log(&gogit.LogOptions{From: head.Hash()})
	if err != nil {
		return ""
	}
	defer iter.Close()

	var lines []string
	for range n {
		c, err := iter.Next()
		if err != nil {
			break
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		lines = append(lines, fmt.Sprintf("%s %s", c.Hash.String()[:7], subject))
	}
	return strings.Join(lines, "\n")
}

// author resolves the commit signature from repo config, falling back to
// a relay identity so snapshots work in repos without user config.
func (r *Repo) author() *object.Signature {
	sig := &object.Signature{Name: "relay", Email: "relay@localhost", When: time.Now()}
	cfg, err := r.repo.ConfigScoped(gitconfig.SystemScope)
	if err == nil && cfg.User.Name != "" {
		sig.Name = cfg.User.Name
		sig.Email = cfg.User.Email
	}
	return sig
}
