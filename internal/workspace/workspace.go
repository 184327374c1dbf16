// Package workspace is relay's view of the working tree: item discovery
// for the expand stage and plain text reads for context paths.
package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/worksonmyai/relay/internal/domain"
	"github.com/worksonmyai/relay/internal/protocol"
)

// Workspace reads generated artifacts under a working directory.
type Workspace struct {
	root string
}

// New creates a workspace rooted at dir.
func New(dir string) *Workspace {
	return &Workspace{root: dir}
}

// ListGeneratedItems enumerates item spec files matching pattern (relative
// to the workspace root) and returns them as pending items in filename
// order. The ordering is normative: discovery over an identical tree must
// produce an identical item list.
func (w *Workspace) ListGeneratedItems(pattern string) ([]domain.Item, error) {
	matches, err := filepath.Glob(filepath.Join(w.root, pattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	items := make([]domain.Item, 0, len(matches))
	for _, path := range matches {
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		items = append(items, domain.Item{
			ID:     id,
			Label:  itemLabel(path, id),
			Status: protocol.ItemPending,
		})
	}
	return items, nil
}

// ReadText returns the content of a file relative to the workspace root,
// or ("", false) when it does not exist or cannot be read.
func (w *Workspace) ReadText(path string) (string, bool) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string { return w.root }

// itemLabel extracts the first markdown heading of an item spec, falling
// back to the file's ID.
func itemLabel(path, fallback string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	for line := range strings.SplitSeq(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(trimmed, "#"); ok {
			title := strings.TrimSpace(strings.TrimLeft(after, "#"))
			if title != "" {
				return title
			}
		}
	}
	return fallback
}
