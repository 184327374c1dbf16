// Package state persists the workflow record to its well-known path.
//
// The on-disk format is a markdown document with a YAML frontmatter header.
// Only the header is ever parsed; the body is display data regenerated from
// the header on every save. Writes are atomic (write-to-temp + rename), so
// a crash between saves always leaves a record that was valid at some
// completed cycle boundary.
package state

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"github.com/worksonmyai/relay/internal/domain"
	"github.com/worksonmyai/relay/internal/protocol"
)

const frontmatterDelim = "---"

// Store loads and saves the workflow record under a working directory.
type Store struct {
	workDir string
}

// NewStore creates a store rooted at workDir.
func NewStore(workDir string) *Store {
	return &Store{workDir: workDir}
}

// Path returns the absolute path of the state file.
func (s *Store) Path() string {
	return filepath.Join(s.workDir, protocol.StateFileName)
}

// Load reads the persisted record. A missing, unreadable, or malformed file
// yields (nil, nil): no active workflow, never a host-visible error.
func (s *Store) Load() (*domain.Record, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return nil, nil
	}

	header, ok := splitFrontmatter(string(data))
	if !ok {
		return nil, nil
	}

	var rec domain.Record
	dec := yaml.NewDecoder(strings.NewReader(header))
	dec.KnownFields(true)
	if err := dec.Decode(&rec); err != nil {
		return nil, nil
	}
	if rec.Model != protocol.ModelPhase && rec.Model != protocol.ModelStory {
		return nil, nil
	}
	rec.WorkDir = s.workDir
	return &rec, nil
}

// Save atomically writes the record: YAML frontmatter plus a regenerated
// human-readable body.
func (s *Store) Save(rec *domain.Record) error {
	header, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal workflow record: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(frontmatterDelim + "\n")
	buf.Write(header)
	buf.WriteString(frontmatterDelim + "\n\n")
	buf.WriteString(renderBody(rec))

	if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := renameio.WriteFile(s.Path(), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// Clear deletes the persisted record. Deleting a record that does not
// exist is not an error.
func (s *Store) Clear() error {
	err := os.Remove(s.Path())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear state file: %w", err)
	}
	return nil
}

// splitFrontmatter extracts the YAML header between the leading pair of
// "---" lines. Returns ok=false when the document has no such header.
func splitFrontmatter(doc string) (string, bool) {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	if !strings.HasPrefix(doc, frontmatterDelim+"\n") {
		return "", false
	}
	rest := doc[len(frontmatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontmatterDelim)
	if end < 0 {
		return "", false
	}
	return rest[:end+1], true
}

// renderBody regenerates the display body from the record. It is never
// parsed back; the frontmatter is the sole source of truth.
func renderBody(rec *domain.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# relay workflow %s\n\n", rec.ID)
	fmt.Fprintf(&b, "- model: %s\n", rec.Model)
	fmt.Fprintf(&b, "- iteration: %d/%d\n", rec.IterationCount, rec.IterationLimit)
	fmt.Fprintf(&b, "- started: %s\n", rec.StartedAt.Format("2006-01-02 15:04:05"))
	if rec.LastSnapshotID != "" {
		fmt.Fprintf(&b, "- last snapshot: %s\n", rec.LastSnapshotID)
	}

	switch {
	case rec.Phase != nil:
		fmt.Fprintf(&b, "\n## Stage: %s\n", rec.Phase.Stage)
		if len(rec.Phase.Items) > 0 {
			b.WriteString("\n")
			for _, it := range rec.Phase.Items {
				check := " "
				if it.Status == protocol.ItemCompleted || it.Status == protocol.ItemSkipped {
					check = "x"
				}
				fmt.Fprintf(&b, "- [%s] %s: %s (%s)\n", check, it.ID, it.Label, it.Status)
			}
		}
	case rec.Story != nil:
		fmt.Fprintf(&b, "\n## Stories (%d open)\n\n", rec.Story.Remaining())
		for _, st := range rec.Story.Stories {
			check := " "
			if st.Passes {
				check = "x"
			}
			fmt.Fprintf(&b, "- [%s] p%d %s: %s\n", check, st.Priority, st.ID, st.Title)
		}
	}

	if len(rec.Notes) > 0 {
		b.WriteString("\n## Progress\n\n")
		for _, n := range rec.Notes {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}
	return b.String()
}
