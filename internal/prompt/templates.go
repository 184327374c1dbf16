package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/worksonmyai/relay/internal/protocol"
)

//go:embed defaults/*.md
var defaultsFS embed.FS

// templateNames lists every instruction template relay ships.
var templateNames = []string{
	protocol.StagePlan,
	protocol.StageExpand,
	protocol.StageExecute,
	protocol.StageIntegration,
	protocol.StageCompleteness,
	protocol.StageDocumentation,
	"story",
}

// Templates holds the loaded instruction templates, keyed by stage name
// (or "story" for the story-queue model).
type Templates struct {
	byName map[string]string
}

// Get returns the template body for name.
func (t *Templates) Get(name string) (string, bool) {
	s, ok := t.byName[name]
	return s, ok
}

// LoadTemplates loads every template with the fallback chain
// local (.relay/prompts/) → global (config dir prompts/) → embedded.
// Either directory may be empty to skip that layer.
func LoadTemplates(globalDir, localDir string) (*Templates, error) {
	t := &Templates{byName: make(map[string]string, len(templateNames))}
	for _, name := range templateNames {
		body, err := loadTemplate(globalDir, localDir, name+".md")
		if err != nil {
			return nil, fmt.Errorf("load template %s: %w", name, err)
		}
		t.byName[name] = body
	}
	return t, nil
}

// Defaults loads only the embedded templates. Used by tests and by
// callers that must not depend on the user's prompt overrides.
func Defaults() (*Templates, error) {
	return LoadTemplates("", "")
}

func loadTemplate(globalDir, localDir, filename string) (string, error) {
	if localDir != "" {
		if body, err := readTemplateFile(filepath.Join(localDir, "prompts", filename)); err != nil {
			return "", err
		} else if body != "" {
			return body, nil
		}
	}
	if globalDir != "" {
		if body, err := readTemplateFile(filepath.Join(globalDir, "prompts", filename)); err != nil {
			return "", err
		} else if body != "" {
			return body, nil
		}
	}

	data, err := defaultsFS.ReadFile("defaults/" + filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// readTemplateFile reads a template override from disk. A missing file is
// not an error; the chain simply falls through.
func readTemplateFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
