// Package prompt assembles the instruction text dispatched to the agent.
//
// Render is a pure function of its inputs: the same unit, record, and
// collaborator context always produce byte-identical instructions, so a
// resumed invocation is indistinguishable from a fresh one to the
// stateless agent. Anything that varies per cycle without a state change
// (iteration counters, wall-clock time) is deliberately kept out of the
// rendered text.
package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/worksonmyai/relay/internal/domain"
	"github.com/worksonmyai/relay/internal/protocol"
)

// Doc is the literal content of one declared context path. Missing paths
// are carried through (Found=false) so the renderer can flag them instead
// of failing the cycle.
type Doc struct {
	Path    string
	Content string
	Found   bool
}

// Context carries the externally gathered inputs for one render: context
// path contents and a capped window of recent snapshot history. The loop
// performs the I/O; Render never touches the filesystem.
type Context struct {
	Docs      []Doc
	History   string
	Notes     []string
	ItemsGlob string
}

// Render produces the full instruction for the unit. The output always
// concludes with an explicit request for the unit's exact completion
// marker so the detector has an unambiguous target.
func Render(tmpls *Templates, unit domain.Unit, rec *domain.Record, ctx Context) (string, error) {
	name := templateName(unit)
	text, ok := tmpls.Get(name)
	if !ok {
		return "", fmt.Errorf("no template for unit %q", name)
	}

	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}

	data := buildData(unit, rec, ctx)
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}

	b.WriteString(footer(data.Marker))
	return b.String(), nil
}

// renderData is the template input. Only state that changes on real
// workflow advancement may appear here.
type renderData struct {
	WorkflowID string
	Stage      string
	Item       *domain.Item
	ItemIndex  int
	ItemCount  int
	Items      []domain.Item
	Story      *domain.Story
	ItemsGlob  string
	Docs       []Doc
	History    string
	Notes      []string
	Marker     string
}

func buildData(unit domain.Unit, rec *domain.Record, ctx Context) renderData {
	glob := ctx.ItemsGlob
	if glob == "" {
		glob = protocol.ItemsGlob
	}
	data := renderData{
		WorkflowID: rec.ID,
		ItemsGlob:  glob,
		Docs:       ctx.Docs,
		History:    ctx.History,
		Notes:      ctx.Notes,
		Marker:     domain.Marker(unit),
	}
	switch u := unit.(type) {
	case domain.PhaseUnit:
		data.Stage = u.Stage
		data.Item = u.Item
		if rec.Phase != nil {
			data.Items = rec.Phase.Items
			data.ItemIndex = rec.Phase.ItemIndex
			data.ItemCount = len(rec.Phase.Items)
		}
	case domain.StoryUnit:
		data.Story = u.Story
	}
	return data
}

func templateName(unit domain.Unit) string {
	switch u := unit.(type) {
	case domain.PhaseUnit:
		return u.Stage
	case domain.StoryUnit:
		return "story"
	}
	return ""
}

func footer(marker string) string {
	return fmt.Sprintf(`

## Completion Signal

When this unit of work is fully complete, include exactly this marker verbatim in your response:

%s

Emit the marker at most once, and only after the work is done. If you cannot finish, end your response without the marker and relay will re-issue the same instruction next round.
`, marker)
}
