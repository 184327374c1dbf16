// Package domain defines the shared model types used across relay: the
// persistent WorkflowRecord, the two cursor variants, and the work units
// handed to the prompt assembler.
package domain

import (
	"time"

	"github.com/worksonmyai/relay/internal/protocol"
)

// Record is the single persistent workflow record. It is the only durable
// memory relay has across agent invocations. The orchestration loop is its
// sole owner and writer; the state store only serializes it.
type Record struct {
	ID             string    `yaml:"id"`
	Active         bool      `yaml:"active"`
	Model          string    `yaml:"model"`
	IterationCount int       `yaml:"iteration_count"`
	IterationLimit int       `yaml:"iteration_limit"`
	StartedAt      time.Time `yaml:"started_at"`
	LastSnapshotID string    `yaml:"last_snapshot_id,omitempty"`
	ContextPaths   []string  `yaml:"context_paths,omitempty"`
	WorkDir        string    `yaml:"-"`

	// TranscriptOffset is the byte length of the cumulative session
	// transcript already evaluated. Transcript-driven cycles only read
	// past it, so a marker consumed by an earlier cycle is never seen
	// again.
	TranscriptOffset int64 `yaml:"transcript_offset,omitempty"`

	// Exactly one of the two cursors is set, matching Model.
	Phase *PhaseCursor `yaml:"phase,omitempty"`
	Story *StoryCursor `yaml:"story,omitempty"`

	// Notes are one-line progress entries accumulated per cycle. Display
	// and prompt history only, never used for control decisions.
	Notes []string `yaml:"notes,omitempty"`
}

// PhaseCursor tracks position in the fixed stage order. Stage only moves
// forward through protocol.StageOrder; ItemIndex only increases.
type PhaseCursor struct {
	Stage     string `yaml:"stage"`
	ItemIndex int    `yaml:"item_index"`
	Items     []Item `yaml:"items,omitempty"`
}

// Item is one sub-task of the execute stage, discovered from the item
// specs the expand stage produced.
type Item struct {
	ID     string `yaml:"id"`
	Label  string `yaml:"label"`
	Status string `yaml:"status"`
}

// StoryCursor holds the open story queue.
type StoryCursor struct {
	Stories []Story `yaml:"stories"`
}

// Story is a single independent task in the story queue. Lower priority
// values are more urgent.
type Story struct {
	ID                 string   `yaml:"id"`
	Title              string   `yaml:"title"`
	Description        string   `yaml:"description,omitempty"`
	AcceptanceCriteria []string `yaml:"acceptance_criteria,omitempty"`
	Priority           int      `yaml:"priority"`
	Passes             bool     `yaml:"passes"`
	Notes              string   `yaml:"notes,omitempty"`
}

// CurrentStoryIndex returns the index of the lowest-priority-value story
// with Passes=false, ties broken by declaration order, or -1 when every
// story passes. This ordering is normative: any two runs over identical
// queues must pick the identical story.
func (c *StoryCursor) CurrentStoryIndex() int {
	best := -1
	for i, s := range c.Stories {
		if s.Passes {
			continue
		}
		if best == -1 || s.Priority < c.Stories[best].Priority {
			best = i
		}
	}
	return best
}

// Remaining counts stories with Passes=false.
func (c *StoryCursor) Remaining() int {
	n := 0
	for _, s := range c.Stories {
		if !s.Passes {
			n++
		}
	}
	return n
}

// ItemsRemaining reports whether any execute item is still pending or in
// progress at or after the current index.
func (c *PhaseCursor) ItemsRemaining() bool {
	return c.ItemIndex < len(c.Items)
}

// CurrentItem returns the item under the cursor, or nil when the item list
// is exhausted or not yet discovered.
func (c *PhaseCursor) CurrentItem() *Item {
	if c.ItemIndex < 0 || c.ItemIndex >= len(c.Items) {
		return nil
	}
	return &c.Items[c.ItemIndex]
}

// CompletedItems counts items marked completed or skipped.
func (c *PhaseCursor) CompletedItems() int {
	n := 0
	for _, it := range c.Items {
		if it.Status == protocol.ItemCompleted || it.Status == protocol.ItemSkipped {
			n++
		}
	}
	return n
}

// Unit is the atomic piece of work currently requested from the agent.
// It is a tagged variant: exactly one of PhaseUnit or StoryUnit. Callers
// type-switch on the concrete type, never on shared base state.
type Unit interface {
	// Key identifies the unit for display and snapshot labels.
	Key() string
	// Signal is the completion signal the agent must emit for this unit,
	// and ID the qualifier bound into the marker (may be empty).
	Signal() (protocol.Signal, string)
}

// PhaseUnit is a unit from the phase-graph model: a stage, and during the
// execute stage the specific item under the cursor.
type PhaseUnit struct {
	Stage string
	Item  *Item
}

func (u PhaseUnit) Key() string {
	if u.Item != nil {
		return u.Stage + "/" + u.Item.ID
	}
	return u.Stage
}

func (u PhaseUnit) Signal() (protocol.Signal, string) {
	switch u.Stage {
	case protocol.StagePlan:
		return protocol.SignalPlanReady, ""
	case protocol.StageExpand:
		return protocol.SignalItemsReady, ""
	case protocol.StageExecute:
		id := ""
		if u.Item != nil {
			id = u.Item.ID
		}
		return protocol.SignalItemDone, id
	case protocol.StageIntegration:
		return protocol.SignalIntegrationPass, ""
	case protocol.StageCompleteness:
		return protocol.SignalCompletenessPass, ""
	case protocol.StageDocumentation:
		return protocol.SignalDocsDone, ""
	}
	return "", ""
}

// StoryUnit is a unit from the story-queue model.
type StoryUnit struct {
	Story *Story
}

func (u StoryUnit) Key() string { return u.Story.ID }

func (u StoryUnit) Signal() (protocol.Signal, string) {
	return protocol.SignalStoryPass, u.Story.ID
}

// Marker returns the exact delimited completion marker for u.
func Marker(u Unit) string {
	sig, id := u.Signal()
	return protocol.Marker(sig, id)
}
