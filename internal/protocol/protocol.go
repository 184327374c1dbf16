// Package protocol defines the cross-package vocabulary for relay:
// completion signal tags, the marker delimiters the agent must emit,
// stage identifiers, and item/story status values.
package protocol

import "strings"

// Marker delimiters. The agent signals completion by including
// <<RELAY:TAG>> verbatim in its response. The detector honours only the
// first well-formed marker per response.
const (
	MarkerOpen  = "<<RELAY:"
	MarkerClose = ">>"
)

// Signal is a completion tag carried between the marker delimiters.
type Signal string

const (
	SignalPlanReady        Signal = "PLAN_READY"
	SignalItemsReady       Signal = "ITEMS_READY"
	SignalItemDone         Signal = "ITEM_DONE"
	SignalIntegrationPass  Signal = "INTEGRATION_PASS"
	SignalCompletenessPass Signal = "COMPLETENESS_PASS"
	SignalDocsDone         Signal = "DOCS_DONE"
	SignalStoryPass        Signal = "STORY_PASS"
)

func (s Signal) String() string { return string(s) }

// Marker renders the exact delimited string the agent must emit for s,
// optionally qualified by a unit identifier (item or story ID).
func Marker(s Signal, id string) string {
	if id == "" {
		return MarkerOpen + string(s) + MarkerClose
	}
	return MarkerOpen + string(s) + " " + id + MarkerClose
}

// SplitTag splits extracted marker content into its signal tag and the
// optional unit identifier.
func SplitTag(content string) (Signal, string) {
	tag, id, _ := strings.Cut(strings.TrimSpace(content), " ")
	return Signal(tag), strings.TrimSpace(id)
}

// Stage identifiers for the phase-graph model, in execution order.
const (
	StagePlan          = "plan"
	StageExpand        = "expand"
	StageExecute       = "execute"
	StageIntegration   = "integration_review"
	StageCompleteness  = "completeness_review"
	StageDocumentation = "documentation"
	StageComplete      = "complete"
)

// StageOrder is the fixed total order of phase-graph stages. The cursor
// only ever moves forward through this list.
var StageOrder = []string{
	StagePlan,
	StageExpand,
	StageExecute,
	StageIntegration,
	StageCompleteness,
	StageDocumentation,
	StageComplete,
}

// StageIndex returns the position of stage in StageOrder, or -1.
func StageIndex(stage string) int {
	for i, s := range StageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

// Item status values for the execute stage.
const (
	ItemPending    = "pending"
	ItemInProgress = "in_progress"
	ItemCompleted  = "completed"
	ItemSkipped    = "skipped"
)

// Work unit model identifiers, selectable at start.
const (
	ModelPhase = "phase"
	ModelStory = "story"
)

// StateFileName is the well-known relative path of the persisted workflow
// record. Its presence is the sole signal that a workflow is active.
const StateFileName = ".relay/workflow.md"

// ItemsGlob is the default pattern the expand stage is asked to write item
// specs under, and the pattern item discovery enumerates.
const ItemsGlob = ".relay/items/*.md"
