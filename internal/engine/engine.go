// Package engine makes the pure per-cycle decision: given the current unit
// and the detection result for the agent's last response, what should the
// loop do next. It holds no I/O references; the loop performs all side
// effects.
package engine

import (
	"fmt"

	"github.com/worksonmyai/relay/internal/detect"
	"github.com/worksonmyai/relay/internal/domain"
)

// ActionKind enumerates the possible per-cycle decisions.
type ActionKind int

const (
	// ActionSelfLoop re-issues the same instruction: no signal this round.
	ActionSelfLoop ActionKind = iota
	// ActionAdvance commits progress and moves the cursor forward.
	ActionAdvance
)

// Action is the engine's decision for one cycle.
type Action struct {
	Kind ActionKind
	// CommitLabel is the snapshot label, set when Kind is ActionAdvance.
	CommitLabel string
	// Warning is set on self-loops caused by an unexpected marker (the
	// agent signalled for the wrong unit); logged, never fatal.
	Warning string
}

// Decide classifies the detection outcome for the current unit.
func Decide(unit domain.Unit, det detect.Result) Action {
	if det.Matched {
		return Action{
			Kind:        ActionAdvance,
			CommitLabel: CommitLabel(unit),
		}
	}
	if det.Unexpected != "" {
		return Action{
			Kind:    ActionSelfLoop,
			Warning: fmt.Sprintf("ignoring unexpected marker %q for unit %s", det.Unexpected, unit.Key()),
		}
	}
	return Action{Kind: ActionSelfLoop}
}

// CommitLabel builds the snapshot label for a completed unit.
func CommitLabel(unit domain.Unit) string {
	return fmt.Sprintf("relay: %s complete", unit.Key())
}

// FinalCommitLabel is the label for the terminal snapshot taken when the
// selector reports the workflow complete.
func FinalCommitLabel(rec *domain.Record) string {
	return fmt.Sprintf("relay: workflow %s complete", rec.ID)
}
