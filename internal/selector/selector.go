// Package selector picks the next unit of work from the cursor and applies
// confirmed completions. Its ordering rules are normative: given identical
// state, any two runs select the identical next unit.
package selector

import (
	"errors"

	"github.com/worksonmyai/relay/internal/domain"
	"github.com/worksonmyai/relay/internal/protocol"
)

// ErrNoItems reports that the expand stage finished but item discovery
// found nothing. Warning class: the caller logs and stays on the expand
// stage rather than silently advancing.
var ErrNoItems = errors.New("no generated items discovered")

// ItemLister is the slice of the filesystem collaborator the selector
// needs on the expand-to-execute edge.
type ItemLister interface {
	ListGeneratedItems(pattern string) ([]domain.Item, error)
}

// Current returns the unit under the cursor, or complete=true when the
// workflow has nothing left to do.
func Current(rec *domain.Record) (domain.Unit, bool) {
	switch {
	case rec.Phase != nil:
		c := rec.Phase
		if c.Stage == protocol.StageComplete {
			return nil, true
		}
		if c.Stage == protocol.StageExecute {
			return domain.PhaseUnit{Stage: c.Stage, Item: c.CurrentItem()}, false
		}
		return domain.PhaseUnit{Stage: c.Stage}, false
	case rec.Story != nil:
		idx := rec.Story.CurrentStoryIndex()
		if idx < 0 {
			return nil, true
		}
		return domain.StoryUnit{Story: &rec.Story.Stories[idx]}, false
	}
	return nil, true
}

// Advance applies a confirmed completion of the current unit and returns
// the next unit, or complete=true when none remains. The cursor only ever
// moves forward; on ErrNoItems it is left untouched.
func Advance(rec *domain.Record, lister ItemLister, itemsGlob string) (domain.Unit, bool, error) {
	switch {
	case rec.Phase != nil:
		if err := advancePhase(rec.Phase, lister, itemsGlob); err != nil {
			unit, complete := Current(rec)
			return unit, complete, err
		}
	case rec.Story != nil:
		advanceStory(rec.Story, "")
	}
	unit, complete := Current(rec)
	return unit, complete, nil
}

// Skip forces the current unit to completed/skipped without agent
// confirmation and advances. Execute items are marked skipped; stories are
// marked passing with a skip note; other stages advance as if confirmed.
func Skip(rec *domain.Record, lister ItemLister, itemsGlob string) (domain.Unit, bool, error) {
	if rec.Phase != nil && rec.Phase.Stage == protocol.StageExecute {
		if it := rec.Phase.CurrentItem(); it != nil {
			it.Status = protocol.ItemSkipped
		}
		rec.Phase.ItemIndex++
		stepExecuteCursor(rec.Phase)
		unit, complete := Current(rec)
		return unit, complete, nil
	}
	if rec.Story != nil {
		advanceStory(rec.Story, "skipped without agent confirmation")
		unit, complete := Current(rec)
		return unit, complete, nil
	}
	return Advance(rec, lister, itemsGlob)
}

func advancePhase(c *domain.PhaseCursor, lister ItemLister, itemsGlob string) error {
	switch c.Stage {
	case protocol.StagePlan:
		c.Stage = protocol.StageExpand

	case protocol.StageExpand:
		items, err := lister.ListGeneratedItems(itemsGlob)
		if err != nil || len(items) == 0 {
			return ErrNoItems
		}
		c.Items = items
		c.ItemIndex = 0
		c.Items[0].Status = protocol.ItemInProgress
		c.Stage = protocol.StageExecute

	case protocol.StageExecute:
		if it := c.CurrentItem(); it != nil {
			it.Status = protocol.ItemCompleted
		}
		c.ItemIndex++
		stepExecuteCursor(c)

	case protocol.StageIntegration:
		c.Stage = protocol.StageCompleteness

	case protocol.StageCompleteness:
		c.Stage = protocol.StageDocumentation

	case protocol.StageDocumentation:
		c.Stage = protocol.StageComplete
	}
	return nil
}

// stepExecuteCursor marks the next pending item in progress, or leaves the
// execute stage once the item list is exhausted.
func stepExecuteCursor(c *domain.PhaseCursor) {
	if c.ItemsRemaining() {
		c.Items[c.ItemIndex].Status = protocol.ItemInProgress
		return
	}
	c.Stage = protocol.StageIntegration
}

func advanceStory(c *domain.StoryCursor, note string) {
	idx := c.CurrentStoryIndex()
	if idx < 0 {
		return
	}
	c.Stories[idx].Passes = true
	if note != "" {
		c.Stories[idx].Notes = note
	}
}
