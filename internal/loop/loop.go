// Package loop implements the orchestration cycle: one trigger-to-next-
// instruction pass over the persisted workflow record.
//
// The loop is single-threaded and cooperative. Each Cycle call runs one
// full load → detect → advance → render → save pass and returns; the loop
// itself holds no workflow state between calls, so cancellation is simply
// deleting the persisted record.
package loop

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/worksonmyai/relay/internal/detect"
	"github.com/worksonmyai/relay/internal/domain"
	"github.com/worksonmyai/relay/internal/engine"
	"github.com/worksonmyai/relay/internal/prompt"
	"github.com/worksonmyai/relay/internal/protocol"
	"github.com/worksonmyai/relay/internal/safety"
	"github.com/worksonmyai/relay/internal/selector"
)

// DefaultHistoryWindow caps the snapshot history lines rendered into
// prompts.
const DefaultHistoryWindow = 10

// Store is the persistence collaborator. Load yields nil for an absent or
// malformed record.
type Store interface {
	Load() (*domain.Record, error)
	Save(rec *domain.Record) error
	Clear() error
}

// Committer is the version-control collaborator. Commit returns "" when
// there was nothing to snapshot; failures are soft.
type Committer interface {
	Commit(label string) (string, error)
	RecentHistory(n int) string
}

// Workspace is the filesystem collaborator.
type Workspace interface {
	selector.ItemLister
	ReadText(path string) (string, bool)
}

// State classifies the workflow after a cycle.
type State string

const (
	StateNoWorkflow State = "no_workflow"
	StateRunning    State = "running"
	StateHalted     State = "halted"
	StateCompleted  State = "completed"
)

// CycleResult is what one trigger produced.
type CycleResult struct {
	State       State
	Instruction string
	UnitKey     string
	Iteration   int
	Limit       int
	Reason      safety.ExitReason
}

// Loop wires the collaborators together. It is the exclusive owner and
// writer of the workflow record.
type Loop struct {
	store         Store
	committer     Committer
	ws            Workspace
	tmpls         *prompt.Templates
	logger        *slog.Logger
	itemsGlob     string
	historyWindow int
	now           func() time.Time
	newID         func() string
}

// Option configures a Loop.
type Option func(*Loop)

// WithItemsGlob overrides the item discovery pattern.
func WithItemsGlob(glob string) Option {
	return func(l *Loop) { l.itemsGlob = glob }
}

// WithHistoryWindow overrides the rendered history cap.
func WithHistoryWindow(n int) Option {
	return func(l *Loop) { l.historyWindow = n }
}

// New creates a loop. committer may be nil when the working directory is
// not a repository; snapshots then degrade to logged no-ops.
func New(store Store, committer Committer, ws Workspace, tmpls *prompt.Templates, logger *slog.Logger, opts ...Option) *Loop {
	l := &Loop{
		store:         store,
		committer:     committer,
		ws:            ws,
		tmpls:         tmpls,
		logger:        logger,
		itemsGlob:     protocol.ItemsGlob,
		historyWindow: DefaultHistoryWindow,
		now:           time.Now,
		newID:         func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// StartOptions configure a new workflow.
type StartOptions struct {
	Model          string
	IterationLimit int
	ContextPaths   []string
	Stories        []domain.Story
	WorkDir        string
}

// Start creates and persists the initial workflow record. It fails if a
// workflow is already active.
func (l *Loop) Start(opts StartOptions) (*domain.Record, error) {
	if existing, _ := l.store.Load(); existing != nil {
		return nil, fmt.Errorf("workflow %s is already active", existing.ID)
	}

	if opts.IterationLimit <= 0 {
		opts.IterationLimit = safety.DefaultIterationLimit
	}
	if opts.Model == "" {
		opts.Model = protocol.ModelPhase
	}

	rec := &domain.Record{
		ID:             l.newID(),
		Active:         true,
		Model:          opts.Model,
		IterationLimit: opts.IterationLimit,
		StartedAt:      l.now().UTC(),
		ContextPaths:   opts.ContextPaths,
		WorkDir:        opts.WorkDir,
	}
	switch opts.Model {
	case protocol.ModelPhase:
		rec.Phase = &domain.PhaseCursor{Stage: protocol.StagePlan}
	case protocol.ModelStory:
		if len(opts.Stories) == 0 {
			return nil, fmt.Errorf("story model requires a non-empty story queue")
		}
		rec.Story = &domain.StoryCursor{Stories: opts.Stories}
	default:
		return nil, fmt.Errorf("unknown work unit model %q", opts.Model)
	}

	if err := l.store.Save(rec); err != nil {
		return nil, err
	}
	l.logger.Info("workflow started", "id", rec.ID, "model", rec.Model, "iteration_limit", rec.IterationLimit)
	return rec, nil
}

// Cycle runs one orchestration pass against the agent's last response
// (empty on the first trigger). It returns the next instruction, or the
// terminal classification.
func (l *Loop) Cycle(response string) (*CycleResult, error) {
	rec, err := l.store.Load()
	if err != nil || rec == nil {
		return &CycleResult{State: StateNoWorkflow}, nil
	}
	return l.cycle(rec, response)
}

// CycleTranscript runs one cycle against a cumulative session transcript,
// such as the file an agent Stop hook points at. The transcript is
// append-only across turns, so only the portion past the record's
// transcript offset is evaluated; without that, a marker consumed by an
// earlier cycle would be seen first on every later cycle and shadow the
// fresh one.
func (l *Loop) CycleTranscript(transcript string) (*CycleResult, error) {
	rec, err := l.store.Load()
	if err != nil || rec == nil {
		return &CycleResult{State: StateNoWorkflow}, nil
	}

	offset := rec.TranscriptOffset
	if offset < 0 || offset > int64(len(transcript)) {
		// A transcript shorter than the offset is a new session file.
		offset = 0
	}
	response := transcript[offset:]
	rec.TranscriptOffset = int64(len(transcript))
	return l.cycle(rec, response)
}

func (l *Loop) cycle(rec *domain.Record, response string) (*CycleResult, error) {
	// Exactly one increment per trigger, never decremented.
	rec.IterationCount++

	unit, complete := selector.Current(rec)

	if !complete && response != "" {
		unit, complete = l.evaluate(rec, unit, response)
	}

	if complete {
		// Evaluated before the governor: a completion confirmed on the
		// final permitted cycle still closes the workflow. The governor
		// bounds non-progress, and both paths end with the state cleared.
		return l.finish(rec)
	}

	if chk := safety.Check(rec); chk.ShouldHalt {
		return l.halt(rec, chk)
	}

	instruction, err := l.render(unit, rec)
	if err != nil {
		return nil, err
	}
	if err := l.store.Save(rec); err != nil {
		return nil, err
	}

	l.logger.Info("instruction ready",
		"unit", unit.Key(),
		"iteration", rec.IterationCount,
		"limit", rec.IterationLimit)

	return &CycleResult{
		State:       StateRunning,
		Instruction: instruction,
		UnitKey:     unit.Key(),
		Iteration:   rec.IterationCount,
		Limit:       rec.IterationLimit,
	}, nil
}

// evaluate runs detection over the response and applies a confirmed
// completion. On a self-loop it returns the unit unchanged.
func (l *Loop) evaluate(rec *domain.Record, unit domain.Unit, response string) (domain.Unit, bool) {
	text := detect.ExtractTranscriptText(response)
	sig, id := unit.Signal()
	det := detect.Detect(text, []string{markerTag(sig, id)})

	action := engine.Decide(unit, det)
	if action.Warning != "" {
		l.logger.Warn(action.Warning)
	}
	if action.Kind != engine.ActionAdvance {
		return unit, false
	}

	next, complete, err := selector.Advance(rec, l.ws, l.itemsGlob)
	if err != nil {
		// Warning class: stay in place, the same instruction re-renders.
		l.logger.Warn("cannot advance", "unit", unit.Key(), "error", err)
		return next, complete
	}

	l.commit(rec, action.CommitLabel)
	rec.Notes = append(rec.Notes, fmt.Sprintf("[iter %d] %s complete", rec.IterationCount, unit.Key()))
	return next, complete
}

// finish handles the Completed edge: final snapshot, deactivate, clear.
func (l *Loop) finish(rec *domain.Record) (*CycleResult, error) {
	l.commit(rec, engine.FinalCommitLabel(rec))
	rec.Active = false
	if err := l.store.Save(rec); err != nil {
		l.logger.Warn("final save failed", "error", err)
	}
	if err := l.store.Clear(); err != nil {
		l.logger.Warn("clear failed", "error", err)
	}
	l.logger.Info("workflow complete", "id", rec.ID, "iterations", rec.IterationCount)
	return &CycleResult{
		State:     StateCompleted,
		Iteration: rec.IterationCount,
		Limit:     rec.IterationLimit,
		Reason:    safety.ExitReasonComplete,
	}, nil
}

// halt handles the governor hard stop: no further instruction is rendered
// and the record is deleted, not merely deactivated.
func (l *Loop) halt(rec *domain.Record, chk safety.CheckResult) (*CycleResult, error) {
	if err := l.store.Clear(); err != nil {
		l.logger.Warn("clear failed", "error", err)
	}
	l.logger.Error("workflow halted", "id", rec.ID, "reason", string(chk.Reason), "iterations", rec.IterationCount)
	return &CycleResult{
		State:     StateHalted,
		Iteration: rec.IterationCount,
		Limit:     rec.IterationLimit,
		Reason:    chk.Reason,
	}, nil
}

// commit snapshots the artifact tree. Soft-fail: a missing snapshot only
// means LastSnapshotID is not updated this round.
func (l *Loop) commit(rec *domain.Record, label string) {
	if l.committer == nil {
		l.logger.Warn("no version control available, skipping snapshot", "label", label)
		return
	}
	id, err := l.committer.Commit(label)
	if err != nil {
		l.logger.Warn("snapshot failed", "label", label, "error", err)
		return
	}
	if id == "" {
		l.logger.Debug("nothing to snapshot", "label", label)
		return
	}
	rec.LastSnapshotID = id
}

// render gathers the collaborator context and assembles the instruction.
func (l *Loop) render(unit domain.Unit, rec *domain.Record) (string, error) {
	ctx := prompt.Context{Notes: rec.Notes, ItemsGlob: l.itemsGlob}
	for _, path := range rec.ContextPaths {
		content, ok := l.ws.ReadText(path)
		if !ok {
			l.logger.Warn("context path not found", "path", path)
		}
		ctx.Docs = append(ctx.Docs, prompt.Doc{Path: path, Content: content, Found: ok})
	}
	if l.committer != nil {
		ctx.History = l.committer.RecentHistory(l.historyWindow)
	}
	return prompt.Render(l.tmpls, unit, rec, ctx)
}

// Skip forces the current unit to completed/skipped without agent
// confirmation, then advances.
func (l *Loop) Skip() (*CycleResult, error) {
	rec, err := l.store.Load()
	if err != nil || rec == nil {
		return &CycleResult{State: StateNoWorkflow}, nil
	}

	unit, complete := selector.Current(rec)
	if !complete {
		rec.Notes = append(rec.Notes, fmt.Sprintf("[iter %d] %s skipped", rec.IterationCount, unit.Key()))
		unit, complete, err = selector.Skip(rec, l.ws, l.itemsGlob)
		if err != nil {
			l.logger.Warn("cannot skip", "error", err)
		}
	}
	if complete {
		return l.finish(rec)
	}
	instruction, err := l.render(unit, rec)
	if err != nil {
		return nil, err
	}
	if err := l.store.Save(rec); err != nil {
		return nil, err
	}
	return &CycleResult{
		State:       StateRunning,
		Instruction: instruction,
		UnitKey:     unit.Key(),
		Iteration:   rec.IterationCount,
		Limit:       rec.IterationLimit,
	}, nil
}

// Cancel deletes the persisted record, immediately and permanently
// deactivating the workflow.
func (l *Loop) Cancel() error {
	return l.store.Clear()
}

func markerTag(sig protocol.Signal, id string) string {
	if id == "" {
		return string(sig)
	}
	return string(sig) + " " + id
}
