package loop

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/worksonmyai/relay/internal/domain"
	"github.com/worksonmyai/relay/internal/prompt"
	"github.com/worksonmyai/relay/internal/protocol"
	"github.com/worksonmyai/relay/internal/safety"
)

// memStore round-trips records through YAML so tests carry the same copy
// semantics as the on-disk store.
type memStore struct {
	data []byte
}

func (m *memStore) Load() (*domain.Record, error) {
	if m.data == nil {
		return nil, nil
	}
	var rec domain.Record
	if err := yaml.Unmarshal(m.data, &rec); err != nil {
		return nil, nil
	}
	return &rec, nil
}

func (m *memStore) Save(rec *domain.Record) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return err
	}
	m.data = data
	return nil
}

func (m *memStore) Clear() error {
	m.data = nil
	return nil
}

type memCommitter struct {
	commits []string
	history string
	fail    bool
}

func (c *memCommitter) Commit(label string) (string, error) {
	if c.fail {
		return "", fmt.Errorf("git unavailable")
	}
	c.commits = append(c.commits, label)
	return fmt.Sprintf("%040d", len(c.commits)), nil
}

func (c *memCommitter) RecentHistory(int) string { return c.history }

type memWorkspace struct {
	items []domain.Item
	files map[string]string
}

func (w *memWorkspace) ListGeneratedItems(string) ([]domain.Item, error) {
	out := make([]domain.Item, len(w.items))
	copy(out, w.items)
	return out, nil
}

func (w *memWorkspace) ReadText(path string) (string, bool) {
	content, ok := w.files[path]
	return content, ok
}

func testLoop(t *testing.T, store Store, committer Committer, ws Workspace) *Loop {
	t.Helper()
	tmpls, err := prompt.Defaults()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := New(store, committer, ws, tmpls, logger)
	l.newID = func() string { return "wf-test" }
	return l
}

func startPhase(t *testing.T, l *Loop, limit int) {
	t.Helper()
	_, err := l.Start(StartOptions{Model: protocol.ModelPhase, IterationLimit: limit})
	require.NoError(t, err)
}

func TestCycle_NoWorkflow(t *testing.T) {
	l := testLoop(t, &memStore{}, &memCommitter{}, &memWorkspace{})
	res, err := l.Cycle("")
	require.NoError(t, err)
	assert.Equal(t, StateNoWorkflow, res.State)
}

func TestStart_AlreadyActive(t *testing.T) {
	l := testLoop(t, &memStore{}, &memCommitter{}, &memWorkspace{})
	startPhase(t, l, 10)
	_, err := l.Start(StartOptions{Model: protocol.ModelPhase})
	assert.ErrorContains(t, err, "already active")
}

func TestStart_StoryRequiresQueue(t *testing.T) {
	l := testLoop(t, &memStore{}, &memCommitter{}, &memWorkspace{})
	_, err := l.Start(StartOptions{Model: protocol.ModelStory})
	assert.ErrorContains(t, err, "non-empty story queue")
}

func TestCycle_NoSignalStability(t *testing.T) {
	store := &memStore{}
	l := testLoop(t, store, &memCommitter{}, &memWorkspace{})
	startPhase(t, l, 10)

	first, err := l.Cycle("")
	require.NoError(t, err)
	require.Equal(t, StateRunning, first.State)
	assert.Equal(t, protocol.StagePlan, first.UnitKey)
	assert.Equal(t, 1, first.Iteration)

	// No signal: the next instruction must be byte-identical.
	second, err := l.Cycle("still thinking, no marker")
	require.NoError(t, err)
	require.Equal(t, StateRunning, second.State)
	assert.Equal(t, 2, second.Iteration)
	assert.Equal(t, first.Instruction, second.Instruction)
}

func TestCycle_AdvanceCommitsAndMovesOn(t *testing.T) {
	store := &memStore{}
	committer := &memCommitter{}
	l := testLoop(t, store, committer, &memWorkspace{})
	startPhase(t, l, 10)

	_, err := l.Cycle("")
	require.NoError(t, err)

	res, err := l.Cycle("plan written <<RELAY:PLAN_READY>>")
	require.NoError(t, err)
	require.Equal(t, StateRunning, res.State)
	assert.Equal(t, protocol.StageExpand, res.UnitKey)
	require.Len(t, committer.commits, 1)
	assert.Equal(t, "relay: plan complete", committer.commits[0])

	rec, err := store.Load()
	require.NoError(t, err)
	assert.NotEmpty(t, rec.LastSnapshotID)
	assert.Contains(t, rec.Notes[len(rec.Notes)-1], "plan complete")
}

func TestCycle_IterationLimitScenario(t *testing.T) {
	// Spec-level scenario: limit 3, advance once, then self-loop into the
	// governor.
	store := &memStore{}
	committer := &memCommitter{}
	l := testLoop(t, store, committer, &memWorkspace{})
	startPhase(t, l, 3)

	// Cycle 1: no prior signal, renders unit X (plan).
	res1, err := l.Cycle("")
	require.NoError(t, err)
	assert.Equal(t, StateRunning, res1.State)
	assert.Equal(t, 1, res1.Iteration)

	// Cycle 2: X's marker arrives, selector advances to Y, commit occurs.
	res2, err := l.Cycle("<<RELAY:PLAN_READY>>")
	require.NoError(t, err)
	assert.Equal(t, StateRunning, res2.State)
	assert.Equal(t, protocol.StageExpand, res2.UnitKey)
	assert.Equal(t, 2, res2.Iteration)
	assert.Len(t, committer.commits, 1)

	// Cycle 3: no signal for Y, iteration hits the limit, governor halts
	// before any further render.
	res3, err := l.Cycle("no marker here")
	require.NoError(t, err)
	assert.Equal(t, StateHalted, res3.State)
	assert.Equal(t, 3, res3.Iteration)
	assert.Equal(t, safety.ExitReasonMaxIterations, res3.Reason)
	assert.Empty(t, res3.Instruction)

	// State resource is absent afterwards.
	rec, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCycle_ZeroItemsWarning(t *testing.T) {
	store := &memStore{}
	l := testLoop(t, store, &memCommitter{}, &memWorkspace{})
	startPhase(t, l, 20)

	_, err := l.Cycle("")
	require.NoError(t, err)
	expand, err := l.Cycle("<<RELAY:PLAN_READY>>")
	require.NoError(t, err)
	require.Equal(t, protocol.StageExpand, expand.UnitKey)

	// Agent claims items are ready but discovery finds none: warning, the
	// phase is unchanged and the expand instruction repeats.
	res, err := l.Cycle("<<RELAY:ITEMS_READY>>")
	require.NoError(t, err)
	assert.Equal(t, StateRunning, res.State)
	assert.Equal(t, protocol.StageExpand, res.UnitKey)
	assert.Equal(t, expand.Instruction, res.Instruction)

	rec, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, protocol.StageExpand, rec.Phase.Stage)
}

func TestCycle_PhaseWorkflowToCompletion(t *testing.T) {
	store := &memStore{}
	committer := &memCommitter{}
	ws := &memWorkspace{items: []domain.Item{
		{ID: "01-core", Label: "Core", Status: protocol.ItemPending},
	}}
	l := testLoop(t, store, committer, ws)
	startPhase(t, l, 50)

	_, err := l.Cycle("")
	require.NoError(t, err)

	responses := []string{
		"<<RELAY:PLAN_READY>>",
		"<<RELAY:ITEMS_READY>>",
		"<<RELAY:ITEM_DONE 01-core>>",
		"<<RELAY:INTEGRATION_PASS>>",
		"<<RELAY:COMPLETENESS_PASS>>",
	}
	for _, resp := range responses {
		res, err := l.Cycle(resp)
		require.NoError(t, err)
		require.Equal(t, StateRunning, res.State, "response %q", resp)
	}

	res, err := l.Cycle("<<RELAY:DOCS_DONE>>")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, safety.ExitReasonComplete, res.Reason)

	// Completion closure: terminal clear leaves the store reporting absent.
	rec, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, rec)

	// Final commit carries the workflow label.
	assert.Equal(t, "relay: workflow wf-test complete", committer.commits[len(committer.commits)-1])
}

func TestCycle_StoryWorkflow(t *testing.T) {
	store := &memStore{}
	l := testLoop(t, store, &memCommitter{}, &memWorkspace{})
	_, err := l.Start(StartOptions{
		Model:          protocol.ModelStory,
		IterationLimit: 20,
		Stories: []domain.Story{
			{ID: "A", Title: "a", Priority: 2},
			{ID: "B", Title: "b", Priority: 1},
		},
	})
	require.NoError(t, err)

	res, err := l.Cycle("")
	require.NoError(t, err)
	assert.Equal(t, "B", res.UnitKey)

	// Marker for the wrong story is ignored.
	res, err = l.Cycle("<<RELAY:STORY_PASS A>>")
	require.NoError(t, err)
	assert.Equal(t, "B", res.UnitKey)

	res, err = l.Cycle("<<RELAY:STORY_PASS B>>")
	require.NoError(t, err)
	assert.Equal(t, "A", res.UnitKey)

	res, err = l.Cycle("<<RELAY:STORY_PASS A>>")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
}

func TestCycle_SnapshotSoftFail(t *testing.T) {
	store := &memStore{}
	l := testLoop(t, store, &memCommitter{fail: true}, &memWorkspace{})
	startPhase(t, l, 10)

	_, err := l.Cycle("")
	require.NoError(t, err)

	// Snapshot failure never blocks advancement.
	res, err := l.Cycle("<<RELAY:PLAN_READY>>")
	require.NoError(t, err)
	assert.Equal(t, protocol.StageExpand, res.UnitKey)

	rec, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, rec.LastSnapshotID)
}

func TestCycle_ContextPathsRendered(t *testing.T) {
	store := &memStore{}
	ws := &memWorkspace{files: map[string]string{"docs/arch.md": "the architecture"}}
	l := testLoop(t, store, &memCommitter{history: "abc1234 earlier work"}, ws)
	_, err := l.Start(StartOptions{
		Model:          protocol.ModelPhase,
		IterationLimit: 10,
		ContextPaths:   []string{"docs/arch.md", "docs/absent.md"},
	})
	require.NoError(t, err)

	res, err := l.Cycle("")
	require.NoError(t, err)
	assert.Contains(t, res.Instruction, "the architecture")
	assert.Contains(t, res.Instruction, "docs/absent.md (missing)")
	assert.Contains(t, res.Instruction, "abc1234 earlier work")
}

func TestCycle_TranscriptResponse(t *testing.T) {
	store := &memStore{}
	l := testLoop(t, store, &memCommitter{}, &memWorkspace{})
	startPhase(t, l, 10)
	_, err := l.Cycle("")
	require.NoError(t, err)

	transcript := `{"type":"assistant","message":{"content":[{"type":"text","text":"done <<RELAY:PLAN_READY>>"}]}}`
	res, err := l.Cycle(transcript)
	require.NoError(t, err)
	assert.Equal(t, protocol.StageExpand, res.UnitKey)
}

func TestCycleTranscript_GrowingTranscript(t *testing.T) {
	store := &memStore{}
	l := testLoop(t, store, &memCommitter{}, &memWorkspace{})
	_, err := l.Start(StartOptions{
		Model:          protocol.ModelStory,
		IterationLimit: 20,
		Stories: []domain.Story{
			{ID: "A", Title: "a", Priority: 2},
			{ID: "B", Title: "b", Priority: 1},
		},
	})
	require.NoError(t, err)

	res, err := l.CycleTranscript("")
	require.NoError(t, err)
	assert.Equal(t, "B", res.UnitKey)

	turn1 := `{"type":"assistant","message":{"content":[{"type":"text","text":"done <<RELAY:STORY_PASS B>>"}]}}` + "\n"
	res, err = l.CycleTranscript(turn1)
	require.NoError(t, err)
	require.Equal(t, StateRunning, res.State)
	assert.Equal(t, "A", res.UnitKey)

	// The session transcript only grows. The marker consumed above is
	// still present in the file; only the appended turn may be evaluated,
	// or the stale marker would shadow the fresh one forever.
	turn2 := turn1 + `{"type":"assistant","message":{"content":[{"type":"text","text":"done <<RELAY:STORY_PASS A>>"}]}}` + "\n"
	res, err = l.CycleTranscript(turn2)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
}

func TestCycleTranscript_NewSessionResetsOffset(t *testing.T) {
	store := &memStore{}
	l := testLoop(t, store, &memCommitter{}, &memWorkspace{})
	startPhase(t, l, 10)

	_, err := l.CycleTranscript("a long first session with plenty of text and no signal in it")
	require.NoError(t, err)

	// A shorter transcript than the recorded offset means the agent
	// started a new session file; it is evaluated from the top.
	res, err := l.CycleTranscript("<<RELAY:PLAN_READY>>")
	require.NoError(t, err)
	assert.Equal(t, protocol.StageExpand, res.UnitKey)
}

func TestCycle_CompletionOnLimitCycle(t *testing.T) {
	store := &memStore{}
	l := testLoop(t, store, &memCommitter{}, &memWorkspace{})
	_, err := l.Start(StartOptions{
		Model:          protocol.ModelStory,
		IterationLimit: 2,
		Stories:        []domain.Story{{ID: "A", Title: "a", Priority: 1}},
	})
	require.NoError(t, err)

	_, err = l.Cycle("")
	require.NoError(t, err)

	// The confirming marker lands exactly on the limit cycle: the
	// completion edge runs before the governor, so the workflow closes
	// as completed rather than halted.
	res, err := l.Cycle("<<RELAY:STORY_PASS A>>")
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, 2, res.Iteration)
	assert.Equal(t, safety.ExitReasonComplete, res.Reason)
}

func TestSkip(t *testing.T) {
	store := &memStore{}
	l := testLoop(t, store, &memCommitter{}, &memWorkspace{})
	startPhase(t, l, 10)

	res, err := l.Skip()
	require.NoError(t, err)
	assert.Equal(t, StateRunning, res.State)
	assert.Equal(t, protocol.StageExpand, res.UnitKey)

	rec, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, protocol.StageExpand, rec.Phase.Stage)
}

func TestCancel(t *testing.T) {
	store := &memStore{}
	l := testLoop(t, store, &memCommitter{}, &memWorkspace{})
	startPhase(t, l, 10)
	require.NoError(t, l.Cancel())

	res, err := l.Cycle("")
	require.NoError(t, err)
	assert.Equal(t, StateNoWorkflow, res.State)
}
