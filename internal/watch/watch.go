// Package watch implements the live workflow monitor using bubbletea.
// It is read-only: the display refreshes whenever the state directory
// changes, and never writes the record itself.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"

	"github.com/worksonmyai/relay/internal/debug"
	"github.com/worksonmyai/relay/internal/domain"
	"github.com/worksonmyai/relay/internal/protocol"
	"github.com/worksonmyai/relay/internal/selector"
	"github.com/worksonmyai/relay/internal/state"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	unitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

type recordMsg struct {
	rec *domain.Record
}

type dirChangedMsg struct{}

type watchErrMsg struct {
	err error
}

type Model struct {
	store      *state.Store
	rec        *domain.Record
	spinner    spinner.Model
	width      int
	height     int
	lastChange time.Time
	err        error
}

func NewModel(store *state.Store) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		store:   store,
		spinner: s,
	}
}

func (m Model) loadRecord() tea.Msg {
	rec, err := m.store.Load()
	if err != nil {
		debug.Logf("watch: load record: %v", err)
	}
	return recordMsg{rec: rec}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadRecord)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.loadRecord
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case dirChangedMsg:
		m.lastChange = time.Now()
		return m, m.loadRecord

	case recordMsg:
		m.rec = msg.rec

	case watchErrMsg:
		m.err = msg.err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("RELAY WATCH"))
	b.WriteString("\n")

	if m.rec == nil {
		b.WriteString(idleStyle.Render("no active workflow"))
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("waiting for relay start..."))
	} else {
		b.WriteString(m.renderRecord())
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(idleStyle.Render(fmt.Sprintf("watch error: %v", m.err)))
	}

	width := min(m.width-2, 72)
	box := boxStyle.Width(width).Render(b.String())
	return box + "\n" + helpStyle.Render("r: refresh • q: quit")
}

func (m Model) renderRecord() string {
	rec := m.rec
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(valueStyle.Render(" workflow " + rec.ID))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Model:     "))
	b.WriteString(valueStyle.Render(rec.Model))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Iteration: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d/%d", rec.IterationCount, rec.IterationLimit)))
	b.WriteString("\n")
	if rec.LastSnapshotID != "" {
		b.WriteString(labelStyle.Render("Snapshot:  "))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%.7s", rec.LastSnapshotID)))
		b.WriteString("\n")
	}

	unit, complete := selector.Current(rec)
	b.WriteString(labelStyle.Render("Unit:      "))
	if complete {
		b.WriteString(doneStyle.Render("all complete"))
	} else {
		b.WriteString(unitStyle.Render(unit.Key()))
	}
	b.WriteString("\n")

	switch {
	case rec.Phase != nil:
		b.WriteString(m.renderPhase(rec.Phase))
	case rec.Story != nil:
		b.WriteString(m.renderStories(rec.Story))
	}

	if n := len(rec.Notes); n > 0 {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("Recent progress"))
		b.WriteString("\n")
		from := max(0, n-5)
		for _, note := range rec.Notes[from:] {
			b.WriteString(labelStyle.Render("  " + note))
			b.WriteString("\n")
		}
	}

	if !m.lastChange.IsZero() {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("last change " + m.lastChange.Format("15:04:05")))
	}
	return b.String()
}

func (m Model) renderPhase(cur *domain.PhaseCursor) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Stages"))
	b.WriteString("\n")

	curIdx := protocol.StageIndex(cur.Stage)
	for i, stage := range protocol.StageOrder {
		switch {
		case i < curIdx:
			b.WriteString(doneStyle.Render("  ✓ " + stage))
		case i == curIdx:
			b.WriteString(unitStyle.Render("  → " + stage))
		default:
			b.WriteString(labelStyle.Render("  ○ " + stage))
		}
		b.WriteString("\n")
	}

	if len(cur.Items) > 0 {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(fmt.Sprintf("Items (%d/%d)", cur.CompletedItems(), len(cur.Items))))
		b.WriteString("\n")
		for _, it := range cur.Items {
			switch it.Status {
			case protocol.ItemCompleted:
				b.WriteString(doneStyle.Render("  ✓ " + it.ID))
			case protocol.ItemSkipped:
				b.WriteString(labelStyle.Render("  - " + it.ID + " (skipped)"))
			case protocol.ItemInProgress:
				b.WriteString(unitStyle.Render("  → " + it.ID))
			default:
				b.WriteString(labelStyle.Render("  ○ " + it.ID))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderStories(cur *domain.StoryCursor) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(labelStyle.Render(fmt.Sprintf("Stories (%d open)", cur.Remaining())))
	b.WriteString("\n")

	current := cur.CurrentStoryIndex()
	for i, st := range cur.Stories {
		line := fmt.Sprintf("p%d %s: %s", st.Priority, st.ID, st.Title)
		switch {
		case st.Passes:
			b.WriteString(doneStyle.Render("  ✓ " + line))
		case i == current:
			b.WriteString(unitStyle.Render("  → " + line))
		default:
			b.WriteString(labelStyle.Render("  ○ " + line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Run starts the watcher for workDir and blocks until the user quits.
func Run(workDir string) error {
	store := state.NewStore(workDir)
	program := tea.NewProgram(NewModel(store), tea.WithAltScreen())

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// The state directory may not exist yet; watch the work directory
	// too so its creation is picked up.
	stateDir := filepath.Dir(filepath.Join(workDir, protocol.StateFileName))
	if err := watcher.Add(workDir); err != nil {
		return fmt.Errorf("watch %s: %w", workDir, err)
	}
	if info, err := os.Stat(stateDir); err == nil && info.IsDir() {
		if err := watcher.Add(stateDir); err != nil {
			return fmt.Errorf("watch %s: %w", stateDir, err)
		}
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				debug.Logf("watch: fs event %s", event)
				if event.Name == stateDir && event.Has(fsnotify.Create) {
					_ = watcher.Add(stateDir)
				}
				if strings.HasPrefix(event.Name, stateDir) {
					program.Send(dirChangedMsg{})
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				program.Send(watchErrMsg{err: err})
			}
		}
	}()

	_, err = program.Run()
	return err
}
