package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/worksonmyai/relay/internal/selector"
	"github.com/worksonmyai/relay/internal/state"
)

var statusFull bool

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	unitStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active workflow record",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusFull, "full", false, "render the full state document")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	store := state.NewStore(workDir)

	rec, err := store.Load()
	if err != nil || rec == nil {
		fmt.Println("No active workflow")
		return nil
	}

	if statusFull {
		return renderFull(store.Path())
	}

	fmt.Println(titleStyle.Render("Workflow " + rec.ID))
	fmt.Printf("%s %s\n", labelStyle.Render("model:"), rec.Model)
	fmt.Printf("%s %d/%d\n", labelStyle.Render("iteration:"), rec.IterationCount, rec.IterationLimit)
	fmt.Printf("%s %s\n", labelStyle.Render("started:"), rec.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if rec.LastSnapshotID != "" {
		fmt.Printf("%s %.7s\n", labelStyle.Render("snapshot:"), rec.LastSnapshotID)
	}

	unit, complete := selector.Current(rec)
	if complete {
		fmt.Println(doneStyle.Render("all units complete"))
	} else {
		fmt.Printf("%s %s\n", labelStyle.Render("current unit:"), unitStyle.Render(unit.Key()))
	}

	switch {
	case rec.Phase != nil && len(rec.Phase.Items) > 0:
		fmt.Printf("%s %d/%d items done\n", labelStyle.Render("progress:"), rec.Phase.CompletedItems(), len(rec.Phase.Items))
	case rec.Story != nil:
		fmt.Printf("%s %d stories open\n", labelStyle.Render("progress:"), rec.Story.Remaining())
	}
	return nil
}

// renderFull renders the human-readable body of the state document.
func renderFull(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read state file: %w", err)
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return err
	}
	out, err := r.Render(string(data))
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
