package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel the active workflow",
	Long: `Deletes the workflow record. Work already committed to the repository
is untouched; a later start begins a fresh workflow.`,
	RunE: runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(_ *cobra.Command, _ []string) error {
	l, _, _, err := buildLoop()
	if err != nil {
		return err
	}
	if err := l.Cancel(); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Workflow cancelled.")
	return nil
}
