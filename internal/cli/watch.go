package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/worksonmyai/relay/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live terminal view of the active workflow",
	Long: `Opens a read-only terminal UI that follows the workflow record and
refreshes whenever the state directory changes.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(_ *cobra.Command, _ []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	return watch.Run(workDir)
}
