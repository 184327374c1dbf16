package cli

import (
	"github.com/spf13/cobra"
)

var skipCmd = &cobra.Command{
	Use:   "skip",
	Short: "Mark the current work unit skipped and move on",
	Long: `Marks the unit under the cursor as skipped without waiting for the
agent's completion marker, then prints the instruction for the next unit.
The skip is recorded in the workflow notes.`,
	RunE: runSkip,
}

func init() {
	rootCmd.AddCommand(skipCmd)
}

func runSkip(_ *cobra.Command, _ []string) error {
	l, _, _, err := buildLoop()
	if err != nil {
		return err
	}
	res, err := l.Skip()
	if err != nil {
		return err
	}
	return printCycleResult(res)
}
