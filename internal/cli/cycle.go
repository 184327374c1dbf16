package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/worksonmyai/relay/internal/loop"
)

var cycleResponseFile string

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run one orchestration cycle and print the next instruction",
	Long: `The agent-idle trigger. Evaluates the agent's last response (stdin by
default, or --response FILE), advances the workflow on a matched completion
marker, and prints the next instruction. Plain text and stream-json
transcripts are both accepted.

Run with no piped input for the first trigger after relay start.`,
	RunE: runCycle,
}

func init() {
	cycleCmd.Flags().StringVar(&cycleResponseFile, "response", "", "file containing the agent's last response (- for stdin)")
	rootCmd.AddCommand(cycleCmd)
}

func runCycle(cmd *cobra.Command, _ []string) error {
	response, err := readResponse(cmd.InOrStdin())
	if err != nil {
		return err
	}

	l, _, _, err := buildLoop()
	if err != nil {
		return err
	}

	res, err := l.Cycle(response)
	if err != nil {
		return err
	}
	return printCycleResult(res)
}

func readResponse(stdin io.Reader) (string, error) {
	switch cycleResponseFile {
	case "", "-":
		if f, ok := stdin.(*os.File); ok {
			// Only consume stdin when something is piped in.
			info, err := f.Stat()
			if err != nil || info.Mode()&os.ModeCharDevice != 0 {
				return "", nil
			}
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read response from stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(cycleResponseFile)
		if err != nil {
			return "", fmt.Errorf("read response file: %w", err)
		}
		return string(data), nil
	}
}

func printCycleResult(res *loop.CycleResult) error {
	switch res.State {
	case loop.StateNoWorkflow:
		fmt.Fprintln(os.Stderr, "No active workflow. Run `relay start` first.")
		return nil
	case loop.StateHalted:
		return fmt.Errorf("workflow halted: iteration limit reached after %d cycles", res.Iteration)
	case loop.StateCompleted:
		fmt.Fprintf(os.Stderr, "Workflow complete after %d cycles.\n", res.Iteration)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "[%d/%d] unit %s\n", res.Iteration, res.Limit, res.UnitKey)
		fmt.Println(res.Instruction)
		return nil
	}
}
