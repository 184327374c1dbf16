package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/worksonmyai/relay/internal/debug"
	"github.com/worksonmyai/relay/internal/loop"
)

var hookCmd = &cobra.Command{
	Use:    "hook",
	Short:  "Internal Stop-hook adapter for the coding agent",
	Long:   `Reads the agent's Stop hook payload on stdin, runs one cycle over the transcript, and blocks the stop with the next instruction while the workflow is running.`,
	Hidden: true,
	RunE:   runHook,
}

var hookInstallGlobal bool

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Register relay as the agent's Stop hook",
	RunE:  runHookInstall,
}

func init() {
	hookInstallCmd.Flags().BoolVar(&hookInstallGlobal, "global", false, "install into the user-level settings instead of the project")
	hookCmd.AddCommand(hookInstallCmd)
	rootCmd.AddCommand(hookCmd)
}

type hookBlock struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

func runHook(_ *cobra.Command, _ []string) error {
	payload, err := io.ReadAll(os.Stdin)
	if err != nil {
		debug.Logf("hook: failed to read stdin: %v", err)
		return nil
	}
	debug.Logf("hook: received payload (%d bytes)", len(payload))

	transcript := ""
	if path := gjson.GetBytes(payload, "transcript_path").String(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			debug.Logf("hook: cannot read transcript %s: %v", path, err)
		} else {
			transcript = string(data)
		}
	}

	l, _, _, err := buildLoop()
	if err != nil {
		return err
	}

	// The session transcript accumulates across turns; CycleTranscript
	// evaluates only what was appended since the previous cycle.
	res, err := l.CycleTranscript(transcript)
	if err != nil {
		return err
	}

	switch res.State {
	case loop.StateRunning:
		// Blocking the stop feeds the next instruction back to the agent.
		out, err := json.Marshal(hookBlock{Decision: "block", Reason: res.Instruction})
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	case loop.StateCompleted:
		fmt.Fprintf(os.Stderr, "Workflow complete after %d cycles.\n", res.Iteration)
	case loop.StateHalted:
		fmt.Fprintf(os.Stderr, "Workflow halted: iteration limit reached after %d cycles.\n", res.Iteration)
	}
	return nil
}

func runHookInstall(_ *cobra.Command, _ []string) error {
	path, err := settingsPath(hookInstallGlobal)
	if err != nil {
		return err
	}
	if err := installStopHook(path, "relay hook"); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Stop hook registered in %s\n", path)
	return nil
}

func settingsPath(global bool) (string, error) {
	if global {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".claude", "settings.json"), nil
	}
	workDir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(workDir, ".claude", "settings.json"), nil
}

// installStopHook appends a Stop hook entry running command to the agent
// settings file, creating the file when absent. Existing entries with the
// same command are left alone.
func installStopHook(path, command string) error {
	settings := []byte("{}")
	if data, err := os.ReadFile(path); err == nil {
		settings = data
	}
	if !gjson.ValidBytes(settings) {
		return fmt.Errorf("settings file %s is not valid JSON", path)
	}

	for _, entry := range gjson.GetBytes(settings, "hooks.Stop.#.hooks.#.command").Array() {
		for _, cmd := range entry.Array() {
			if cmd.String() == command {
				return nil
			}
		}
	}

	entry := map[string]any{
		"hooks": []map[string]any{
			{"type": "command", "command": command},
		},
	}
	settings, err := sjson.SetBytes(settings, "hooks.Stop.-1", entry)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	return os.WriteFile(path, pretty.Pretty(settings), 0o644)
}
