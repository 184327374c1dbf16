// Package cli implements the relay command surface. Commands are thin
// wrappers: they read and display state, build the loop, and hand the
// decision-making to internal/loop.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// SetVersionInfo sets version information for the version command.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Resumable workflow orchestrator for stateless coding agents",
	Long: `relay coordinates a long-running build executed by an external coding
agent one invocation at a time. It persists progress between invocations,
decides the next unit of work, assembles the instruction for it, detects
the completion marker in the agent's response, and snapshots progress.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("relay %s (commit %s, built %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the shared stderr logger. RELAY_DEBUG=1 lowers the
// level to debug.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("RELAY_DEBUG") == "1" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
