package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/worksonmyai/relay/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage relay configuration",
	Long:  `View and manage relay configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show resolved configuration with source annotations",
	Long: `Show the fully resolved configuration with annotations indicating
where each value came from.

Configuration is loaded from multiple sources with the following precedence:
  1. Embedded defaults (built into binary)
  2. Global config (~/.config/relay/config.yaml)
  3. Environment variables (RELAY_*)
  4. Local config (.relay/config.yaml)
  5. CLI flags (highest precedence)`,
	RunE: runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := config.Load(workDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("# Relay Configuration")
	fmt.Println()
	fmt.Println("## Sources (in order of precedence)")
	for _, src := range cfg.Sources() {
		fmt.Printf("  - %s\n", src)
	}
	fmt.Println()

	fmt.Println("## Directories")
	fmt.Printf("  Global config: %s\n", cfg.GlobalDir())
	if cfg.LocalDir() != "" {
		fmt.Printf("  Local config:  %s\n", cfg.LocalDir())
	} else {
		fmt.Printf("  Local config:  (none detected)\n")
	}
	fmt.Println()

	fmt.Println("## Workflow Settings")
	fmt.Printf("  model:           %s\n", cfg.Model)
	fmt.Printf("  iteration_limit: %d\n", cfg.IterationLimit)
	fmt.Printf("  items_glob:      %s\n", cfg.ItemsGlob)
	fmt.Printf("  history_window:  %d\n", cfg.HistoryWindow)
	if len(cfg.ContextPaths) > 0 {
		fmt.Printf("  context_paths:   %s\n", strings.Join(cfg.ContextPaths, ", "))
	} else {
		fmt.Printf("  context_paths:   (none)\n")
	}

	return nil
}
