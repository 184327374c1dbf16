package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/worksonmyai/relay/internal/domain"
	"github.com/worksonmyai/relay/internal/loop"
	"github.com/worksonmyai/relay/internal/protocol"
)

var (
	startModel        string
	startLimit        int
	startContextPaths []string
	startStoriesFile  string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new workflow in the current directory",
	Long: `Create the initial workflow record and print an activation summary.
The first instruction is produced by the first cycle trigger.

With --model story, a stories file (YAML) defines the queue:

    stories:
      - id: S-1
        title: User login
        priority: 1
        acceptance_criteria:
          - login form works`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&startModel, "model", "", "work unit model: phase or story")
	startCmd.Flags().IntVar(&startLimit, "iteration-limit", 0, "hard cap on total cycles")
	startCmd.Flags().StringArrayVar(&startContextPaths, "context", nil, "context path included in every instruction (repeatable)")
	startCmd.Flags().StringVar(&startStoriesFile, "stories", "", "stories file for the story model")
	rootCmd.AddCommand(startCmd)
}

func runStart(_ *cobra.Command, _ []string) error {
	l, cfg, workDir, err := buildLoop()
	if err != nil {
		return err
	}

	opts := loop.StartOptions{
		Model:          cfg.Model,
		IterationLimit: cfg.IterationLimit,
		ContextPaths:   cfg.ContextPaths,
		WorkDir:        workDir,
	}
	if startModel != "" {
		opts.Model = startModel
	}
	if startLimit > 0 {
		opts.IterationLimit = startLimit
	}
	if len(startContextPaths) > 0 {
		opts.ContextPaths = startContextPaths
	}
	if opts.Model == protocol.ModelStory {
		if startStoriesFile == "" {
			return fmt.Errorf("--stories is required with --model story")
		}
		stories, err := loadStories(startStoriesFile)
		if err != nil {
			return err
		}
		opts.Stories = stories
	}

	rec, err := l.Start(opts)
	if err != nil {
		return err
	}

	fmt.Printf("Started workflow %s\n", rec.ID)
	fmt.Printf("  model:           %s\n", rec.Model)
	fmt.Printf("  iteration limit: %d\n", rec.IterationLimit)
	if len(rec.ContextPaths) > 0 {
		fmt.Printf("  context paths:   %v\n", rec.ContextPaths)
	}
	if rec.Story != nil {
		fmt.Printf("  stories:         %d\n", len(rec.Story.Stories))
	}
	fmt.Println("\nRun `relay cycle` to produce the first instruction.")
	return nil
}

// storiesFile is the YAML shape of a story queue definition.
type storiesFile struct {
	Stories []domain.Story `yaml:"stories"`
}

func loadStories(path string) ([]domain.Story, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stories file: %w", err)
	}
	var f storiesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse stories file %s: %w", path, err)
	}
	if len(f.Stories) == 0 {
		return nil, fmt.Errorf("stories file %s defines no stories", path)
	}
	seen := make(map[string]struct{}, len(f.Stories))
	for i, s := range f.Stories {
		if s.ID == "" {
			return nil, fmt.Errorf("story %d has no id", i)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("duplicate story id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return f.Stories, nil
}
