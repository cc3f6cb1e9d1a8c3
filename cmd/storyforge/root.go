package main

import (
	"fmt"
	"log"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/storyforge/internal/cascade"
	"github.com/ShayCichocki/storyforge/internal/config"
	"github.com/ShayCichocki/storyforge/internal/generator"
	"github.com/ShayCichocki/storyforge/internal/parser"
	"github.com/ShayCichocki/storyforge/internal/pipeline"
	"github.com/ShayCichocki/storyforge/internal/registry"
)

var (
	cfg        *config.Config
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "storyforge",
	Short: "Turn requirement documents into development artifacts",
	Long: `StoryForge reads a requirements document and generates the artifacts a
team needs to start building: epics and user stories, a data model with an
ER diagram, functional tests, Gherkin scenarios, and a code scaffold.

Generation runs as a staged pipeline. Each stage can be run one at a time
with review in between, or all at once. Artifacts stay traceable to the
document chunks they came from, so edits can flag exactly what needs
regeneration.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			cfg, err = config.LoadFromPath(configPath)
		} else {
			cfg, err = config.Load()
		}
		return err
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (overrides discovery)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

// buildOrchestrator assembles the pipeline against the real Claude client.
func buildOrchestrator(c *config.Config) (*pipeline.Orchestrator, *cascade.Analyzer, *registry.Registry, error) {
	client, err := generator.NewClient(generator.ClientConfig{
		Model:         anthropic.Model(c.Anthropic.Model),
		APIKey:        c.Anthropic.APIKey,
		UseAWSBedrock: c.Anthropic.UseBedrock,
		AWSRegion:     c.Anthropic.AWSRegion,
		AWSProfile:    c.Anthropic.AWSProfile,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create anthropic client: %w", err)
	}
	transport := "direct"
	if client.Bedrock() {
		transport = "bedrock"
	}
	log.Printf("[cli] anthropic transport %s, model %s", transport, client.Model())

	gate := generator.NewGate(int64(c.Pipeline.MaxConcurrentCalls), c.Pipeline.StageDelay)
	gen := generator.NewClaudeGenerator(client, gate, generator.RetryPolicy{
		Attempts: c.Pipeline.RetryAttempts,
		Backoff:  c.Pipeline.RetryBackoff,
	})

	reg, err := openRegistry(c)
	if err != nil {
		return nil, nil, nil, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	debug := pipeline.NewDebugLoggerForDir(cwd)

	orch := pipeline.NewOrchestrator(c, gen, parser.NewTextParser(), reg, gate, debug)
	analyzer := cascade.NewAnalyzer(c, reg, gen)
	return orch, analyzer, reg, nil
}

func openRegistry(c *config.Config) (*registry.Registry, error) {
	switch c.Store.Backend {
	case "", "memory":
		return registry.New(registry.NewMemoryStore()), nil
	case "sqlite":
		path := c.Store.SQLitePath
		if path == "" {
			path = ".storyforge/jobs.db"
		}
		store, err := registry.OpenSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("open job store: %w", err)
		}
		return registry.New(store), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q (want memory or sqlite)", c.Store.Backend)
	}
}
