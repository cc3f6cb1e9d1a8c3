package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/storyforge/internal/export"
	"github.com/ShayCichocki/storyforge/internal/pipeline"
	"github.com/ShayCichocki/storyforge/internal/tui"
	"github.com/ShayCichocki/storyforge/pkg/models"
)

var (
	runInstructions string
	runArtifacts    string
	runOut          string
	runTUI          bool
)

var runCmd = &cobra.Command{
	Use:   "run <document>",
	Short: "Run the full generation pipeline on a document",
	Long: `Run every enabled stage on a requirements document and export the
resulting artifacts as a zip archive.

Stages run in order: epics and stories, data model, functional tests,
Gherkin scenarios, code scaffold. Use --artifacts to limit which stages
run, e.g. --artifacts epics,functional_tests.`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVar(&runInstructions, "instructions", "", "Free-text guidance passed to every generation stage")
	runCmd.Flags().StringVar(&runArtifacts, "artifacts", "", "Comma-separated stages to enable (default: all)")
	runCmd.Flags().StringVar(&runOut, "out", "", "Archive output path (default: <project>-artifacts.zip)")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show live progress in a terminal UI")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	docPath := args[0]

	data, err := os.ReadFile(docPath)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	toggles, err := parseToggles(runArtifacts)
	if err != nil {
		return err
	}

	orch, _, reg, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	defer reg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	j, err := orch.CreateJob(data, filepath.Base(docPath), runInstructions, toggles)
	if err != nil {
		return err
	}
	fmt.Printf("job %s created from %s\n", j.ID(), docPath)

	if runTUI {
		err = runWithTUI(ctx, orch, j.ID())
	} else {
		err = orch.RunAll(ctx, j.ID())
	}
	if err != nil {
		return err
	}

	snap, err := orch.Snapshot(j.ID())
	if err != nil {
		return err
	}
	if snap.Status != models.JobStatusCompleted {
		return fmt.Errorf("job %s ended %s: %s", snap.JobID, snap.Status, snap.Error)
	}

	out := runOut
	if out == "" {
		out = export.ArchiveName(snap)
	}
	if err := writeArchiveFile(out, snap); err != nil {
		return err
	}
	fmt.Printf("artifacts written to %s\n", out)
	return nil
}

// runWithTUI drives the pipeline in the background while the progress
// view polls job state. The standard logger is silenced so log lines do
// not tear the alt-screen view.
func runWithTUI(ctx context.Context, orch *pipeline.Orchestrator, jobID string) error {
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- orch.RunAll(ctx, jobID)
	}()

	fetch := func() (models.JobSnapshot, error) {
		return orch.Snapshot(jobID)
	}
	if err := tui.Run(fetch, 300*time.Millisecond); err != nil {
		return err
	}
	return <-errCh
}

func writeArchiveFile(path string, snap models.JobSnapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	if err := export.WriteArchive(f, snap); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// parseToggles turns a comma-separated stage list into artifact toggles.
// An empty list enables everything.
func parseToggles(list string) (models.ArtifactToggles, error) {
	if strings.TrimSpace(list) == "" {
		return models.AllArtifacts(), nil
	}

	var toggles models.ArtifactToggles
	for _, name := range strings.Split(list, ",") {
		stage, err := models.ParseStage(strings.TrimSpace(name))
		if err != nil {
			return toggles, err
		}
		switch stage {
		case models.StageEpics:
			toggles.EpicsAndStories = true
		case models.StageDataModel:
			toggles.DataModel = true
		case models.StageFunctionalTests:
			toggles.FunctionalTests = true
		case models.StageGherkinTests:
			toggles.GherkinTests = true
		case models.StageCodeGeneration:
			toggles.CodeGeneration = true
		}
	}
	return toggles, nil
}
