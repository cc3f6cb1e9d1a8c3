package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/storyforge/internal/export"
	"github.com/ShayCichocki/storyforge/internal/pipeline"
	"github.com/ShayCichocki/storyforge/pkg/models"
)

var (
	watchInstructions string
	watchArtifacts    string
	watchOutDir       string
)

var watchCmd = &cobra.Command{
	Use:   "watch <directory>",
	Short: "Watch a directory and process documents as they appear",
	Long: `Watch a directory for requirements documents (.txt, .md, .markdown)
and run the full pipeline on each new or updated file.

Completed jobs are exported as zip archives next to the source document,
or into --out-dir when set. Writes are debounced so editors that save in
multiple steps trigger a single run.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchInstructions, "instructions", "", "Free-text guidance passed to every generation stage")
	watchCmd.Flags().StringVar(&watchArtifacts, "artifacts", "", "Comma-separated stages to enable (default: all)")
	watchCmd.Flags().StringVar(&watchOutDir, "out-dir", "", "Directory for exported archives (default: alongside the document)")
}

// watchDebounce is how long a file must stay quiet before it is picked up.
const watchDebounce = 2 * time.Second

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	toggles, err := parseToggles(watchArtifacts)
	if err != nil {
		return err
	}

	orch, _, reg, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	defer reg.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printStatus("✓", fmt.Sprintf("Watching %s for documents", dir), color.FgGreen)

	var (
		mu      sync.Mutex
		pending = map[string]*time.Timer{}
		wg      sync.WaitGroup
	)

	submit := func(path string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			processDocument(ctx, orch, path, toggles)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			for _, t := range pending {
				t.Stop()
			}
			mu.Unlock()
			wg.Wait()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				wg.Wait()
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !watchableDocument(event.Name) {
				continue
			}

			path := event.Name
			mu.Lock()
			if t, ok := pending[path]; ok {
				t.Reset(watchDebounce)
			} else {
				pending[path] = time.AfterFunc(watchDebounce, func() {
					mu.Lock()
					delete(pending, path)
					mu.Unlock()
					submit(path)
				})
			}
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				wg.Wait()
				return nil
			}
			printStatus("⚠", fmt.Sprintf("watch error: %v", err), color.FgYellow)
		}
	}
}

func processDocument(ctx context.Context, orch *pipeline.Orchestrator, path string, toggles models.ArtifactToggles) {
	data, err := os.ReadFile(path)
	if err != nil {
		printStatus("✗", fmt.Sprintf("%s: read failed: %v", path, err), color.FgRed)
		return
	}

	j, err := orch.CreateJob(data, filepath.Base(path), watchInstructions, toggles)
	if err != nil {
		printStatus("✗", fmt.Sprintf("%s: %v", path, err), color.FgRed)
		return
	}
	printStatus("→", fmt.Sprintf("%s: job %s started", path, j.ID()), color.FgCyan)

	if err := orch.RunAll(ctx, j.ID()); err != nil {
		printStatus("✗", fmt.Sprintf("%s: job %s failed: %v", path, j.ID(), err), color.FgRed)
		return
	}

	snap, err := orch.Snapshot(j.ID())
	if err != nil {
		printStatus("✗", fmt.Sprintf("%s: job %s: %v", path, j.ID(), err), color.FgRed)
		return
	}

	out := archivePathFor(path, snap)
	if err := writeArchiveFile(out, snap); err != nil {
		printStatus("✗", fmt.Sprintf("%s: export failed: %v", path, err), color.FgRed)
		return
	}
	printStatus("✓", fmt.Sprintf("%s: artifacts written to %s", path, out), color.FgGreen)
}

func archivePathFor(docPath string, snap models.JobSnapshot) string {
	name := export.ArchiveName(snap)
	if watchOutDir != "" {
		return filepath.Join(watchOutDir, name)
	}
	return filepath.Join(filepath.Dir(docPath), name)
}

func watchableDocument(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown":
		return true
	}
	return false
}

func printStatus(symbol, msg string, c color.Attribute) {
	color.New(c).Printf("%s ", symbol)
	fmt.Println(msg)
}
