package pipeline

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/storyforge/internal/config"
	"github.com/ShayCichocki/storyforge/internal/generator"
	"github.com/ShayCichocki/storyforge/internal/job"
	"github.com/ShayCichocki/storyforge/internal/parser"
	"github.com/ShayCichocki/storyforge/internal/registry"
	"github.com/ShayCichocki/storyforge/pkg/models"
)

// Step names, one per tracked unit of work within a job.
const (
	StepParseDocument   = "parse_document"
	StepEpicsStories    = "generate_epics_and_stories"
	StepDataModel       = "generate_data_model"
	StepFunctionalTests = "generate_functional_tests"
	StepGherkinTests    = "generate_gherkin_tests"
	StepCodeGeneration  = "generate_code_skeleton"
)

func stepForStage(s models.Stage) string {
	switch s {
	case models.StageEpics:
		return StepEpicsStories
	case models.StageDataModel:
		return StepDataModel
	case models.StageFunctionalTests:
		return StepFunctionalTests
	case models.StageGherkinTests:
		return StepGherkinTests
	case models.StageCodeGeneration:
		return StepCodeGeneration
	}
	return ""
}

// Orchestrator drives jobs through the stage sequence. One orchestrator
// serves the whole process; per-call state lives on the job.
type Orchestrator struct {
	cfg   *config.Config
	gen   generator.Generator
	parse parser.Parser
	reg   *registry.Registry
	gate  *generator.Gate
	debug *DebugLogger
}

// NewOrchestrator creates an orchestrator. A nil debug logger disables the
// debug log file.
func NewOrchestrator(cfg *config.Config, gen generator.Generator, p parser.Parser, reg *registry.Registry, gate *generator.Gate, debug *DebugLogger) *Orchestrator {
	if debug == nil {
		debug = NopLogger()
	}
	return &Orchestrator{
		cfg:   cfg,
		gen:   gen,
		parse: p,
		reg:   reg,
		gate:  gate,
		debug: debug,
	}
}

// Registry returns the job registry this orchestrator writes to.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.reg
}

// CreateJob registers a new pending job holding the uploaded document. The
// document is not parsed yet; RunAll or AdvanceStage does that.
func (o *Orchestrator) CreateJob(data []byte, filename, instructions string, toggles models.ArtifactToggles) (*job.Job, error) {
	if len(data) == 0 {
		return nil, models.InvalidRequestf("empty document")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return nil, models.InvalidRequestf("filename %q has no extension", filename)
	}

	j := job.New(uuid.NewString(), instructions, toggles)
	j.SetSource(data, ext, filename)
	if err := o.reg.Add(j); err != nil {
		return nil, err
	}

	log.Printf("[pipeline] created job %s for %s", j.ID(), filename)
	o.debug.Log("job %s created: file=%s toggles=%+v", j.ID(), filename, toggles)
	return j, nil
}

// RunAll executes every enabled stage of the job in order, blocking until
// the job completes or fails. Callers wanting async execution run it in a
// goroutine and poll the job snapshot.
func (o *Orchestrator) RunAll(ctx context.Context, jobID string) error {
	j, err := o.reg.Get(jobID)
	if err != nil {
		return err
	}
	if j.Status().Terminal() {
		return models.InvalidRequestf("job %s already %s", jobID, j.Status())
	}

	enabled := enabledStages(j.Toggles())
	if err := o.registerSteps(j, enabled); err != nil {
		return err
	}
	j.SetStatus(models.JobStatusRunning)

	if err := o.ensureParsed(ctx, j); err != nil {
		o.fail(j, err)
		return err
	}

	for i, stage := range enabled {
		if i > 0 && o.gate != nil {
			if err := o.gate.Pause(ctx); err != nil {
				o.fail(j, err)
				return err
			}
		}

		already, err := j.AdvanceStage(stage)
		if err != nil {
			o.fail(j, err)
			return err
		}
		if already {
			// Completed by an earlier staged run; nothing to regenerate.
			log.Printf("[pipeline] job %s stage %s already completed, skipping", jobID, stage)
			continue
		}
		if err := o.runStage(ctx, j, stage); err != nil {
			o.fail(j, err)
			return err
		}
		if err := j.CompleteCurrentStage(); err != nil {
			o.fail(j, err)
			return err
		}
		o.checkpoint(j)
	}

	j.SetStatus(models.JobStatusCompleted)
	o.checkpoint(j)
	log.Printf("[pipeline] job %s completed", jobID)
	return nil
}

// registerSteps creates the job's step list for the enabled stages. Steps
// already present (from a previous staged run) are kept.
func (o *Orchestrator) registerSteps(j *job.Job, enabled []models.Stage) error {
	names := []string{StepParseDocument}
	for _, s := range enabled {
		names = append(names, stepForStage(s))
	}

	existing := make(map[string]bool)
	for _, st := range j.Steps() {
		existing[st.Name] = true
	}
	for _, name := range names {
		if existing[name] {
			continue
		}
		if err := j.AddStep(name); err != nil {
			return err
		}
	}
	return nil
}

func enabledStages(t models.ArtifactToggles) []models.Stage {
	var out []models.Stage
	for _, s := range models.StageOrder() {
		if t.Enabled(s) {
			out = append(out, s)
		}
	}
	return out
}

// ensureParsed parses the job's source document once; re-entry is a no-op.
func (o *Orchestrator) ensureParsed(ctx context.Context, j *job.Job) error {
	if j.Parsed() {
		return nil
	}

	data, ext := j.Source()
	if len(data) == 0 {
		return models.InvalidRequestf("job %s has no source document", j.ID())
	}

	return o.trackStep(j, StepParseDocument, func() error {
		doc, err := o.parse.Parse(ctx, data, ext)
		if err != nil {
			return err
		}
		j.SetDocument(doc)
		o.debug.Log("job %s parsed: %d chunks, %d sections", j.ID(), len(doc.Chunks), len(doc.Sections))
		return nil
	})
}

// trackStep runs fn, recording the step's transitions and duration. The
// step must have been registered; unknown names still run fn.
func (o *Orchestrator) trackStep(j *job.Job, name string, fn func() error) error {
	j.TransitionStep(name, models.StepStatusRunning, 0)
	start := time.Now()

	err := fn()
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		j.TransitionStep(name, models.StepStatusFailed, elapsed)
		return err
	}
	j.TransitionStep(name, models.StepStatusCompleted, elapsed)
	return nil
}

// runStage executes one stage's generation and stores its artifacts.
func (o *Orchestrator) runStage(ctx context.Context, j *job.Job, stage models.Stage) error {
	o.debug.Log("job %s stage %s starting", j.ID(), stage)
	return o.trackStep(j, stepForStage(stage), func() error {
		switch stage {
		case models.StageEpics:
			return o.runEpics(ctx, j)
		case models.StageDataModel:
			return o.runDataModel(ctx, j)
		case models.StageFunctionalTests:
			return o.runFunctionalTests(ctx, j)
		case models.StageGherkinTests:
			return o.runGherkinTests(ctx, j)
		case models.StageCodeGeneration:
			return o.runCodeGeneration(ctx, j)
		}
		return models.InvalidRequestf("unknown stage %q", stage)
	})
}

// baseRequest assembles the inputs shared by every stage call.
func (o *Orchestrator) baseRequest(j *job.Job) generator.Request {
	excerpt := ""
	if doc := j.Document(); doc != nil {
		excerpt = doc.Excerpt(o.cfg.Pipeline.ExcerptLimit)
	}
	return generator.Request{
		Excerpt:      excerpt,
		Instructions: j.Instructions(),
		GapFixes:     j.Store().AppliedGapFixes(),
	}
}

func (o *Orchestrator) runEpics(ctx context.Context, j *job.Job) error {
	result, err := o.gen.GenerateEpicsAndStories(ctx, generator.EpicsRequest{
		Request: o.baseRequest(j),
	})
	if err != nil {
		return err
	}
	if len(result.Epics) == 0 {
		return models.GeneratorFailuref("epics stage produced no epics")
	}

	j.Store().SetProjectName(result.ProjectName)
	return j.Store().AppendEpicsAndStories(result.Epics, result.Stories)
}

func (o *Orchestrator) runDataModel(ctx context.Context, j *job.Job) error {
	stories := j.Store().Stories()
	if len(stories) == 0 {
		return models.InvalidRequestf("data model stage requires stories")
	}

	result, err := o.gen.GenerateDataModel(ctx, generator.DataModelRequest{
		Request: o.baseRequest(j),
		Stories: stories,
	})
	if err != nil {
		return err
	}

	j.Store().SetDataModel(result.Entities, result.Mermaid)
	return nil
}

func (o *Orchestrator) runFunctionalTests(ctx context.Context, j *job.Job) error {
	stories := j.Store().Stories()
	if len(stories) == 0 {
		return models.InvalidRequestf("functional test stage requires stories")
	}

	result, err := o.gen.GenerateFunctionalTests(ctx, generator.TestsRequest{
		Request: o.baseRequest(j),
		Stories: stories,
	})
	if err != nil {
		return err
	}
	return j.Store().AppendFunctionalTests(result.Tests)
}

func (o *Orchestrator) runGherkinTests(ctx context.Context, j *job.Job) error {
	stories := j.Store().Stories()
	if len(stories) == 0 {
		return models.InvalidRequestf("behavioral test stage requires stories")
	}

	result, err := o.gen.GenerateGherkinScenarios(ctx, generator.TestsRequest{
		Request: o.baseRequest(j),
		Stories: stories,
	})
	if err != nil {
		return err
	}
	return j.Store().AppendScenarios(result.Scenarios)
}

func (o *Orchestrator) runCodeGeneration(ctx context.Context, j *job.Job) error {
	store := j.Store()
	result, err := o.gen.GenerateCodeSkeleton(ctx, generator.SkeletonRequest{
		Request:     o.baseRequest(j),
		ProjectName: store.ProjectName(),
		Epics:       store.Epics(),
		Stories:     store.Stories(),
		Entities:    store.Entities(),
	})
	if err != nil {
		return err
	}

	store.SetSkeleton(result.Skeleton, result.Tree)
	return nil
}

func (o *Orchestrator) fail(j *job.Job, err error) {
	log.Printf("[pipeline] job %s failed: %v", j.ID(), err)
	o.debug.Log("job %s failed: %v", j.ID(), err)
	j.MarkFailed(err.Error())
	o.checkpoint(j)
}

func (o *Orchestrator) checkpoint(j *job.Job) {
	if err := o.reg.Checkpoint(j.ID()); err != nil {
		log.Printf("[pipeline] checkpoint job %s: %v", j.ID(), err)
	}
}

// Snapshot returns the current view of a job.
func (o *Orchestrator) Snapshot(jobID string) (models.JobSnapshot, error) {
	return o.reg.Snapshot(jobID)
}
