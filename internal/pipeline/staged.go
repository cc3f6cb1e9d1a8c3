package pipeline

import (
	"context"
	"log"

	"github.com/ShayCichocki/storyforge/internal/job"
	"github.com/ShayCichocki/storyforge/pkg/models"
)

// StageResult reports the outcome of a single staged execution.
type StageResult struct {
	// Stage is the stage that was requested.
	Stage models.Stage `json:"stage"`
	// AlreadyCompleted is true when the stage had finished previously and
	// no generation ran; re-entry is idempotent.
	AlreadyCompleted bool `json:"already_completed"`
}

// AdvanceStage runs one stage of a job on demand, for review-as-you-go
// workflows. Moving to a stage implicitly approves the one being left.
// Requesting a completed stage is a no-op that repositions the current
// pointer and reports already_completed; the job never regresses.
func (o *Orchestrator) AdvanceStage(ctx context.Context, jobID, stageName string) (*StageResult, error) {
	stage, err := models.ParseStage(stageName)
	if err != nil {
		return nil, err
	}

	j, err := o.reg.Get(jobID)
	if err != nil {
		return nil, err
	}
	if j.Status() == models.JobStatusFailed {
		return nil, models.InvalidRequestf("job %s has failed; create a new job", jobID)
	}
	if !j.Toggles().Enabled(stage) {
		return nil, models.InvalidRequestf("stage %s is disabled for job %s", stage, jobID)
	}

	if err := o.registerSteps(j, enabledStages(j.Toggles())); err != nil {
		return nil, err
	}

	// First staged call bootstraps parsing.
	if err := o.ensureParsed(ctx, j); err != nil {
		o.fail(j, err)
		return nil, err
	}

	if err := o.checkStagePrereqs(j, stage); err != nil {
		return nil, err
	}

	already, err := j.AdvanceStage(stage)
	if err != nil {
		return nil, err
	}
	if already {
		log.Printf("[pipeline] job %s stage %s already completed", jobID, stage)
		// No generation ran; the job status must not regress.
		if o.allEnabledStagesDone(j) {
			j.SetStatus(models.JobStatusCompleted)
		}
		o.checkpoint(j)
		return &StageResult{Stage: stage, AlreadyCompleted: true}, nil
	}

	j.SetStatus(models.JobStatusRunning)
	if err := o.runStage(ctx, j, stage); err != nil {
		o.fail(j, err)
		return nil, err
	}
	if err := j.CompleteCurrentStage(); err != nil {
		o.fail(j, err)
		return nil, err
	}

	if o.allEnabledStagesDone(j) {
		j.SetStatus(models.JobStatusCompleted)
	}
	o.checkpoint(j)
	return &StageResult{Stage: stage}, nil
}

// checkStagePrereqs rejects stages whose inputs don't exist yet. Stories
// feed every later stage; asking for tests before the epics stage ran is a
// caller error, not a generation failure.
func (o *Orchestrator) checkStagePrereqs(j *job.Job, stage models.Stage) error {
	if stage == models.StageEpics {
		return nil
	}
	if len(j.Store().Stories()) == 0 {
		return models.InvalidRequestf("stage %s requires stories; run the %s stage first", stage, models.StageEpics)
	}
	return nil
}

// allEnabledStagesDone reports whether every stage the job's toggles enable
// has completed. Staged runs may visit stages out of order, so completion is
// judged against the whole enabled set.
func (o *Orchestrator) allEnabledStagesDone(j *job.Job) bool {
	enabled := enabledStages(j.Toggles())
	if len(enabled) == 0 {
		return false
	}
	for _, s := range enabled {
		if !j.StageCompleted(s) {
			return false
		}
	}
	return true
}
