// Package job implements the job aggregate: step tracking, the stage state
// machine, the per-job artifact store, and the source-chunk index.
package job

import (
	"sync"
	"time"

	"github.com/ShayCichocki/storyforge/internal/parser"
	"github.com/ShayCichocki/storyforge/pkg/models"
)

// Job is the unit of work for one workflow run. It owns the step list, the
// stage machine, the artifact store, and the chunk index.
//
// The job's own mutex guards status, steps, stage machine, and source
// document; the artifact store carries its own lock so user edit operations
// and status polls can proceed while a stage is generating.
type Job struct {
	mu sync.RWMutex

	id           string
	instructions string
	toggles      models.ArtifactToggles

	status models.JobStatus
	errMsg string

	steps     []models.Step
	stepIndex map[string]int

	stages *StageMachine
	store  *ArtifactStore

	doc    *parser.Document
	chunks *ChunkIndex

	sourceData     []byte
	sourceExt      string
	sourceFilename string

	createdAt time.Time
}

// New creates a pending job.
func New(id, instructions string, toggles models.ArtifactToggles) *Job {
	return &Job{
		id:           id,
		instructions: instructions,
		toggles:      toggles,
		status:       models.JobStatusPending,
		stepIndex:    make(map[string]int),
		stages:       NewStageMachine(),
		store:        NewArtifactStore(),
		createdAt:    time.Now(),
	}
}

// ID returns the job identifier.
func (j *Job) ID() string {
	return j.id
}

// Instructions returns the user-supplied free-text guidance.
func (j *Job) Instructions() string {
	return j.instructions
}

// Toggles returns the artifact toggle configuration.
func (j *Job) Toggles() models.ArtifactToggles {
	return j.toggles
}

// Store returns the job's artifact store.
func (j *Job) Store() *ArtifactStore {
	return j.store
}

// Status returns the overall job status.
func (j *Job) Status() models.JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// SetStatus updates the overall job status.
func (j *Job) SetStatus(s models.JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = s
}

// Error returns the failure reason, if the job failed.
func (j *Job) Error() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.errMsg
}

// MarkFailed sets the job status to failed, records the reason, forces any
// running step to failed, and fails the current stage's running history
// entry so observers never see a running stage on a failed job.
func (j *Job) MarkFailed(reason string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.status = models.JobStatusFailed
	j.errMsg = reason

	for i := range j.steps {
		if j.steps[i].Status == models.StepStatusRunning {
			j.steps[i].Status = models.StepStatusFailed
		}
	}

	j.stages.FailCurrent()
}

// AddStep appends a pending step. Step names are unique within a job;
// adding a duplicate is rejected.
func (j *Job) AddStep(name string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, exists := j.stepIndex[name]; exists {
		return models.InvalidRequestf("duplicate step %q", name)
	}

	j.stepIndex[name] = len(j.steps)
	j.steps = append(j.steps, models.Step{Name: name, Status: models.StepStatusPending})
	return nil
}

// TransitionStep updates a step's status and optional duration. Unknown
// names are a silent no-op; callers are expected to have created the step.
func (j *Job) TransitionStep(name string, status models.StepStatus, durationMS int64) {
	j.mu.Lock()
	defer j.mu.Unlock()

	i, ok := j.stepIndex[name]
	if !ok {
		return
	}

	j.steps[i].Status = status
	if durationMS > 0 {
		j.steps[i].DurationMS = durationMS
	}
}

// Steps returns a copy of the ordered step list.
func (j *Job) Steps() []models.Step {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]models.Step(nil), j.steps...)
}

// RunningSteps counts steps currently in the running state.
func (j *Job) RunningSteps() int {
	j.mu.RLock()
	defer j.mu.RUnlock()

	n := 0
	for _, s := range j.steps {
		if s.Status == models.StepStatusRunning {
			n++
		}
	}
	return n
}

// SetSource records the raw document for later (re-)parsing in staged runs.
func (j *Job) SetSource(data []byte, ext, filename string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.sourceData = data
	j.sourceExt = ext
	j.sourceFilename = filename
}

// Source returns the raw document bytes and extension.
func (j *Job) Source() (data []byte, ext string) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.sourceData, j.sourceExt
}

// SetDocument records the parsed document and builds the chunk index.
func (j *Job) SetDocument(doc *parser.Document) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.doc = doc
	j.chunks = BuildChunkIndex(doc)
}

// Document returns the parsed document, or nil if parsing hasn't happened.
func (j *Job) Document() *parser.Document {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.doc
}

// Parsed reports whether the source document has been parsed.
func (j *Job) Parsed() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.doc != nil
}

// Chunks returns the chunk index, or nil before parsing.
func (j *Job) Chunks() *ChunkIndex {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.chunks
}

// AdvanceStage moves the stage machine to next, returning true when the
// stage was already completed (idempotent re-entry).
func (j *Job) AdvanceStage(next models.Stage) (alreadyCompleted bool, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stages.Advance(next)
}

// CompleteCurrentStage marks the current stage completed.
func (j *Job) CompleteCurrentStage() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stages.CompleteCurrent()
}

// CurrentStage returns the stage the job is positioned at, if any.
func (j *Job) CurrentStage() *models.Stage {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.stages.Current()
}

// StageCompleted reports whether the stage has completed.
func (j *Job) StageCompleted(s models.Stage) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.stages.Completed(s)
}

// StageHistory returns a copy of the append-only stage history.
func (j *Job) StageHistory() []models.StageState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.stages.History()
}

// Snapshot returns a deep-copied, consistent view of the job for status
// reporting and persistence.
func (j *Job) Snapshot() models.JobSnapshot {
	j.mu.RLock()
	snap := models.JobSnapshot{
		JobID:          j.id,
		Status:         j.status,
		Error:          j.errMsg,
		Instructions:   j.instructions,
		Artifacts:      j.toggles,
		Steps:          append([]models.Step(nil), j.steps...),
		CurrentStage:   j.stages.Current(),
		StageHistory:   j.stages.History(),
		SourceFilename: j.sourceFilename,
		CreatedAt:      j.createdAt,
	}
	j.mu.RUnlock()

	// The store has its own lock; taking its snapshot outside j.mu keeps
	// lock ordering one-way (job -> store never holds both).
	snap.Results = j.store.Results()
	return snap
}
