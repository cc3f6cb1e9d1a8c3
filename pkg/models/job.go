package models

import "time"

// ArtifactToggles selects which pipeline stages are enabled for a job.
// Disabled stages are skipped entirely rather than fast-forwarded.
type ArtifactToggles struct {
	// EpicsAndStories enables the epics stage.
	EpicsAndStories bool `json:"epics_and_stories"`
	// DataModel enables the data model stage.
	DataModel bool `json:"data_model"`
	// FunctionalTests enables the functional tests stage.
	FunctionalTests bool `json:"functional_tests"`
	// GherkinTests enables the Gherkin scenario stage.
	GherkinTests bool `json:"gherkin_tests"`
	// CodeGeneration enables the code scaffold stage.
	CodeGeneration bool `json:"code_generation"`
}

// AllArtifacts returns toggles with every stage enabled.
func AllArtifacts() ArtifactToggles {
	return ArtifactToggles{
		EpicsAndStories: true,
		DataModel:       true,
		FunctionalTests: true,
		GherkinTests:    true,
		CodeGeneration:  true,
	}
}

// Enabled reports whether the given stage is enabled.
func (t ArtifactToggles) Enabled(s Stage) bool {
	switch s {
	case StageEpics:
		return t.EpicsAndStories
	case StageDataModel:
		return t.DataModel
	case StageFunctionalTests:
		return t.FunctionalTests
	case StageGherkinTests:
		return t.GherkinTests
	case StageCodeGeneration:
		return t.CodeGeneration
	default:
		return false
	}
}

// Step is the execution-tracking record for one named unit of work.
type Step struct {
	// Name identifies the step; unique within a job.
	Name string `json:"name"`
	// Status is the step's current state.
	Status StepStatus `json:"status"`
	// DurationMS is the elapsed time in milliseconds, set on completion.
	DurationMS int64 `json:"duration_ms,omitempty"`
}

// JobSnapshot is a consistent, deep-copied view of a job's state, safe to
// serialize while the job keeps running.
type JobSnapshot struct {
	// JobID is the job identifier.
	JobID string `json:"job_id"`
	// Status is the overall job state.
	Status JobStatus `json:"status"`
	// Error is the failure reason when Status is failed.
	Error string `json:"error,omitempty"`
	// Instructions is the user-supplied free-text guidance.
	Instructions string `json:"instructions,omitempty"`
	// Artifacts records which stages are enabled.
	Artifacts ArtifactToggles `json:"artifacts"`
	// Steps is the ordered step list.
	Steps []Step `json:"steps"`
	// CurrentStage is the stage the job is positioned at, if any.
	CurrentStage *Stage `json:"current_stage,omitempty"`
	// StageHistory is the append-only stage history.
	StageHistory []StageState `json:"stage_history"`
	// Results holds all generated artifacts.
	Results Results `json:"results"`
	// SourceFilename is the uploaded document's name.
	SourceFilename string `json:"source_filename,omitempty"`
	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`
}
