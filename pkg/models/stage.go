package models

import "time"

// Stage identifies a derived-artifact generation phase. Document parsing is
// implicit and happens before the first stage runs.
type Stage string

const (
	// StageEpics produces the project name, epics, and user stories.
	StageEpics Stage = "epics"
	// StageDataModel produces entities and the relationship diagram.
	StageDataModel Stage = "data_model"
	// StageFunctionalTests produces functional test cases.
	StageFunctionalTests Stage = "functional_tests"
	// StageGherkinTests produces behavioral (Gherkin) scenarios.
	StageGherkinTests Stage = "gherkin_tests"
	// StageCodeGeneration produces the code scaffold.
	StageCodeGeneration Stage = "code_generation"
)

// Valid returns true if the stage is a known value.
func (s Stage) Valid() bool {
	switch s {
	case StageEpics, StageDataModel, StageFunctionalTests, StageGherkinTests, StageCodeGeneration:
		return true
	default:
		return false
	}
}

// StageOrder returns the canonical execution order of all stages.
func StageOrder() []Stage {
	return []Stage{
		StageEpics,
		StageDataModel,
		StageFunctionalTests,
		StageGherkinTests,
		StageCodeGeneration,
	}
}

// ParseStage converts a string into a Stage, or returns ErrInvalidRequest
// if the name is unknown.
func ParseStage(name string) (Stage, error) {
	s := Stage(name)
	if !s.Valid() {
		return "", invalidRequestf("unknown stage %q", name)
	}
	return s, nil
}

// StageState records one entry in a job's append-only stage history.
type StageState struct {
	// Stage is the pipeline stage this entry describes.
	Stage Stage `json:"stage"`
	// Status is the state of this history entry.
	Status StageStatus `json:"status"`
	// StartedAt is when the stage began running.
	StartedAt time.Time `json:"started_at"`
	// CompletedAt is when the stage finished, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// UserApproved is set when the user moved past this stage, implicitly
	// approving its artifacts.
	UserApproved bool `json:"user_approved"`
}
