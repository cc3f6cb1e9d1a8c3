package models

// DeleteEpicResult reports the dependents removed by an epic deletion.
type DeleteEpicResult struct {
	// EpicID is the deleted epic.
	EpicID string `json:"epic_id"`
	// DeletedStories is the number of stories removed.
	DeletedStories int `json:"deleted_stories_count"`
	// DeletedFunctionalTests is the number of functional tests removed.
	DeletedFunctionalTests int `json:"deleted_functional_tests"`
	// DeletedGherkinScenarios is the number of scenarios removed.
	DeletedGherkinScenarios int `json:"deleted_gherkin_scenarios"`
}

// DeleteStoryResult reports the dependents removed by a story deletion.
type DeleteStoryResult struct {
	// StoryID is the deleted story.
	StoryID string `json:"story_id"`
	// DeletedFunctionalTests is the number of functional tests removed.
	DeletedFunctionalTests int `json:"deleted_functional_tests"`
	// DeletedGherkinScenarios is the number of scenarios removed.
	DeletedGherkinScenarios int `json:"deleted_gherkin_scenarios"`
}

// ImpactReport is the read-only cascade estimate for regenerating a story's
// downstream artifacts. It never mutates the store.
type ImpactReport struct {
	// StoryID is the story being analyzed.
	StoryID string `json:"story_id"`
	// StoryTitle is the story's title, for display.
	StoryTitle string `json:"story_title"`
	// AffectedFunctionalTests counts directly linked functional tests.
	AffectedFunctionalTests int `json:"affected_functional_tests"`
	// AffectedGherkinScenarios counts directly linked scenarios.
	AffectedGherkinScenarios int `json:"affected_gherkin_scenarios"`
	// AffectedEntities counts entities whose source stories include this one.
	AffectedEntities int `json:"affected_entities"`
	// EstimatedSeconds is the rough wall-clock regeneration estimate.
	EstimatedSeconds int `json:"estimated_seconds"`
	// Risk classifies the blast radius.
	Risk RiskLevel `json:"risk_level"`
}

// AffectedTests returns the combined count of affected functional tests and
// scenarios.
func (r ImpactReport) AffectedTests() int {
	return r.AffectedFunctionalTests + r.AffectedGherkinScenarios
}
