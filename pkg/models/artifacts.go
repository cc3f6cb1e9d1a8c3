package models

import "time"

// Epic groups related user stories under a single feature theme.
type Epic struct {
	// ID is the generated identifier, unique among epics within a job.
	ID string `json:"id"`
	// Name is the short epic title.
	Name string `json:"name"`
	// Description explains the epic's scope.
	Description string `json:"description"`
	// EditedAt is set when a user modifies the epic.
	EditedAt *time.Time `json:"edited_at,omitempty"`
}

// AcceptanceCriterion is a single testable condition attached to a story.
type AcceptanceCriterion struct {
	// ID is unique among criteria within the owning story.
	ID string `json:"id"`
	// Text is the criterion statement.
	Text string `json:"text"`
	// SourceChunks names the document chunks that justified this criterion.
	SourceChunks []string `json:"source_chunks,omitempty"`
}

// UserStory is a role/goal/benefit statement derived from the document.
type UserStory struct {
	// ID is the generated identifier, unique among stories within a job.
	ID string `json:"id"`
	// EpicID references the owning epic.
	EpicID string `json:"epic_id"`
	// Title is the short story title.
	Title string `json:"title"`
	// Role is the "as a ..." clause.
	Role string `json:"role"`
	// Goal is the "I want ..." clause.
	Goal string `json:"goal"`
	// Benefit is the "so that ..." clause.
	Benefit string `json:"benefit"`
	// AcceptanceCriteria are the story's testable conditions, in order.
	AcceptanceCriteria []AcceptanceCriterion `json:"acceptance_criteria"`
	// SourceChunks names the document chunks that justified this story.
	SourceChunks []string `json:"source_chunks,omitempty"`
	// EditedAt is set when a user modifies the story.
	EditedAt *time.Time `json:"edited_at,omitempty"`
	// RegenerationNeeded is set when an edit invalidated the story's derived
	// artifacts; cleared only after a successful regeneration.
	RegenerationNeeded bool `json:"regeneration_needed"`
}

// FunctionalTest is a manual test case derived from a user story.
type FunctionalTest struct {
	// ID is unique among functional tests within a job.
	ID string `json:"id"`
	// StoryID references the story this test verifies.
	StoryID string `json:"story_id"`
	// Title is the short test title.
	Title string `json:"title"`
	// Objective describes what the test proves.
	Objective string `json:"objective"`
	// Preconditions lists required setup, in order.
	Preconditions []string `json:"preconditions"`
	// TestSteps lists the actions to perform, in order.
	TestSteps []string `json:"test_steps"`
	// ExpectedResults lists the observable outcomes, in order.
	ExpectedResults []string `json:"expected_results"`
	// SourceChunks names the document chunks that justified this test.
	SourceChunks []string `json:"source_chunks,omitempty"`
	// RegeneratedAt is set when this test was produced by a regeneration.
	RegeneratedAt *time.Time `json:"regenerated_at,omitempty"`
}

// GherkinScenario is a behavioral scenario derived from a user story.
type GherkinScenario struct {
	// ID is unique among scenarios within a job.
	ID string `json:"id"`
	// StoryID references the story this scenario covers.
	StoryID string `json:"story_id"`
	// FeatureName groups scenarios into a feature file.
	FeatureName string `json:"feature_name"`
	// ScenarioName is the scenario title.
	ScenarioName string `json:"scenario_name"`
	// Given lists preconditions.
	Given []string `json:"given"`
	// When lists actions.
	When []string `json:"when"`
	// Then lists expected outcomes.
	Then []string `json:"then"`
	// SourceChunks names the document chunks that justified this scenario.
	SourceChunks []string `json:"source_chunks,omitempty"`
	// RegeneratedAt is set when this scenario was produced by a regeneration.
	RegeneratedAt *time.Time `json:"regenerated_at,omitempty"`
}

// EntityField is one typed field of a data-model entity.
type EntityField struct {
	// Name is the field name.
	Name string `json:"name"`
	// Type is the field's data type.
	Type string `json:"type"`
	// Required indicates whether the field is mandatory.
	Required bool `json:"required"`
}

// Entity is a data-model entity derived from the stories.
type Entity struct {
	// Name identifies the entity, unique among entities within a job.
	Name string `json:"name"`
	// Description explains the entity's purpose.
	Description string `json:"description"`
	// Fields are the entity's typed fields, in order.
	Fields []EntityField `json:"fields"`
	// SourceStoryIDs names the stories this entity was derived from; used to
	// compute cascade membership.
	SourceStoryIDs []string `json:"source_story_ids,omitempty"`
	// RegeneratedAt is set when this entity was produced by a regeneration.
	RegeneratedAt *time.Time `json:"regenerated_at,omitempty"`
}

// GapFix is a suggested correction for a detected gap in the source document.
type GapFix struct {
	// ID is the generated identifier, unique among gap fixes within a job.
	ID string `json:"id"`
	// GapType categorizes the gap (e.g. ambiguity, missing detail).
	GapType string `json:"gap_type"`
	// Issue describes the detected gap.
	Issue string `json:"issue"`
	// Section references the affected document section.
	Section string `json:"section"`
	// Suggestion is the proposed correction.
	Suggestion string `json:"suggestion"`
	// Confidence is the generator's confidence in the suggestion.
	Confidence string `json:"confidence"`
	// Disposition is the user's decision on this fix.
	Disposition GapFixDisposition `json:"disposition"`
	// FinalText is the user-supplied correction when Disposition is edited.
	FinalText string `json:"final_text,omitempty"`
}

// Correction returns the text that should feed generation requests:
// the user's final text for edited fixes, the suggestion otherwise.
func (g GapFix) Correction() string {
	if g.Disposition == GapFixEdited && g.FinalText != "" {
		return g.FinalText
	}
	return g.Suggestion
}

// ValidationReport summarizes the quality assessment of a source document.
type ValidationReport struct {
	// OverallScore is the aggregate quality score out of 100.
	OverallScore int `json:"overall_score"`
	// Completeness scores coverage of required content out of 100.
	Completeness int `json:"completeness"`
	// Clarity scores unambiguity out of 100.
	Clarity int `json:"clarity"`
	// Consistency scores internal agreement out of 100.
	Consistency int `json:"consistency"`
	// Summary is a prose assessment.
	Summary string `json:"summary"`
	// Issues lists notable problems found.
	Issues []string `json:"issues,omitempty"`
}

// CodeFile is a single generated source file.
type CodeFile struct {
	// Name is the file name.
	Name string `json:"name"`
	// Content is the file body.
	Content string `json:"content"`
}

// CodeFolder is a directory of generated files.
type CodeFolder struct {
	// Path is the folder path relative to the scaffold root.
	Path string `json:"path"`
	// Files are the folder's files.
	Files []CodeFile `json:"files"`
}

// CodeSkeleton is the generated code scaffold.
type CodeSkeleton struct {
	// Language names the target stack.
	Language string `json:"language"`
	// RootFolder is the scaffold's top-level directory name.
	RootFolder string `json:"root_folder"`
	// Folders are the scaffold directories.
	Folders []CodeFolder `json:"folders"`
}

// CodeTreeNode is a display-oriented view of the scaffold, one node per
// folder or file.
type CodeTreeNode struct {
	// Name is the node's display name.
	Name string `json:"name"`
	// Type is "folder" or "file".
	Type string `json:"type"`
	// Path is set for files: the full path relative to the scaffold root.
	Path string `json:"path,omitempty"`
	// Content is set for files.
	Content string `json:"content,omitempty"`
	// Children is set for folders.
	Children []*CodeTreeNode `json:"children,omitempty"`
}

// Results holds every artifact produced for a job.
type Results struct {
	// ProjectName is the generated project title.
	ProjectName string `json:"project_name,omitempty"`
	// Epics are the generated epics, in order.
	Epics []Epic `json:"epics"`
	// UserStories are the generated stories, in order.
	UserStories []UserStory `json:"user_stories"`
	// FunctionalTests are the generated test cases, in order.
	FunctionalTests []FunctionalTest `json:"functional_tests"`
	// GherkinScenarios are the generated behavioral scenarios, in order.
	GherkinScenarios []GherkinScenario `json:"gherkin_scenarios"`
	// Entities are the generated data-model entities, in order.
	Entities []Entity `json:"entities"`
	// Mermaid is the rendered relationship diagram source.
	Mermaid string `json:"mermaid,omitempty"`
	// CodeSkeleton is the generated scaffold, if produced.
	CodeSkeleton *CodeSkeleton `json:"code_skeleton,omitempty"`
	// CodeTree is the display tree built from the skeleton.
	CodeTree []*CodeTreeNode `json:"code_tree,omitempty"`
	// GapFixes are the suggested document corrections.
	GapFixes []GapFix `json:"gap_fixes,omitempty"`
	// ValidationReport is the document quality assessment, if run.
	ValidationReport *ValidationReport `json:"validation_report,omitempty"`
}
