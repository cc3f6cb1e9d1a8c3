// Package generator defines the artifact generation interface and its
// Anthropic-backed implementation.
package generator

import (
	"context"

	"github.com/ShayCichocki/storyforge/pkg/models"
)

// Request carries the shared inputs every stage call needs: the document
// excerpt, optional free-text instructions, and any applied gap fixes.
type Request struct {
	// Excerpt is the bounded document text fed to the model.
	Excerpt string
	// Instructions is user guidance applied to every stage.
	Instructions string
	// GapFixes are accepted or edited document corrections to honor.
	GapFixes []models.GapFix
}

// EpicsRequest asks for the project name, epics, and user stories.
type EpicsRequest struct {
	Request
	// ContextChunks optionally narrows generation to specific document
	// chunks, used when generating additional stories for an epic.
	ContextChunks []string
	// ExistingEpic is set when generating more stories under one epic.
	ExistingEpic *models.Epic
	// ExistingStories lets the model avoid duplicating prior output.
	ExistingStories []models.UserStory
}

// EpicsAndStoriesResult is the parsed output of the epics stage.
type EpicsAndStoriesResult struct {
	ProjectName string
	Epics       []models.Epic
	Stories     []models.UserStory
}

// DataModelRequest asks for entities and a relationship diagram derived
// from the current stories.
type DataModelRequest struct {
	Request
	Stories []models.UserStory
	// AffectedStoryIDs is set during cascade regeneration; only entities
	// for these stories are requested.
	AffectedStoryIDs []string
	// ExistingEntities gives the model the surviving entities so the
	// diagram can be re-rendered holistically.
	ExistingEntities []models.Entity
}

// DataModelResult is the parsed output of the data model stage.
type DataModelResult struct {
	Entities []models.Entity
	Mermaid  string
}

// TestsRequest asks for functional tests or Gherkin scenarios for a set of
// stories. When FocusChunks is non-empty the generation is grounded to
// those document chunks only.
type TestsRequest struct {
	Request
	Stories     []models.UserStory
	FocusChunks []string
	// Existing tests for the same stories, so additional generation avoids
	// duplicates.
	ExistingTitles []string
}

// FunctionalTestsResult is the parsed output of the functional test stage.
type FunctionalTestsResult struct {
	Tests []models.FunctionalTest
}

// GherkinResult is the parsed output of the behavioral test stage.
type GherkinResult struct {
	Scenarios []models.GherkinScenario
}

// SkeletonRequest asks for a code scaffold derived from the accumulated
// artifacts.
type SkeletonRequest struct {
	Request
	ProjectName string
	Epics       []models.Epic
	Stories     []models.UserStory
	Entities    []models.Entity
}

// CodeSkeletonResult is the parsed output of the code generation stage.
type CodeSkeletonResult struct {
	Skeleton *models.CodeSkeleton
	Tree     []*models.CodeTreeNode
}

// ValidationRequest asks for a document quality report and suggested gap
// fixes.
type ValidationRequest struct {
	Request
}

// ValidationResult is the parsed output of document validation. Gap fixes
// arrive with pending dispositions.
type ValidationResult struct {
	Report   *models.ValidationReport
	GapFixes []models.GapFix
}

// Generator produces derived artifacts from a requirements document. All
// methods block until the model responds or ctx is canceled; failures that
// exhaust the retry budget wrap ErrGeneratorFailure.
type Generator interface {
	GenerateEpicsAndStories(ctx context.Context, req EpicsRequest) (*EpicsAndStoriesResult, error)
	GenerateDataModel(ctx context.Context, req DataModelRequest) (*DataModelResult, error)
	GenerateFunctionalTests(ctx context.Context, req TestsRequest) (*FunctionalTestsResult, error)
	GenerateGherkinScenarios(ctx context.Context, req TestsRequest) (*GherkinResult, error)
	GenerateCodeSkeleton(ctx context.Context, req SkeletonRequest) (*CodeSkeletonResult, error)
	ValidateDocument(ctx context.Context, req ValidationRequest) (*ValidationResult, error)
}
