package cascade

import (
	"log"

	"github.com/google/uuid"

	"github.com/ShayCichocki/storyforge/internal/config"
	"github.com/ShayCichocki/storyforge/internal/generator"
	"github.com/ShayCichocki/storyforge/internal/job"
	"github.com/ShayCichocki/storyforge/internal/registry"
	"github.com/ShayCichocki/storyforge/pkg/models"
)

// Analyzer applies user edits to generated artifacts and manages the
// cascades they trigger. Deletes remove derived tests atomically; edits
// flag stories so their stale artifacts are visibly marked until
// regenerated.
type Analyzer struct {
	cfg   *config.Config
	reg   *registry.Registry
	gen   generator.Generator
	tasks *TaskSet
}

// NewAnalyzer creates a cascade analyzer.
func NewAnalyzer(cfg *config.Config, reg *registry.Registry, gen generator.Generator) *Analyzer {
	return &Analyzer{
		cfg:   cfg,
		reg:   reg,
		gen:   gen,
		tasks: NewTaskSet(),
	}
}

// Tasks returns the async regeneration task set.
func (a *Analyzer) Tasks() *TaskSet {
	return a.tasks
}

func (a *Analyzer) store(jobID string) (*job.Job, *job.ArtifactStore, error) {
	j, err := a.reg.Get(jobID)
	if err != nil {
		return nil, nil, err
	}
	return j, j.Store(), nil
}

// DeleteEpic removes an epic with its stories and every derived test, in
// one atomic removal, and returns the deletion counts.
func (a *Analyzer) DeleteEpic(jobID, epicID string) (*models.DeleteEpicResult, error) {
	j, store, err := a.store(jobID)
	if err != nil {
		return nil, err
	}

	result, err := store.DeleteEpic(epicID)
	if err != nil {
		return nil, err
	}

	log.Printf("[cascade] job %s deleted epic %s: %d stories, %d tests, %d scenarios",
		jobID, epicID, result.DeletedStories, result.DeletedFunctionalTests, result.DeletedGherkinScenarios)
	a.checkpoint(j)
	return result, nil
}

// DeleteStory removes a story and every test referencing it atomically.
func (a *Analyzer) DeleteStory(jobID, storyID string) (*models.DeleteStoryResult, error) {
	j, store, err := a.store(jobID)
	if err != nil {
		return nil, err
	}

	result, err := store.DeleteStory(storyID)
	if err != nil {
		return nil, err
	}
	a.checkpoint(j)
	return result, nil
}

// DeleteFunctionalTest removes a single functional test. No cascade: tests
// are leaves of the dependency graph.
func (a *Analyzer) DeleteFunctionalTest(jobID, testID string) error {
	j, store, err := a.store(jobID)
	if err != nil {
		return err
	}
	if err := store.DeleteFunctionalTest(testID); err != nil {
		return err
	}
	a.checkpoint(j)
	return nil
}

// DeleteScenario removes a single Gherkin scenario.
func (a *Analyzer) DeleteScenario(jobID, scenarioID string) error {
	j, store, err := a.store(jobID)
	if err != nil {
		return err
	}
	if err := store.DeleteScenario(scenarioID); err != nil {
		return err
	}
	a.checkpoint(j)
	return nil
}

// EditEpic updates an epic's name and description. Epic edits do not
// invalidate stories; the stories' own text is unchanged.
func (a *Analyzer) EditEpic(jobID, epicID, name, description string) (models.Epic, error) {
	if name == "" {
		return models.Epic{}, models.InvalidRequestf("epic name is required")
	}

	j, store, err := a.store(jobID)
	if err != nil {
		return models.Epic{}, err
	}
	if err := store.UpdateEpic(epicID, name, description); err != nil {
		return models.Epic{}, err
	}

	a.checkpoint(j)
	epic, _ := store.FindEpic(epicID)
	return epic, nil
}

// EditStory updates a story's core fields and flags it for regeneration;
// its derived tests and entities are stale until regenerated.
func (a *Analyzer) EditStory(jobID, storyID, title, role, goal, benefit string) (models.UserStory, error) {
	if title == "" {
		return models.UserStory{}, models.InvalidRequestf("story title is required")
	}

	j, store, err := a.store(jobID)
	if err != nil {
		return models.UserStory{}, err
	}
	if err := store.UpdateStory(storyID, title, role, goal, benefit); err != nil {
		return models.UserStory{}, err
	}

	a.checkpoint(j)
	story, _ := store.FindStory(storyID)
	return story, nil
}

// EditAcceptanceCriteria replaces a story's acceptance criteria with
// user-authored texts and flags the story for regeneration. User criteria
// carry no source chunks; they did not come from the document.
func (a *Analyzer) EditAcceptanceCriteria(jobID, storyID string, texts []string) (models.UserStory, error) {
	if len(texts) == 0 {
		return models.UserStory{}, models.InvalidRequestf("at least one criterion is required")
	}

	j, store, err := a.store(jobID)
	if err != nil {
		return models.UserStory{}, err
	}

	ids := make([]string, len(texts))
	for i := range texts {
		ids[i] = uuid.NewString()
	}
	if err := store.ReplaceAcceptanceCriteria(storyID, texts, ids); err != nil {
		return models.UserStory{}, err
	}

	a.checkpoint(j)
	story, _ := store.FindStory(storyID)
	return story, nil
}

// Impact estimates the blast radius of regenerating a story's downstream
// artifacts: affected counts, projected duration, and a risk band.
func (a *Analyzer) Impact(jobID, storyID string) (*models.ImpactReport, error) {
	_, store, err := a.store(jobID)
	if err != nil {
		return nil, err
	}

	story, ok := store.FindStory(storyID)
	if !ok {
		return nil, models.NotFoundf("story %s", storyID)
	}

	functional, gherkin := store.TestCountsForStory(storyID)
	entities := store.EntityCountForStory(storyID)

	seconds, risk := estimate(a.cfg.Cascade, functional+gherkin, entities)
	return &models.ImpactReport{
		StoryID:                  storyID,
		StoryTitle:               story.Title,
		AffectedFunctionalTests:  functional,
		AffectedGherkinScenarios: gherkin,
		AffectedEntities:         entities,
		EstimatedSeconds:         seconds,
		Risk:                     risk,
	}, nil
}

func (a *Analyzer) checkpoint(j *job.Job) {
	if err := a.reg.Checkpoint(j.ID()); err != nil {
		log.Printf("[cascade] checkpoint job %s: %v", j.ID(), err)
	}
}
