package pipeline

import (
	"context"

	"github.com/ShayCichocki/storyforge/internal/generator"
	"github.com/ShayCichocki/storyforge/internal/job"
	"github.com/ShayCichocki/storyforge/pkg/models"
)

// GenerateMoreStories produces additional user stories under an existing
// epic. contextIDs optionally narrows generation to specific document
// chunks; unknown ids are ignored.
func (o *Orchestrator) GenerateMoreStories(ctx context.Context, jobID, epicID string, contextIDs []string) ([]models.UserStory, error) {
	j, err := o.reg.Get(jobID)
	if err != nil {
		return nil, err
	}

	epic, ok := j.Store().FindEpic(epicID)
	if !ok {
		return nil, models.NotFoundf("epic %s", epicID)
	}

	var chunkTexts []string
	if len(contextIDs) > 0 {
		for _, c := range j.Chunks().Resolve(contextIDs) {
			chunkTexts = append(chunkTexts, c.Text)
		}
	}

	existing := j.Store().Stories()
	var forEpic []models.UserStory
	for _, st := range existing {
		if st.EpicID == epicID {
			forEpic = append(forEpic, st)
		}
	}

	result, err := o.gen.GenerateEpicsAndStories(ctx, generator.EpicsRequest{
		Request:         o.baseRequest(j),
		ContextChunks:   chunkTexts,
		ExistingEpic:    &epic,
		ExistingStories: forEpic,
	})
	if err != nil {
		return nil, err
	}

	// Only stories for the target epic are kept; any stray epics the model
	// invented are dropped.
	var added []models.UserStory
	for _, st := range result.Stories {
		if st.EpicID == epicID {
			added = append(added, st)
		}
	}
	if len(added) == 0 {
		return nil, models.GeneratorFailuref("no new stories produced for epic %s", epicID)
	}

	if err := j.Store().AppendEpicsAndStories(nil, added); err != nil {
		return nil, err
	}
	o.checkpoint(j)
	return added, nil
}

// MoreTestsOptions selects which test kinds to add for a story.
type MoreTestsOptions struct {
	Functional bool
	Gherkin    bool
}

// MoreTestsResult carries the tests added for a story.
type MoreTestsResult struct {
	FunctionalTests  []models.FunctionalTest  `json:"functional_tests,omitempty"`
	GherkinScenarios []models.GherkinScenario `json:"gherkin_scenarios,omitempty"`
}

// GenerateMoreTestsForStory produces additional tests grounded in the
// story's source chunks. A story with no chunk references cannot be
// grounded, which is an invalid request rather than a generation failure.
func (o *Orchestrator) GenerateMoreTestsForStory(ctx context.Context, jobID, storyID string, opts MoreTestsOptions) (*MoreTestsResult, error) {
	if !opts.Functional && !opts.Gherkin {
		return nil, models.InvalidRequestf("no test kind requested")
	}

	j, err := o.reg.Get(jobID)
	if err != nil {
		return nil, err
	}

	story, ok := j.Store().FindStory(storyID)
	if !ok {
		return nil, models.NotFoundf("story %s", storyID)
	}

	refs := job.StoryChunkRefs(story)
	chunks := j.Chunks().Resolve(refs)
	if len(chunks) == 0 {
		return nil, models.InvalidRequestf("story %s has no source chunks to ground additional tests", storyID)
	}
	var chunkTexts []string
	for _, c := range chunks {
		chunkTexts = append(chunkTexts, c.Text)
	}

	req := generator.TestsRequest{
		Request:     o.baseRequest(j),
		Stories:     []models.UserStory{story},
		FocusChunks: chunkTexts,
	}

	result := &MoreTestsResult{}
	if opts.Functional {
		for _, t := range j.Store().Results().FunctionalTests {
			if t.StoryID == storyID {
				req.ExistingTitles = append(req.ExistingTitles, t.Title)
			}
		}
		out, err := o.gen.GenerateFunctionalTests(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := j.Store().AppendFunctionalTests(out.Tests); err != nil {
			return nil, err
		}
		result.FunctionalTests = out.Tests
	}

	if opts.Gherkin {
		req.ExistingTitles = nil
		for _, sc := range j.Store().Results().GherkinScenarios {
			if sc.StoryID == storyID {
				req.ExistingTitles = append(req.ExistingTitles, sc.ScenarioName)
			}
		}
		out, err := o.gen.GenerateGherkinScenarios(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := j.Store().AppendScenarios(out.Scenarios); err != nil {
			return nil, err
		}
		result.GherkinScenarios = out.Scenarios
	}

	o.checkpoint(j)
	return result, nil
}
