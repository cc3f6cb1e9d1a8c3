package cascade

import (
	"context"
	"log"
	"time"

	"github.com/ShayCichocki/storyforge/internal/generator"
	"github.com/ShayCichocki/storyforge/internal/job"
	"github.com/ShayCichocki/storyforge/pkg/models"
)

// RegenerationResult summarizes one completed regeneration.
type RegenerationResult struct {
	// StoryIDs are the stories whose artifacts were regenerated.
	StoryIDs []string `json:"story_ids"`
	// FunctionalTests is the number of replacement functional tests.
	FunctionalTests int `json:"functional_tests"`
	// GherkinScenarios is the number of replacement scenarios.
	GherkinScenarios int `json:"gherkin_scenarios"`
	// Entities is the number of replacement entities.
	Entities int `json:"entities"`
}

// storyBatch holds the prepared replacements for one story, built before
// any swap happens.
type storyBatch struct {
	storyID   string
	tests     []models.FunctionalTest
	scenarios []models.GherkinScenario
}

// Regenerate rebuilds the downstream artifacts of the target story plus
// every other story flagged by earlier edits. All replacements are
// generated first; existing artifacts are swapped only after every
// generation call succeeded, so a failure midway leaves the job unchanged.
func (a *Analyzer) Regenerate(ctx context.Context, jobID, storyID string) (*RegenerationResult, error) {
	j, store, err := a.store(jobID)
	if err != nil {
		return nil, err
	}
	if _, ok := store.FindStory(storyID); !ok {
		return nil, models.NotFoundf("story %s", storyID)
	}

	affected := affectedSet(storyID, store.StoriesNeedingRegeneration())
	toggles := j.Toggles()
	now := time.Now()

	// Prepare phase: generate everything, swap nothing.
	var batches []storyBatch
	for _, id := range affected {
		batch, err := a.prepareStoryBatch(ctx, j, id, toggles, now)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}

	needEntities := false
	if toggles.DataModel {
		for _, id := range affected {
			if store.EntityCountForStory(id) > 0 {
				needEntities = true
				break
			}
		}
	}

	var entities []models.Entity
	var mermaid string
	if needEntities {
		entities, mermaid, err = a.prepareEntities(ctx, j, affected, now)
		if err != nil {
			return nil, err
		}
	}

	// Swap phase: per-story test replacement, then the entity swap. Each
	// swap is atomic inside the store.
	result := &RegenerationResult{StoryIDs: affected}
	for _, b := range batches {
		if err := store.ReplaceStoryTests(b.storyID, b.tests, b.scenarios); err != nil {
			return nil, err
		}
		result.FunctionalTests += len(b.tests)
		result.GherkinScenarios += len(b.scenarios)
	}
	if mermaid != "" {
		store.ReplaceEntitiesForStories(affected, entities, mermaid)
		result.Entities = len(entities)
	}

	log.Printf("[cascade] job %s regenerated %d stories: %d tests, %d scenarios, %d entities",
		jobID, len(affected), result.FunctionalTests, result.GherkinScenarios, result.Entities)
	a.checkpoint(j)
	return result, nil
}

// affectedSet returns the target story plus all flagged stories, deduped,
// target first.
func affectedSet(target string, flagged []string) []string {
	out := []string{target}
	seen := map[string]bool{target: true}
	for _, id := range flagged {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func (a *Analyzer) baseRequest(j *job.Job) generator.Request {
	excerpt := ""
	if doc := j.Document(); doc != nil {
		excerpt = doc.Excerpt(a.cfg.Pipeline.ExcerptLimit)
	}
	return generator.Request{
		Excerpt:      excerpt,
		Instructions: j.Instructions(),
		GapFixes:     j.Store().AppliedGapFixes(),
	}
}

// prepareStoryBatch generates replacement tests for one story without
// touching the store. Generation is grounded in the story's source chunks
// when it has them.
func (a *Analyzer) prepareStoryBatch(ctx context.Context, j *job.Job, storyID string, toggles models.ArtifactToggles, now time.Time) (storyBatch, error) {
	story, ok := j.Store().FindStory(storyID)
	if !ok {
		return storyBatch{}, models.NotFoundf("story %s", storyID)
	}

	var chunkTexts []string
	for _, c := range j.Chunks().Resolve(job.StoryChunkRefs(story)) {
		chunkTexts = append(chunkTexts, c.Text)
	}

	req := generator.TestsRequest{
		Request:     a.baseRequest(j),
		Stories:     []models.UserStory{story},
		FocusChunks: chunkTexts,
	}

	batch := storyBatch{storyID: storyID}
	if toggles.FunctionalTests {
		out, err := a.gen.GenerateFunctionalTests(ctx, req)
		if err != nil {
			return storyBatch{}, err
		}
		for i := range out.Tests {
			stamped := now
			out.Tests[i].RegeneratedAt = &stamped
		}
		batch.tests = out.Tests
	}
	if toggles.GherkinTests {
		out, err := a.gen.GenerateGherkinScenarios(ctx, req)
		if err != nil {
			return storyBatch{}, err
		}
		for i := range out.Scenarios {
			stamped := now
			out.Scenarios[i].RegeneratedAt = &stamped
		}
		batch.scenarios = out.Scenarios
	}
	return batch, nil
}

// prepareEntities generates replacement entities for the affected stories.
// Surviving entities are passed along so the diagram re-render covers the
// whole model.
func (a *Analyzer) prepareEntities(ctx context.Context, j *job.Job, affected []string, now time.Time) ([]models.Entity, string, error) {
	affectedLookup := make(map[string]bool, len(affected))
	for _, id := range affected {
		affectedLookup[id] = true
	}

	var surviving []models.Entity
	for _, e := range j.Store().Entities() {
		keep := true
		for _, sid := range e.SourceStoryIDs {
			if affectedLookup[sid] {
				keep = false
				break
			}
		}
		if keep {
			surviving = append(surviving, e)
		}
	}

	var stories []models.UserStory
	for _, id := range affected {
		if st, ok := j.Store().FindStory(id); ok {
			stories = append(stories, st)
		}
	}

	out, err := a.gen.GenerateDataModel(ctx, generator.DataModelRequest{
		Request:          a.baseRequest(j),
		Stories:          stories,
		AffectedStoryIDs: affected,
		ExistingEntities: surviving,
	})
	if err != nil {
		return nil, "", err
	}

	for i := range out.Entities {
		stamped := now
		out.Entities[i].RegeneratedAt = &stamped
	}
	return out.Entities, out.Mermaid, nil
}
