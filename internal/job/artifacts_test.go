package job

import (
	"errors"
	"testing"

	"github.com/ShayCichocki/storyforge/pkg/models"
)

// seedTwoEpics populates a store with two epics, three stories, and six
// tests: epic-1 owns story-1 and story-2 (two functional tests and two
// scenarios between them), epic-2 owns story-3 (one of each).
func seedTwoEpics(t *testing.T) *ArtifactStore {
	t.Helper()
	s := NewArtifactStore()

	epics := []models.Epic{
		{ID: "epic-1", Name: "Accounts"},
		{ID: "epic-2", Name: "Billing"},
	}
	stories := []models.UserStory{
		{ID: "story-1", EpicID: "epic-1", Title: "Sign up"},
		{ID: "story-2", EpicID: "epic-1", Title: "Log in"},
		{ID: "story-3", EpicID: "epic-2", Title: "Pay invoice"},
	}
	if err := s.AppendEpicsAndStories(epics, stories); err != nil {
		t.Fatalf("seed epics/stories: %v", err)
	}

	tests := []models.FunctionalTest{
		{ID: "ft-1", StoryID: "story-1", Title: "Sign up happy path"},
		{ID: "ft-2", StoryID: "story-2", Title: "Log in happy path"},
		{ID: "ft-3", StoryID: "story-3", Title: "Pay invoice happy path"},
	}
	if err := s.AppendFunctionalTests(tests); err != nil {
		t.Fatalf("seed functional tests: %v", err)
	}

	scenarios := []models.GherkinScenario{
		{ID: "gs-1", StoryID: "story-1", ScenarioName: "Successful sign up"},
		{ID: "gs-2", StoryID: "story-2", ScenarioName: "Successful log in"},
		{ID: "gs-3", StoryID: "story-3", ScenarioName: "Successful payment"},
	}
	if err := s.AppendScenarios(scenarios); err != nil {
		t.Fatalf("seed scenarios: %v", err)
	}
	return s
}

func TestDeleteEpic_Cascades(t *testing.T) {
	s := seedTwoEpics(t)

	result, err := s.DeleteEpic("epic-1")
	if err != nil {
		t.Fatalf("DeleteEpic: %v", err)
	}
	if result.DeletedStories != 2 {
		t.Errorf("DeletedStories = %d, want 2", result.DeletedStories)
	}
	if result.DeletedFunctionalTests != 2 {
		t.Errorf("DeletedFunctionalTests = %d, want 2", result.DeletedFunctionalTests)
	}
	if result.DeletedGherkinScenarios != 2 {
		t.Errorf("DeletedGherkinScenarios = %d, want 2", result.DeletedGherkinScenarios)
	}

	r := s.Results()
	if len(r.Epics) != 1 || r.Epics[0].ID != "epic-2" {
		t.Errorf("remaining epics = %+v", r.Epics)
	}
	if len(r.UserStories) != 1 || r.UserStories[0].ID != "story-3" {
		t.Errorf("remaining stories = %+v", r.UserStories)
	}
	if len(r.FunctionalTests) != 1 || r.FunctionalTests[0].ID != "ft-3" {
		t.Errorf("remaining functional tests = %+v", r.FunctionalTests)
	}
	if len(r.GherkinScenarios) != 1 || r.GherkinScenarios[0].ID != "gs-3" {
		t.Errorf("remaining scenarios = %+v", r.GherkinScenarios)
	}
}

func TestDeleteEpic_NotFound(t *testing.T) {
	s := seedTwoEpics(t)

	_, err := s.DeleteEpic("epic-99")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}

	// Failed delete leaves everything in place.
	if r := s.Results(); len(r.Epics) != 2 || len(r.UserStories) != 3 {
		t.Errorf("store mutated by failed delete: %d epics, %d stories",
			len(r.Epics), len(r.UserStories))
	}
}

func TestDeleteStory_Cascades(t *testing.T) {
	s := seedTwoEpics(t)

	result, err := s.DeleteStory("story-2")
	if err != nil {
		t.Fatalf("DeleteStory: %v", err)
	}
	if result.DeletedFunctionalTests != 1 || result.DeletedGherkinScenarios != 1 {
		t.Errorf("deleted counts = %d/%d, want 1/1",
			result.DeletedFunctionalTests, result.DeletedGherkinScenarios)
	}

	r := s.Results()
	if len(r.UserStories) != 2 {
		t.Errorf("remaining stories = %d, want 2", len(r.UserStories))
	}
	for _, ft := range r.FunctionalTests {
		if ft.StoryID == "story-2" {
			t.Errorf("orphan functional test survived: %s", ft.ID)
		}
	}
}

func TestUpdateStory_FlagsRegeneration(t *testing.T) {
	s := seedTwoEpics(t)

	if err := s.UpdateStory("story-1", "Sign up fast", "visitor", "create an account", "start using the product"); err != nil {
		t.Fatalf("UpdateStory: %v", err)
	}

	st, ok := s.FindStory("story-1")
	if !ok {
		t.Fatal("story-1 not found")
	}
	if !st.RegenerationNeeded {
		t.Error("edited story should be flagged for regeneration")
	}
	if st.EditedAt == nil {
		t.Error("edited story missing EditedAt")
	}
	if st.Title != "Sign up fast" || st.Role != "visitor" {
		t.Errorf("story fields = %q/%q", st.Title, st.Role)
	}

	// Untouched stories keep their state.
	other, _ := s.FindStory("story-2")
	if other.RegenerationNeeded || other.EditedAt != nil {
		t.Error("unedited story was mutated")
	}

	ids := s.StoriesNeedingRegeneration()
	if len(ids) != 1 || ids[0] != "story-1" {
		t.Errorf("StoriesNeedingRegeneration = %v", ids)
	}
}

func TestReplaceAcceptanceCriteria(t *testing.T) {
	s := seedTwoEpics(t)

	err := s.ReplaceAcceptanceCriteria("story-1",
		[]string{"user receives confirmation email", "password must be 12+ chars"},
		[]string{"ac-1", "ac-2"})
	if err != nil {
		t.Fatalf("ReplaceAcceptanceCriteria: %v", err)
	}

	st, _ := s.FindStory("story-1")
	if len(st.AcceptanceCriteria) != 2 {
		t.Fatalf("criteria count = %d, want 2", len(st.AcceptanceCriteria))
	}
	if st.AcceptanceCriteria[0].ID != "ac-1" || len(st.AcceptanceCriteria[0].SourceChunks) != 0 {
		t.Errorf("criteria[0] = %+v", st.AcceptanceCriteria[0])
	}
	if !st.RegenerationNeeded {
		t.Error("criteria edit should flag regeneration")
	}

	if err := s.ReplaceAcceptanceCriteria("story-1", []string{"a"}, nil); !errors.Is(err, models.ErrInvalidRequest) {
		t.Errorf("mismatched ids error = %v, want ErrInvalidRequest", err)
	}
}

func TestReplaceStoryTests_SwapsAndClearsFlag(t *testing.T) {
	s := seedTwoEpics(t)

	if err := s.UpdateStory("story-1", "Sign up", "visitor", "create an account", "use the product"); err != nil {
		t.Fatalf("UpdateStory: %v", err)
	}

	fresh := []models.FunctionalTest{
		{ID: "ft-10", StoryID: "story-1", Title: "Sign up with SSO"},
		{ID: "ft-11", StoryID: "story-1", Title: "Sign up with email"},
	}
	scenarios := []models.GherkinScenario{
		{ID: "gs-10", StoryID: "story-1", ScenarioName: "SSO sign up"},
	}
	if err := s.ReplaceStoryTests("story-1", fresh, scenarios); err != nil {
		t.Fatalf("ReplaceStoryTests: %v", err)
	}

	r := s.Results()
	for _, ft := range r.FunctionalTests {
		if ft.ID == "ft-1" {
			t.Error("stale test ft-1 survived the swap")
		}
	}

	var story1FT, story1GS int
	for _, ft := range r.FunctionalTests {
		if ft.StoryID == "story-1" {
			story1FT++
		}
	}
	for _, gs := range r.GherkinScenarios {
		if gs.StoryID == "story-1" {
			story1GS++
		}
	}
	if story1FT != 2 || story1GS != 1 {
		t.Errorf("story-1 tests after swap = %d/%d, want 2/1", story1FT, story1GS)
	}

	// Other stories' tests are untouched.
	ft2, gs2 := s.TestCountsForStory("story-2")
	if ft2 != 1 || gs2 != 1 {
		t.Errorf("story-2 tests = %d/%d, want 1/1", ft2, gs2)
	}

	st, _ := s.FindStory("story-1")
	if st.RegenerationNeeded {
		t.Error("regeneration flag should clear after replacement")
	}
}

func TestAppendRejectsUnknownReferences(t *testing.T) {
	s := NewArtifactStore()

	err := s.AppendEpicsAndStories(nil, []models.UserStory{{ID: "story-1", EpicID: "epic-x"}})
	if !errors.Is(err, models.ErrCascadeConflict) {
		t.Errorf("orphan story error = %v, want ErrCascadeConflict", err)
	}

	err = s.AppendFunctionalTests([]models.FunctionalTest{{ID: "ft-1", StoryID: "story-x"}})
	if !errors.Is(err, models.ErrCascadeConflict) {
		t.Errorf("orphan test error = %v, want ErrCascadeConflict", err)
	}

	err = s.AppendScenarios([]models.GherkinScenario{{ID: "gs-1", StoryID: "story-x"}})
	if !errors.Is(err, models.ErrCascadeConflict) {
		t.Errorf("orphan scenario error = %v, want ErrCascadeConflict", err)
	}
}

func TestReplaceEntitiesForStories(t *testing.T) {
	s := seedTwoEpics(t)
	s.SetDataModel([]models.Entity{
		{Name: "User", SourceStoryIDs: []string{"story-1", "story-2"}},
		{Name: "Invoice", SourceStoryIDs: []string{"story-3"}},
	}, "erDiagram v1")

	s.ReplaceEntitiesForStories([]string{"story-1"}, []models.Entity{
		{Name: "Account", SourceStoryIDs: []string{"story-1", "story-2"}},
	}, "erDiagram v2")

	entities := s.Entities()
	if len(entities) != 2 {
		t.Fatalf("entity count = %d, want 2", len(entities))
	}
	names := map[string]bool{}
	for _, e := range entities {
		names[e.Name] = true
	}
	if !names["Account"] || !names["Invoice"] || names["User"] {
		t.Errorf("entities after swap = %v", names)
	}
	if s.Results().Mermaid != "erDiagram v2" {
		t.Error("diagram was not re-rendered")
	}
}

func TestUpdateGapFix(t *testing.T) {
	s := NewArtifactStore()
	s.SetValidation(&models.ValidationReport{OverallScore: 72}, []models.GapFix{
		{ID: "gap-1", GapType: "missing_requirement", Suggestion: "Specify session timeout"},
		{ID: "gap-2", GapType: "ambiguity", Suggestion: "Define what fast means"},
	})

	if err := s.UpdateGapFix("gap-1", models.GapFixAccepted, ""); err != nil {
		t.Fatalf("UpdateGapFix accept: %v", err)
	}
	if err := s.UpdateGapFix("gap-2", models.GapFixEdited, "Response under 200ms"); err != nil {
		t.Fatalf("UpdateGapFix edit: %v", err)
	}

	applied := s.AppliedGapFixes()
	if len(applied) != 2 {
		t.Fatalf("applied count = %d, want 2", len(applied))
	}
	for _, gf := range applied {
		if gf.ID == "gap-2" && gf.FinalText != "Response under 200ms" {
			t.Errorf("edited fix FinalText = %q", gf.FinalText)
		}
	}

	if err := s.UpdateGapFix("gap-1", models.GapFixDisposition("maybe"), ""); !errors.Is(err, models.ErrInvalidRequest) {
		t.Errorf("invalid disposition error = %v", err)
	}
	if err := s.UpdateGapFix("gap-9", models.GapFixRejected, ""); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown gap error = %v", err)
	}
}

func TestResults_DeepCopies(t *testing.T) {
	s := seedTwoEpics(t)

	r := s.Results()
	r.Epics[0].Name = "Mutated"
	r.UserStories[0].Title = "Mutated"

	if fresh := s.Results(); fresh.Epics[0].Name == "Mutated" || fresh.UserStories[0].Title == "Mutated" {
		t.Error("Results exposes internal state")
	}
}

func TestDeleteFunctionalTest(t *testing.T) {
	s := seedTwoEpics(t)

	if err := s.DeleteFunctionalTest("ft-2"); err != nil {
		t.Fatalf("DeleteFunctionalTest: %v", err)
	}
	ft, gs := s.TestCountsForStory("story-2")
	if ft != 0 || gs != 1 {
		t.Errorf("story-2 counts = %d/%d, want 0/1", ft, gs)
	}

	if err := s.DeleteFunctionalTest("ft-2"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("double delete error = %v, want ErrNotFound", err)
	}
}
