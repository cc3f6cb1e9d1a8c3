package job

import (
	"sync"
	"time"

	"github.com/ShayCichocki/storyforge/pkg/models"
)

// ArtifactStore holds every artifact generated for one job. All access goes
// through its lock so that a regeneration swap and a concurrent status poll
// never interleave to expose a torn collection.
//
// Cascade removals (DeleteEpic, DeleteStory, ReplaceStoryTests,
// ReplaceEntitiesForStories) mutate every affected collection inside a single
// critical section; readers see either the full old state or the full new one.
type ArtifactStore struct {
	mu sync.RWMutex

	projectName     string
	epics           []models.Epic
	stories         []models.UserStory
	functionalTests []models.FunctionalTest
	scenarios       []models.GherkinScenario
	entities        []models.Entity
	mermaid         string
	skeleton        *models.CodeSkeleton
	codeTree        []*models.CodeTreeNode
	gapFixes        []models.GapFix
	validation      *models.ValidationReport
}

// NewArtifactStore creates an empty artifact store.
func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{}
}

// SetProjectName records the generated project name.
func (s *ArtifactStore) SetProjectName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projectName = name
}

// ProjectName returns the generated project name.
func (s *ArtifactStore) ProjectName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectName
}

// AppendEpicsAndStories appends generated epics and stories. Stories that
// reference an epic unknown to the store after the append are rejected as a
// cascade conflict, keeping the store untouched.
func (s *ArtifactStore) AppendEpicsAndStories(epics []models.Epic, stories []models.UserStory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[string]bool, len(s.epics)+len(epics))
	for _, e := range s.epics {
		known[e.ID] = true
	}
	for _, e := range epics {
		known[e.ID] = true
	}
	for _, st := range stories {
		if !known[st.EpicID] {
			return models.CascadeConflictf("story %s references unknown epic %s", st.ID, st.EpicID)
		}
	}

	s.epics = append(s.epics, epics...)
	s.stories = append(s.stories, stories...)
	return nil
}

// AppendFunctionalTests appends generated functional tests. Tests referencing
// an unknown story are rejected without mutating the store.
func (s *ArtifactStore) AppendFunctionalTests(tests []models.FunctionalTest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tests {
		if s.findStoryLocked(t.StoryID) < 0 {
			return models.CascadeConflictf("functional test %s references unknown story %s", t.ID, t.StoryID)
		}
	}
	s.functionalTests = append(s.functionalTests, tests...)
	return nil
}

// AppendScenarios appends generated Gherkin scenarios. Scenarios referencing
// an unknown story are rejected without mutating the store.
func (s *ArtifactStore) AppendScenarios(scenarios []models.GherkinScenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sc := range scenarios {
		if s.findStoryLocked(sc.StoryID) < 0 {
			return models.CascadeConflictf("scenario %s references unknown story %s", sc.ID, sc.StoryID)
		}
	}
	s.scenarios = append(s.scenarios, scenarios...)
	return nil
}

// SetDataModel appends generated entities and replaces the diagram. The
// diagram is a holistic re-render, never patched.
func (s *ArtifactStore) SetDataModel(entities []models.Entity, mermaid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = append(s.entities, entities...)
	s.mermaid = mermaid
}

// SetSkeleton records the generated code scaffold and its display tree.
func (s *ArtifactStore) SetSkeleton(skeleton *models.CodeSkeleton, tree []*models.CodeTreeNode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skeleton = skeleton
	s.codeTree = tree
}

// SetValidation records the document quality report and its gap fixes.
func (s *ArtifactStore) SetValidation(report *models.ValidationReport, fixes []models.GapFix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validation = report
	s.gapFixes = fixes
}

// UpdateGapFix sets the user disposition for a gap fix.
func (s *ArtifactStore) UpdateGapFix(id string, disposition models.GapFixDisposition, finalText string) error {
	if !disposition.Valid() {
		return models.InvalidRequestf("unknown gap fix disposition %q", disposition)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.gapFixes {
		if s.gapFixes[i].ID == id {
			s.gapFixes[i].Disposition = disposition
			if finalText != "" {
				s.gapFixes[i].FinalText = finalText
			}
			return nil
		}
	}
	return models.NotFoundf("gap fix %s", id)
}

// AppliedGapFixes returns copies of the gap fixes the user accepted or edited.
func (s *ArtifactStore) AppliedGapFixes() []models.GapFix {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.GapFix
	for _, gf := range s.gapFixes {
		if gf.Disposition.Applied() {
			out = append(out, gf)
		}
	}
	return out
}

// Epics returns a copy of the epic list.
func (s *ArtifactStore) Epics() []models.Epic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Epic(nil), s.epics...)
}

// Stories returns a copy of the story list.
func (s *ArtifactStore) Stories() []models.UserStory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyStories(s.stories)
}

// Entities returns a copy of the entity list.
func (s *ArtifactStore) Entities() []models.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyEntities(s.entities)
}

// FindStory returns a copy of the story with the given identifier.
func (s *ArtifactStore) FindStory(id string) (models.UserStory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.findStoryLocked(id)
	if i < 0 {
		return models.UserStory{}, false
	}
	return copyStory(s.stories[i]), true
}

// FindEpic returns a copy of the epic with the given identifier.
func (s *ArtifactStore) FindEpic(id string) (models.Epic, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.epics {
		if e.ID == id {
			return e, true
		}
	}
	return models.Epic{}, false
}

// UpdateEpic updates an epic's name and description and stamps the edit time.
func (s *ArtifactStore) UpdateEpic(id, name, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.epics {
		if s.epics[i].ID == id {
			now := time.Now()
			s.epics[i].Name = name
			s.epics[i].Description = description
			s.epics[i].EditedAt = &now
			return nil
		}
	}
	return models.NotFoundf("epic %s", id)
}

// UpdateStory updates a story's core fields, stamps the edit time, and marks
// the story as needing regeneration. No other story is touched.
func (s *ArtifactStore) UpdateStory(id, title, role, goal, benefit string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findStoryLocked(id)
	if i < 0 {
		return models.NotFoundf("story %s", id)
	}

	now := time.Now()
	s.stories[i].Title = title
	s.stories[i].Role = role
	s.stories[i].Goal = goal
	s.stories[i].Benefit = benefit
	s.stories[i].EditedAt = &now
	s.stories[i].RegenerationNeeded = true
	return nil
}

// ReplaceAcceptanceCriteria replaces a story's acceptance criteria with the
// given texts, stamps the edit time, and marks the story as needing
// regeneration. Replacement criteria carry no source chunks.
func (s *ArtifactStore) ReplaceAcceptanceCriteria(storyID string, texts []string, ids []string) error {
	if len(ids) != len(texts) {
		return models.InvalidRequestf("criteria ids/texts length mismatch")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findStoryLocked(storyID)
	if i < 0 {
		return models.NotFoundf("story %s", storyID)
	}

	criteria := make([]models.AcceptanceCriterion, len(texts))
	for j, text := range texts {
		criteria[j] = models.AcceptanceCriterion{ID: ids[j], Text: text}
	}

	now := time.Now()
	s.stories[i].AcceptanceCriteria = criteria
	s.stories[i].EditedAt = &now
	s.stories[i].RegenerationNeeded = true
	return nil
}

// DeleteEpic removes the epic, every story under it, and every test derived
// from those stories, in one atomic multi-set removal.
func (s *ArtifactStore) DeleteEpic(id string) (*models.DeleteEpicResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, e := range s.epics {
		if e.ID == id {
			found = true
			break
		}
	}
	if !found {
		return nil, models.NotFoundf("epic %s", id)
	}

	keptEpics := s.epics[:0:0]
	for _, e := range s.epics {
		if e.ID != id {
			keptEpics = append(keptEpics, e)
		}
	}

	deletedStories := make(map[string]bool)
	keptStories := s.stories[:0:0]
	for _, st := range s.stories {
		if st.EpicID == id {
			deletedStories[st.ID] = true
		} else {
			keptStories = append(keptStories, st)
		}
	}

	result := &models.DeleteEpicResult{
		EpicID:         id,
		DeletedStories: len(deletedStories),
	}

	keptFT := s.functionalTests[:0:0]
	for _, t := range s.functionalTests {
		if deletedStories[t.StoryID] {
			result.DeletedFunctionalTests++
		} else {
			keptFT = append(keptFT, t)
		}
	}

	keptGS := s.scenarios[:0:0]
	for _, sc := range s.scenarios {
		if deletedStories[sc.StoryID] {
			result.DeletedGherkinScenarios++
		} else {
			keptGS = append(keptGS, sc)
		}
	}

	s.epics = keptEpics
	s.stories = keptStories
	s.functionalTests = keptFT
	s.scenarios = keptGS
	return result, nil
}

// DeleteStory removes the story and every test referencing it, in one atomic
// multi-set removal.
func (s *ArtifactStore) DeleteStory(id string) (*models.DeleteStoryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findStoryLocked(id) < 0 {
		return nil, models.NotFoundf("story %s", id)
	}

	keptStories := s.stories[:0:0]
	for _, st := range s.stories {
		if st.ID != id {
			keptStories = append(keptStories, st)
		}
	}

	result := &models.DeleteStoryResult{StoryID: id}

	keptFT := s.functionalTests[:0:0]
	for _, t := range s.functionalTests {
		if t.StoryID == id {
			result.DeletedFunctionalTests++
		} else {
			keptFT = append(keptFT, t)
		}
	}

	keptGS := s.scenarios[:0:0]
	for _, sc := range s.scenarios {
		if sc.StoryID == id {
			result.DeletedGherkinScenarios++
		} else {
			keptGS = append(keptGS, sc)
		}
	}

	s.stories = keptStories
	s.functionalTests = keptFT
	s.scenarios = keptGS
	return result, nil
}

// DeleteFunctionalTest removes a single functional test by identifier.
func (s *ArtifactStore) DeleteFunctionalTest(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.functionalTests {
		if t.ID == id {
			s.functionalTests = append(s.functionalTests[:i:i], s.functionalTests[i+1:]...)
			return nil
		}
	}
	return models.NotFoundf("functional test %s", id)
}

// DeleteScenario removes a single Gherkin scenario by identifier.
func (s *ArtifactStore) DeleteScenario(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sc := range s.scenarios {
		if sc.ID == id {
			s.scenarios = append(s.scenarios[:i:i], s.scenarios[i+1:]...)
			return nil
		}
	}
	return models.NotFoundf("gherkin scenario %s", id)
}

// ReplaceStoryTests swaps every test belonging to the story for the freshly
// generated ones and clears the story's regeneration flag. Replace, not
// merge: the old tests are fully gone, and no other story's tests move.
func (s *ArtifactStore) ReplaceStoryTests(storyID string, tests []models.FunctionalTest, scenarios []models.GherkinScenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findStoryLocked(storyID)
	if i < 0 {
		return models.NotFoundf("story %s", storyID)
	}

	keptFT := s.functionalTests[:0:0]
	for _, t := range s.functionalTests {
		if t.StoryID != storyID {
			keptFT = append(keptFT, t)
		}
	}
	keptGS := s.scenarios[:0:0]
	for _, sc := range s.scenarios {
		if sc.StoryID != storyID {
			keptGS = append(keptGS, sc)
		}
	}

	s.functionalTests = append(keptFT, tests...)
	s.scenarios = append(keptGS, scenarios...)
	s.stories[i].RegenerationNeeded = false
	return nil
}

// StoriesNeedingRegeneration returns the identifiers of stories flagged for
// regeneration.
func (s *ArtifactStore) StoriesNeedingRegeneration() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, st := range s.stories {
		if st.RegenerationNeeded {
			ids = append(ids, st.ID)
		}
	}
	return ids
}

// ReplaceEntitiesForStories removes every entity whose source stories
// intersect the affected set, appends the replacements, and re-renders the
// diagram, in one atomic swap.
func (s *ArtifactStore) ReplaceEntitiesForStories(affected []string, entities []models.Entity, mermaid string) {
	affectedSet := make(map[string]bool, len(affected))
	for _, id := range affected {
		affectedSet[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entities[:0:0]
	for _, e := range s.entities {
		intersects := false
		for _, sid := range e.SourceStoryIDs {
			if affectedSet[sid] {
				intersects = true
				break
			}
		}
		if !intersects {
			kept = append(kept, e)
		}
	}

	s.entities = append(kept, entities...)
	s.mermaid = mermaid
}

// TestCountsForStory counts the functional tests and scenarios directly
// linked to the story.
func (s *ArtifactStore) TestCountsForStory(storyID string) (functional, gherkin int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.functionalTests {
		if t.StoryID == storyID {
			functional++
		}
	}
	for _, sc := range s.scenarios {
		if sc.StoryID == storyID {
			gherkin++
		}
	}
	return functional, gherkin
}

// EntityCountForStory counts the entities whose source stories include the
// given story.
func (s *ArtifactStore) EntityCountForStory(storyID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.entities {
		for _, sid := range e.SourceStoryIDs {
			if sid == storyID {
				count++
				break
			}
		}
	}
	return count
}

// Results returns a deep-copied view of every artifact. Tests and scenarios
// whose story no longer resolves are excluded as orphans.
func (s *ArtifactStore) Results() models.Results {
	s.mu.RLock()
	defer s.mu.RUnlock()

	liveStories := make(map[string]bool, len(s.stories))
	liveEpics := make(map[string]bool, len(s.epics))
	for _, e := range s.epics {
		liveEpics[e.ID] = true
	}

	r := models.Results{
		ProjectName: s.projectName,
		Mermaid:     s.mermaid,
		Epics:       append([]models.Epic{}, s.epics...),
		Entities:    copyEntities(s.entities),
		GapFixes:    append([]models.GapFix(nil), s.gapFixes...),
	}

	r.UserStories = make([]models.UserStory, 0, len(s.stories))
	for _, st := range s.stories {
		if !liveEpics[st.EpicID] {
			continue
		}
		liveStories[st.ID] = true
		r.UserStories = append(r.UserStories, copyStory(st))
	}

	r.FunctionalTests = make([]models.FunctionalTest, 0, len(s.functionalTests))
	for _, t := range s.functionalTests {
		if liveStories[t.StoryID] {
			r.FunctionalTests = append(r.FunctionalTests, copyFunctionalTest(t))
		}
	}

	r.GherkinScenarios = make([]models.GherkinScenario, 0, len(s.scenarios))
	for _, sc := range s.scenarios {
		if liveStories[sc.StoryID] {
			r.GherkinScenarios = append(r.GherkinScenarios, copyScenario(sc))
		}
	}

	if s.validation != nil {
		report := *s.validation
		report.Issues = append([]string(nil), s.validation.Issues...)
		r.ValidationReport = &report
	}
	if s.skeleton != nil {
		r.CodeSkeleton = copySkeleton(s.skeleton)
		r.CodeTree = s.codeTree
	}

	return r
}

// findStoryLocked returns the index of the story or -1. Callers hold the lock.
func (s *ArtifactStore) findStoryLocked(id string) int {
	for i := range s.stories {
		if s.stories[i].ID == id {
			return i
		}
	}
	return -1
}

func copyStory(st models.UserStory) models.UserStory {
	out := st
	out.AcceptanceCriteria = make([]models.AcceptanceCriterion, len(st.AcceptanceCriteria))
	for i, ac := range st.AcceptanceCriteria {
		out.AcceptanceCriteria[i] = ac
		out.AcceptanceCriteria[i].SourceChunks = append([]string(nil), ac.SourceChunks...)
	}
	out.SourceChunks = append([]string(nil), st.SourceChunks...)
	return out
}

func copyStories(stories []models.UserStory) []models.UserStory {
	out := make([]models.UserStory, len(stories))
	for i, st := range stories {
		out[i] = copyStory(st)
	}
	return out
}

func copyFunctionalTest(t models.FunctionalTest) models.FunctionalTest {
	out := t
	out.Preconditions = append([]string(nil), t.Preconditions...)
	out.TestSteps = append([]string(nil), t.TestSteps...)
	out.ExpectedResults = append([]string(nil), t.ExpectedResults...)
	out.SourceChunks = append([]string(nil), t.SourceChunks...)
	return out
}

func copyScenario(sc models.GherkinScenario) models.GherkinScenario {
	out := sc
	out.Given = append([]string(nil), sc.Given...)
	out.When = append([]string(nil), sc.When...)
	out.Then = append([]string(nil), sc.Then...)
	out.SourceChunks = append([]string(nil), sc.SourceChunks...)
	return out
}

func copyEntities(entities []models.Entity) []models.Entity {
	out := make([]models.Entity, len(entities))
	for i, e := range entities {
		out[i] = e
		out[i].Fields = append([]models.EntityField(nil), e.Fields...)
		out[i].SourceStoryIDs = append([]string(nil), e.SourceStoryIDs...)
	}
	return out
}

func copySkeleton(sk *models.CodeSkeleton) *models.CodeSkeleton {
	out := *sk
	out.Folders = make([]models.CodeFolder, len(sk.Folders))
	for i, f := range sk.Folders {
		out.Folders[i] = f
		out.Folders[i].Files = append([]models.CodeFile(nil), f.Files...)
	}
	return &out
}
