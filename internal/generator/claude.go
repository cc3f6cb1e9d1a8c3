package generator

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"

	"github.com/ShayCichocki/storyforge/pkg/models"
)

// ClaudeGenerator implements Generator against the Anthropic Messages API.
// Calls pass through the shared gate and retry with backoff; malformed
// model output counts as a failed attempt.
type ClaudeGenerator struct {
	client *Client
	gate   *Gate
	policy RetryPolicy
}

var _ Generator = (*ClaudeGenerator)(nil)

// NewClaudeGenerator creates a generator backed by the given client.
func NewClaudeGenerator(client *Client, gate *Gate, policy RetryPolicy) *ClaudeGenerator {
	if policy.Attempts <= 0 {
		policy = DefaultRetryPolicy
	}
	return &ClaudeGenerator{client: client, gate: gate, policy: policy}
}

// complete makes one model call and returns the concatenated text output.
func (g *ClaudeGenerator) complete(ctx context.Context, prompt string) (string, error) {
	if g.gate != nil {
		if err := g.gate.Acquire(ctx); err != nil {
			return "", err
		}
		defer g.gate.Release()
	}

	resp, err := g.client.sdk().Messages.New(ctx, anthropic.MessageNewParams{
		Model:     g.client.Model(),
		MaxTokens: 16384,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	g.client.Tracker().Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}
	return text.String(), nil
}

// extractJSON pulls the JSON object out of a model response, tolerating a
// fenced code block or surrounding prose.
func extractJSON(text string) (string, error) {
	if i := strings.Index(text, "```json"); i >= 0 {
		rest := text[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			text = rest[:j]
		}
	} else if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			text = rest[:j]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", models.GeneratorFailuref("response contains no JSON object")
	}
	return text[start : end+1], nil
}

// call runs a full prompt/parse cycle with retries: each attempt makes one
// model call and unmarshals into out; parse failures burn an attempt.
func (g *ClaudeGenerator) call(ctx context.Context, op, prompt string, out interface{}) error {
	return retry(ctx, g.policy, op, func() error {
		text, err := g.complete(ctx, prompt)
		if err != nil {
			return err
		}
		body, err := extractJSON(text)
		if err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(body), out); err != nil {
			return models.GeneratorFailuref("unmarshal %s response: %v", op, err)
		}
		return nil
	})
}

type storyWire struct {
	EpicName           string   `json:"epic_name"`
	Title              string   `json:"title"`
	Role               string   `json:"role"`
	Goal               string   `json:"goal"`
	Benefit            string   `json:"benefit"`
	SourceChunks       []string `json:"source_chunks"`
	AcceptanceCriteria []struct {
		Text         string   `json:"text"`
		SourceChunks []string `json:"source_chunks"`
	} `json:"acceptance_criteria"`
}

type epicsWire struct {
	ProjectName string `json:"project_name"`
	Epics       []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"epics"`
	Stories []storyWire `json:"stories"`
}

// GenerateEpicsAndStories produces the project name, epics, and stories.
func (g *ClaudeGenerator) GenerateEpicsAndStories(ctx context.Context, req EpicsRequest) (*EpicsAndStoriesResult, error) {
	var wire epicsWire
	if err := g.call(ctx, "epics", epicsPrompt(req), &wire); err != nil {
		return nil, err
	}

	result := &EpicsAndStoriesResult{ProjectName: wire.ProjectName}

	epicByName := make(map[string]string)
	if req.ExistingEpic != nil {
		epicByName[req.ExistingEpic.Name] = req.ExistingEpic.ID
	}
	for _, e := range wire.Epics {
		if e.Name == "" {
			return nil, models.GeneratorFailuref("epic missing name")
		}
		id := uuid.NewString()
		epicByName[e.Name] = id
		result.Epics = append(result.Epics, models.Epic{
			ID:          id,
			Name:        e.Name,
			Description: e.Description,
		})
	}

	for _, sw := range wire.Stories {
		epicID, ok := epicByName[sw.EpicName]
		if !ok {
			return nil, models.GeneratorFailuref("story %q references unknown epic %q", sw.Title, sw.EpicName)
		}
		if sw.Title == "" {
			return nil, models.GeneratorFailuref("story missing title")
		}

		story := models.UserStory{
			ID:           uuid.NewString(),
			EpicID:       epicID,
			Title:        sw.Title,
			Role:         sw.Role,
			Goal:         sw.Goal,
			Benefit:      sw.Benefit,
			SourceChunks: sw.SourceChunks,
		}
		for _, ac := range sw.AcceptanceCriteria {
			story.AcceptanceCriteria = append(story.AcceptanceCriteria, models.AcceptanceCriterion{
				ID:           uuid.NewString(),
				Text:         ac.Text,
				SourceChunks: ac.SourceChunks,
			})
		}
		result.Stories = append(result.Stories, story)
	}

	return result, nil
}

type dataModelWire struct {
	Entities []models.Entity `json:"entities"`
	Mermaid  string          `json:"mermaid"`
}

// GenerateDataModel produces entities and the relationship diagram.
func (g *ClaudeGenerator) GenerateDataModel(ctx context.Context, req DataModelRequest) (*DataModelResult, error) {
	var wire dataModelWire
	if err := g.call(ctx, "data_model", dataModelPrompt(req), &wire); err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(req.Stories))
	for _, st := range req.Stories {
		known[st.ID] = true
	}
	for _, e := range wire.Entities {
		if e.Name == "" {
			return nil, models.GeneratorFailuref("entity missing name")
		}
		for _, sid := range e.SourceStoryIDs {
			if !known[sid] {
				return nil, models.GeneratorFailuref("entity %s references unknown story %s", e.Name, sid)
			}
		}
	}
	if wire.Mermaid == "" {
		return nil, models.GeneratorFailuref("data model response missing diagram")
	}

	return &DataModelResult{Entities: wire.Entities, Mermaid: wire.Mermaid}, nil
}

type functionalTestsWire struct {
	Tests []struct {
		StoryID         string   `json:"story_id"`
		Title           string   `json:"title"`
		Objective       string   `json:"objective"`
		Preconditions   []string `json:"preconditions"`
		TestSteps       []string `json:"test_steps"`
		ExpectedResults []string `json:"expected_results"`
		SourceChunks    []string `json:"source_chunks"`
	} `json:"tests"`
}

// GenerateFunctionalTests produces functional test cases for the stories.
func (g *ClaudeGenerator) GenerateFunctionalTests(ctx context.Context, req TestsRequest) (*FunctionalTestsResult, error) {
	var wire functionalTestsWire
	if err := g.call(ctx, "functional_tests", functionalTestsPrompt(req), &wire); err != nil {
		return nil, err
	}

	known := storyIDSet(req.Stories)
	result := &FunctionalTestsResult{}
	for _, tw := range wire.Tests {
		if !known[tw.StoryID] {
			return nil, models.GeneratorFailuref("test %q references unknown story %s", tw.Title, tw.StoryID)
		}
		result.Tests = append(result.Tests, models.FunctionalTest{
			ID:              uuid.NewString(),
			StoryID:         tw.StoryID,
			Title:           tw.Title,
			Objective:       tw.Objective,
			Preconditions:   tw.Preconditions,
			TestSteps:       tw.TestSteps,
			ExpectedResults: tw.ExpectedResults,
			SourceChunks:    tw.SourceChunks,
		})
	}
	return result, nil
}

type gherkinWire struct {
	Scenarios []struct {
		StoryID      string   `json:"story_id"`
		FeatureName  string   `json:"feature_name"`
		ScenarioName string   `json:"scenario_name"`
		Given        []string `json:"given"`
		When         []string `json:"when"`
		Then         []string `json:"then"`
		SourceChunks []string `json:"source_chunks"`
	} `json:"scenarios"`
}

// GenerateGherkinScenarios produces behavioral scenarios for the stories.
func (g *ClaudeGenerator) GenerateGherkinScenarios(ctx context.Context, req TestsRequest) (*GherkinResult, error) {
	var wire gherkinWire
	if err := g.call(ctx, "gherkin_tests", gherkinPrompt(req), &wire); err != nil {
		return nil, err
	}

	known := storyIDSet(req.Stories)
	result := &GherkinResult{}
	for _, sw := range wire.Scenarios {
		if !known[sw.StoryID] {
			return nil, models.GeneratorFailuref("scenario %q references unknown story %s", sw.ScenarioName, sw.StoryID)
		}
		result.Scenarios = append(result.Scenarios, models.GherkinScenario{
			ID:           uuid.NewString(),
			StoryID:      sw.StoryID,
			FeatureName:  sw.FeatureName,
			ScenarioName: sw.ScenarioName,
			Given:        sw.Given,
			When:         sw.When,
			Then:         sw.Then,
			SourceChunks: sw.SourceChunks,
		})
	}
	return result, nil
}

// GenerateCodeSkeleton produces the starter code scaffold.
func (g *ClaudeGenerator) GenerateCodeSkeleton(ctx context.Context, req SkeletonRequest) (*CodeSkeletonResult, error) {
	var skeleton models.CodeSkeleton
	if err := g.call(ctx, "code_generation", skeletonPrompt(req), &skeleton); err != nil {
		return nil, err
	}
	if len(skeleton.Folders) == 0 {
		return nil, models.GeneratorFailuref("code skeleton has no folders")
	}
	if skeleton.RootFolder == "" {
		skeleton.RootFolder = req.ProjectName
	}

	return &CodeSkeletonResult{
		Skeleton: &skeleton,
		Tree:     BuildCodeTree(&skeleton),
	}, nil
}

type validationWire struct {
	models.ValidationReport
	GapFixes []struct {
		GapType    string `json:"gap_type"`
		Issue      string `json:"issue"`
		Section    string `json:"section"`
		Suggestion string `json:"suggestion"`
		Confidence string `json:"confidence"`
	} `json:"gap_fixes"`
}

// ValidateDocument produces a quality report and suggested gap fixes. Fixes
// come back with pending dispositions; the user decides later.
func (g *ClaudeGenerator) ValidateDocument(ctx context.Context, req ValidationRequest) (*ValidationResult, error) {
	var wire validationWire
	if err := g.call(ctx, "validation", validationPrompt(req), &wire); err != nil {
		return nil, err
	}

	report := wire.ValidationReport
	result := &ValidationResult{Report: &report}
	for _, fw := range wire.GapFixes {
		if fw.Suggestion == "" {
			continue
		}
		result.GapFixes = append(result.GapFixes, models.GapFix{
			ID:          uuid.NewString(),
			GapType:     fw.GapType,
			Issue:       fw.Issue,
			Section:     fw.Section,
			Suggestion:  fw.Suggestion,
			Confidence:  fw.Confidence,
			Disposition: models.GapFixPending,
		})
	}
	return result, nil
}

func storyIDSet(stories []models.UserStory) map[string]bool {
	set := make(map[string]bool, len(stories))
	for _, st := range stories {
		set[st.ID] = true
	}
	return set
}

// BuildCodeTree converts a skeleton into the nested display tree: one node
// per path segment, files as leaves carrying their content.
func BuildCodeTree(sk *models.CodeSkeleton) []*models.CodeTreeNode {
	root := &models.CodeTreeNode{Type: "folder"}
	folders := map[string]*models.CodeTreeNode{"": root}

	ensureFolder := func(path string) *models.CodeTreeNode {
		if n, ok := folders[path]; ok {
			return n
		}
		parent := root
		var prefix string
		for _, seg := range strings.Split(path, "/") {
			if seg == "" {
				continue
			}
			if prefix == "" {
				prefix = seg
			} else {
				prefix = prefix + "/" + seg
			}
			n, ok := folders[prefix]
			if !ok {
				n = &models.CodeTreeNode{Name: seg, Type: "folder"}
				parent.Children = append(parent.Children, n)
				folders[prefix] = n
			}
			parent = n
		}
		return parent
	}

	for _, folder := range sk.Folders {
		node := ensureFolder(strings.Trim(folder.Path, "/"))
		for _, f := range folder.Files {
			path := f.Name
			if p := strings.Trim(folder.Path, "/"); p != "" {
				path = p + "/" + f.Name
			}
			node.Children = append(node.Children, &models.CodeTreeNode{
				Name:    f.Name,
				Type:    "file",
				Path:    path,
				Content: f.Content,
			})
		}
	}
	return root.Children
}
