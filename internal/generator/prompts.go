package generator

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/storyforge/pkg/models"
)

// Prompt builders. Every prompt demands a single JSON object so responses
// can be parsed without tool use; extractJSON handles fenced or bare output.

const systemPrompt = "You are a senior business analyst and software architect. " +
	"You turn requirements documents into structured project artifacts. " +
	"Respond with a single JSON object and nothing else."

func writeCommon(b *strings.Builder, req Request) {
	b.WriteString("## Requirements document\n")
	b.WriteString(req.Excerpt)
	b.WriteString("\n")

	if len(req.GapFixes) > 0 {
		b.WriteString("\n## Applied corrections\n")
		b.WriteString("The following corrections to the document were approved and must be treated as part of it:\n")
		for _, gf := range req.GapFixes {
			fmt.Fprintf(b, "- [%s] %s\n", gf.GapType, gf.Correction())
		}
	}

	if req.Instructions != "" {
		b.WriteString("\n## Additional instructions\n")
		b.WriteString(req.Instructions)
		b.WriteString("\n")
	}
}

func writeChunks(b *strings.Builder, heading string, chunks []string) {
	if len(chunks) == 0 {
		return
	}
	b.WriteString("\n## " + heading + "\n")
	b.WriteString("Ground your output ONLY in these document sections. " +
		"Reference their chunk_id values in source_chunks fields.\n")
	for _, c := range chunks {
		b.WriteString(c)
		b.WriteString("\n---\n")
	}
}

func epicsPrompt(req EpicsRequest) string {
	var b strings.Builder
	writeCommon(&b, req.Request)
	writeChunks(&b, "Focus sections", req.ContextChunks)

	if req.ExistingEpic != nil {
		fmt.Fprintf(&b, "\n## Target epic\nGenerate additional user stories for the epic %q (%s). Do not create new epics.\n",
			req.ExistingEpic.Name, req.ExistingEpic.Description)
	}
	if len(req.ExistingStories) > 0 {
		b.WriteString("\n## Existing stories\nDo not duplicate these:\n")
		for _, st := range req.ExistingStories {
			fmt.Fprintf(&b, "- %s\n", st.Title)
		}
	}

	b.WriteString(`
## Task
Extract epics and user stories from the document.

Respond with JSON:
{
  "project_name": "short product name",
  "epics": [{"name": "...", "description": "..."}],
  "stories": [{
    "epic_name": "name of owning epic",
    "title": "...",
    "role": "as a ...",
    "goal": "i want ...",
    "benefit": "so that ...",
    "source_chunks": ["chunk_1"],
    "acceptance_criteria": [{"text": "...", "source_chunks": ["chunk_2"]}]
  }]
}
Every story must name an epic from the epics array. Cite source chunk ids where the document supports the story.`)
	return b.String()
}

func dataModelPrompt(req DataModelRequest) string {
	var b strings.Builder
	writeCommon(&b, req.Request)

	b.WriteString("\n## User stories\n")
	for _, st := range req.Stories {
		fmt.Fprintf(&b, "- [%s] %s: as a %s, I want %s, so that %s\n",
			st.ID, st.Title, st.Role, st.Goal, st.Benefit)
	}

	if len(req.AffectedStoryIDs) > 0 {
		b.WriteString("\n## Scope\nOnly produce entities derived from these story ids: ")
		b.WriteString(strings.Join(req.AffectedStoryIDs, ", "))
		b.WriteString("\n")
	}
	if len(req.ExistingEntities) > 0 {
		b.WriteString("\n## Existing entities\nThese entities already exist; the diagram must include them alongside your new output:\n")
		for _, e := range req.ExistingEntities {
			fmt.Fprintf(&b, "- %s (%s)\n", e.Name, e.Description)
		}
	}

	b.WriteString(`
## Task
Derive the data model.

Respond with JSON:
{
  "entities": [{
    "name": "PascalCase singular",
    "description": "...",
    "fields": [{"name": "snake_case", "type": "string|int|float|bool|datetime|uuid|text", "required": true}],
    "source_story_ids": ["story id"]
  }],
  "mermaid": "erDiagram\n  ..."
}
The mermaid value must be a complete erDiagram covering ALL entities, existing and new.`)
	return b.String()
}

func functionalTestsPrompt(req TestsRequest) string {
	var b strings.Builder
	writeCommon(&b, req.Request)
	writeStories(&b, req.Stories)
	writeChunks(&b, "Grounding sections", req.FocusChunks)
	writeExistingTitles(&b, req.ExistingTitles)

	b.WriteString(`
## Task
Write functional test cases for the stories.

Respond with JSON:
{
  "tests": [{
    "story_id": "story id",
    "title": "...",
    "objective": "...",
    "preconditions": ["..."],
    "test_steps": ["..."],
    "expected_results": ["..."],
    "source_chunks": ["chunk_1"]
  }]
}
Every test must reference one of the listed story ids.`)
	return b.String()
}

func gherkinPrompt(req TestsRequest) string {
	var b strings.Builder
	writeCommon(&b, req.Request)
	writeStories(&b, req.Stories)
	writeChunks(&b, "Grounding sections", req.FocusChunks)
	writeExistingTitles(&b, req.ExistingTitles)

	b.WriteString(`
## Task
Write Gherkin scenarios for the stories.

Respond with JSON:
{
  "scenarios": [{
    "story_id": "story id",
    "feature_name": "...",
    "scenario_name": "...",
    "given": ["..."],
    "when": ["..."],
    "then": ["..."],
    "source_chunks": ["chunk_1"]
  }]
}
Every scenario must reference one of the listed story ids.`)
	return b.String()
}

func skeletonPrompt(req SkeletonRequest) string {
	var b strings.Builder
	writeCommon(&b, req.Request)

	fmt.Fprintf(&b, "\n## Project\n%s\n", req.ProjectName)
	b.WriteString("\n## Epics\n")
	for _, e := range req.Epics {
		fmt.Fprintf(&b, "- %s: %s\n", e.Name, e.Description)
	}
	writeStories(&b, req.Stories)
	b.WriteString("\n## Entities\n")
	for _, e := range req.Entities {
		fmt.Fprintf(&b, "- %s (%d fields)\n", e.Name, len(e.Fields))
	}

	b.WriteString(`
## Task
Design a starter code scaffold for this project.

Respond with JSON:
{
  "language": "...",
  "root_folder": "project-root-dir-name",
  "folders": [{
    "path": "relative/folder",
    "files": [{"name": "file.ext", "content": "full starter content"}]
  }]
}`)
	return b.String()
}

func validationPrompt(req ValidationRequest) string {
	var b strings.Builder
	writeCommon(&b, req.Request)

	b.WriteString(`
## Task
Assess the quality of this requirements document and propose concrete fixes
for gaps you find.

Respond with JSON:
{
  "overall_score": 0,
  "completeness": 0,
  "clarity": 0,
  "consistency": 0,
  "summary": "...",
  "issues": ["..."],
  "gap_fixes": [{
    "gap_type": "missing_requirement|ambiguity|contradiction|undefined_term",
    "issue": "what is wrong",
    "section": "where in the document",
    "suggestion": "replacement or added text, ready to use verbatim",
    "confidence": "high|medium|low"
  }]
}
Scores are 0-100. Suggestions must be full sentences usable without editing.`)
	return b.String()
}

func writeStories(b *strings.Builder, stories []models.UserStory) {
	b.WriteString("\n## User stories\n")
	for _, st := range stories {
		fmt.Fprintf(b, "- [%s] %s: as a %s, I want %s, so that %s\n",
			st.ID, st.Title, st.Role, st.Goal, st.Benefit)
		for _, ac := range st.AcceptanceCriteria {
			fmt.Fprintf(b, "  - AC: %s\n", ac.Text)
		}
	}
}

func writeExistingTitles(b *strings.Builder, titles []string) {
	if len(titles) == 0 {
		return
	}
	b.WriteString("\n## Existing tests\nDo not duplicate these:\n")
	for _, t := range titles {
		fmt.Fprintf(b, "- %s\n", t)
	}
}
