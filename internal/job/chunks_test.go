package job

import (
	"reflect"
	"testing"

	"github.com/ShayCichocki/storyforge/internal/parser"
	"github.com/ShayCichocki/storyforge/pkg/models"
)

func indexFromTexts(texts ...string) *ChunkIndex {
	doc := &parser.Document{}
	for i, text := range texts {
		doc.Chunks = append(doc.Chunks, parser.Chunk{
			ID:   "chunk_" + string(rune('1'+i)),
			Type: "paragraph",
			Text: text,
		})
	}
	return BuildChunkIndex(doc)
}

func TestChunkIndex_Resolve(t *testing.T) {
	idx := indexFromTexts("alpha", "beta", "gamma")

	// Out-of-order, duplicated, and unknown ids: result is document order,
	// deduplicated, unknowns skipped.
	got := idx.Resolve([]string{"chunk_3", "chunk_1", "chunk_3", "chunk_9"})

	var texts []string
	for _, c := range got {
		texts = append(texts, c.Text)
	}
	if !reflect.DeepEqual(texts, []string{"alpha", "gamma"}) {
		t.Errorf("resolved texts = %v, want [alpha gamma]", texts)
	}
}

func TestChunkIndex_NilSafe(t *testing.T) {
	var idx *ChunkIndex

	if idx.Len() != 0 {
		t.Error("nil index Len != 0")
	}
	if _, ok := idx.Get("chunk_1"); ok {
		t.Error("nil index Get returned ok")
	}
	if got := idx.Resolve([]string{"chunk_1"}); got != nil {
		t.Errorf("nil index Resolve = %v", got)
	}
}

func TestStoryChunkRefs(t *testing.T) {
	story := models.UserStory{
		ID:           "story-1",
		SourceChunks: []string{"chunk_2", "chunk_1"},
		AcceptanceCriteria: []models.AcceptanceCriterion{
			{ID: "ac-1", SourceChunks: []string{"chunk_1", "chunk_4"}},
			{ID: "ac-2", SourceChunks: []string{"chunk_4", "chunk_5"}},
		},
	}

	got := StoryChunkRefs(story)
	want := []string{"chunk_2", "chunk_1", "chunk_4", "chunk_5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("StoryChunkRefs = %v, want %v", got, want)
	}
}

func TestStoryChunkRefs_Empty(t *testing.T) {
	if got := StoryChunkRefs(models.UserStory{ID: "story-1"}); got != nil {
		t.Errorf("refs for chunkless story = %v, want nil", got)
	}
}
