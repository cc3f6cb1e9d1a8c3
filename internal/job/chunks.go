package job

import (
	"github.com/ShayCichocki/storyforge/internal/parser"
	"github.com/ShayCichocki/storyforge/pkg/models"
)

// ChunkIndex maps chunk identifiers to their parsed chunks, preserving
// document order. It is built once per parsed document and read-only after.
type ChunkIndex struct {
	order []string
	byID  map[string]parser.Chunk
}

// BuildChunkIndex indexes the chunks of a parsed document.
func BuildChunkIndex(doc *parser.Document) *ChunkIndex {
	idx := &ChunkIndex{
		order: make([]string, 0, len(doc.Chunks)),
		byID:  make(map[string]parser.Chunk, len(doc.Chunks)),
	}
	for _, c := range doc.Chunks {
		if _, ok := idx.byID[c.ID]; ok {
			continue
		}
		idx.order = append(idx.order, c.ID)
		idx.byID[c.ID] = c
	}
	return idx
}

// Len returns the number of indexed chunks.
func (idx *ChunkIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.order)
}

// Get returns the chunk with the given identifier.
func (idx *ChunkIndex) Get(id string) (parser.Chunk, bool) {
	if idx == nil {
		return parser.Chunk{}, false
	}
	c, ok := idx.byID[id]
	return c, ok
}

// Resolve returns the chunks for the given identifiers in document order,
// deduplicated. Unknown identifiers are skipped.
func (idx *ChunkIndex) Resolve(ids []string) []parser.Chunk {
	if idx == nil || len(ids) == 0 {
		return nil
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var out []parser.Chunk
	for _, id := range idx.order {
		if wanted[id] {
			out = append(out, idx.byID[id])
		}
	}
	return out
}

// StoryChunkRefs collects the chunk identifiers referenced by a story and
// its acceptance criteria, deduplicated, in first-seen order.
func StoryChunkRefs(story models.UserStory) []string {
	seen := make(map[string]bool)
	var refs []string

	add := func(ids []string) {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				refs = append(refs, id)
			}
		}
	}

	add(story.SourceChunks)
	for _, ac := range story.AcceptanceCriteria {
		add(ac.SourceChunks)
	}
	return refs
}
