// Package parser defines the document parser collaborator and its parsed
// document types. The pipeline treats parsing as opaque; it only relies on
// chunk identifiers for traceability joins.
package parser

import "context"

// Chunk is a minimal addressable span of the source document.
type Chunk struct {
	// ID is the chunk identifier, unique within a parsed document.
	ID string `json:"id"`
	// Type is the chunk kind: "heading", "paragraph", or "table".
	Type string `json:"type"`
	// SectionID references the containing section, if any.
	SectionID string `json:"section_id,omitempty"`
	// Text is the chunk's content.
	Text string `json:"text"`
}

// Section is a titled region of the source document.
type Section struct {
	// ID is the section identifier (document numbering when present).
	ID string `json:"id"`
	// Title is the section heading text.
	Title string `json:"title"`
	// Text is the section body.
	Text string `json:"text"`
	// ChunkIDs lists the chunks that make up this section, in order.
	ChunkIDs []string `json:"chunk_ids"`
}

// Table is a tabular region of the source document.
type Table struct {
	// ID is the table identifier.
	ID string `json:"id"`
	// SectionID references the containing section, if any.
	SectionID string `json:"section_id,omitempty"`
	// Headers are the column names from the first row.
	Headers []string `json:"headers"`
	// Rows map column name to cell text, one map per data row.
	Rows []map[string]string `json:"rows"`
}

// Document is the structured result of parsing a source document.
type Document struct {
	// Sections are the document's titled regions, in order.
	Sections []Section `json:"sections"`
	// Tables are the document's tables, in order.
	Tables []Table `json:"tables"`
	// Chunks are the addressable spans, in order.
	Chunks []Chunk `json:"chunks"`
	// RawText is the full plain text of the document.
	RawText string `json:"raw_text"`
}

// Excerpt returns up to maxLen characters of the document's raw text.
// Used to bound generation request sizes.
func (d *Document) Excerpt(maxLen int) string {
	if maxLen <= 0 || len(d.RawText) <= maxLen {
		return d.RawText
	}
	return d.RawText[:maxLen]
}

// Parser turns raw document bytes into a structured Document.
type Parser interface {
	// Parse parses the document. ext is the lowercased file extension
	// including the dot (".txt", ".md").
	Parse(ctx context.Context, data []byte, ext string) (*Document, error)
}
