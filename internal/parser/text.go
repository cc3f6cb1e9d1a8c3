package parser

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ShayCichocki/storyforge/pkg/models"
)

// sectionNumberRe matches numbered headings like "3.1 Scope".
var sectionNumberRe = regexp.MustCompile(`^(\d+(?:\.\d+)*)\s+(.*)`)

// TextParser parses plain-text and markdown documents. Headings are lines
// starting with '#' or numbered like "2.1 Title"; everything else becomes
// paragraph chunks attached to the current section.
type TextParser struct{}

// NewTextParser creates a TextParser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Parse implements Parser.
func (p *TextParser) Parse(_ context.Context, data []byte, ext string) (*Document, error) {
	switch ext {
	case ".txt", ".md", ".markdown":
	default:
		return nil, models.InvalidRequestf("unsupported document extension %q", ext)
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil, models.InvalidRequestf("document is empty")
	}

	doc := &Document{RawText: text}
	var current *Section
	chunkID := 0

	addChunk := func(kind, body string) string {
		chunkID++
		id := fmt.Sprintf("chunk_%d", chunkID)
		sectionID := ""
		if current != nil {
			sectionID = current.ID
		}
		doc.Chunks = append(doc.Chunks, Chunk{
			ID:        id,
			Type:      kind,
			SectionID: sectionID,
			Text:      body,
		})
		if current != nil {
			current.ChunkIDs = append(current.ChunkIDs, id)
		}
		return id
	}

	for _, para := range splitParagraphs(text) {
		title, sectionID, isHeading := headingOf(para, len(doc.Sections))
		if isHeading {
			doc.Sections = append(doc.Sections, Section{ID: sectionID, Title: title})
			current = &doc.Sections[len(doc.Sections)-1]
			addChunk("heading", para)
			continue
		}

		if current != nil {
			current.Text += para + "\n"
		}
		addChunk("paragraph", para)
	}

	return doc, nil
}

// splitParagraphs breaks text into non-empty paragraphs on blank lines,
// keeping single-line headings as their own paragraphs.
func splitParagraphs(text string) []string {
	var paras []string
	for _, block := range strings.Split(text, "\n\n") {
		for _, line := range splitHeadings(block) {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" {
				paras = append(paras, trimmed)
			}
		}
	}
	return paras
}

// splitHeadings separates heading lines from the body lines that follow them
// within a single blank-line-delimited block.
func splitHeadings(block string) []string {
	lines := strings.Split(block, "\n")
	var out []string
	var body []string

	flush := func() {
		if len(body) > 0 {
			out = append(out, strings.Join(body, "\n"))
			body = nil
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") || sectionNumberRe.MatchString(trimmed) {
			flush()
			out = append(out, trimmed)
			continue
		}
		body = append(body, line)
	}
	flush()

	return out
}

// headingOf reports whether the paragraph is a heading, returning the title
// and a section identifier.
func headingOf(para string, sectionCount int) (title, id string, ok bool) {
	if strings.HasPrefix(para, "#") {
		title = strings.TrimSpace(strings.TrimLeft(para, "# "))
		if title == "" {
			return "", "", false
		}
		return title, fmt.Sprintf("section_%d", sectionCount+1), true
	}

	if m := sectionNumberRe.FindStringSubmatch(para); m != nil && !strings.Contains(para, "\n") {
		// Numbered headings are short lines; long numbered paragraphs are body text.
		if len(para) <= 120 {
			return m[2], m[1], true
		}
	}

	return "", "", false
}
