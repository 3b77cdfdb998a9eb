// Package chunker splits extracted document text into retrieval-sized
// passages along structural boundaries.
package chunker

import (
	"regexp"
	"strings"
)

// sectionBoundary marks the start of a structural unit: a numbered heading,
// an ALL-CAPS heading ending in a colon, or a bullet item. Boundaries are
// detected at line starts and the boundary line stays with the section it
// opens.
var sectionBoundary = regexp.MustCompile(`\n\s*(\d+\.\s|[A-Z][A-Z\s]+:|\*\s|-\s)`)

// paragraphBreak separates paragraphs inside an oversized section.
var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Chunker splits text into chunks of roughly chunkSize characters. Sections
// may overshoot the target by the slack factor before they are forced into a
// new chunk; oversized sections are split on paragraphs with a one-paragraph
// overlap so no statement loses its surrounding context.
type Chunker struct {
	chunkSize int
}

// slack lets a chunk absorb one more small section instead of cutting it off.
const slack = 1.2

// New returns a chunker targeting chunkSize characters per chunk.
func New(chunkSize int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	return &Chunker{chunkSize: chunkSize}
}

// Split breaks text into ordered chunks. Whitespace-only input yields nil.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	limit := int(float64(c.chunkSize) * slack)

	var chunks []string
	var buf strings.Builder

	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			chunks = append(chunks, s)
		}
		buf.Reset()
	}

	for _, section := range splitSections(text) {
		if len(section) > limit {
			flush()
			chunks = append(chunks, c.splitParagraphs(section)...)
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(section) > limit {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(section)
	}
	flush()

	return chunks
}

// splitSections cuts text at structural boundaries, keeping each boundary
// marker at the head of the section it introduces. The regexp package has no
// lookahead, so the cut positions come from match offsets instead.
func splitSections(text string) []string {
	matches := sectionBoundary.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}

	var sections []string
	prev := 0
	for _, m := range matches {
		// m[0] points at the newline preceding the marker; cut after it so
		// the marker opens the next section.
		if cut := m[0] + 1; cut > prev {
			sections = append(sections, strings.TrimRight(text[prev:cut], "\n"))
			prev = cut
		}
	}
	sections = append(sections, text[prev:])

	out := sections[:0]
	for _, s := range sections {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// splitParagraphs breaks an oversized section on blank lines, carrying the
// last paragraph of each chunk into the next as overlap.
func (c *Chunker) splitParagraphs(section string) []string {
	paragraphs := paragraphBreak.Split(section, -1)

	var chunks []string
	var current []string
	currentLen := 0

	emit := func() {
		if len(current) == 0 {
			return
		}
		chunk := strings.TrimSpace(strings.Join(current, "\n\n"))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		// Seed the next chunk with the trailing paragraph for continuity.
		last := current[len(current)-1]
		current = []string{last}
		currentLen = len(last)
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if currentLen > 0 && currentLen+len(p) > c.chunkSize {
			emit()
		}
		current = append(current, p)
		currentLen += len(p)
	}
	if len(current) > 0 {
		// Avoid a final chunk that is nothing but the overlap seed.
		chunk := strings.TrimSpace(strings.Join(current, "\n\n"))
		if chunk != "" && (len(chunks) == 0 || !strings.HasSuffix(chunks[len(chunks)-1], chunk)) {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
