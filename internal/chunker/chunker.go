// Package chunker splits extracted pages into overlapping fixed-size
// segments while propagating provenance metadata onto every segment.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mlewan/docquery/internal/document"
)

const (
	// DefaultChunkSize is the target chunk length in bytes.
	DefaultChunkSize = 1000
	// DefaultOverlap is the shared prefix length between adjacent chunks.
	DefaultOverlap = 200
)

// Chunker produces overlapping text segments. Size and overlap are byte
// counts; chunk starts always fall on rune boundaries. Each page is split
// independently, so a chunk always carries the metadata of the page it
// starts on and chunk order follows document and page order.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. Zero values select the defaults; an overlap that
// is negative or not smaller than the size is rejected.
func New(size, overlap int) (*Chunker, error) {
	if size == 0 {
		size = DefaultChunkSize
	}
	if overlap == 0 && size > DefaultOverlap {
		overlap = DefaultOverlap
	}
	if size < 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk size %d with overlap %d", document.ErrInvalidInput, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split chunks pages in order. Pages with blank text yield no chunks.
func (c *Chunker) Split(pages []document.Page) []document.Chunk {
	var chunks []document.Chunk
	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		for _, text := range c.splitText(page.Text) {
			chunks = append(chunks, document.Chunk{
				Text:       text,
				Source:     page.Source,
				Page:       page.Number,
				TotalPages: page.TotalPages,
				FilePath:   page.FilePath,
				Blocks:     page.Blocks,
			})
		}
	}
	return chunks
}

// splitText windows text into segments of at most the target size. The next
// window starts overlap bytes before the previous cut, so removing the
// first overlap bytes of every segment after the first reconstructs the
// input. When that position lands inside a multibyte rune the start widens
// back to the rune boundary, sharing up to three extra bytes; when even
// that would revisit the previous start, it falls forward to the next rune
// boundary instead so the window always advances. Cuts prefer paragraph,
// then sentence, then word boundaries inside the tail of the window before
// falling back to a hard cut.
func (c *Chunker) splitText(text string) []string {
	if len(text) <= c.size {
		return []string{text}
	}

	var segments []string
	start := 0
	for {
		end := start + c.size
		if end >= len(text) {
			segments = append(segments, text[start:])
			return segments
		}
		cut := c.findCut(text, start, end)
		segments = append(segments, text[start:cut])
		next := cut - c.overlap
		for next > start && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= start {
			next = start + 1
			for next < len(text) && !utf8.RuneStart(text[next]) {
				next++
			}
		}
		if next >= len(text) {
			return segments
		}
		start = next
	}
}

// boundary separators in preference order. The cut lands just after the
// separator so it stays with the preceding segment.
var separators = []string{"\n\n", ". ", "! ", "? ", "\n", " "}

// findCut picks a cut position in (start+overlap, end]. Boundaries are only
// honored in the tail half of the window to keep segments near the target
// size.
func (c *Chunker) findCut(text string, start, end int) int {
	floor := start + (end-start)/2
	if min := start + c.overlap + 1; floor < min {
		floor = min
	}
	for _, sep := range separators {
		if i := strings.LastIndex(text[floor:end], sep); i >= 0 {
			return floor + i + len(sep)
		}
	}
	cut := end
	for cut > floor && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return cut
}
