// Package extract turns raw PDF documents into pages with positional text
// blocks, detected tables, and image references.
package extract

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/mlewan/docquery/internal/document"
)

// Result holds the three parallel outputs of extracting one document.
// Table and image extraction are best-effort: their failures are recorded
// in Diagnostics instead of aborting the document.
type Result struct {
	Document    document.Document
	Tables      []document.Table
	Images      []document.ImageRef
	Diagnostics []string
}

// Extractor reads PDF files into the document model.
type Extractor struct {
	logger *slog.Logger
}

// New creates an Extractor. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract reads one PDF. It returns an error only when the file cannot be
// opened or yields no readable pages at all; per-page and per-table problems
// degrade to diagnostics.
func (e *Extractor) Extract(path string) (*Result, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	source := filepath.Base(path)
	total := reader.NumPage()

	result := &Result{
		Document: document.Document{Name: source, Path: path},
	}

	tableIndex := 0
	for num := 1; num <= total; num++ {
		page := reader.Page(num)
		if page.V.IsNull() {
			continue
		}

		lines, err := readPageLines(page)
		if err != nil {
			diag := fmt.Sprintf("%s page %d: %v", source, num, err)
			result.Diagnostics = append(result.Diagnostics, diag)
			e.logger.Warn("page extraction failed", "source", source, "page", num, "error", err)
			continue
		}

		text, blocks := renderLines(lines)
		if strings.TrimSpace(text) != "" {
			result.Document.Pages = append(result.Document.Pages, document.Page{
				Source:     source,
				FilePath:   path,
				Number:     num,
				TotalPages: total,
				Text:       text,
				Blocks:     blocks,
			})
		}

		for _, table := range detectTables(lines, source) {
			table.Index = tableIndex
			tableIndex++
			result.Tables = append(result.Tables, table)
		}

		images, err := listImages(page, source, num)
		if err != nil {
			diag := fmt.Sprintf("%s page %d images: %v", source, num, err)
			result.Diagnostics = append(result.Diagnostics, diag)
			e.logger.Warn("image listing failed", "source", source, "page", num, "error", err)
			continue
		}
		result.Images = append(result.Images, images...)
	}

	if len(result.Document.Pages) == 0 {
		return nil, fmt.Errorf("no readable text in %s", path)
	}
	return result, nil
}

// cell is one horizontally contiguous run of glyphs within a line.
type cell struct {
	text   string
	x0, x1 float64
}

// line is one row of page text with its cells in reading order.
type line struct {
	y        float64
	fontSize float64
	cells    []cell
}

// columnGapFactor is the multiple of the font size a horizontal gap must
// exceed to start a new cell.
const columnGapFactor = 1.5

// readPageLines converts a PDF page into lines of cells. The pdf package can
// panic on malformed content streams, so this recovers and reports instead.
func readPageLines(page pdf.Page) (lines []line, err error) {
	defer func() {
		if r := recover(); r != nil {
			lines = nil
			err = fmt.Errorf("malformed content stream: %v", r)
		}
	}()

	rows, err := page.GetTextByRow()
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if len(row.Content) == 0 {
			continue
		}
		ln := line{y: float64(row.Position)}
		var current strings.Builder
		var cx0, cx1 float64
		flush := func() {
			if current.Len() > 0 {
				ln.cells = append(ln.cells, cell{text: strings.TrimSpace(current.String()), x0: cx0, x1: cx1})
				current.Reset()
			}
		}
		for i, t := range row.Content {
			if t.FontSize > ln.fontSize {
				ln.fontSize = t.FontSize
			}
			if i == 0 {
				cx0 = t.X
			} else {
				gap := t.X - cx1
				size := t.FontSize
				if size <= 0 {
					size = 10
				}
				if gap > size*columnGapFactor {
					flush()
					cx0 = t.X
				} else if gap > size*0.2 {
					current.WriteByte(' ')
				}
			}
			current.WriteString(t.S)
			cx1 = t.X + t.W
		}
		flush()
		if len(ln.cells) > 0 {
			lines = append(lines, ln)
		}
	}
	return lines, nil
}

// renderLines produces the page text and one positional block per line.
func renderLines(lines []line) (string, []document.TextBlock) {
	var sb strings.Builder
	blocks := make([]document.TextBlock, 0, len(lines))
	for i, ln := range lines {
		parts := make([]string, len(ln.cells))
		for j, c := range ln.cells {
			parts[j] = c.text
		}
		text := strings.Join(parts, " ")
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(text)

		height := ln.fontSize
		if height <= 0 {
			height = 10
		}
		blocks = append(blocks, document.TextBlock{
			Text: text,
			BBox: [4]float64{ln.cells[0].x0, ln.y, ln.cells[len(ln.cells)-1].x1, ln.y + height},
		})
	}
	return sb.String(), blocks
}

// listImages records XObject images on a page without decoding pixel data.
func listImages(page pdf.Page, source string, pageNum int) (refs []document.ImageRef, err error) {
	defer func() {
		if r := recover(); r != nil {
			refs = nil
			err = fmt.Errorf("malformed resources: %v", r)
		}
	}()

	xobjects := page.V.Key("Resources").Key("XObject")
	if xobjects.Kind() != pdf.Dict {
		return nil, nil
	}

	idx := 0
	for _, name := range xobjects.Keys() {
		obj := xobjects.Key(name)
		if obj.Key("Subtype").Name() != "Image" {
			continue
		}
		refs = append(refs, document.ImageRef{
			Source:     source,
			Page:       pageNum,
			ImageIndex: idx,
			Ref:        name,
		})
		idx++
	}
	return refs, nil
}
