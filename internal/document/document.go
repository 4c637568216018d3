// Package document defines the shared data model for extracted documents,
// chunks, tables, images, and collection insights.
package document

// TextBlock is a positioned span of page text used to highlight source
// evidence in a viewer. BBox is [x0, y0, x1, y1] in PDF points.
type TextBlock struct {
	Text string     `json:"text"`
	BBox [4]float64 `json:"bbox"`
}

// Page is one non-blank page of a source document, immutable once extracted.
type Page struct {
	Source     string      // file base name, e.g. "report.pdf"
	FilePath   string      // full path the page was extracted from
	Number     int         // 1-based, true page number (blank pages keep their slot)
	TotalPages int         // page count of the parent document
	Text       string      // full page text in reading order
	Blocks     []TextBlock // positional blocks for highlighting
}

// Document is one input file with its extracted pages in order.
type Document struct {
	Name  string
	Path  string
	Pages []Page
}

// Chunk is a bounded slice of page text carrying enough provenance to
// reconstruct which page and region it came from. It is the unit of
// embedding and retrieval.
type Chunk struct {
	Text       string      `json:"text"`
	Source     string      `json:"source"`
	Page       int         `json:"page"`
	TotalPages int         `json:"total_pages"`
	FilePath   string      `json:"file_path"`
	Blocks     []TextBlock `json:"text_blocks"`
}

// Table is one detected tabular structure. Rows maps column name to cell
// value per row; CSV is the delimited form used when prompting.
type Table struct {
	Index   int                 `json:"table_index"`
	Source  string              `json:"source"`
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"data"`
	CSV     string              `json:"csv_string"`
}

// ImageRef records an image occurrence inside a document. No pixel data is
// retained.
type ImageRef struct {
	Source     string `json:"source"`
	Page       int    `json:"page"`
	ImageIndex int    `json:"image_index"`
	Ref        string `json:"xref"`
}

// Stats are document statistics computed locally at ingestion time.
type Stats struct {
	TotalDocuments int `json:"total_documents"`
	TotalPages     int `json:"total_pages"`
}

// Insights is the precomputed, read-only analysis bundle for a collection.
type Insights struct {
	Summary            string   `json:"summary"`
	KeyConcepts        []string `json:"key_concepts"`
	SuggestedQuestions []string `json:"suggested_questions"`
	Stats              Stats    `json:"document_stats"`
}
