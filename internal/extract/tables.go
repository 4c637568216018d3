package extract

import (
	"encoding/csv"
	"strings"

	"github.com/mlewan/docquery/internal/document"
)

// minTableLines is the smallest run of aligned lines treated as a table:
// one header line plus at least one data line.
const minTableLines = 2

// detectTables finds runs of consecutive lines that share a column count of
// two or more and turns each run into a Table. The first line of a run is
// taken as the header. Table.Index is assigned by the caller.
func detectTables(lines []line, source string) []document.Table {
	var tables []document.Table

	run := make([]line, 0, len(lines))
	flush := func() {
		if len(run) >= minTableLines {
			if t, ok := buildTable(run, source); ok {
				tables = append(tables, t)
			}
		}
		run = run[:0]
	}

	for _, ln := range lines {
		if len(ln.cells) < 2 {
			flush()
			continue
		}
		if len(run) > 0 && len(ln.cells) != len(run[0].cells) {
			flush()
		}
		run = append(run, ln)
	}
	flush()

	return tables
}

// buildTable converts an aligned run into a Table with its CSV form.
func buildTable(run []line, source string) (document.Table, bool) {
	columns := make([]string, len(run[0].cells))
	for i, c := range run[0].cells {
		columns[i] = c.text
	}

	rows := make([]map[string]string, 0, len(run)-1)
	records := make([][]string, 0, len(run))
	records = append(records, columns)
	for _, ln := range run[1:] {
		row := make(map[string]string, len(columns))
		record := make([]string, len(columns))
		for i, c := range ln.cells {
			row[columns[i]] = c.text
			record[i] = c.text
		}
		rows = append(rows, row)
		records = append(records, record)
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.WriteAll(records); err != nil {
		return document.Table{}, false
	}
	w.Flush()

	return document.Table{
		Source:  source,
		Columns: columns,
		Rows:    rows,
		CSV:     sb.String(),
	}, true
}
