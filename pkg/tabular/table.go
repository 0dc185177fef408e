// Package tabular provides a minimal immutable table model for the raw
// source tables the pipeline consumes. Tables carry ordered columns and
// string cells; typing is applied by the consuming component, never here.
package tabular

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/openplanning/dupaudit/pkg/errors"
)

// Table is an immutable rectangular table of string cells with named,
// ordered columns. Column names are normalized on construction.
type Table struct {
	name    string
	columns []string
	index   map[string]int
	rows    [][]string
}

// NormalizeColumn canonicalizes a source column name: trimmed, lowercased,
// hyphens replaced with underscores. Source tables use hyphenated names
// ("entry-date") while the pipeline works with the underscore form.
func NormalizeColumn(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	return strings.ReplaceAll(name, "-", "_")
}

// New builds a table from columns and rows. Rows shorter than the column
// set are padded with empty cells; longer rows are truncated.
func New(name string, columns []string, rows [][]string) *Table {
	normalized := make([]string, len(columns))
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		normalized[i] = NormalizeColumn(c)
		if _, ok := index[normalized[i]]; !ok {
			index[normalized[i]] = i
		}
	}

	shaped := make([][]string, len(rows))
	for i, row := range rows {
		if len(row) == len(columns) {
			shaped[i] = row
			continue
		}
		cells := make([]string, len(columns))
		copy(cells, row)
		shaped[i] = cells
	}

	return &Table{name: name, columns: normalized, index: index, rows: shaped}
}

// ReadCSV decodes a CSV stream into a table. The first record is the
// header. An empty stream yields an empty zero-column table, not an error.
func ReadCSV(name string, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are shaped in New

	header, err := reader.Read()
	if err == io.EOF {
		return New(name, nil, nil), nil
	}
	if err != nil {
		return nil, errors.WrapParse("csv", name, err)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapParse("csv", name, err)
		}
		rows = append(rows, record)
	}

	return New(name, header, rows), nil
}

// Name returns the logical source name of the table.
func (t *Table) Name() string {
	return t.name
}

// Columns returns a copy of the normalized column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[NormalizeColumn(name)]
	return ok
}

// MissingColumns returns the subset of required column names the table
// lacks, in the order given.
func (t *Table) MissingColumns(required ...string) []string {
	var missing []string
	for _, c := range required {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// Get returns the cell at the given row for the named column, or the
// empty string when the column does not exist.
func (t *Table) Get(row int, column string) string {
	i, ok := t.index[NormalizeColumn(column)]
	if !ok || row < 0 || row >= len(t.rows) {
		return ""
	}
	return t.rows[row][i]
}
