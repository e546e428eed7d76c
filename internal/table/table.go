// Package table holds the small in-memory spreadsheet used by every review step.
package table

import (
	"strconv"
	"strings"

	"litreview/internal/util"
)

// NoColumn is the global sequence column shared by every review table.
const NoColumn = "No."

// Table is a header plus string rows. Every row has len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

func New(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

func (t *Table) Len() int { return len(t.Rows) }

func (t *Table) Index(col string) int {
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

func (t *Table) Has(col string) bool { return t.Index(col) >= 0 }

// Require reports every column in cols that t lacks.
func (t *Table) Require(source string, cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &util.MissingColumnsError{Source: source, Columns: missing}
}

func (t *Table) Get(row int, col string) string {
	i := t.Index(col)
	if i < 0 || row < 0 || row >= len(t.Rows) {
		return ""
	}
	return t.Rows[row][i]
}

// Set writes a cell, adding the column when it does not exist yet.
func (t *Table) Set(row int, col, v string) {
	i := t.Index(col)
	if i < 0 {
		t.InsertColumn(len(t.Columns), col, nil)
		i = len(t.Columns) - 1
	}
	t.Rows[row][i] = v
}

func (t *Table) Column(col string) []string {
	i := t.Index(col)
	out := make([]string, len(t.Rows))
	if i < 0 {
		return out
	}
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// InsertColumn places name at pos. values may be shorter than the table; the
// remaining cells stay empty.
func (t *Table) InsertColumn(pos int, name string, values []string) {
	if pos < 0 || pos > len(t.Columns) {
		pos = len(t.Columns)
	}
	t.Columns = insertAt(t.Columns, pos, name)
	for r := range t.Rows {
		v := ""
		if r < len(values) {
			v = values[r]
		}
		t.Rows[r] = insertAt(t.Rows[r], pos, v)
	}
}

func (t *Table) DropColumn(name string) {
	i := t.Index(name)
	if i < 0 {
		return
	}
	t.Columns = append(t.Columns[:i:i], t.Columns[i+1:]...)
	for r, row := range t.Rows {
		t.Rows[r] = append(row[:i:i], row[i+1:]...)
	}
}

// Append adds a row, padding or cutting it to the column count.
func (t *Table) Append(row []string) {
	cells := make([]string, len(t.Columns))
	copy(cells, row)
	t.Rows = append(t.Rows, cells)
}

// AppendRecord adds a row from a column map. Unknown keys become new columns.
func (t *Table) AppendRecord(rec map[string]string, order []string) {
	for _, k := range order {
		if !t.Has(k) {
			t.InsertColumn(len(t.Columns), k, nil)
		}
	}
	cells := make([]string, len(t.Columns))
	for k, v := range rec {
		i := t.Index(k)
		if i < 0 {
			t.InsertColumn(len(t.Columns), k, nil)
			cells = append(cells, "")
			i = len(t.Columns) - 1
		}
		cells[i] = v
	}
	t.Rows = append(t.Rows, cells)
}

func (t *Table) Record(row int) map[string]string {
	out := make(map[string]string, len(t.Columns))
	for i, c := range t.Columns {
		out[c] = t.Rows[row][i]
	}
	return out
}

// Select returns a copy holding only cols, in that order. Absent columns are empty.
func (t *Table) Select(cols ...string) *Table {
	out := New(cols...)
	idx := make([]int, len(cols))
	for i, c := range cols {
		idx[i] = t.Index(c)
	}
	for _, row := range t.Rows {
		cells := make([]string, len(cols))
		for i, j := range idx {
			if j >= 0 {
				cells[i] = row[j]
			}
		}
		out.Rows = append(out.Rows, cells)
	}
	return out
}

// Filter keeps the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	out := New(t.Columns...)
	for r, row := range t.Rows {
		if keep(r) {
			cells := make([]string, len(row))
			copy(cells, row)
			out.Rows = append(out.Rows, cells)
		}
	}
	return out
}

func (t *Table) Clone() *Table {
	return t.Filter(func(int) bool { return true })
}

// Renumber drops any existing No. column and inserts No. = 1..N as the first column.
func (t *Table) Renumber() {
	t.DropColumn(NoColumn)
	values := make([]string, len(t.Rows))
	for i := range values {
		values[i] = strconv.Itoa(i + 1)
	}
	t.InsertColumn(0, NoColumn, values)
}

// Concat stacks tables. Columns are the union in first-seen order.
func Concat(tables ...*Table) *Table {
	out := New()
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.Columns {
			if !out.Has(c) {
				out.InsertColumn(len(out.Columns), c, nil)
			}
		}
	}
	for _, t := range tables {
		if t == nil {
			continue
		}
		idx := make([]int, len(t.Columns))
		for i, c := range t.Columns {
			idx[i] = out.Index(c)
		}
		for _, row := range t.Rows {
			cells := make([]string, len(out.Columns))
			for i, j := range idx {
				cells[j] = row[i]
			}
			out.Rows = append(out.Rows, cells)
		}
	}
	return out
}

// IsBlank treats empty, whitespace-only and "nan" cells as missing.
func IsBlank(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "nan")
}

// Norm trims and lowercases a categorical cell.
func Norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func insertAt(s []string, pos int, v string) []string {
	s = append(s, "")
	copy(s[pos+1:], s[pos:])
	s[pos] = v
	return s
}
