// Package table holds the in-memory tabular structure passed between pipeline
// stages.
//
// A Table is column-ordered: Columns names the fields and every row in Rows
// has exactly len(Columns) cells. Cells are nil (missing), string, float64 or
// int64. Stages never share row slices: anything that changes cell values
// works on a Clone or builds new rows.
package table

import (
	"fmt"
	"strconv"
)

type Table struct {
	Columns []string
	Rows    [][]any
}

// New returns an empty table with a copy of columns.
func New(columns []string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func (t *Table) Has(name string) bool { return t.Index(name) >= 0 }

// Append adds a row. The row is padded with nil or truncated to the column count.
func (t *Table) Append(row []any) {
	n := len(t.Columns)
	switch {
	case len(row) < n:
		row = append(row, make([]any, n-len(row))...)
	case len(row) > n:
		row = row[:n]
	}
	t.Rows = append(t.Rows, row)
}

// Column returns the values of column name in row order.
func (t *Table) Column(name string) ([]any, bool) {
	ix := t.Index(name)
	if ix < 0 {
		return nil, false
	}
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[ix]
	}
	return out, true
}

// SetColumn overwrites column name with values, appending it when absent.
func (t *Table) SetColumn(name string, values []any) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("table: column %q has %d values for %d rows", name, len(values), len(t.Rows))
	}
	ix := t.Index(name)
	if ix < 0 {
		t.Columns = append(t.Columns, name)
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], values[i])
		}
		return nil
	}
	for i := range t.Rows {
		t.Rows[i][ix] = values[i]
	}
	return nil
}

// InsertColumn places a new column at position pos (clamped to [0, len]).
func (t *Table) InsertColumn(pos int, name string, values []any) error {
	if t.Has(name) {
		return fmt.Errorf("table: column %q already exists", name)
	}
	if len(values) != len(t.Rows) {
		return fmt.Errorf("table: column %q has %d values for %d rows", name, len(values), len(t.Rows))
	}
	if pos < 0 {
		pos = 0
	}
	if pos > len(t.Columns) {
		pos = len(t.Columns)
	}

	t.Columns = insertAt(t.Columns, pos, name)
	for i, r := range t.Rows {
		t.Rows[i] = insertAt(r, pos, values[i])
	}
	return nil
}

// DropColumns removes the named columns. Unknown names are ignored.
func (t *Table) DropColumns(names ...string) {
	if len(names) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}

	keep := make([]int, 0, len(t.Columns))
	cols := make([]string, 0, len(t.Columns))
	for i, c := range t.Columns {
		if _, ok := drop[c]; ok {
			continue
		}
		keep = append(keep, i)
		cols = append(cols, c)
	}
	if len(keep) == len(t.Columns) {
		return
	}

	for i, r := range t.Rows {
		nr := make([]any, len(keep))
		for j, k := range keep {
			nr[j] = r[k]
		}
		t.Rows[i] = nr
	}
	t.Columns = cols
}

// Clone deep-copies the column list and row slices. Cell values are
// immutable scalars so they are shared.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]any, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = append([]any(nil), r...)
	}
	return out
}

// Reindex assigns a dense int64 identifier 0..N-1 in row order to column
// name, placed first. An existing column of that name is replaced.
func Reindex(t *Table, name string) error {
	ids := make([]any, len(t.Rows))
	for i := range ids {
		ids[i] = int64(i)
	}
	t.DropColumns(name)
	return t.InsertColumn(0, name, ids)
}

// Format renders a cell the way it is written to CSV: nil is empty, floats
// use the shortest representation that round-trips.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}

func insertAt[T any](s []T, pos int, v T) []T {
	var zero T
	s = append(s, zero)
	copy(s[pos+1:], s[pos:])
	s[pos] = v
	return s
}
