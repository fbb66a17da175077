package storage

import (
	"fmt"

	"productprep/internal/table"
)

// TableSpec describes a table to (re)create. Column types are logical kinds;
// each backend maps them to its own SQL types.
type TableSpec struct {
	Name    string       `json:"name"`
	Schema  string       `json:"schema,omitempty"`
	Columns []ColumnSpec `json:"columns"`
}

type ColumnSpec struct {
	Name string     `json:"name"`
	Kind table.Kind `json:"kind"`
}

// ColumnNames returns the column names in order.
func (s TableSpec) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// SpecFor derives a TableSpec from t, inferring one kind per column.
func SpecFor(name, schema string, t *table.Table) TableSpec {
	kinds := table.InferKinds(t)
	cols := make([]ColumnSpec, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = ColumnSpec{Name: c, Kind: kinds[i]}
	}
	return TableSpec{Name: name, Schema: schema, Columns: cols}
}

// TextSpec describes t with every column as text. Passthrough tables use it
// so values load verbatim.
func TextSpec(name, schema string, t *table.Table) TableSpec {
	cols := make([]ColumnSpec, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = ColumnSpec{Name: c, Kind: table.KindText}
	}
	return TableSpec{Name: name, Schema: schema, Columns: cols}
}

// Rows returns t's rows coerced to the kinds in spec, ready for loading.
func Rows(spec TableSpec, t *table.Table) [][]any {
	kinds := make([]table.Kind, len(spec.Columns))
	for i, c := range spec.Columns {
		kinds[i] = c.Kind
	}
	return table.CoerceRows(t, kinds)
}

// Validate reports specs a backend cannot create.
func (s TableSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("storage: table name is empty")
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("storage: table %s has no columns", s.Name)
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" {
			return fmt.Errorf("storage: table %s has an unnamed column", s.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("storage: table %s has duplicate column %q", s.Name, c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

// CheckRows verifies every row has one value per column.
func CheckRows(spec TableSpec, rows [][]any) error {
	for i, r := range rows {
		if len(r) != len(spec.Columns) {
			return fmt.Errorf("storage: table %s row %d has %d values, want %d", spec.Name, i, len(r), len(spec.Columns))
		}
	}
	return nil
}
