package cleaner

import (
	"fmt"
	"io"
)

type Rename struct {
	From string
	To   string
}

type NullCount struct {
	Column string
	Nulls  int
}

// Report summarizes what Clean did.
type Report struct {
	RowsIn        int
	RowsOut       int
	Dropped       []string
	Renamed       []Rename
	Skipped       []string
	PriceCoerced  int
	RatingCoerced int
	// NullCounts holds one entry per output column in column order.
	NullCounts []NullCount
	Duplicates int
}

// Nulls returns the entries of NullCounts with at least one null.
func (r Report) Nulls() []NullCount {
	var out []NullCount
	for _, nc := range r.NullCounts {
		if nc.Nulls > 0 {
			out = append(out, nc)
		}
	}
	return out
}

// Print writes the human-readable summary shown after cleaning.
func (r Report) Print(w io.Writer) error {
	var err error
	p := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}
	if len(r.Dropped) > 0 {
		p("Dropped columns: %v\n", r.Dropped)
	}
	for _, s := range r.Skipped {
		p("Skipped step: %s (column not present)\n", s)
	}
	p("\nMissing values per column:\n")
	nulls := r.Nulls()
	if len(nulls) == 0 {
		p("  (none)\n")
	}
	for _, nc := range nulls {
		p("  %-24s %d\n", nc.Column, nc.Nulls)
	}
	if r.PriceCoerced > 0 {
		p("Prices coerced to null: %d\n", r.PriceCoerced)
	}
	if r.RatingCoerced > 0 {
		p("Ratings coerced to null: %d\n", r.RatingCoerced)
	}
	p("\nDuplicates removed: %d (%d -> %d rows)\n", r.Duplicates, r.RowsIn, r.RowsOut)
	return err
}
