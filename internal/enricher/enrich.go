package enricher

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"productprep/internal/table"
)

// ErrNoNameColumn is returned when the configured name column is absent.
var ErrNoNameColumn = errors.New("name column not found")

const (
	ColumnCategory    = "category"
	ColumnSubCategory = "sub_category"
	ColumnPractice    = "practice"
)

// Stats counts labelled rows.
type Stats struct {
	Rows       int
	Categories map[string]int
	Practices  map[string]int
}

type Count struct {
	Label string
	N     int
}

// Sorted returns the counts of m by descending N, then label.
func Sorted(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Label: k, N: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Enrich returns a copy of t with category, sub_category and practice
// columns derived from nameColumn. A nil or non-string name classifies as
// the empty string.
//
// With workers > 1 the rows are split into contiguous chunks classified
// concurrently; each result is written at its row position, so the output
// does not depend on workers.
func Enrich(ctx context.Context, t *table.Table, nameColumn string, workers int) (*table.Table, Stats, error) {
	idx := t.Index(nameColumn)
	if idx < 0 {
		return nil, Stats{}, fmt.Errorf("column %q: %w", nameColumn, ErrNoNameColumn)
	}

	n := t.Len()
	labels := make([]Labels, n)
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = max(n, 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	chunk := (n + workers - 1) / workers
	for start := 0; start < n; start += chunk {
		lo, hi := start, min(start+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if i%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				name, _ := t.Rows[i][idx].(string)
				labels[i] = Classify(name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}

	out := t.Clone()
	cat := make([]any, n)
	sub := make([]any, n)
	prac := make([]any, n)
	st := Stats{Rows: n, Categories: map[string]int{}, Practices: map[string]int{}}
	for i, l := range labels {
		cat[i], sub[i], prac[i] = l.Category, l.SubCategory, l.Practice
		st.Categories[l.Category]++
		st.Practices[l.Practice]++
	}
	for _, c := range []struct {
		name string
		vals []any
	}{
		{ColumnCategory, cat},
		{ColumnSubCategory, sub},
		{ColumnPractice, prac},
	} {
		if err := out.SetColumn(c.name, c.vals); err != nil {
			return nil, Stats{}, err
		}
	}
	return out, st, nil
}
