// Package cleaner normalizes a raw product table: it drops placeholder
// columns, canonicalizes column names, optionally strips HTML, parses the
// price and rating columns, counts nulls and removes exact duplicate rows.
package cleaner

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"productprep/internal/table"
)

// ErrPrice is wrapped by every price parse failure under PriceFail.
var ErrPrice = errors.New("invalid price")

// PricePolicy decides what happens to a price that cannot be parsed or is
// negative.
type PricePolicy string

const (
	PriceFail PricePolicy = "fail"
	PriceNull PricePolicy = "null"
)

type Options struct {
	PriceColumn  string
	RatingColumn string
	PriceErrors  PricePolicy
	// StripHTML lists columns (by normalized name) whose values are reduced
	// to the text content of the HTML fragment they hold.
	StripHTML []string
}

// Clean returns a cleaned copy of in. The input table is not modified.
//
// Steps run in a fixed order: drop placeholder columns, normalize names,
// strip HTML, parse price, parse rating, count nulls, drop duplicates.
// Missing optional columns skip their step and are listed in
// Report.Skipped. Clean is idempotent on its own output.
//
// Errors:
//   - ErrPrice (wrapped) when a price is unparseable or negative and the
//     policy is PriceFail.
//   - HTML parse failures from StripHTML.
func Clean(in *table.Table, opts Options) (*table.Table, Report, error) {
	if opts.PriceErrors == "" {
		opts.PriceErrors = PriceFail
	}
	t := in.Clone()
	rep := Report{RowsIn: t.Len()}

	rep.Dropped = dropPlaceholderColumns(t)
	rep.Renamed = normalizeColumnNames(t)

	for _, col := range opts.StripHTML {
		if !t.Has(col) {
			rep.Skipped = append(rep.Skipped, "strip_html:"+col)
			continue
		}
		if err := stripHTMLColumn(t, col); err != nil {
			return nil, rep, err
		}
	}

	if opts.PriceColumn != "" && t.Has(opts.PriceColumn) {
		n, err := parsePriceColumn(t, opts.PriceColumn, opts.PriceErrors)
		if err != nil {
			return nil, rep, err
		}
		rep.PriceCoerced = n
	} else {
		rep.Skipped = append(rep.Skipped, "price:"+opts.PriceColumn)
	}

	if opts.RatingColumn != "" && t.Has(opts.RatingColumn) {
		rep.RatingCoerced = parseRatingColumn(t, opts.RatingColumn)
	} else {
		rep.Skipped = append(rep.Skipped, "rating:"+opts.RatingColumn)
	}

	rep.NullCounts = countNulls(t)
	rep.Duplicates = dropDuplicates(t)
	rep.RowsOut = t.Len()
	return t, rep, nil
}

// IsPlaceholder reports whether a column name carries no meaning: empty, or
// an index artifact such as "Unnamed: 0".
func IsPlaceholder(name string) bool {
	return strings.TrimSpace(name) == "" || strings.Contains(strings.ToLower(name), "unnamed")
}

func dropPlaceholderColumns(t *table.Table) []string {
	var drop []string
	for _, c := range t.Columns {
		if IsPlaceholder(c) {
			drop = append(drop, c)
		}
	}
	t.DropColumns(drop...)
	return drop
}

// NormalizeName trims, lower-cases and replaces spaces with underscores.
func NormalizeName(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// normalizeColumnNames rewrites t.Columns in place and returns the renames
// as "old -> new" pairs. A name already taken gets a numeric suffix.
func normalizeColumnNames(t *table.Table) []Rename {
	var renamed []Rename
	seen := make(map[string]bool, len(t.Columns))
	for i, c := range t.Columns {
		name := NormalizeName(c)
		if seen[name] {
			base := name
			for n := 2; seen[name]; n++ {
				name = base + "_" + strconv.Itoa(n)
			}
		}
		seen[name] = true
		if name != c {
			renamed = append(renamed, Rename{From: c, To: name})
			t.Columns[i] = name
		}
	}
	return renamed
}

func parsePriceColumn(t *table.Table, col string, policy PricePolicy) (int, error) {
	idx := t.Index(col)
	coerced := 0
	for i, row := range t.Rows {
		v, err := ParsePrice(row[idx])
		if err != nil {
			if policy == PriceNull {
				row[idx] = nil
				coerced++
				continue
			}
			return 0, fmt.Errorf("price row %d %q: %w", i, table.Format(row[idx]), err)
		}
		row[idx] = v
	}
	return coerced, nil
}

func parseRatingColumn(t *table.Table, col string) int {
	idx := t.Index(col)
	coerced := 0
	for _, row := range t.Rows {
		v, ok := ParseRating(row[idx])
		if !ok {
			coerced++
		}
		row[idx] = v
	}
	return coerced
}

func countNulls(t *table.Table) []NullCount {
	counts := make([]int, len(t.Columns))
	for _, row := range t.Rows {
		for j, v := range row {
			if v == nil {
				counts[j]++
			}
		}
	}
	out := make([]NullCount, 0, len(t.Columns))
	for j, c := range t.Columns {
		out = append(out, NullCount{Column: c, Nulls: counts[j]})
	}
	return out
}

func dropDuplicates(t *table.Table) int {
	seen := make(map[string]struct{}, len(t.Rows))
	kept := t.Rows[:0]
	removed := 0
	for _, row := range t.Rows {
		k := RowKey(row)
		if _, dup := seen[k]; dup {
			removed++
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, row)
	}
	for i := len(kept); i < len(t.Rows); i++ {
		t.Rows[i] = nil
	}
	t.Rows = kept
	return removed
}
