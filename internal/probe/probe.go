// Package probe samples a raw dataset and proposes the cleaning settings
// for it.
//
// The probe reads a bounded prefix of the input, infers a coarse type per
// column and guesses which columns hold the product name, price and rating.
// Inference is best-effort: an ambiguous sample yields empty guesses, never
// an error.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"productprep/internal/cleaner"
	"productprep/internal/config"
	csvio "productprep/internal/parser/csv"
	"productprep/internal/table"
)

const DefaultSampleBytes = 20000

// Column types reported by the probe.
const (
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypePrice   = "price"
	TypeDate    = "date"
	TypeText    = "text"
)

type Options struct {
	// SampleBytes bounds how much of the input is read. Zero selects
	// DefaultSampleBytes.
	SampleBytes int
	Reader      csvio.ReaderOptions
}

type Column struct {
	Raw         string
	Name        string
	Type        string
	NonEmpty    int
	Placeholder bool
	Example     string
}

// Result is the outcome of a probe.
type Result struct {
	Rows      int
	Truncated bool
	Columns   []Column

	NameColumn   string
	PriceColumn  string
	RatingColumn string
}

// Probe samples r and infers its columns.
func Probe(ctx context.Context, r io.Reader, opt Options) (Result, error) {
	limit := opt.SampleBytes
	if limit <= 0 {
		limit = DefaultSampleBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return Result{}, fmt.Errorf("probe: read sample: %w", err)
	}
	truncated := len(data) > limit
	if truncated {
		data = cutToLastNewline(data[:limit])
	}

	t, err := csvio.ReadTable(ctx, bytes.NewReader(data), opt.Reader)
	if err != nil {
		return Result{}, fmt.Errorf("probe: %w", err)
	}

	res := Result{Rows: t.Len(), Truncated: truncated}
	for j, raw := range t.Columns {
		res.Columns = append(res.Columns, inferColumn(t, j, raw))
	}
	res.NameColumn = guessName(res.Columns)
	res.PriceColumn = guessPrice(res.Columns)
	res.RatingColumn = guessRating(res.Columns)
	return res, nil
}

// Suggest returns the clean and enrich sections of base updated with the
// probe's guesses. Empty guesses leave base unchanged.
func (r Result) Suggest(base config.Pipeline) config.Pipeline {
	if r.PriceColumn != "" {
		base.Clean.PriceColumn = r.PriceColumn
	}
	if r.RatingColumn != "" {
		base.Clean.RatingColumn = r.RatingColumn
	}
	if r.NameColumn != "" {
		base.Enrich.NameColumn = r.NameColumn
	}
	return base
}

func cutToLastNewline(b []byte) []byte {
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		return b[:i+1]
	}
	return b
}

func inferColumn(t *table.Table, j int, raw string) Column {
	c := Column{Raw: raw, Name: cleaner.NormalizeName(raw), Placeholder: cleaner.IsPlaceholder(raw)}

	allInt, allFloat, allPrice, allDate := true, true, true, true
	currencyHint := false
	for _, row := range t.Rows {
		s, ok := row[j].(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		s = strings.TrimSpace(s)
		c.NonEmpty++
		if c.Example == "" {
			c.Example = s
		}
		if allInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				allFloat = false
			}
		}
		if allPrice {
			if _, err := cleaner.ParsePrice(s); err != nil {
				allPrice = false
			}
		}
		if allDate {
			if _, err := time.Parse("2006-01-02", s); err != nil {
				allDate = false
			}
		}
		if strings.ContainsFunc(s, func(r rune) bool { return unicode.Is(unicode.Sc, r) || r == ',' }) {
			currencyHint = true
		}
	}

	switch {
	case c.NonEmpty == 0:
		c.Type = TypeText
	case allInt:
		c.Type = TypeInteger
	case allFloat:
		c.Type = TypeFloat
	case allPrice && currencyHint:
		c.Type = TypePrice
	case allDate:
		c.Type = TypeDate
	default:
		c.Type = TypeText
	}
	return c
}

func candidates(cols []Column, keep func(Column) bool) []Column {
	var out []Column
	for _, c := range cols {
		if !c.Placeholder && keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func first(cols []Column, prefer ...string) string {
	for _, p := range prefer {
		for _, c := range cols {
			if strings.Contains(c.Name, p) {
				return c.Name
			}
		}
	}
	if len(cols) > 0 {
		return cols[0].Name
	}
	return ""
}

func guessName(cols []Column) string {
	text := candidates(cols, func(c Column) bool { return c.Type == TypeText && c.NonEmpty > 0 })
	named := candidates(text, func(c Column) bool {
		return strings.Contains(c.Name, "name") || strings.Contains(c.Name, "title")
	})
	if len(named) > 0 {
		return first(named, "product_name", "name", "title")
	}
	return first(text)
}

func guessPrice(cols []Column) string {
	numeric := candidates(cols, func(c Column) bool {
		return c.Type == TypePrice || ((c.Type == TypeFloat || c.Type == TypeInteger) && strings.Contains(c.Name, "price"))
	})
	priced := candidates(numeric, func(c Column) bool { return strings.Contains(c.Name, "price") })
	if len(priced) > 0 {
		return first(priced, "sale", "price")
	}
	return first(candidates(numeric, func(c Column) bool { return c.Type == TypePrice }))
}

func guessRating(cols []Column) string {
	return first(candidates(cols, func(c Column) bool {
		return strings.Contains(c.Name, "rating") || strings.Contains(c.Name, "star")
	}), "star_rating", "rating")
}
