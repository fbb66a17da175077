package probe

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"productprep/internal/config"
	csvio "productprep/internal/parser/csv"
)

const sample = `,product_name,sale_price,listed_price,star_rating,description
0,Running Shoe,"₹1,299",₹1499,4.5,<p>Light</p>
1,Ski Jacket,₹899,₹999,,Warm
`

func probeString(t *testing.T, s string, opt Options) Result {
	t.Helper()
	if opt.Reader.Comma == 0 {
		opt.Reader = csvio.OptionsFrom(nil)
	}
	res, err := Probe(context.Background(), strings.NewReader(s), opt)
	require.NoError(t, err)
	return res
}

func TestProbe_InfersColumns(t *testing.T) {
	t.Parallel()

	res := probeString(t, sample, Options{})
	require.Len(t, res.Columns, 6)
	assert.Equal(t, 2, res.Rows)
	assert.False(t, res.Truncated)

	tests := []struct {
		idx         int
		name        string
		typ         string
		nonEmpty    int
		placeholder bool
	}{
		{0, "unnamed_0", TypeInteger, 2, true},
		{1, "product_name", TypeText, 2, false},
		{2, "sale_price", TypePrice, 2, false},
		{3, "listed_price", TypePrice, 2, false},
		{4, "star_rating", TypeFloat, 1, false},
		{5, "description", TypeText, 2, false},
	}
	for _, tt := range tests {
		c := res.Columns[tt.idx]
		assert.Equal(t, tt.typ, c.Type, "column %s", c.Raw)
		assert.Equal(t, tt.nonEmpty, c.NonEmpty, "column %s", c.Raw)
		assert.Equal(t, tt.placeholder, c.Placeholder, "column %s", c.Raw)
		if !tt.placeholder {
			assert.Equal(t, tt.name, c.Name)
		}
	}
	assert.Equal(t, "Running Shoe", res.Columns[1].Example)
}

func TestProbe_Guesses(t *testing.T) {
	t.Parallel()

	res := probeString(t, sample, Options{})
	assert.Equal(t, "product_name", res.NameColumn)
	assert.Equal(t, "sale_price", res.PriceColumn)
	assert.Equal(t, "star_rating", res.RatingColumn)
}

func TestProbe_FallbackGuesses(t *testing.T) {
	t.Parallel()

	res := probeString(t, "sku,label,cost\n1,Tent,12\n2,Stove,30\n", Options{})
	assert.Equal(t, "label", res.NameColumn, "first text column")
	assert.Empty(t, res.PriceColumn, "plain integers without a price name are not prices")
	assert.Empty(t, res.RatingColumn)
}

func TestProbe_TruncatesAtLineBoundary(t *testing.T) {
	t.Parallel()

	var b bytes.Buffer
	b.WriteString("id,product_name\n")
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&b, "%d,Product %d\n", i, i)
	}

	res := probeString(t, b.String(), Options{SampleBytes: 200})
	assert.True(t, res.Truncated)
	assert.Greater(t, res.Rows, 0)
	assert.Less(t, res.Rows, 1000)
	assert.Equal(t, TypeInteger, res.Columns[0].Type)
	assert.Equal(t, res.Rows, res.Columns[1].NonEmpty, "no partial last row")
}

func TestProbe_EmptyInput(t *testing.T) {
	t.Parallel()

	_, err := Probe(context.Background(), strings.NewReader(""), Options{})
	require.Error(t, err)
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	base := config.Pipeline{}
	base.ApplyDefaults()

	got := Result{NameColumn: "title", PriceColumn: "price"}.Suggest(base)
	assert.Equal(t, "title", got.Enrich.NameColumn)
	assert.Equal(t, "price", got.Clean.PriceColumn)
	assert.Equal(t, base.Clean.RatingColumn, got.Clean.RatingColumn, "empty guess keeps the default")
}

func TestWriteReportAndSuggestion(t *testing.T) {
	t.Parallel()

	res := probeString(t, sample, Options{})

	var report bytes.Buffer
	require.NoError(t, WriteReport(&report, res))
	out := report.String()
	assert.Contains(t, out, "(dropped)")
	assert.Contains(t, out, "name column:   product_name")
	assert.Contains(t, out, "2 rows sampled")

	var yml bytes.Buffer
	require.NoError(t, WriteSuggestion(&yml, res))
	assert.Contains(t, yml.String(), "price_column: sale_price")
	assert.Contains(t, yml.String(), "rating_column: star_rating")
	assert.Contains(t, yml.String(), "name_column: product_name")
	assert.Contains(t, yml.String(), "price_errors: fail")
}

func TestClip(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", clip("abc", 5))
	assert.Equal(t, "abcd…", clip("abcdefgh", 5))
}
