package cleaner

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"productprep/internal/table"
)

func defaultOptions() Options {
	return Options{PriceColumn: "sale_price", RatingColumn: "star_rating", PriceErrors: PriceFail}
}

func rawTable() *table.Table {
	t := table.New([]string{"Unnamed: 0", " Product Name ", "Sale Price", "Star Rating"})
	t.Append([]any{"0", "Men's Running Shoes", "₹1,299", "4.5"})
	t.Append([]any{"1", "Ski Jacket", "$ 49.99", "N/A"})
	t.Append([]any{"2", "Hiking Socks", nil, nil})
	return t
}

func TestClean_NamesAndTypes(t *testing.T) {
	out, rep, err := Clean(rawTable(), defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"product_name", "sale_price", "star_rating"}, out.Columns)
	assert.Equal(t, []string{"Unnamed: 0"}, rep.Dropped)

	price, _ := out.Column("sale_price")
	assert.Equal(t, []any{1299.0, 49.99, nil}, price)

	rating, _ := out.Column("star_rating")
	assert.Equal(t, []any{4.5, nil, nil}, rating)
	assert.Equal(t, 1, rep.RatingCoerced)

	assert.Empty(t, rep.Skipped)
	assert.Equal(t, []NullCount{{"sale_price", 1}, {"star_rating", 2}}, rep.Nulls())
}

func TestClean_DoesNotMutateInput(t *testing.T) {
	in := rawTable()
	_, _, err := Clean(in, defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "Unnamed: 0", in.Columns[0])
	assert.Equal(t, "₹1,299", in.Rows[0][2])
}

func TestClean_MissingOptionalColumnsAreSkipped(t *testing.T) {
	in := table.New([]string{"Product Name"})
	in.Append([]any{"Shoe"})

	out, rep, err := Clean(in, Options{
		PriceColumn:  "sale_price",
		RatingColumn: "star_rating",
		StripHTML:    []string{"description"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Len())
	assert.Equal(t, []string{"strip_html:description", "price:sale_price", "rating:star_rating"}, rep.Skipped)
}

func TestClean_PricePolicy(t *testing.T) {
	in := table.New([]string{"product_name", "sale_price"})
	in.Append([]any{"a", "12"})
	in.Append([]any{"b", "abc"})
	in.Append([]any{"c", "-3"})

	_, _, err := Clean(in, Options{PriceColumn: "sale_price"})
	if !errors.Is(err, ErrPrice) {
		t.Fatalf("want ErrPrice, got %v", err)
	}
	if !strings.Contains(err.Error(), "row 1") {
		t.Fatalf("error should name the row: %v", err)
	}

	out, rep, err := Clean(in, Options{PriceColumn: "sale_price", PriceErrors: PriceNull})
	require.NoError(t, err)
	price, _ := out.Column("sale_price")
	assert.Equal(t, []any{12.0, nil, nil}, price)
	assert.Equal(t, 2, rep.PriceCoerced)
}

func TestClean_DuplicatesKeepFirst(t *testing.T) {
	const k = 3
	in := table.New([]string{"product_name", "sale_price"})
	in.Append([]any{"Shoe", "10"})
	for i := 0; i < k; i++ {
		in.Append([]any{"Shoe", "10"})
	}
	in.Append([]any{"Cap", "5"})

	out, rep, err := Clean(in, defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, k, rep.Duplicates)
	assert.Equal(t, 2, out.Len())
	assert.Equal(t, "Shoe", out.Rows[0][0])
	assert.Equal(t, "Cap", out.Rows[1][0])
	assert.Equal(t, 5, rep.RowsIn)
	assert.Equal(t, 2, rep.RowsOut)
}

func TestClean_Idempotent(t *testing.T) {
	in := rawTable()
	in.Append([]any{"3", "Men's Running Shoes", "₹1,299", "4.5"})

	once, rep1, err := Clean(in, defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, rep1.Duplicates)

	twice, rep2, err := Clean(once, defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, rep2.Duplicates)
	assert.Equal(t, rep1.NullCounts, rep2.NullCounts)
	assert.Equal(t, once.Columns, twice.Columns)
	assert.Equal(t, once.Rows, twice.Rows)
}

func TestClean_NameCollisionsGetSuffix(t *testing.T) {
	in := table.New([]string{"Name", "name ", "NAME"})
	in.Append([]any{"a", "b", "c"})

	out, rep, err := Clean(in, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "name_2", "name_3"}, out.Columns)
	assert.Len(t, rep.Renamed, 3)
}

func TestClean_StripHTML(t *testing.T) {
	in := table.New([]string{"product_name"})
	in.Append([]any{"<b>Trail</b> Shoes &amp; Socks"})
	in.Append([]any{"<br/>"})

	out, _, err := Clean(in, Options{StripHTML: []string{"product_name"}})
	require.NoError(t, err)
	assert.Equal(t, "Trail Shoes & Socks", out.Rows[0][0])
	assert.Nil(t, out.Rows[1][0])
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{"₹1,299", 1299.0},
		{"€ 12.50", 12.5},
		{"£ 7", 7.0},
		{"  ", nil},
		{nil, nil},
		{int64(4), 4.0},
		{2.5, 2.5},
	}
	for _, tt := range tests {
		got, err := ParsePrice(tt.in)
		if err != nil {
			t.Fatalf("ParsePrice(%v): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParsePrice(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRowKey_DistinguishesTypes(t *testing.T) {
	assert.NotEqual(t, RowKey([]any{"1"}), RowKey([]any{1.0}))
	assert.NotEqual(t, RowKey([]any{nil}), RowKey([]any{""}))
	assert.NotEqual(t, RowKey([]any{"a", "b"}), RowKey([]any{"a\x1fb"}))
	assert.Equal(t, RowKey([]any{"a", int64(2)}), RowKey([]any{"a", int64(2)}))
}

func TestReport_Print(t *testing.T) {
	var sb strings.Builder
	rep := Report{
		RowsIn:     4,
		RowsOut:    3,
		Duplicates: 1,
		NullCounts: []NullCount{{"a", 0}, {"b", 2}},
	}
	require.NoError(t, rep.Print(&sb))
	assert.Contains(t, sb.String(), "Duplicates removed: 1 (4 -> 3 rows)")
	assert.Contains(t, sb.String(), "b")
	assert.NotContains(t, sb.String(), "  a ")
}
