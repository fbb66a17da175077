package table

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Table {
	t := New([]string{"name", "price"})
	t.Append([]any{"Shoes", 10.5})
	t.Append([]any{"Cap"})
	t.Append([]any{"Hat", 3.0, "extra"})
	return t
}

func TestAppend_PadsAndTruncates(t *testing.T) {
	tb := sample()
	require.Len(t, tb.Rows, 3)
	assert.Equal(t, []any{"Cap", nil}, tb.Rows[1])
	assert.Equal(t, []any{"Hat", 3.0}, tb.Rows[2])
}

func TestReindex_DenseFirstColumn(t *testing.T) {
	tb := sample()
	require.NoError(t, Reindex(tb, "id"))
	assert.Equal(t, []string{"id", "name", "price"}, tb.Columns)
	for i, r := range tb.Rows {
		assert.Equal(t, int64(i), r[0])
	}

	// Re-running replaces the column instead of duplicating it.
	tb.Rows = tb.Rows[1:]
	require.NoError(t, Reindex(tb, "id"))
	assert.Equal(t, []string{"id", "name", "price"}, tb.Columns)
	assert.Equal(t, int64(0), tb.Rows[0][0])
	assert.Equal(t, "Cap", tb.Rows[0][1])
}

func TestDropColumns_IgnoresUnknown(t *testing.T) {
	tb := sample()
	tb.DropColumns("price", "missing")
	assert.Equal(t, []string{"name"}, tb.Columns)
	assert.Equal(t, []any{"Shoes"}, tb.Rows[0])
}

func TestSetColumn_AppendsAndOverwrites(t *testing.T) {
	tb := sample()
	require.NoError(t, tb.SetColumn("tag", []any{"a", "b", "c"}))
	require.NoError(t, tb.SetColumn("name", []any{"x", "y", "z"}))
	assert.Equal(t, []string{"name", "price", "tag"}, tb.Columns)
	assert.Equal(t, []any{"y", nil, "b"}, tb.Rows[1])

	require.Error(t, tb.SetColumn("short", []any{"a"}))
}

func TestClone_DoesNotShareRows(t *testing.T) {
	tb := sample()
	cp := tb.Clone()
	cp.Rows[0][0] = "changed"
	assert.Equal(t, "Shoes", tb.Rows[0][0])
}

func TestInferKinds(t *testing.T) {
	tb := New([]string{"id", "price", "name", "empty", "mixed"})
	tb.Append([]any{int64(0), 1.5, "a", nil, "x"})
	tb.Append([]any{int64(1), int64(2), "b", nil, 2.0})

	assert.Equal(t, []Kind{KindInteger, KindFloat, KindText, KindText, KindText}, InferKinds(tb))

	rows := CoerceRows(tb, InferKinds(tb))
	assert.Equal(t, 2.0, rows[1][1])
	assert.Equal(t, "2", rows[1][4])
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "", Format(nil))
	assert.Equal(t, "1299", Format(1299.0))
	assert.Equal(t, "4.25", Format(4.25))
	assert.Equal(t, "7", Format(int64(7)))
}

func TestWriteHead(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHead(&buf, sample(), 2))
	out := buf.String()
	assert.Contains(t, out, "Shoes")
	assert.NotContains(t, out, "Hat")
	assert.Contains(t, out, "NaN")
	assert.True(t, strings.HasSuffix(out, "[3 rows x 2 columns]\n"))
}
