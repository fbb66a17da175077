package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"productprep/internal/storage"
	"productprep/internal/table"
)

func openTemp(t *testing.T, batch int) (storage.Repository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "prep.db")
	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: path, BatchSize: batch})
	require.NoError(t, err)
	t.Cleanup(repo.Close)
	return repo, path
}

func productsSpec() storage.TableSpec {
	return storage.TableSpec{
		Name: "products",
		Columns: []storage.ColumnSpec{
			{Name: "id", Kind: table.KindInteger},
			{Name: "product_name", Kind: table.KindText},
			{Name: "sale_price", Kind: table.KindFloat},
		},
	}
}

func TestReplaceTable_ReplaceTwiceKeepsOnlySecondLoad(t *testing.T) {
	ctx := context.Background()
	repo, path := openTemp(t, 2)
	require.NoError(t, repo.EnsureSchema(ctx))

	first := [][]any{
		{int64(0), "Shoe", 10.5},
		{int64(1), "Cap", nil},
		{int64(2), "Sock", 2.0},
	}
	n, err := repo.ReplaceTable(ctx, productsSpec(), first)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	second := [][]any{{int64(0), "Jacket", 99.0}}
	n, err = repo.ReplaceTable(ctx, productsSpec(), second)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	count, err := repo.CountRows(ctx, "products")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	repo.Close()
	db, err := sqlx.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var got struct {
		ID    int64   `db:"id"`
		Name  string  `db:"product_name"`
		Price float64 `db:"sale_price"`
	}
	require.NoError(t, db.Get(&got, `SELECT id, product_name, sale_price FROM products`))
	assert.Equal(t, int64(0), got.ID)
	assert.Equal(t, "Jacket", got.Name)
	assert.Equal(t, 99.0, got.Price)
}

func TestReplaceTable_NullsAndEmptyLoad(t *testing.T) {
	ctx := context.Background()
	repo, _ := openTemp(t, 0)

	_, err := repo.ReplaceTable(ctx, productsSpec(), [][]any{{int64(0), nil, nil}})
	require.NoError(t, err)

	n, err := repo.ReplaceTable(ctx, productsSpec(), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	count, err := repo.CountRows(ctx, "products")
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestReplaceTable_RaggedRowsRejected(t *testing.T) {
	ctx := context.Background()
	repo, _ := openTemp(t, 0)

	_, err := repo.ReplaceTable(ctx, productsSpec(), [][]any{{int64(0), "Shoe", 1.0}})
	require.NoError(t, err)

	_, err = repo.ReplaceTable(ctx, productsSpec(), [][]any{{int64(0)}})
	require.Error(t, err)

	count, err := repo.CountRows(ctx, "products")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count, "rejected load must not touch the existing table")
}

func TestBuildInsertSQL(t *testing.T) {
	q, args := buildInsertSQL("ventes", []string{"product_id", "client_id"}, [][]any{{int64(1), "a"}, {int64(2), "b"}})
	assert.Equal(t, `INSERT INTO "ventes" ("product_id", "client_id") VALUES (?, ?), (?, ?)`, q)
	assert.Equal(t, []any{int64(1), "a", int64(2), "b"}, args)
}

func TestBuildCreateTableSQL(t *testing.T) {
	sql := buildCreateTableSQL(productsSpec())
	if !strings.Contains(sql, `"id" INTEGER`) || !strings.Contains(sql, `"sale_price" REAL`) || !strings.Contains(sql, `"product_name" TEXT`) {
		t.Fatalf("unexpected DDL: %s", sql)
	}
}

func TestBatchRows(t *testing.T) {
	assert.Equal(t, 500, batchRows(500, 10))
	assert.Equal(t, maxVariables/100, batchRows(1000, 100))
	assert.Equal(t, 1, batchRows(500, 100000))
	assert.Equal(t, 1, batchRows(0, 3))
}
