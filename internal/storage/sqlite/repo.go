package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"productprep/internal/storage"
	"productprep/internal/table"
)

// maxVariables is SQLite's default SQLITE_MAX_VARIABLE_NUMBER.
const maxVariables = 32766

const defaultBatchSize = 500

// Repo implements storage.Repository for SQLite (modernc.org/sqlite, no cgo).
//
// Key design points vs Postgres:
//   - No schemas: EnsureSchema is a no-op and TableSpec.Schema is ignored.
//   - No bulk copy protocol: rows load through multi-row INSERT statements,
//     each bounded by maxVariables bind parameters.
type Repo struct {
	db        *sqlx.DB
	batchSize int
}

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
	storage.Register("sqlite", New)
}

// New opens the database file at cfg.DSN, creating its parent directory.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sqlite: empty path")
	}
	if dir := parentDir(cfg.DSN); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}
	db, err := sqlx.ConnectContext(ctx, "sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.DSN, err)
	}
	// A single connection keeps ":memory:" databases coherent across calls.
	db.SetMaxOpenConns(1)

	bs := cfg.BatchSize
	if bs <= 0 {
		bs = defaultBatchSize
	}
	return &Repo{db: db, batchSize: bs}, nil
}

func parentDir(dsn string) string {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return ""
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return ""
	}
	return dir
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) EnsureSchema(context.Context) error { return nil }

func (r *Repo) ReplaceTable(ctx context.Context, spec storage.TableSpec, rows [][]any) (int64, error) {
	spec.Schema = ""
	if err := spec.Validate(); err != nil {
		return 0, err
	}
	if err := storage.CheckRows(spec, rows); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqlIdent(spec.Name)); err != nil {
		return 0, fmt.Errorf("sqlite: drop %s: %w", spec.Name, err)
	}
	if _, err := tx.ExecContext(ctx, buildCreateTableSQL(spec)); err != nil {
		return 0, fmt.Errorf("sqlite: create %s: %w", spec.Name, err)
	}

	batch := batchRows(r.batchSize, len(spec.Columns))
	var total int64
	for start := 0; start < len(rows); start += batch {
		end := min(start+batch, len(rows))
		q, args := buildInsertSQL(spec.Name, spec.ColumnNames(), rows[start:end])
		res, err := tx.ExecContext(ctx, tx.Rebind(q), args...)
		if err != nil {
			return 0, fmt.Errorf("sqlite: insert into %s rows %d-%d: %w", spec.Name, start, end-1, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit %s: %w", spec.Name, err)
	}
	return total, nil
}

func (r *Repo) CountRows(ctx context.Context, name string) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+sqlIdent(name)); err != nil {
		return 0, fmt.Errorf("sqlite: count %s: %w", name, err)
	}
	return n, nil
}

func batchRows(batchSize, columns int) int {
	limit := maxVariables / max(columns, 1)
	return max(min(batchSize, limit), 1)
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func sqliteType(k table.Kind) string {
	switch k {
	case table.KindInteger:
		return "INTEGER"
	case table.KindFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

func buildCreateTableSQL(spec storage.TableSpec) string {
	parts := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		parts[i] = sqlIdent(c.Name) + " " + sqliteType(c.Kind)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", sqlIdent(spec.Name), strings.Join(parts, ",\n  "))
}

// buildInsertSQL renders one multi-row INSERT with "?" placeholders.
func buildInsertSQL(name string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(name))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES ")

	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tuple)
		args = append(args, row...)
	}
	return b.String(), args
}
