package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"productprep/internal/storage"
	"productprep/internal/table"
)

func init() {
	storage.Register("postgres", New)
}

/*
Repo implements storage.Repository for Postgres.

Tables are replaced inside a single transaction: DROP TABLE IF EXISTS,
CREATE TABLE, then COPY FROM STDIN through pgx. Postgres DDL is
transactional, so a failed load leaves the previous table in place.
*/
type Repo struct {
	pool   *pgxpool.Pool
	schema string
}

// New opens a pgx pool for cfg.DSN, creating the database first when
// cfg.CreateDatabase is set.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	if cfg.CreateDatabase {
		if err := createDatabase(ctx, cfg.AdminDSN, cfg.Database); err != nil {
			return nil, err
		}
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repo{pool: pool, schema: cfg.Schema}, nil
}

// createDatabase connects to the maintenance database and issues
// CREATE DATABASE when name does not exist yet.
func createDatabase(ctx context.Context, adminDSN, name string) error {
	if adminDSN == "" || name == "" {
		return fmt.Errorf("postgres: create_database needs an admin DSN and a database name")
	}
	conn, err := pgx.Connect(ctx, adminDSN)
	if err != nil {
		return fmt.Errorf("postgres: connect admin: %w", err)
	}
	defer conn.Close(ctx)

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: check database %s: %w", name, err)
	}
	if exists {
		return nil
	}
	if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgIdent(name)); err != nil {
		return fmt.Errorf("postgres: create database %s: %w", name, err)
	}
	return nil
}

func (r *Repo) Close() { r.pool.Close() }

func (r *Repo) EnsureSchema(ctx context.Context) error {
	if r.schema == "" {
		return nil
	}
	if _, err := r.pool.Exec(ctx, buildCreateSchemaSQL(r.schema)); err != nil {
		return fmt.Errorf("postgres: create schema %s: %w", r.schema, err)
	}
	return nil
}

func (r *Repo) ReplaceTable(ctx context.Context, spec storage.TableSpec, rows [][]any) (int64, error) {
	if spec.Schema == "" {
		spec.Schema = r.schema
	}
	if err := spec.Validate(); err != nil {
		return 0, err
	}
	if err := storage.CheckRows(spec, rows); err != nil {
		return 0, err
	}
	createSQL, err := buildCreateTableSQL(spec)
	if err != nil {
		return 0, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, buildDropTableSQL(spec)); err != nil {
		return 0, fmt.Errorf("postgres: drop %s: %w", spec.Name, err)
	}
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, fmt.Errorf("postgres: create %s: %w", spec.Name, err)
	}
	n, err := tx.CopyFrom(ctx, identifier(spec.Schema, spec.Name), spec.ColumnNames(), pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("postgres: copy into %s: %w", spec.Name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit %s: %w", spec.Name, err)
	}
	return n, nil
}

func (r *Repo) CountRows(ctx context.Context, name string) (int64, error) {
	var n int64
	q := "SELECT count(*) FROM " + identifier(r.schema, name).Sanitize()
	if err := r.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count %s: %w", name, err)
	}
	return n, nil
}

// pgIdent quotes a single identifier.
func pgIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func identifier(schema, name string) pgx.Identifier {
	if schema == "" {
		return pgx.Identifier{name}
	}
	return pgx.Identifier{schema, name}
}

func pgType(k table.Kind) string {
	switch k {
	case table.KindInteger:
		return "bigint"
	case table.KindFloat:
		return "double precision"
	default:
		return "text"
	}
}

func buildCreateSchemaSQL(schema string) string {
	return fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgIdent(schema))
}

func buildDropTableSQL(spec storage.TableSpec) string {
	return fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, identifier(spec.Schema, spec.Name).Sanitize())
}

// buildCreateTableSQL renders CREATE TABLE for spec. Every column is
// nullable; cleaned data keeps nulls where values were missing.
func buildCreateTableSQL(spec storage.TableSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	defs := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		defs[i] = pgIdent(c.Name) + " " + pgType(c.Kind)
	}
	return fmt.Sprintf(`CREATE TABLE %s (%s);`,
		identifier(spec.Schema, spec.Name).Sanitize(), strings.Join(defs, ", ")), nil
}
