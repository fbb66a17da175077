package mssql

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	mssqldb "github.com/microsoft/go-mssqldb"

	"productprep/internal/storage"
	"productprep/internal/table"
)

func init() {
	storage.Register("mssql", New)
}

// Repo implements storage.Repository for Microsoft SQL Server.
//
// Load path:
//   - DROP TABLE IF EXISTS + CREATE TABLE inside a transaction.
//   - Rows stream through the TDS bulk copy protocol (mssql.CopyIn) on the
//     same transaction, then the transaction commits.
//
// Schema provisioning uses IF SCHEMA_ID(..) IS NULL so it is idempotent.
type Repo struct {
	db     *sqlx.DB
	schema string
}

// New opens a "sqlserver" connection for cfg.DSN and verifies it with a
// ping. With cfg.CreateDatabase the database is created first through
// cfg.AdminDSN.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	if cfg.CreateDatabase {
		if err := createDatabase(ctx, cfg.AdminDSN, cfg.Database); err != nil {
			return nil, err
		}
	}
	db, err := sqlx.ConnectContext(ctx, "sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mssql: connect: %w", err)
	}
	return &Repo{db: db, schema: cfg.Schema}, nil
}

func createDatabase(ctx context.Context, adminDSN, name string) error {
	if adminDSN == "" || name == "" {
		return fmt.Errorf("mssql: create_database needs an admin DSN and a database name")
	}
	db, err := sqlx.ConnectContext(ctx, "sqlserver", adminDSN)
	if err != nil {
		return fmt.Errorf("mssql: connect admin: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, createDatabaseSQL, name); err != nil {
		return fmt.Errorf("mssql: create database %s: %w", name, err)
	}
	return nil
}

const createDatabaseSQL = `DECLARE @stmt nvarchar(max) = N'CREATE DATABASE ' + QUOTENAME(@p1);
IF DB_ID(@p1) IS NULL EXEC (@stmt);`

const createSchemaSQL = `DECLARE @stmt nvarchar(max) = N'CREATE SCHEMA ' + QUOTENAME(@p1);
IF SCHEMA_ID(@p1) IS NULL EXEC (@stmt);`

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) EnsureSchema(ctx context.Context) error {
	if r.schema == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, createSchemaSQL, r.schema); err != nil {
		return fmt.Errorf("mssql: create schema %s: %w", r.schema, err)
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

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mssql: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, buildDropTableSQL(spec)); err != nil {
		return 0, fmt.Errorf("mssql: drop %s: %w", spec.Name, err)
	}
	if _, err := tx.ExecContext(ctx, buildCreateTableSQL(spec)); err != nil {
		return 0, fmt.Errorf("mssql: create %s: %w", spec.Name, err)
	}

	n, err := bulkCopy(ctx, tx, spec, rows)
	if err != nil {
		return 0, fmt.Errorf("mssql: bulk copy into %s: %w", spec.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mssql: commit %s: %w", spec.Name, err)
	}
	return n, nil
}

func bulkCopy(ctx context.Context, tx *sqlx.Tx, spec storage.TableSpec, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx, mssqldb.CopyIn(qualifiedName(spec.Schema, spec.Name), mssqldb.BulkOptions{}, spec.ColumnNames()...))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
	}
	// An Exec without arguments flushes the batch.
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repo) CountRows(ctx context.Context, name string) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT_BIG(*) FROM "+qualifiedName(r.schema, name)); err != nil {
		return 0, fmt.Errorf("mssql: count %s: %w", name, err)
	}
	return n, nil
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// qualifiedName renders [schema].[name], or [name] without a schema.
func qualifiedName(schema, name string) string {
	if schema == "" {
		return mssqlIdent(name)
	}
	return mssqlIdent(schema) + "." + mssqlIdent(name)
}

func mssqlType(k table.Kind) string {
	switch k {
	case table.KindInteger:
		return "BIGINT"
	case table.KindFloat:
		return "FLOAT"
	default:
		return "NVARCHAR(MAX)"
	}
}

func buildDropTableSQL(spec storage.TableSpec) string {
	return "DROP TABLE IF EXISTS " + qualifiedName(spec.Schema, spec.Name) + ";"
}

func buildCreateTableSQL(spec storage.TableSpec) string {
	defs := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		defs[i] = mssqlIdent(c.Name) + " " + mssqlType(c.Kind) + " NULL"
	}
	return fmt.Sprintf("CREATE TABLE %s (%s);", qualifiedName(spec.Schema, spec.Name), strings.Join(defs, ", "))
}
