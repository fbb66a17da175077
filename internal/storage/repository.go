package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnsupportedKind is returned by New when no backend is registered for
// the requested kind.
var ErrUnsupportedKind = errors.New("unsupported storage kind")

// Config is the minimal configuration needed to open a Repository.
//
// When to use:
//   - Build a Config from the pipeline's storage section and pass it to New.
//
// Edge cases:
//   - Kind must match a registered backend ("postgres", "mssql", "sqlite").
//   - DSN is passed through to the backend; validation is backend-specific.
//   - Schema is ignored by SQLite.
//   - When CreateDatabase is true, AdminDSN must reach a maintenance database
//     on the same server and Database names the database to create.
type Config struct {
	Kind           string
	DSN            string
	Schema         string
	CreateDatabase bool
	AdminDSN       string
	Database       string
	// BatchSize bounds rows per INSERT statement on backends without a bulk
	// copy protocol. Zero selects the backend default.
	BatchSize int
}

// Repository loads prepared tables into a relational store with full
// replacement semantics.
//
// Each backend implements these semantics in its own idiomatic way
// (Postgres COPY, SQL Server bulk copy, SQLite batched INSERT).
type Repository interface {
	// EnsureSchema provisions the configured schema.
	//
	// Edge cases:
	//   - Idempotent: safe to call on every run.
	//   - A no-op on backends without schemas (SQLite) or when Schema is empty.
	EnsureSchema(ctx context.Context) error

	// ReplaceTable drops spec.Name if it exists, creates it from spec and
	// loads rows, all inside one transaction.
	//
	// When to use:
	//   - Once per table per run. Previous contents are discarded.
	//
	// Edge cases:
	//   - Every row must have len(spec.Columns) values.
	//   - Zero rows still (re)creates the empty table.
	//
	// Errors:
	//   - Any DDL or load error is returned as-is with table context. The
	//     transaction is rolled back; nothing is retried.
	ReplaceTable(ctx context.Context, spec TableSpec, rows [][]any) (int64, error)

	// CountRows returns the row count of a table, for post-load verification.
	CountRows(ctx context.Context, table string) (int64, error)

	// Close releases backend resources. Call once.
	Close()
}

// Factory opens a Repository for a backend.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind.
//
// When to use:
//   - Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty, f is nil, or kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New opens a Repository using the backend registered for cfg.Kind.
//
// Concurrency:
//   - Safe for concurrent use with Register.
//
// Errors:
//   - ErrUnsupportedKind (wrapped) when cfg.Kind is empty or unknown.
//   - Whatever the backend factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: kind=%q: %w", cfg.Kind, ErrUnsupportedKind)
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
