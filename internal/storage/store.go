package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to open a warehouse store.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Store is a backend-agnostic interface for the warehouse database.
//
// IMPORTANT: This interface is intentionally minimal and focused on the
// operations the transform pipeline needs. All filtering, joining, and
// aggregation happens in Go; the store only persists and reads back full
// tables. Each backend implements these semantics in its own idiomatic way
// (Postgres ON CONFLICT, SQLite OR IGNORE, etc).
type Store interface {
	// Close releases backend resources. Treat as "call once" at shutdown.
	Close()

	// EnsureTables creates warehouse tables with create-if-not-exists semantics.
	EnsureTables(ctx context.Context, tables []TableSpec) error

	// SeedRows inserts static rows, ignoring conflicts on conflictColumns.
	// Used for seed dimensions that must always exist (e.g. channels).
	SeedRows(ctx context.Context, table string, columns []string, rows [][]any, conflictColumns []string) error

	// ReplaceRawTable drops and recreates an untyped raw table (every column
	// TEXT) and loads the given rows. This is the schema-on-read landing zone.
	ReplaceRawTable(ctx context.Context, table string, columns []string, rows [][]string) error

	// ColumnNames reports the columns of an existing table in ordinal order.
	// Returns an empty slice when the table does not exist.
	ColumnNames(ctx context.Context, table string) ([]string, error)

	// Truncate empties a table and commits immediately. A later failed load
	// therefore leaves the table truncated, never half old/half new.
	Truncate(ctx context.Context, table string) error

	// InsertRows bulk-inserts rows in a single transaction.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) error

	// UpdateRows applies per-row updates in a single transaction. Each row is
	// [keyValue, set values...] matched against keyColumn.
	UpdateRows(ctx context.Context, table string, keyColumn string, setColumns []string, rows [][]any) error

	// SelectRows reads the named columns for every row of a table.
	SelectRows(ctx context.Context, table string, columns []string) ([][]any, error)

	// SelectKeyValue builds a natural-key -> surrogate-key lookup for a
	// dimension table. Keys are canonicalized with NormalizeKey.
	SelectKeyValue(ctx context.Context, table string, keyColumn string, valueColumn string) (map[string]int64, error)

	// CountRows reports the number of rows in a table.
	CountRows(ctx context.Context, table string) (int64, error)

	// SumColumn reports the sum of a numeric column (0 for an empty table).
	SumColumn(ctx context.Context, table string, column string) (float64, error)

	// ReplaceView (re)creates a reporting view over the given SELECT.
	ReplaceView(ctx context.Context, name string, selectSQL string) error
}

// ---- backend factories ----

type factory func(ctx context.Context, cfg Config) (Store, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]factory{}
)

// Register registers a store backend under a kind (e.g. "postgres", "sqlite").
//
// Call Register from an init() function in a backend package. Registering the
// same kind twice panics; this is intentional to fail fast and avoid ambiguous
// backend selection.
func Register(kind string, f factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

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

// Open constructs a Store using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing storage.kind")
	}

	factoriesMu.RLock()
	f := factories[cfg.Kind]
	factoriesMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
