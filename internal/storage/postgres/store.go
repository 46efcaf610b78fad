package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"shopdw/internal/storage"
)

// Store implements storage.Store for Postgres.
//
// Differences from the SQLite backend are confined to dialect:
// $n placeholders, ON CONFLICT DO NOTHING, real TRUNCATE, native
// TIMESTAMPTZ/BOOLEAN types, and CREATE OR REPLACE VIEW.
type Store struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	for _, t := range tables {
		ddl, err := buildCreateTableSQL(t)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (s *Store) SeedRows(ctx context.Context, table string, columns []string, rows [][]any, conflictColumns []string) error {
	if len(rows) == 0 {
		return nil
	}
	q, args := buildInsertSQL(table, columns, rows, conflictColumns)
	_, err := s.pool.Exec(ctx, q, args...)
	return err
}

func (s *Store) ReplaceRawTable(ctx context.Context, table string, columns []string, rows [][]string) error {
	if len(columns) == 0 {
		return fmt.Errorf("raw table %s: no columns", table)
	}

	if _, err := s.pool.Exec(ctx, "DROP TABLE IF EXISTS "+pgIdent(table)); err != nil {
		return fmt.Errorf("drop raw table %s: %w", table, err)
	}

	cols := make([]string, 0, len(columns))
	for _, c := range columns {
		cols = append(cols, pgIdent(c)+" TEXT")
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", pgIdent(table), strings.Join(cols, ",\n  "))
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create raw table %s: %w", table, err)
	}

	anyRows := make([][]any, 0, len(rows))
	for _, r := range rows {
		row := make([]any, len(r))
		for i, v := range r {
			if v == "" {
				row[i] = nil
			} else {
				row[i] = v
			}
		}
		anyRows = append(anyRows, row)
	}
	return s.InsertRows(ctx, table, columns, anyRows)
}

func (s *Store) ColumnNames(ctx context.Context, table string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Store) Truncate(ctx context.Context, table string) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE TABLE "+pgIdent(table)); err != nil {
		return fmt.Errorf("truncate %s: %w", table, err)
	}
	return nil
}

func (s *Store) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Batch to stay under the wire-protocol parameter limit (65535).
	maxRows := batchRows(len(columns))
	for start := 0; start < len(rows); start += maxRows {
		end := start + maxRows
		if end > len(rows) {
			end = len(rows)
		}
		q, args := buildInsertSQL(table, columns, rows[start:end], nil)
		if _, err := tx.Exec(ctx, q, args...); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) UpdateRows(ctx context.Context, table string, keyColumn string, setColumns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	setParts := make([]string, 0, len(setColumns))
	for i, c := range setColumns {
		setParts = append(setParts, fmt.Sprintf("%s = $%d", pgIdent(c), i+1))
	}
	q := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = $%d",
		pgIdent(table), strings.Join(setParts, ", "), pgIdent(keyColumn), len(setColumns)+1,
	)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, row := range rows {
		if len(row) != len(setColumns)+1 {
			return fmt.Errorf("update %s: row has %d values, want %d", table, len(row), len(setColumns)+1)
		}
		args := make([]any, 0, len(row))
		args = append(args, row[1:]...)
		args = append(args, row[0])
		if _, err := tx.Exec(ctx, q, args...); err != nil {
			return fmt.Errorf("update %s: %w", table, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) SelectRows(ctx context.Context, table string, columns []string) ([][]any, error) {
	q := fmt.Sprintf("SELECT %s FROM %s", joinIdentList(columns), pgIdent(table))
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

func (s *Store) SelectKeyValue(ctx context.Context, table, keyColumn, valueColumn string) (map[string]int64, error) {
	q := fmt.Sprintf("SELECT %s, %s FROM %s", pgIdent(keyColumn), pgIdent(valueColumn), pgIdent(table))
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var k any
		var id int64
		if err := rows.Scan(&k, &id); err != nil {
			return nil, err
		}
		out[storage.NormalizeKey(k)] = id
	}
	return out, rows.Err()
}

func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+pgIdent(table)).Scan(&n)
	return n, err
}

func (s *Store) SumColumn(ctx context.Context, table, column string) (float64, error) {
	var v float64
	q := fmt.Sprintf("SELECT COALESCE(SUM(%s), 0) FROM %s", pgIdent(column), pgIdent(table))
	err := s.pool.QueryRow(ctx, q).Scan(&v)
	return v, err
}

func (s *Store) ReplaceView(ctx context.Context, name string, selectSQL string) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s", pgIdent(name), selectSQL)); err != nil {
		return fmt.Errorf("create view %s: %w", name, err)
	}
	return nil
}

// ---- SQL builders (pure, unit-testable) ----

func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func joinIdentList(columns []string) string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		out = append(out, pgIdent(c))
	}
	return strings.Join(out, ", ")
}

func pgType(typ string) string {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "bigint":
		return "BIGINT"
	case "integer":
		return "INTEGER"
	case "double":
		return "DOUBLE PRECISION"
	case "boolean":
		return "BOOLEAN"
	case "timestamptz":
		return "TIMESTAMPTZ"
	case "date":
		return "DATE"
	case "text":
		return "TEXT"
	default:
		return strings.ToUpper(typ)
	}
}

func buildCreateTableSQL(t storage.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("table name is empty")
	}

	var parts []string

	if t.PrimaryKey != nil {
		pkType := strings.TrimSpace(strings.ToLower(t.PrimaryKey.Type))
		switch pkType {
		case "serial", "bigserial":
			parts = append(parts, fmt.Sprintf("%s BIGSERIAL PRIMARY KEY", pgIdent(t.PrimaryKey.Name)))
		default:
			parts = append(parts, fmt.Sprintf("%s %s PRIMARY KEY", pgIdent(t.PrimaryKey.Name), pgType(t.PrimaryKey.Type)))
		}
	}

	for _, c := range t.Columns {
		col := fmt.Sprintf("%s %s", pgIdent(c.Name), pgType(c.Type))
		nullable := true
		if c.Nullable != nil {
			nullable = *c.Nullable
		}
		if !nullable {
			col += " NOT NULL"
		}
		parts = append(parts, col)
	}

	for _, con := range t.Constraints {
		if con.Kind != "unique" {
			return "", fmt.Errorf("%s unsupported constraint kind: %s", t.Name, con.Kind)
		}
		var cols []string
		for _, c := range con.Columns {
			cols = append(cols, pgIdent(c))
		}
		parts = append(parts, fmt.Sprintf("UNIQUE (%s)", strings.Join(cols, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", pgIdent(t.Name), strings.Join(parts, ",\n  ")), nil
}

// buildInsertSQL constructs a single INSERT statement and its args.
//
// Why this exists:
//   - It is pure and deterministic, so placeholder numbering and ON CONFLICT
//     behavior can be unit tested without a database.
//
// If conflictColumns is non-empty the INSERT is made idempotent with
// ON CONFLICT (<conflictColumns...>) DO NOTHING.
func buildInsertSQL(table string, columns []string, rows [][]any, conflictColumns []string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgIdent(table))
	b.WriteString(" (")
	b.WriteString(joinIdentList(columns))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	n := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, v := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
			args = append(args, v)
		}
		b.WriteString(")")
	}

	if len(conflictColumns) > 0 {
		b.WriteString(" ON CONFLICT (")
		b.WriteString(joinIdentList(conflictColumns))
		b.WriteString(") DO NOTHING")
	}

	return b.String(), args
}

func batchRows(columns int) int {
	if columns <= 0 {
		return 1
	}
	n := 60000 / columns
	if n < 1 {
		return 1
	}
	return n
}
