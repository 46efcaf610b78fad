package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"shopdw/internal/storage"
)

// Store implements storage.Store for SQLite.
//
// Key design points vs Postgres:
//   - SQLite has no TIMESTAMPTZ or BOOLEAN types. Timestamps are stored as
//     RFC3339Nano strings for reliable round-trip behavior and easy debugging;
//     booleans are stored as 0/1 integers. storage.AsTime/AsBool decode both
//     representations, so transforms never notice.
//   - SQLite has no TRUNCATE; DELETE without a WHERE clause is the equivalent.
type Store struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// The pipeline is a single writer; one connection avoids SQLITE_BUSY and
	// keeps ":memory:" DSNs coherent.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() { _ = s.db.Close() }

func (s *Store) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	for _, t := range tables {
		ddl, err := buildCreateTableSQL(t)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

// SeedRows inserts static rows idempotently.
//
// SQLite does not support ON CONFLICT (...) targets the way Postgres does,
// but "INSERT OR IGNORE" works when the target has a UNIQUE/PK constraint.
func (s *Store) SeedRows(ctx context.Context, table string, columns []string, rows [][]any, conflictColumns []string) error {
	if len(rows) == 0 {
		return nil
	}
	// conflictColumns is unused here: OR IGNORE relies on UNIQUE/PK constraints.
	_ = conflictColumns

	q, args := buildInsertSQL("INSERT OR IGNORE INTO ", table, columns, rows)
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

func (s *Store) ReplaceRawTable(ctx context.Context, table string, columns []string, rows [][]string) error {
	if len(columns) == 0 {
		return fmt.Errorf("raw table %s: no columns", table)
	}

	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqlIdent(table)); err != nil {
		return fmt.Errorf("drop raw table %s: %w", table, err)
	}

	cols := make([]string, 0, len(columns))
	for _, c := range columns {
		cols = append(cols, sqlIdent(c)+" TEXT")
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", sqlIdent(table), strings.Join(cols, ",\n  "))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
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
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", sqlIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Store) Truncate(ctx context.Context, table string) error {
	// No TRUNCATE in SQLite; an unqualified DELETE uses the truncate optimization.
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+sqlIdent(table)); err != nil {
		return fmt.Errorf("truncate %s: %w", table, err)
	}
	return nil
}

func (s *Store) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Batch to stay under the SQLite bind-variable limit.
	maxRows := batchRows(len(columns))
	for start := 0; start < len(rows); start += maxRows {
		end := start + maxRows
		if end > len(rows) {
			end = len(rows)
		}
		q, args := buildInsertSQL("INSERT INTO ", table, columns, rows[start:end])
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func (s *Store) UpdateRows(ctx context.Context, table string, keyColumn string, setColumns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	setParts := make([]string, 0, len(setColumns))
	for _, c := range setColumns {
		setParts = append(setParts, sqlIdent(c)+" = ?")
	}
	q := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = ?",
		sqlIdent(table), strings.Join(setParts, ", "), sqlIdent(keyColumn),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if len(row) != len(setColumns)+1 {
			return fmt.Errorf("update %s: row has %d values, want %d", table, len(row), len(setColumns)+1)
		}
		args := make([]any, 0, len(row))
		for _, v := range row[1:] {
			args = append(args, encodeValue(v))
		}
		args = append(args, encodeValue(row[0]))
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("update %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func (s *Store) SelectRows(ctx context.Context, table string, columns []string) ([][]any, error) {
	q := fmt.Sprintf("SELECT %s FROM %s", joinIdentList(columns), sqlIdent(table))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(columns))
		scan := make([]any, len(columns))
		for i := range vals {
			scan[i] = &vals[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

func (s *Store) SelectKeyValue(ctx context.Context, table, keyColumn, valueColumn string) (map[string]int64, error) {
	q := fmt.Sprintf("SELECT %s, %s FROM %s", sqlIdent(keyColumn), sqlIdent(valueColumn), sqlIdent(table))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var k any
		var id sql.NullInt64
		if err := rows.Scan(&k, &id); err != nil {
			return nil, err
		}
		if !id.Valid {
			return nil, fmt.Errorf("sqlite: %s.%s is NULL; surrogate key not auto-generated", table, valueColumn)
		}
		out[storage.NormalizeKey(k)] = id.Int64
	}
	return out, rows.Err()
}

func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+sqlIdent(table)).Scan(&n)
	return n, err
}

func (s *Store) SumColumn(ctx context.Context, table, column string) (float64, error) {
	var v sql.NullFloat64
	q := fmt.Sprintf("SELECT SUM(%s) FROM %s", sqlIdent(column), sqlIdent(table))
	if err := s.db.QueryRowContext(ctx, q).Scan(&v); err != nil {
		return 0, err
	}
	return v.Float64, nil
}

func (s *Store) ReplaceView(ctx context.Context, name string, selectSQL string) error {
	if _, err := s.db.ExecContext(ctx, "DROP VIEW IF EXISTS "+sqlIdent(name)); err != nil {
		return fmt.Errorf("drop view %s: %w", name, err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("CREATE VIEW %s AS %s", sqlIdent(name), selectSQL)); err != nil {
		return fmt.Errorf("create view %s: %w", name, err)
	}
	return nil
}

// ---- SQL builders (pure, unit-testable) ----

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func joinIdentList(columns []string) string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		out = append(out, sqlIdent(c))
	}
	return strings.Join(out, ", ")
}

// sqliteType translates the portable column vocabulary into SQLite affinity.
func sqliteType(typ string) string {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "bigint", "integer", "boolean":
		return "INTEGER"
	case "double":
		return "REAL"
	case "timestamptz", "date", "text":
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
			// "INTEGER PRIMARY KEY" is special in sqlite: it becomes the rowid
			// and auto-generates values.
			parts = append(parts, fmt.Sprintf("%s INTEGER PRIMARY KEY AUTOINCREMENT", sqlIdent(t.PrimaryKey.Name)))
		default:
			parts = append(parts, fmt.Sprintf("%s %s PRIMARY KEY", sqlIdent(t.PrimaryKey.Name), sqliteType(t.PrimaryKey.Type)))
		}
	}

	for _, c := range t.Columns {
		col := fmt.Sprintf("%s %s", sqlIdent(c.Name), sqliteType(c.Type))
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
			cols = append(cols, sqlIdent(c))
		}
		parts = append(parts, fmt.Sprintf("UNIQUE (%s)", strings.Join(cols, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", sqlIdent(t.Name), strings.Join(parts, ",\n  ")), nil
}

func buildInsertSQL(prefix, table string, columns []string, rows [][]any) (string, []any) {
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	b.WriteString(joinIdentList(columns))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		for _, v := range row {
			args = append(args, encodeValue(v))
		}
	}
	return b.String(), args
}

// encodeValue maps Go values onto SQLite-storable ones: timestamps as
// RFC3339Nano text, booleans as 0/1.
func encodeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return t.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if t == nil || t.IsZero() {
			return nil
		}
		return t.UTC().Format(time.RFC3339Nano)
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	default:
		return v
	}
}

// batchRows caps rows per INSERT so len(columns)*rows stays under the SQLite
// default bind-variable limit (32766 for modern builds; stay well below).
func batchRows(columns int) int {
	if columns <= 0 {
		return 1
	}
	n := 900 / columns
	if n < 1 {
		return 1
	}
	return n
}
