package postgres

import (
	"strings"
	"testing"

	"shopdw/internal/storage"
)

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	spec := storage.TableSpec{
		Name:       "dim_thing",
		PrimaryKey: &storage.PrimaryKeySpec{Name: "thing_key", Type: "serial"},
		Columns: []storage.ColumnSpec{
			{Name: "code", Type: "text", Nullable: storage.NotNull()},
			{Name: "amount", Type: "double"},
			{Name: "active", Type: "boolean"},
			{Name: "seen_at", Type: "timestamptz"},
		},
		Constraints: []storage.ConstraintSpec{{Kind: "unique", Columns: []string{"code"}}},
	}

	ddl, err := buildCreateTableSQL(spec)
	if err != nil {
		t.Fatalf("buildCreateTableSQL: %v", err)
	}
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS",
		`"thing_key" BIGSERIAL PRIMARY KEY`,
		`"code" TEXT NOT NULL`,
		`"amount" DOUBLE PRECISION`,
		`"active" BOOLEAN`,
		`"seen_at" TIMESTAMPTZ`,
		`UNIQUE ("code")`,
	} {
		if !strings.Contains(ddl, want) {
			t.Fatalf("ddl=%q, want contains %q", ddl, want)
		}
	}
}

func TestBuildCreateTableSQL_RejectsUnknownConstraint(t *testing.T) {
	t.Parallel()

	_, err := buildCreateTableSQL(storage.TableSpec{
		Name:        "t",
		Columns:     []storage.ColumnSpec{{Name: "a", Type: "text"}},
		Constraints: []storage.ConstraintSpec{{Kind: "check", Columns: []string{"a"}}},
	})
	if err == nil {
		t.Fatalf("want error for unsupported constraint kind")
	}
}

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	q, args := buildInsertSQL("dim_channel",
		[]string{"channel_code", "channel_name"},
		[][]any{{"web", "Online Store"}, {"pos", "Point of Sale"}},
		[]string{"channel_code"})

	wantQ := `INSERT INTO "dim_channel" ("channel_code", "channel_name") VALUES ` +
		`($1, $2), ($3, $4) ON CONFLICT ("channel_code") DO NOTHING`
	if q != wantQ {
		t.Fatalf("sql=%q, want %q", q, wantQ)
	}
	if len(args) != 4 || args[0] != "web" || args[3] != "Point of Sale" {
		t.Fatalf("args=%v", args)
	}
}

func TestBuildInsertSQL_NoConflictClauseWithoutColumns(t *testing.T) {
	t.Parallel()

	q, _ := buildInsertSQL("t", []string{"a"}, [][]any{{1}}, nil)
	if strings.Contains(q, "ON CONFLICT") {
		t.Fatalf("sql=%q, want no conflict clause", q)
	}
}

func TestPgIdent_EscapesQuotes(t *testing.T) {
	t.Parallel()

	if got := pgIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("pgIdent=%q", got)
	}
}

func TestBatchRows(t *testing.T) {
	t.Parallel()

	// 22 fact_order columns must still batch in the thousands.
	if got := batchRows(22); got != 60000/22 {
		t.Fatalf("batchRows(22)=%d", got)
	}
	if got := batchRows(0); got != 1 {
		t.Fatalf("batchRows(0)=%d, want 1", got)
	}
	if got := batchRows(70000); got != 1 {
		t.Fatalf("batchRows(70000)=%d, want 1", got)
	}
}
