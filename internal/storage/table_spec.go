// TableSpec lives here so backend packages and the schema package can share it
// without circular deps.
package storage

// TableSpec describes one warehouse table in a backend-neutral vocabulary.
// Column types use portable names ("bigint", "integer", "text", "double",
// "boolean", "timestamptz", "date") that each backend translates to its own
// dialect.
type TableSpec struct {
	Name        string
	PrimaryKey  *PrimaryKeySpec
	Columns     []ColumnSpec
	Constraints []ConstraintSpec
}

// PrimaryKeySpec declares a surrogate key column. Type "serial" means an
// auto-generated integer key; "integer" means a caller-supplied key.
type PrimaryKeySpec struct {
	Name string
	Type string
}

type ColumnSpec struct {
	Name     string
	Type     string
	Nullable *bool
}

type ConstraintSpec struct {
	Kind    string // "unique"
	Columns []string
}

// NotNull is a convenience for ColumnSpec.Nullable.
func NotNull() *bool {
	b := false
	return &b
}
