// Package dialect renders every statement the alteration core sends to a
// catalog server. Callers never build SQL text themselves: identifiers are
// validated and quoted here, and values are either bound or rendered as
// escaped literals where the engine does not accept parameters (DDL).
package dialect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

// Statement tags. The catalog layer and the test mock key off these.
const (
	TagUse           = "use"
	TagAlterType     = "alter_type"
	TagRename        = "rename"
	TagCreateTable   = "create_table"
	TagAddColumn     = "add_column"
	TagDropColumn    = "drop_column"
	TagListDatabases = "list_databases"
	TagListTables    = "list_tables"
	TagDescribeTable = "describe_table"
)

// LookupTag is the tag of the resolution query for kind.
func LookupTag(kind schema.ConstraintKind) string { return "lookup:" + string(kind) }

// AddTag is the tag of the statement adding a constraint of kind.
func AddTag(kind schema.ConstraintKind) string { return "add:" + string(kind) }

// DropTag is the tag of the statement dropping a constraint of kind.
func DropTag(kind schema.ConstraintKind) string { return "drop:" + string(kind) }

// Statement is one unit of SQL text plus its bound arguments.
type Statement struct {
	Text string `json:"sql" yaml:"sql" bson:"sql"`
	Args []any  `json:"args,omitempty" yaml:"args,omitempty" bson:"args,omitempty"`
	Tag  string `json:"tag,omitempty" yaml:"tag,omitempty" bson:"tag,omitempty"`
}

func (s Statement) String() string { return s.Text }

// TypeInfo describes a column type offered to clients.
type TypeInfo struct {
	Name  string `json:"name"`
	Sized bool   `json:"size"`
}

// Dialect renders statements for one catalog engine.
type Dialect interface {
	Name() string

	// TransactionalDDL reports whether schema changes can be rolled back.
	TransactionalDDL() bool

	// QuoteIdent validates and quotes a caller-supplied identifier.
	QuoteIdent(name string) (string, error)

	// UseDatabase selects the database (or schema) for the session.
	UseDatabase(name string) (Statement, error)

	// AlterType re-asserts the column's type and nullability as in after.
	AlterType(table, column string, before, after schema.ColumnSpec) (Statement, error)

	RenameColumn(table, from, to string) (Statement, error)
	AddConstraint(d schema.ConstraintDescriptor, value string) (Statement, error)
	DropConstraint(d schema.ConstraintDescriptor) (Statement, error)

	// LookupConstraint returns a query yielding a single constraint_name
	// column, one row per constraint of kind bound to table.column.
	LookupConstraint(kind schema.ConstraintKind, table, column string) (Statement, error)

	// ColumnType renders a type with its optional size, e.g. VARCHAR(50).
	ColumnType(dataType string, size schema.Size) (string, error)

	// Identity is the auto-increment clause used in table definitions.
	Identity() string

	// Literal renders v as an escaped string literal.
	Literal(v string) string

	// DefaultValue turns a default expression read from the catalog back into
	// the value that Literal would have rendered it from.
	DefaultValue(expr string) string

	ListDatabases() Statement
	ListTables() Statement
	DescribeTable(table string) (Statement, error)

	// Types lists the column types offered to clients.
	Types() []TypeInfo
}

var registry = map[string]func() Dialect{
	"sqlserver": func() Dialect { return SQLServer{} },
	"mssql":     func() Dialect { return SQLServer{} },
	"postgres":  func() Dialect { return Postgres{} },
	"oracle":    func() Dialect { return Oracle{} },
}

// New returns the dialect registered under name.
func New(name string) (Dialect, error) {
	ctor, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return ctor(), nil
}

// Names lists the registered dialect names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
