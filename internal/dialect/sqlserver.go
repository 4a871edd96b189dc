package dialect

import (
	"fmt"

	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

// SQLServer renders T-SQL.
type SQLServer struct{}

func (SQLServer) Name() string          { return "sqlserver" }
func (SQLServer) TransactionalDDL() bool { return true }
func (SQLServer) Identity() string       { return "IDENTITY(1,1)" }
func (SQLServer) Literal(v string) string { return quoteLiteral(v) }

func (SQLServer) DefaultValue(expr string) string { return unwrapDefault(expr) }

func (SQLServer) QuoteIdent(name string) (string, error) {
	n, err := CleanIdent(name)
	if err != nil {
		return "", err
	}
	return quoteBracket(n), nil
}

func (d SQLServer) UseDatabase(name string) (Statement, error) {
	db, err := d.QuoteIdent(name)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Text: "USE " + db, Tag: TagUse}, nil
}

func (SQLServer) ColumnType(dataType string, size schema.Size) (string, error) {
	return renderType(dataType, size)
}

func (d SQLServer) AlterType(table, column string, _, after schema.ColumnSpec) (Statement, error) {
	q, err := quoteAll(d.QuoteIdent, table, column)
	if err != nil {
		return Statement{}, err
	}
	typ, err := d.ColumnType(after.DataType, after.Size)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Text: fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s %s", q[0], q[1], typ, nullClause(after.Nullable)),
		Tag:  TagAlterType,
	}, nil
}

// RenameColumn calls sp_rename with bound arguments.
func (d SQLServer) RenameColumn(table, from, to string) (Statement, error) {
	q, err := quoteAll(d.QuoteIdent, table, from)
	if err != nil {
		return Statement{}, err
	}
	newName, err := CleanIdent(to)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Text: "EXEC sp_rename @objname = @p1, @newname = @p2, @objtype = 'COLUMN'",
		Args: []any{q[0] + "." + q[1], newName},
		Tag:  TagRename,
	}, nil
}

func (d SQLServer) AddConstraint(c schema.ConstraintDescriptor, value string) (Statement, error) {
	q, err := quoteAll(d.QuoteIdent, c.Table, c.Column, c.Identifier)
	if err != nil {
		return Statement{}, err
	}
	var body string
	switch c.Kind {
	case schema.KindDefault:
		body = fmt.Sprintf("DEFAULT %s FOR %s", d.Literal(value), q[1])
	case schema.KindUnique:
		body = fmt.Sprintf("UNIQUE (%s)", q[1])
	case schema.KindPrimaryKey:
		body = fmt.Sprintf("PRIMARY KEY (%s)", q[1])
	default:
		return Statement{}, fmt.Errorf("unknown constraint kind %q", c.Kind)
	}
	return Statement{
		Text: fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s", q[0], q[2], body),
		Tag:  AddTag(c.Kind),
	}, nil
}

func (d SQLServer) DropConstraint(c schema.ConstraintDescriptor) (Statement, error) {
	q, err := quoteAll(d.QuoteIdent, c.Table, c.Identifier)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Text: fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", q[0], q[1]),
		Tag:  DropTag(c.Kind),
	}, nil
}

const (
	mssqlDefaultLookup = `SELECT dc.name AS constraint_name
FROM sys.default_constraints AS dc
INNER JOIN sys.tables AS t ON dc.parent_object_id = t.object_id
INNER JOIN sys.columns AS c ON dc.parent_object_id = c.object_id AND dc.parent_column_id = c.column_id
WHERE OBJECT_NAME(t.object_id) = @p1 AND c.name = @p2`

	mssqlKeyLookup = `SELECT tc1.CONSTRAINT_NAME AS constraint_name
FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu1, INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc1
WHERE kcu1.CONSTRAINT_NAME = tc1.CONSTRAINT_NAME
AND tc1.CONSTRAINT_TYPE = '%s'
AND tc1.TABLE_NAME = @p1
AND kcu1.COLUMN_NAME = @p2`
)

// LookupConstraint is not scoped by schema: two schemas holding the same
// table name can both match, which the resolver reports as ambiguous.
func (SQLServer) LookupConstraint(kind schema.ConstraintKind, table, column string) (Statement, error) {
	t, err := CleanIdent(table)
	if err != nil {
		return Statement{}, err
	}
	c, err := CleanIdent(column)
	if err != nil {
		return Statement{}, err
	}
	var text string
	switch kind {
	case schema.KindDefault:
		text = mssqlDefaultLookup
	case schema.KindUnique:
		text = fmt.Sprintf(mssqlKeyLookup, "UNIQUE")
	case schema.KindPrimaryKey:
		text = fmt.Sprintf(mssqlKeyLookup, "PRIMARY KEY")
	default:
		return Statement{}, fmt.Errorf("unknown constraint kind %q", kind)
	}
	return Statement{Text: text, Args: []any{t, c}, Tag: LookupTag(kind)}, nil
}

func (SQLServer) ListDatabases() Statement {
	return Statement{
		Text: "SELECT database_id, name FROM sys.databases WHERE name NOT IN ('master', 'tempdb', 'model', 'msdb') ORDER BY name",
		Tag:  TagListDatabases,
	}
}

func (SQLServer) ListTables() Statement {
	return Statement{
		Text: "SELECT TABLE_NAME AS table_name FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME",
		Tag:  TagListTables,
	}
}

const mssqlDescribe = `SELECT c.COLUMN_NAME AS name, c.DATA_TYPE AS type,
	COALESCE(c.COLUMN_DEFAULT, '') AS default_value,
	COALESCE(CAST(c.CHARACTER_MAXIMUM_LENGTH AS VARCHAR(12)), '') AS size,
	COALESCE(CAST(c.NUMERIC_PRECISION AS VARCHAR(12)), '') AS precision,
	c.IS_NULLABLE AS is_null,
	CASE WHEN EXISTS (SELECT 1 FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu1
		JOIN INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc1 ON kcu1.CONSTRAINT_NAME = tc1.CONSTRAINT_NAME
		WHERE tc1.CONSTRAINT_TYPE = 'UNIQUE' AND tc1.TABLE_NAME = c.TABLE_NAME
		AND kcu1.COLUMN_NAME = c.COLUMN_NAME) THEN 'YES' ELSE 'NO' END AS is_unique,
	CASE WHEN EXISTS (SELECT 1 FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu2
		JOIN INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc2 ON kcu2.CONSTRAINT_NAME = tc2.CONSTRAINT_NAME
		WHERE tc2.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc2.TABLE_NAME = c.TABLE_NAME
		AND kcu2.COLUMN_NAME = c.COLUMN_NAME) THEN 'YES' ELSE 'NO' END AS is_primary,
	COLUMNPROPERTY(OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME)), c.COLUMN_NAME, 'IsIdentity') AS is_identity
FROM INFORMATION_SCHEMA.COLUMNS AS c
WHERE c.TABLE_NAME = @p1
ORDER BY c.ORDINAL_POSITION`

func (SQLServer) DescribeTable(table string) (Statement, error) {
	t, err := CleanIdent(table)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Text: mssqlDescribe, Args: []any{t}, Tag: TagDescribeTable}, nil
}

func (SQLServer) Types() []TypeInfo {
	return []TypeInfo{
		{"INT", false},
		{"DECIMAL", true},
		{"NUMERIC", true},
		{"DATE", false},
		{"TIME", false},
		{"DATETIME", false},
		{"CHAR", true},
		{"VARCHAR", true},
		{"TEXT", false},
		{"JSON", false},
		{"GEOGRAPHY", false},
		{"GEOMETRY", false},
	}
}
