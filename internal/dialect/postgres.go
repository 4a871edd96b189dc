package dialect

import (
	"fmt"

	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

// Postgres renders PostgreSQL DDL. A "database" in request paths maps to a
// schema on the configured database, selected through search_path.
type Postgres struct{}

func (Postgres) Name() string            { return "postgres" }
func (Postgres) TransactionalDDL() bool  { return true }
func (Postgres) Identity() string        { return "GENERATED BY DEFAULT AS IDENTITY" }
func (Postgres) Literal(v string) string { return quoteLiteral(v) }

func (Postgres) DefaultValue(expr string) string { return unwrapDefault(stripCast(expr)) }

func (Postgres) QuoteIdent(name string) (string, error) {
	n, err := CleanIdent(name)
	if err != nil {
		return "", err
	}
	return quoteDouble(n), nil
}

func (d Postgres) UseDatabase(name string) (Statement, error) {
	s, err := d.QuoteIdent(name)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Text: "SET search_path TO " + s, Tag: TagUse}, nil
}

func (Postgres) ColumnType(dataType string, size schema.Size) (string, error) {
	return renderType(dataType, size)
}

func (d Postgres) AlterType(table, column string, _, after schema.ColumnSpec) (Statement, error) {
	q, err := quoteAll(d.QuoteIdent, table, column)
	if err != nil {
		return Statement{}, err
	}
	typ, err := d.ColumnType(after.DataType, after.Size)
	if err != nil {
		return Statement{}, err
	}
	null := "SET NOT NULL"
	if after.Nullable {
		null = "DROP NOT NULL"
	}
	return Statement{
		Text: fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s, ALTER COLUMN %s %s", q[0], q[1], typ, q[1], null),
		Tag:  TagAlterType,
	}, nil
}

func (d Postgres) RenameColumn(table, from, to string) (Statement, error) {
	q, err := quoteAll(d.QuoteIdent, table, from, to)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Text: fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", q[0], q[1], q[2]),
		Tag:  TagRename,
	}, nil
}

// AddConstraint maps the default kind onto the column's DEFAULT attribute;
// PostgreSQL defaults carry no name.
func (d Postgres) AddConstraint(c schema.ConstraintDescriptor, value string) (Statement, error) {
	q, err := quoteAll(d.QuoteIdent, c.Table, c.Column)
	if err != nil {
		return Statement{}, err
	}
	if c.Kind == schema.KindDefault {
		return Statement{
			Text: fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", q[0], q[1], d.Literal(value)),
			Tag:  AddTag(c.Kind),
		}, nil
	}
	name, err := d.QuoteIdent(c.Identifier)
	if err != nil {
		return Statement{}, err
	}
	var body string
	switch c.Kind {
	case schema.KindUnique:
		body = "UNIQUE"
	case schema.KindPrimaryKey:
		body = "PRIMARY KEY"
	default:
		return Statement{}, fmt.Errorf("unknown constraint kind %q", c.Kind)
	}
	return Statement{
		Text: fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s (%s)", q[0], name, body, q[1]),
		Tag:  AddTag(c.Kind),
	}, nil
}

func (d Postgres) DropConstraint(c schema.ConstraintDescriptor) (Statement, error) {
	q, err := quoteAll(d.QuoteIdent, c.Table, c.Column)
	if err != nil {
		return Statement{}, err
	}
	if c.Kind == schema.KindDefault {
		return Statement{
			Text: fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", q[0], q[1]),
			Tag:  DropTag(c.Kind),
		}, nil
	}
	name, err := d.QuoteIdent(c.Identifier)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Text: fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", q[0], name),
		Tag:  DropTag(c.Kind),
	}, nil
}

const (
	pgDefaultLookup = `SELECT 'DF__' || table_name || '__' || column_name AS constraint_name
FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2
AND column_default IS NOT NULL`

	pgKeyLookup = `SELECT tc.constraint_name
FROM information_schema.key_column_usage kcu
JOIN information_schema.table_constraints tc
  ON kcu.constraint_name = tc.constraint_name AND kcu.constraint_schema = tc.constraint_schema
WHERE tc.constraint_type = '%s'
AND tc.table_schema = current_schema()
AND tc.table_name = $1
AND kcu.column_name = $2`
)

func (Postgres) LookupConstraint(kind schema.ConstraintKind, table, column string) (Statement, error) {
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
		text = pgDefaultLookup
	case schema.KindUnique:
		text = fmt.Sprintf(pgKeyLookup, "UNIQUE")
	case schema.KindPrimaryKey:
		text = fmt.Sprintf(pgKeyLookup, "PRIMARY KEY")
	default:
		return Statement{}, fmt.Errorf("unknown constraint kind %q", kind)
	}
	return Statement{Text: text, Args: []any{t, c}, Tag: LookupTag(kind)}, nil
}

func (Postgres) ListDatabases() Statement {
	return Statement{
		Text: `SELECT oid::bigint AS database_id, nspname AS name FROM pg_namespace
WHERE nspname NOT IN ('pg_catalog', 'information_schema') AND nspname NOT LIKE 'pg_toast%' AND nspname NOT LIKE 'pg_temp%'
ORDER BY nspname`,
		Tag: TagListDatabases,
	}
}

func (Postgres) ListTables() Statement {
	return Statement{
		Text: "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' ORDER BY table_name",
		Tag:  TagListTables,
	}
}

const pgDescribe = `SELECT c.column_name AS name, c.data_type AS type,
	COALESCE(c.column_default, '') AS default_value,
	COALESCE(c.character_maximum_length::text, '') AS size,
	COALESCE(c.numeric_precision::text, '') AS precision,
	c.is_nullable AS is_null,
	CASE WHEN EXISTS (SELECT 1 FROM information_schema.key_column_usage k
		JOIN information_schema.table_constraints t ON k.constraint_name = t.constraint_name AND k.constraint_schema = t.constraint_schema
		WHERE t.constraint_type = 'UNIQUE' AND t.table_schema = c.table_schema AND t.table_name = c.table_name
		AND k.column_name = c.column_name) THEN 'YES' ELSE 'NO' END AS is_unique,
	CASE WHEN EXISTS (SELECT 1 FROM information_schema.key_column_usage k
		JOIN information_schema.table_constraints t ON k.constraint_name = t.constraint_name AND k.constraint_schema = t.constraint_schema
		WHERE t.constraint_type = 'PRIMARY KEY' AND t.table_schema = c.table_schema AND t.table_name = c.table_name
		AND k.column_name = c.column_name) THEN 'YES' ELSE 'NO' END AS is_primary,
	c.is_identity AS is_identity
FROM information_schema.columns c
WHERE c.table_schema = current_schema() AND c.table_name = $1
ORDER BY c.ordinal_position`

func (Postgres) DescribeTable(table string) (Statement, error) {
	t, err := CleanIdent(table)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Text: pgDescribe, Args: []any{t}, Tag: TagDescribeTable}, nil
}

func (Postgres) Types() []TypeInfo {
	return []TypeInfo{
		{"INTEGER", false},
		{"BIGINT", false},
		{"NUMERIC", true},
		{"DATE", false},
		{"TIME", false},
		{"TIMESTAMP", false},
		{"CHAR", true},
		{"VARCHAR", true},
		{"TEXT", false},
		{"JSONB", false},
		{"BOOLEAN", false},
		{"UUID", false},
	}
}
