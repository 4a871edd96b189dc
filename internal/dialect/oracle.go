package dialect

import (
	"fmt"
	"strings"

	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

// Oracle renders Oracle DDL. Unquoted Oracle identifiers are stored in upper
// case, so names are folded before quoting to address the same objects a
// client sees in the catalog. Oracle commits DDL implicitly.
type Oracle struct{}

func (Oracle) Name() string            { return "oracle" }
func (Oracle) TransactionalDDL() bool  { return false }
func (Oracle) Identity() string        { return "GENERATED BY DEFAULT AS IDENTITY" }
func (Oracle) Literal(v string) string { return quoteLiteral(v) }

func (Oracle) DefaultValue(expr string) string { return unwrapDefault(expr) }

func (Oracle) fold(name string) (string, error) {
	n, err := CleanIdent(name)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(n), nil
}

func (d Oracle) QuoteIdent(name string) (string, error) {
	n, err := d.fold(name)
	if err != nil {
		return "", err
	}
	return quoteDouble(n), nil
}

func (d Oracle) UseDatabase(name string) (Statement, error) {
	s, err := d.QuoteIdent(name)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Text: "ALTER SESSION SET CURRENT_SCHEMA = " + s, Tag: TagUse}, nil
}

func (Oracle) ColumnType(dataType string, size schema.Size) (string, error) {
	return renderType(dataType, size)
}

// AlterType only restates nullability when it changes: Oracle rejects
// MODIFY ... NOT NULL on a column that is already NOT NULL (ORA-01442).
func (d Oracle) AlterType(table, column string, before, after schema.ColumnSpec) (Statement, error) {
	q, err := quoteAll(d.QuoteIdent, table, column)
	if err != nil {
		return Statement{}, err
	}
	typ, err := d.ColumnType(after.DataType, after.Size)
	if err != nil {
		return Statement{}, err
	}
	def := q[1] + " " + typ
	if before.Nullable != after.Nullable {
		def += " " + nullClause(after.Nullable)
	}
	return Statement{
		Text: fmt.Sprintf("ALTER TABLE %s MODIFY (%s)", q[0], def),
		Tag:  TagAlterType,
	}, nil
}

func (d Oracle) RenameColumn(table, from, to string) (Statement, error) {
	q, err := quoteAll(d.QuoteIdent, table, from, to)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Text: fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", q[0], q[1], q[2]),
		Tag:  TagRename,
	}, nil
}

func (d Oracle) AddConstraint(c schema.ConstraintDescriptor, value string) (Statement, error) {
	q, err := quoteAll(d.QuoteIdent, c.Table, c.Column)
	if err != nil {
		return Statement{}, err
	}
	if c.Kind == schema.KindDefault {
		return Statement{
			Text: fmt.Sprintf("ALTER TABLE %s MODIFY (%s DEFAULT %s)", q[0], q[1], d.Literal(value)),
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

func (d Oracle) DropConstraint(c schema.ConstraintDescriptor) (Statement, error) {
	q, err := quoteAll(d.QuoteIdent, c.Table, c.Column)
	if err != nil {
		return Statement{}, err
	}
	if c.Kind == schema.KindDefault {
		return Statement{
			Text: fmt.Sprintf("ALTER TABLE %s MODIFY (%s DEFAULT NULL)", q[0], q[1]),
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
	oraDefaultLookup = `SELECT 'DF__' || table_name || '__' || column_name AS constraint_name
FROM all_tab_columns
WHERE owner = SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA') AND table_name = :1 AND column_name = :2
AND default_length > 0`

	oraKeyLookup = `SELECT c.constraint_name
FROM all_constraints c
JOIN all_cons_columns cc ON c.owner = cc.owner AND c.constraint_name = cc.constraint_name
WHERE c.constraint_type = '%s'
AND c.owner = SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA')
AND c.table_name = :1
AND cc.column_name = :2`
)

func (d Oracle) LookupConstraint(kind schema.ConstraintKind, table, column string) (Statement, error) {
	t, err := d.fold(table)
	if err != nil {
		return Statement{}, err
	}
	c, err := d.fold(column)
	if err != nil {
		return Statement{}, err
	}
	var text string
	switch kind {
	case schema.KindDefault:
		text = oraDefaultLookup
	case schema.KindUnique:
		text = fmt.Sprintf(oraKeyLookup, "U")
	case schema.KindPrimaryKey:
		text = fmt.Sprintf(oraKeyLookup, "P")
	default:
		return Statement{}, fmt.Errorf("unknown constraint kind %q", kind)
	}
	return Statement{Text: text, Args: []any{t, c}, Tag: LookupTag(kind)}, nil
}

func (Oracle) ListDatabases() Statement {
	return Statement{
		Text: "SELECT user_id AS database_id, username AS name FROM all_users WHERE oracle_maintained = 'N' ORDER BY username",
		Tag:  TagListDatabases,
	}
}

func (Oracle) ListTables() Statement {
	return Statement{
		Text: "SELECT table_name FROM all_tables WHERE owner = SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA') ORDER BY table_name",
		Tag:  TagListTables,
	}
}

const oraDescribe = `SELECT c.column_name AS name, c.data_type AS type,
	c.data_default AS default_value,
	CASE WHEN c.char_length > 0 THEN TO_CHAR(c.char_length) ELSE '' END AS "SIZE",
	NVL(TO_CHAR(c.data_precision), '') AS "PRECISION",
	c.nullable AS is_null,
	CASE WHEN EXISTS (SELECT 1 FROM all_constraints k
		JOIN all_cons_columns kc ON k.owner = kc.owner AND k.constraint_name = kc.constraint_name
		WHERE k.constraint_type = 'U' AND k.owner = c.owner AND k.table_name = c.table_name
		AND kc.column_name = c.column_name) THEN 'YES' ELSE 'NO' END AS is_unique,
	CASE WHEN EXISTS (SELECT 1 FROM all_constraints k
		JOIN all_cons_columns kc ON k.owner = kc.owner AND k.constraint_name = kc.constraint_name
		WHERE k.constraint_type = 'P' AND k.owner = c.owner AND k.table_name = c.table_name
		AND kc.column_name = c.column_name) THEN 'YES' ELSE 'NO' END AS is_primary,
	c.identity_column AS is_identity
FROM all_tab_columns c
WHERE c.owner = SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA') AND c.table_name = :1
ORDER BY c.column_id`

func (d Oracle) DescribeTable(table string) (Statement, error) {
	t, err := d.fold(table)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Text: oraDescribe, Args: []any{t}, Tag: TagDescribeTable}, nil
}

func (Oracle) Types() []TypeInfo {
	return []TypeInfo{
		{"NUMBER", true},
		{"INTEGER", false},
		{"DATE", false},
		{"TIMESTAMP", false},
		{"CHAR", true},
		{"VARCHAR2", true},
		{"NVARCHAR2", true},
		{"CLOB", false},
		{"BLOB", false},
	}
}
