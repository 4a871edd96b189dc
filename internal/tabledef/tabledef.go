// Package tabledef serializes new tables and single-column additions.
// Nothing here consults the catalog: the objects do not exist yet.
package tabledef

import (
	"fmt"
	"strings"

	"github.com/senomardetritos/sgbd-sqlserver/internal/dialect"
	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

// Planner renders table definition statements.
type Planner struct {
	dialect dialect.Dialect
}

// New creates a planner for d.
func New(d dialect.Dialect) *Planner {
	return &Planner{dialect: d}
}

// CreateTable renders a single CREATE TABLE statement for spec. Columns
// flagged primary, and identity columns, form one trailing PRIMARY KEY
// clause.
func (p *Planner) CreateTable(spec schema.TableCreateSpec) (dialect.Statement, error) {
	if err := spec.Validate(); err != nil {
		return dialect.Statement{}, err
	}
	table, err := p.dialect.QuoteIdent(spec.Table)
	if err != nil {
		return dialect.Statement{}, err
	}

	defs := make([]string, 0, len(spec.Columns)+1)
	for _, c := range spec.Columns {
		def, err := p.columnDef(c, true)
		if err != nil {
			return dialect.Statement{}, err
		}
		defs = append(defs, def)
	}

	if pk := spec.PrimaryKey(); len(pk) > 0 {
		quoted := make([]string, len(pk))
		for i, name := range pk {
			quoted[i], err = p.dialect.QuoteIdent(name)
			if err != nil {
				return dialect.Statement{}, err
			}
		}
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
	}

	return dialect.Statement{
		Text: fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", ")),
		Tag:  dialect.TagCreateTable,
	}, nil
}

// AddColumn renders the addition of one column to an existing table. Unique
// and primary flags are left to a later alteration, where the constraint can
// be named.
func (p *Planner) AddColumn(table string, c schema.ColumnSpec) (dialect.Statement, error) {
	if err := c.Validate(); err != nil {
		return dialect.Statement{}, err
	}
	t, err := p.dialect.QuoteIdent(table)
	if err != nil {
		return dialect.Statement{}, err
	}
	def, err := p.columnDef(schema.TableColumn{ColumnSpec: schema.ColumnSpec{
		Name:         c.Name,
		DataType:     c.DataType,
		Size:         c.Size,
		Nullable:     c.Nullable,
		DefaultValue: c.DefaultValue,
	}}, false)
	if err != nil {
		return dialect.Statement{}, err
	}
	keyword := "ADD"
	if p.dialect.Name() == "postgres" {
		keyword = "ADD COLUMN"
	}
	return dialect.Statement{
		Text: fmt.Sprintf("ALTER TABLE %s %s %s", t, keyword, def),
		Tag:  dialect.TagAddColumn,
	}, nil
}

// DropColumn renders the removal of a column.
func (p *Planner) DropColumn(table, column string) (dialect.Statement, error) {
	t, err := p.dialect.QuoteIdent(table)
	if err != nil {
		return dialect.Statement{}, err
	}
	c, err := p.dialect.QuoteIdent(column)
	if err != nil {
		return dialect.Statement{}, err
	}
	return dialect.Statement{
		Text: fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", t, c),
		Tag:  dialect.TagDropColumn,
	}, nil
}

// columnDef renders name, type, identity or default, nullability and, when
// allowed, an inline UNIQUE.
func (p *Planner) columnDef(c schema.TableColumn, inlineUnique bool) (string, error) {
	name, err := p.dialect.QuoteIdent(c.Name)
	if err != nil {
		return "", err
	}
	typ, err := p.dialect.ColumnType(c.DataType, c.Size)
	if err != nil {
		return "", err
	}

	parts := []string{name, typ}
	switch {
	case bool(c.Increment):
		parts = append(parts, p.dialect.Identity())
	case c.DefaultValue != "":
		parts = append(parts, "DEFAULT "+p.dialect.Literal(c.DefaultValue))
	}
	if c.Nullable && !c.Increment {
		parts = append(parts, "NULL")
	} else {
		parts = append(parts, "NOT NULL")
	}
	if inlineUnique && bool(c.Unique && !c.Primary && !c.Increment) {
		parts = append(parts, "UNIQUE")
	}
	return strings.Join(parts, " "), nil
}
