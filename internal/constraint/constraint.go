// Package constraint finds the constraints bound to a column and names the
// ones that have to be created.
package constraint

import (
	"context"
	"fmt"
	"strings"

	"github.com/senomardetritos/sgbd-sqlserver/internal/catalog"
	"github.com/senomardetritos/sgbd-sqlserver/internal/dialect"
	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

// Synthesize returns the conventional name for a new constraint of kind on
// table.column: DF__t__c, UQ__t__c or PK__t__c.
func Synthesize(table, column string, kind schema.ConstraintKind) string {
	return fmt.Sprintf("%s__%s__%s", kind.Prefix(), table, column)
}

// QueryError reports that the lookup query itself failed.
type QueryError struct {
	Kind   schema.ConstraintKind
	Table  string
	Column string
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("resolving %s constraint on %s.%s: %v", e.Kind, e.Table, e.Column, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// AmbiguousError reports that more than one constraint of a kind matched a
// column, which can happen when schemas share a table name.
type AmbiguousError struct {
	Kind        schema.ConstraintKind
	Table       string
	Column      string
	Identifiers []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%s constraint on %s.%s is ambiguous: %s",
		e.Kind, e.Table, e.Column, strings.Join(e.Identifiers, ", "))
}

// Resolver looks up existing constraints through dialect-rendered queries.
type Resolver struct {
	dialect dialect.Dialect
}

// NewResolver creates a resolver for d.
func NewResolver(d dialect.Dialect) *Resolver {
	return &Resolver{dialect: d}
}

// Resolve returns the constraint of kind bound to table.column. A descriptor
// with an empty Identifier means none exists, which is not an error.
//
// When several distinct names match, the first is returned together with an
// *AmbiguousError so callers can decide whether to proceed.
func (r *Resolver) Resolve(ctx context.Context, q catalog.Querier, table, column string, kind schema.ConstraintKind) (schema.ConstraintDescriptor, error) {
	desc := schema.ConstraintDescriptor{Kind: kind, Table: table, Column: column}

	st, err := r.dialect.LookupConstraint(kind, table, column)
	if err != nil {
		return desc, err
	}
	res, err := q.Query(ctx, st)
	if err != nil {
		return desc, &QueryError{Kind: kind, Table: table, Column: column, Err: err}
	}

	names := distinctNames(res)
	if len(names) == 0 {
		return desc, nil
	}
	desc.Identifier = names[0]
	if len(names) > 1 {
		return desc, &AmbiguousError{Kind: kind, Table: table, Column: column, Identifiers: names}
	}
	return desc, nil
}

func distinctNames(res *catalog.Result) []string {
	if res == nil {
		return nil
	}
	var names []string
	seen := make(map[string]bool)
	for _, row := range res.Rows {
		if len(row) == 0 {
			continue
		}
		var name string
		switch v := row[0].(type) {
		case string:
			name = v
		case []byte:
			name = string(v)
		}
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
