// Package catalog is the connection layer to the managed database server.
// Callers acquire a Session per request, run dialect-rendered statements on
// it, and release it when the request ends.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/senomardetritos/sgbd-sqlserver/internal/config"
	"github.com/senomardetritos/sgbd-sqlserver/internal/dialect"
)

// Result holds the rows returned by a query.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Maps returns one map per row keyed by lower-cased column name.
func (r *Result) Maps() []map[string]any {
	if r == nil {
		return nil
	}
	out := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		m := make(map[string]any, len(r.Columns))
		for i, c := range r.Columns {
			if i < len(row) {
				m[strings.ToLower(c)] = row[i]
			}
		}
		out = append(out, m)
	}
	return out
}

// Querier runs statements.
type Querier interface {
	Exec(ctx context.Context, st dialect.Statement) error
	Query(ctx context.Context, st dialect.Statement) (*Result, error)
}

// Tx is a transaction opened on a Session.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Session is one pooled connection checked out for a request.
type Session interface {
	Querier
	Begin(ctx context.Context) (Tx, error)
	Release()
}

// Store hands out sessions against the catalog server.
type Store interface {
	Dialect() dialect.Dialect
	// Acquire checks out a connection and selects database on it. An empty
	// database selects the configured default.
	Acquire(ctx context.Context, database string) (Session, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the catalog described by cfg.
func Open(ctx context.Context, cfg config.CatalogConfig) (Store, error) {
	d, err := dialect.New(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	switch d.Name() {
	case "postgres":
		return openPostgres(ctx, cfg, d)
	case "oracle":
		return openSQL(ctx, "oracle", cfg.DSN(), cfg.Schema, cfg.MaxConnections, d)
	default:
		return openSQLServer(ctx, cfg, d)
	}
}

// selectDatabase runs the dialect's database selection on q.
func selectDatabase(ctx context.Context, d dialect.Dialect, q Querier, database, fallback string) error {
	if database == "" {
		database = fallback
	}
	if database == "" {
		return nil
	}
	st, err := d.UseDatabase(database)
	if err != nil {
		return err
	}
	if err := q.Exec(ctx, st); err != nil {
		return fmt.Errorf("selecting database %s: %w", database, err)
	}
	return nil
}
