package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/senomardetritos/sgbd-sqlserver/internal/config"
	"github.com/senomardetritos/sgbd-sqlserver/internal/dialect"
)

// pgStore is a Store over a pgx pool.
type pgStore struct {
	pool          *pgxpool.Pool
	dialect       dialect.Dialect
	defaultSchema string
}

func openPostgres(ctx context.Context, cfg config.CatalogConfig, d dialect.Dialect) (Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConnections)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging PostgreSQL: %w", err)
	}
	return &pgStore{pool: pool, dialect: d, defaultSchema: pgSchema(cfg.Schema)}, nil
}

// pgSchema is the schema a session falls back to when a request names none.
func pgSchema(configured string) string {
	if configured == "" {
		return "public"
	}
	return configured
}

func (s *pgStore) Dialect() dialect.Dialect { return s.dialect }

// Acquire always sets search_path, to the requested schema or the store's
// default, so a pooled connection never keeps an earlier request's schema.
func (s *pgStore) Acquire(ctx context.Context, database string) (Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	sess := &pgSession{conn: conn}
	if err := selectDatabase(ctx, s.dialect, sess, database, s.defaultSchema); err != nil {
		sess.Release()
		return nil, err
	}
	return sess, nil
}

func (s *pgStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}

// pgRunner is the subset shared by *pgxpool.Conn and pgx.Tx.
type pgRunner interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func pgExec(ctx context.Context, r pgRunner, st dialect.Statement) error {
	_, err := r.Exec(ctx, st.Text, st.Args...)
	return err
}

func pgQuery(ctx context.Context, r pgRunner, st dialect.Statement) (*Result, error) {
	rows, err := r.Query(ctx, st.Text, st.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	descs := rows.FieldDescriptions()
	res := &Result{Columns: make([]string, len(descs))}
	for i, d := range descs {
		res.Columns[i] = d.Name
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return res, nil
}

type pgSession struct {
	conn *pgxpool.Conn
}

func (s *pgSession) Exec(ctx context.Context, st dialect.Statement) error {
	return pgExec(ctx, s.conn, st)
}

func (s *pgSession) Query(ctx context.Context, st dialect.Statement) (*Result, error) {
	return pgQuery(ctx, s.conn, st)
}

func (s *pgSession) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

func (s *pgSession) Release() { s.conn.Release() }

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Exec(ctx context.Context, st dialect.Statement) error {
	return pgExec(ctx, t.tx, st)
}

func (t *pgTx) Query(ctx context.Context, st dialect.Statement) (*Result, error) {
	return pgQuery(ctx, t.tx, st)
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }
