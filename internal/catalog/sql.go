package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/microsoft/go-mssqldb/msdsn"

	"github.com/senomardetritos/sgbd-sqlserver/internal/config"
	"github.com/senomardetritos/sgbd-sqlserver/internal/dialect"

	// SQL Server driver
	_ "github.com/microsoft/go-mssqldb"
	// Oracle driver
	_ "github.com/sijms/go-ora/v2"
)

// sqlStore is a Store over database/sql, used for SQL Server and Oracle.
type sqlStore struct {
	db        *sql.DB
	dialect   dialect.Dialect
	defaultDB string
}

func openSQLServer(ctx context.Context, cfg config.CatalogConfig, d dialect.Dialect) (Store, error) {
	dsn := cfg.DSN()
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, fmt.Errorf("sqlserver dsn: %w", err)
	}
	return openSQL(ctx, "sqlserver", dsn, cfg.Database, cfg.MaxConnections, d)
}

func openSQL(ctx context.Context, driver, dsn, defaultDB string, maxConns int, d dialect.Dialect) (Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", d.Name(), err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging %s: %w", d.Name(), err)
	}
	return &sqlStore{db: db, dialect: d, defaultDB: defaultDB}, nil
}

func (s *sqlStore) Dialect() dialect.Dialect { return s.dialect }

func (s *sqlStore) Acquire(ctx context.Context, database string) (Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	sess := &sqlSession{conn: conn}
	if err := selectDatabase(ctx, s.dialect, sess, database, s.defaultDB); err != nil {
		sess.Release()
		return nil, err
	}
	return sess, nil
}

func (s *sqlStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *sqlStore) Close() error                   { return s.db.Close() }

// execer is the subset shared by *sql.Conn and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func sqlExec(ctx context.Context, e execer, st dialect.Statement) error {
	if _, err := e.ExecContext(ctx, st.Text, st.Args...); err != nil {
		return err
	}
	return nil
}

func sqlQuery(ctx context.Context, e execer, st dialect.Statement) (*Result, error) {
	rows, err := e.QueryContext(ctx, st.Text, st.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("getting columns: %w", err)
	}

	res := &Result{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return res, nil
}

type sqlSession struct {
	conn *sql.Conn
}

func (s *sqlSession) Exec(ctx context.Context, st dialect.Statement) error {
	return sqlExec(ctx, s.conn, st)
}

func (s *sqlSession) Query(ctx context.Context, st dialect.Statement) (*Result, error) {
	return sqlQuery(ctx, s.conn, st)
}

func (s *sqlSession) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &sqlTx{tx: tx}, nil
}

func (s *sqlSession) Release() { _ = s.conn.Close() }

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Exec(ctx context.Context, st dialect.Statement) error {
	return sqlExec(ctx, t.tx, st)
}

func (t *sqlTx) Query(ctx context.Context, st dialect.Statement) (*Result, error) {
	return sqlQuery(ctx, t.tx, st)
}

func (t *sqlTx) Commit(context.Context) error   { return t.tx.Commit() }
func (t *sqlTx) Rollback(context.Context) error { return t.tx.Rollback() }
