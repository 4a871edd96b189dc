package catalog

import (
	"context"
	"strings"
	"sync"

	"github.com/senomardetritos/sgbd-sqlserver/internal/dialect"
	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

// Mock is a test double implementing Store, Session and Tx. It records every
// statement and answers constraint lookups from Constraints.
type Mock struct {
	D dialect.Dialect

	// Constraints lists the names returned by the lookup for each kind.
	Constraints map[schema.ConstraintKind][]string
	// Results are canned query results keyed by statement tag.
	Results map[string]*Result
	// ExecErrs fails any Exec whose text or tag contains the key.
	ExecErrs map[string]error
	// QueryErrs fails any Query whose text or tag contains the key.
	QueryErrs map[string]error

	AcquireErr  error
	BeginErr    error
	CommitErr   error
	RollbackErr error

	mu         sync.Mutex
	Executed   []dialect.Statement
	Queries    []dialect.Statement
	Databases  []string
	Began      int
	Committed  int
	RolledBack int
	Released   int
	Closed     bool
}

func (m *Mock) Dialect() dialect.Dialect {
	if m.D == nil {
		return dialect.SQLServer{}
	}
	return m.D
}

func (m *Mock) Acquire(_ context.Context, database string) (Session, error) {
	if m.AcquireErr != nil {
		return nil, m.AcquireErr
	}
	m.mu.Lock()
	m.Databases = append(m.Databases, database)
	m.mu.Unlock()
	return m, nil
}

func (m *Mock) Ping(context.Context) error { return m.AcquireErr }

func (m *Mock) Close() error {
	m.Closed = true
	return nil
}

func (m *Mock) Exec(_ context.Context, st dialect.Statement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := match(m.ExecErrs, st); err != nil {
		return err
	}
	m.Executed = append(m.Executed, st)
	return nil
}

func (m *Mock) Query(_ context.Context, st dialect.Statement) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, st)
	if err := match(m.QueryErrs, st); err != nil {
		return nil, err
	}
	for _, kind := range schema.ConstraintKinds {
		if st.Tag == dialect.LookupTag(kind) {
			res := &Result{Columns: []string{"constraint_name"}}
			for _, name := range m.Constraints[kind] {
				res.Rows = append(res.Rows, []any{name})
			}
			return res, nil
		}
	}
	if res, ok := m.Results[st.Tag]; ok {
		return res, nil
	}
	return &Result{}, nil
}

func (m *Mock) Begin(context.Context) (Tx, error) {
	if m.BeginErr != nil {
		return nil, m.BeginErr
	}
	m.mu.Lock()
	m.Began++
	m.mu.Unlock()
	return m, nil
}

func (m *Mock) Commit(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CommitErr != nil {
		return m.CommitErr
	}
	m.Committed++
	return nil
}

func (m *Mock) Rollback(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RolledBack++
	return m.RollbackErr
}

func (m *Mock) Release() {
	m.mu.Lock()
	m.Released++
	m.mu.Unlock()
}

// ExecutedTags returns the tags of executed statements, in order.
func (m *Mock) ExecutedTags() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	tags := make([]string, len(m.Executed))
	for i, st := range m.Executed {
		tags[i] = st.Tag
	}
	return tags
}

func match(errs map[string]error, st dialect.Statement) error {
	for key, err := range errs {
		if strings.Contains(st.Text, key) || strings.Contains(st.Tag, key) {
			return err
		}
	}
	return nil
}
