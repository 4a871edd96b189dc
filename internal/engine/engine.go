// Package engine orchestrates catalog sessions, planning, execution and
// recovery for every operation the HTTP server and the CLI expose.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/senomardetritos/sgbd-sqlserver/internal/alter"
	"github.com/senomardetritos/sgbd-sqlserver/internal/catalog"
	"github.com/senomardetritos/sgbd-sqlserver/internal/config"
	"github.com/senomardetritos/sgbd-sqlserver/internal/dialect"
	"github.com/senomardetritos/sgbd-sqlserver/internal/metrics"
	"github.com/senomardetritos/sgbd-sqlserver/internal/rollback"
	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
	"github.com/senomardetritos/sgbd-sqlserver/internal/tabledef"
)

// Plan outcomes recorded in metrics.
const (
	OutcomeApplied     = "applied"
	OutcomeRolledBack  = "rolled_back"
	OutcomeCompensated = "compensated"
	OutcomeFailed      = "failed"
	OutcomeRejected    = "rejected"
)

// Engine is shared by the HTTP server and the CLI.
type Engine struct {
	Config *config.Config
	Store  catalog.Store
	Logger *slog.Logger

	dialect   dialect.Dialect
	planner   *alter.Planner
	tables    *tabledef.Planner
	observers alter.Observers
}

// New creates an engine over store. Step metrics are always recorded; extra
// observers receive execution progress as well.
func New(cfg *config.Config, store catalog.Store, logger *slog.Logger, observers ...alter.Observer) *Engine {
	d := store.Dialect()
	return &Engine{
		Config:  cfg,
		Store:   store,
		Logger:  logger,
		dialect: d,
		planner: alter.NewPlanner(d, alter.Options{
			StrictResolution:  cfg.Alter.StrictResolution,
			SkipUnchangedType: cfg.Alter.SkipUnchangedType,
		}, logger),
		tables:    tabledef.New(d),
		observers: append(alter.Observers{metricsObserver{}}, observers...),
	}
}

// Dialect returns the catalog's dialect.
func (e *Engine) Dialect() dialect.Dialect { return e.dialect }

// Ping verifies the catalog is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	return e.Store.Ping(ctx)
}

// Types lists the column types the catalog accepts.
func (e *Engine) Types() []dialect.TypeInfo {
	return e.dialect.Types()
}

// AlterOutcome reports what an alteration did.
type AlterOutcome struct {
	Plan          *alter.Plan      `json:"plan,omitempty"`
	Fingerprint   string           `json:"fingerprint,omitempty"`
	Transactional bool             `json:"transactional"`
	Completed     []string         `json:"completed"`
	RolledBack    bool             `json:"rolled_back"`
	Compensation  *rollback.Result `json:"compensation,omitempty"`
}

func (e *Engine) acquire(ctx context.Context, database string) (catalog.Session, error) {
	sess, err := e.Store.Acquire(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("acquiring catalog session: %w", err)
	}
	return sess, nil
}

func prepare(req *schema.AlterColumnRequest) error {
	req.Normalize()
	return req.Validate()
}

// PreviewAlter computes the plan for req without executing it.
func (e *Engine) PreviewAlter(ctx context.Context, req schema.AlterColumnRequest) (*alter.Plan, error) {
	if err := prepare(&req); err != nil {
		return nil, err
	}
	sess, err := e.acquire(ctx, req.Database)
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	return alter.NewCoordinator(e.dialect, e.planner, e.Logger, nil).Preview(ctx, sess, req)
}

// AlterColumn converges one column to req.Desired. When the dialect supports
// transactional DDL and the config allows it, the whole plan runs in one
// transaction and a failure rolls every step back. Otherwise completed steps
// are compensated in reverse order on failure.
func (e *Engine) AlterColumn(ctx context.Context, req schema.AlterColumnRequest) (*AlterOutcome, error) {
	if err := prepare(&req); err != nil {
		metrics.RecordPlan(OutcomeRejected)
		return nil, err
	}
	sess, err := e.acquire(ctx, req.Database)
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	out := &AlterOutcome{
		Transactional: e.Config.Alter.UseTransaction() && e.dialect.TransactionalDDL(),
		Completed:     []string{},
	}

	var q catalog.Querier = sess
	var tx catalog.Tx
	if out.Transactional {
		tx, err = sess.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("beginning transaction: %w", err)
		}
		q = tx
	}

	start := time.Now()
	coord := alter.NewCoordinator(e.dialect, e.planner, e.Logger, e.observers)
	plan, err := coord.Apply(ctx, q, req)
	out.Plan = plan
	if plan != nil {
		out.Completed = plan.CompletedIDs()
		out.Fingerprint = plan.Fingerprint()
	}

	if err == nil && tx != nil {
		if cerr := tx.Commit(ctx); cerr != nil {
			err = fmt.Errorf("committing alteration: %w", cerr)
			tx = nil // a failed commit leaves nothing to roll back
			out.RolledBack = true
		}
	}

	if err != nil {
		outcome := e.recover(ctx, sess, tx, plan, out, err)
		metrics.RecordPlan(outcome)
		if plan != nil {
			plan.Outcome = outcome
			e.observers.PlanFinished(plan, err)
		}
		return out, err
	}

	e.Logger.Info("column altered", "plan_id", plan.ID, "table", plan.Table, "column", plan.Column,
		"steps", len(plan.Steps), "fingerprint", out.Fingerprint, "elapsed", time.Since(start))
	metrics.RecordPlan(OutcomeApplied)
	plan.Outcome = OutcomeApplied
	e.observers.PlanFinished(plan, nil)
	return out, nil
}

// recover undoes what it can after a failed plan and returns the outcome.
func (e *Engine) recover(ctx context.Context, sess catalog.Session, tx catalog.Tx, plan *alter.Plan, out *AlterOutcome, cause error) string {
	executed := plan != nil && plan.Executed > 0
	if tx != nil {
		if err := tx.Rollback(ctx); err != nil {
			e.Logger.Error("rolling back alteration", "error", err, "cause", cause)
			return OutcomeFailed
		}
		if !executed {
			return OutcomeRejected
		}
		out.RolledBack = true
		plan.Reverted = plan.CompletedIDs()
		return OutcomeRolledBack
	}
	if out.RolledBack {
		if plan != nil {
			plan.Reverted = plan.CompletedIDs()
		}
		return OutcomeRolledBack
	}
	if plan == nil {
		return OutcomeRejected
	}
	if !executed {
		return OutcomeFailed
	}
	if !e.Config.Alter.UseCompensation() {
		e.Logger.Warn("alteration left partially applied", "plan_id", plan.ID, "completed", plan.CompletedIDs())
		return OutcomeFailed
	}

	res, _ := rollback.New(sess, e.Logger).Execute(ctx, plan.CompletedSteps(), rollback.Options{})
	out.Compensation = res
	plan.Reverted = res.Compensated
	if !res.OK() {
		e.Logger.Error("compensation incomplete", "plan_id", plan.ID, "errors", res.Errors, "skipped", res.Skipped)
		return OutcomeFailed
	}
	out.RolledBack = true
	return OutcomeCompensated
}

// Undo runs the inverses of previously executed steps against database,
// newest first. Steps come from the journal of an earlier plan.
func (e *Engine) Undo(ctx context.Context, database string, steps []alter.Step, opts rollback.Options) (*rollback.Result, error) {
	sess, err := e.acquire(ctx, database)
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	res, err := rollback.New(sess, e.Logger).Execute(ctx, steps, opts)
	if err != nil {
		return nil, err
	}
	if !opts.DryRun {
		outcome := OutcomeCompensated
		if !res.OK() {
			outcome = OutcomeFailed
		}
		metrics.RecordPlan(outcome)
	}
	return res, nil
}

// PlanCreateTable renders the CREATE TABLE statement for spec.
func (e *Engine) PlanCreateTable(spec schema.TableCreateSpec) (dialect.Statement, error) {
	return e.tables.CreateTable(spec)
}

// CreateTable creates a table in database.
func (e *Engine) CreateTable(ctx context.Context, database string, spec schema.TableCreateSpec) (dialect.Statement, error) {
	st, err := e.tables.CreateTable(spec)
	if err != nil {
		return dialect.Statement{}, err
	}
	return st, e.execOne(ctx, database, st)
}

// AddColumn adds a column to table.
func (e *Engine) AddColumn(ctx context.Context, database, table string, col schema.ColumnSpec) (dialect.Statement, error) {
	st, err := e.tables.AddColumn(table, col)
	if err != nil {
		return dialect.Statement{}, err
	}
	return st, e.execOne(ctx, database, st)
}

// DropColumn removes a column from table.
func (e *Engine) DropColumn(ctx context.Context, database, table, column string) (dialect.Statement, error) {
	st, err := e.tables.DropColumn(table, column)
	if err != nil {
		return dialect.Statement{}, err
	}
	return st, e.execOne(ctx, database, st)
}

func (e *Engine) execOne(ctx context.Context, database string, st dialect.Statement) error {
	sess, err := e.acquire(ctx, database)
	if err != nil {
		return err
	}
	defer sess.Release()

	start := time.Now()
	err = sess.Exec(ctx, st)
	metrics.RecordStep(st.Tag, "", err, time.Since(start))
	if err != nil {
		e.Logger.Error("statement failed", "database", database, "sql", st.Text, "error", err)
		return fmt.Errorf("executing %s: %w", st.Tag, err)
	}
	e.Logger.Debug("executed statement", "database", database, "sql", st.Text)
	return nil
}

// ListDatabases lists the user databases on the server.
func (e *Engine) ListDatabases(ctx context.Context) ([]catalog.DatabaseInfo, error) {
	sess, err := e.acquire(ctx, "")
	if err != nil {
		return nil, err
	}
	defer sess.Release()
	return catalog.ListDatabases(ctx, sess, e.dialect)
}

// ListTables lists the base tables of database.
func (e *Engine) ListTables(ctx context.Context, database string) ([]catalog.TableInfo, error) {
	sess, err := e.acquire(ctx, database)
	if err != nil {
		return nil, err
	}
	defer sess.Release()
	return catalog.ListTables(ctx, sess, e.dialect)
}

// DescribeTable returns the column structure of table.
func (e *Engine) DescribeTable(ctx context.Context, database, table string) ([]catalog.ColumnInfo, error) {
	sess, err := e.acquire(ctx, database)
	if err != nil {
		return nil, err
	}
	defer sess.Release()
	return catalog.DescribeTable(ctx, sess, e.dialect, table)
}

type metricsObserver struct{}

func (metricsObserver) StepStarted(*alter.Plan, alter.Step) {}

func (metricsObserver) StepFinished(_ *alter.Plan, step alter.Step, err error, elapsed time.Duration) {
	metrics.RecordStep(step.Action, string(step.Kind), err, elapsed)
}

func (metricsObserver) PlanFinished(*alter.Plan, error) {}
