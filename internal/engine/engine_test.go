package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/senomardetritos/sgbd-sqlserver/internal/alter"
	"github.com/senomardetritos/sgbd-sqlserver/internal/catalog"
	"github.com/senomardetritos/sgbd-sqlserver/internal/config"
	"github.com/senomardetritos/sgbd-sqlserver/internal/dialect"
	"github.com/senomardetritos/sgbd-sqlserver/internal/journal"
	"github.com/senomardetritos/sgbd-sqlserver/internal/metrics"
	"github.com/senomardetritos/sgbd-sqlserver/internal/rollback"
	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func boolPtr(b bool) *bool { return &b }

type planRecorder struct {
	mu       sync.Mutex
	steps    []string
	finished []error
}

func (r *planRecorder) StepStarted(*alter.Plan, alter.Step) {}

func (r *planRecorder) StepFinished(_ *alter.Plan, step alter.Step, _ error, _ time.Duration) {
	r.mu.Lock()
	r.steps = append(r.steps, step.ID)
	r.mu.Unlock()
}

func (r *planRecorder) PlanFinished(_ *alter.Plan, err error) {
	r.mu.Lock()
	r.finished = append(r.finished, err)
	r.mu.Unlock()
}

type fakeBackend struct {
	mu    sync.Mutex
	plans []string
	steps int
}

func (f *fakeBackend) IncCounter(name string, _ float64, labels metrics.Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch name {
	case metrics.PlansTotal:
		f.plans = append(f.plans, labels["outcome"])
	case metrics.StepTotal:
		f.steps++
	}
}

func (f *fakeBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (f *fakeBackend) Flush() error                                     { return nil }

func newEngine(cfg *config.Config, m *catalog.Mock) (*Engine, *planRecorder) {
	if cfg == nil {
		cfg = &config.Config{Version: 1}
	}
	rec := &planRecorder{}
	return New(cfg, m, testLogger(), rec), rec
}

func ageRequest() schema.AlterColumnRequest {
	return schema.AlterColumnRequest{
		Database: "shop",
		Table:    "users",
		Prior:    schema.ColumnSpec{Name: "age", DataType: "INT"},
		Desired:  schema.ColumnSpec{Name: "age", DataType: "INT", DefaultValue: "18", Unique: true},
	}
}

func TestAlterColumnCommitsTransaction(t *testing.T) {
	fb := &fakeBackend{}
	metrics.SetBackend(fb)

	m := &catalog.Mock{}
	e, rec := newEngine(nil, m)

	out, err := e.AlterColumn(context.Background(), ageRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Transactional || m.Began != 1 || m.Committed != 1 || m.RolledBack != 0 {
		t.Errorf("transaction: out=%+v began=%d committed=%d rolledback=%d", out, m.Began, m.Committed, m.RolledBack)
	}
	if want := []string{"type", "add:default", "add:unique"}; !reflect.DeepEqual(out.Completed, want) {
		t.Errorf("completed = %v, want %v", out.Completed, want)
	}
	if out.Fingerprint == "" || out.Fingerprint != out.Plan.Fingerprint() {
		t.Errorf("fingerprint = %q", out.Fingerprint)
	}
	if !reflect.DeepEqual(m.Databases, []string{"shop"}) || m.Released != 1 {
		t.Errorf("sessions: databases=%v released=%d", m.Databases, m.Released)
	}
	if len(rec.finished) != 1 || rec.finished[0] != nil {
		t.Errorf("PlanFinished calls = %v", rec.finished)
	}
	if !reflect.DeepEqual(fb.plans, []string{OutcomeApplied}) || fb.steps != 3 {
		t.Errorf("metrics: plans=%v steps=%d", fb.plans, fb.steps)
	}
}

func TestAlterColumnRollsBackTransactionOnFailure(t *testing.T) {
	boom := errors.New("duplicate key")
	m := &catalog.Mock{ExecErrs: map[string]error{"UNIQUE": boom}}
	e, rec := newEngine(nil, m)

	out, err := e.AlterColumn(context.Background(), ageRequest())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped step error, got %v", err)
	}
	var sf *alter.StepFailedError
	if !errors.As(err, &sf) || sf.Step.ID != "add:unique" {
		t.Fatalf("expected StepFailedError on add:unique, got %v", err)
	}
	if m.RolledBack != 1 || m.Committed != 0 {
		t.Errorf("rolledback=%d committed=%d", m.RolledBack, m.Committed)
	}
	if !out.RolledBack || out.Compensation != nil {
		t.Errorf("outcome = %+v", out)
	}
	want := []string{"type", "add:default"}
	if !reflect.DeepEqual(out.Completed, want) {
		t.Errorf("completed = %v, want %v", out.Completed, want)
	}
	if len(rec.finished) != 1 || rec.finished[0] == nil {
		t.Errorf("PlanFinished should report the failure, got %v", rec.finished)
	}
	if out.Plan.Outcome != OutcomeRolledBack || !reflect.DeepEqual(out.Plan.Reverted, want) {
		t.Errorf("plan outcome = %q reverted = %v", out.Plan.Outcome, out.Plan.Reverted)
	}
}

func TestAlterColumnCompensatesWithoutTransaction(t *testing.T) {
	boom := errors.New("duplicate key")
	m := &catalog.Mock{ExecErrs: map[string]error{"UNIQUE": boom}}
	cfg := &config.Config{Version: 1, Alter: config.AlterConfig{Transactional: boolPtr(false)}}
	e, _ := newEngine(cfg, m)

	out, err := e.AlterColumn(context.Background(), ageRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if out.Transactional || m.Began != 0 {
		t.Errorf("no transaction expected: %+v began=%d", out, m.Began)
	}
	if out.Compensation == nil {
		t.Fatal("expected a compensation result")
	}
	if want := []string{"add:default", "type"}; !reflect.DeepEqual(out.Compensation.Compensated, want) {
		t.Errorf("compensated = %v, want %v", out.Compensation.Compensated, want)
	}
	if !out.RolledBack {
		t.Error("successful compensation should mark the outcome rolled back")
	}
	wantTags := []string{dialect.TagAlterType, "add:default", "drop:default", dialect.TagAlterType}
	if got := m.ExecutedTags(); !reflect.DeepEqual(got, wantTags) {
		t.Errorf("executed = %v, want %v", got, wantTags)
	}
}

type entrySink struct {
	entries []journal.Entry
}

func (s *entrySink) Write(_ context.Context, entries []journal.Entry) error {
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *entrySink) Close(context.Context) error { return nil }

func TestJournaledRevertedPlanCannotBeUndoneAgain(t *testing.T) {
	tests := []struct {
		name          string
		transactional bool
		status        string
	}{
		{"transaction rollback", true, journal.StatusRolledBack},
		{"compensation", false, journal.StatusCompensated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &catalog.Mock{ExecErrs: map[string]error{"UNIQUE": errors.New("duplicate key")}}
			cfg := &config.Config{Version: 1, Alter: config.AlterConfig{Transactional: boolPtr(tt.transactional)}}
			sink := &entrySink{}
			e := New(cfg, m, testLogger(), journal.New(sink, testLogger()))

			out, err := e.AlterColumn(context.Background(), ageRequest())
			if err == nil || !out.RolledBack {
				t.Fatalf("expected a reverted failure, got %+v, %v", out, err)
			}
			closing := sink.entries[len(sink.entries)-1]
			if closing.Action != journal.ActionPlan || closing.Status != tt.status {
				t.Errorf("closing entry = %+v, want status %s", closing, tt.status)
			}

			steps, _, err := journal.StepsFor(sink.entries, out.Plan.ID.String())
			if !errors.Is(err, journal.ErrReverted) || len(steps) != 0 {
				t.Errorf("StepsFor = %+v, %v; want ErrReverted", steps, err)
			}
		})
	}
}

func TestAlterColumnLeavesPartialStateWhenCompensationDisabled(t *testing.T) {
	m := &catalog.Mock{ExecErrs: map[string]error{"UNIQUE": errors.New("boom")}}
	cfg := &config.Config{Version: 1, Alter: config.AlterConfig{
		Transactional: boolPtr(false),
		Compensate:    boolPtr(false),
	}}
	e, _ := newEngine(cfg, m)

	out, err := e.AlterColumn(context.Background(), ageRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if out.RolledBack || out.Compensation != nil {
		t.Errorf("outcome = %+v", out)
	}
	if got := alter.Completed(err); !reflect.DeepEqual(got, []string{"type", "add:default"}) {
		t.Errorf("completed in error = %v", got)
	}
}

func TestAlterColumnNonTransactionalDialect(t *testing.T) {
	m := &catalog.Mock{D: dialect.Oracle{}}
	e, _ := newEngine(nil, m)

	out, err := e.AlterColumn(context.Background(), ageRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Transactional || m.Began != 0 {
		t.Errorf("oracle DDL must not run in a transaction: %+v", out)
	}
}

func TestAlterColumnRejectsInvalidRequest(t *testing.T) {
	m := &catalog.Mock{}
	e, rec := newEngine(nil, m)

	req := ageRequest()
	req.Table = " "
	_, err := e.AlterColumn(context.Background(), req)
	if !errors.Is(err, schema.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if len(m.Databases) != 0 || len(rec.finished) != 0 {
		t.Error("invalid requests must not reach the catalog")
	}
}

func TestAlterColumnFingerprintMismatch(t *testing.T) {
	m := &catalog.Mock{}
	e, rec := newEngine(nil, m)

	req := ageRequest()
	req.ExpectedFingerprint = "0000000000000000"
	out, err := e.AlterColumn(context.Background(), req)
	if !errors.Is(err, alter.ErrPlanChanged) {
		t.Fatalf("expected ErrPlanChanged, got %v", err)
	}
	if len(m.Executed) != 0 || out.RolledBack || len(out.Completed) != 0 {
		t.Errorf("nothing should execute: executed=%v out=%+v", m.Executed, out)
	}
	if len(rec.finished) != 0 {
		t.Error("a rejected plan has no PlanFinished event")
	}
}

func TestPreviewAlterThenApplyWithFingerprint(t *testing.T) {
	m := &catalog.Mock{Constraints: map[schema.ConstraintKind][]string{
		schema.KindUnique: {"UQ_old"},
	}}
	e, _ := newEngine(nil, m)

	req := schema.AlterColumnRequest{
		Table:   "users",
		Prior:   schema.ColumnSpec{Name: "mail", DataType: "VARCHAR", Size: "100", Unique: true},
		Desired: schema.ColumnSpec{Name: "email", DataType: "VARCHAR", Size: "100"},
	}
	plan, err := e.PreviewAlter(context.Background(), req)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if want := []string{"rename", "type", "drop:unique"}; !reflect.DeepEqual(plan.StepIDs(), want) {
		t.Fatalf("preview steps = %v, want %v", plan.StepIDs(), want)
	}
	if len(m.Executed) != 0 {
		t.Fatal("preview must not execute")
	}

	req.ExpectedFingerprint = plan.Fingerprint()
	out, err := e.AlterColumn(context.Background(), req)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if want := []string{dialect.TagRename, dialect.TagAlterType, "drop:unique"}; !reflect.DeepEqual(m.ExecutedTags(), want) {
		t.Errorf("executed = %v, want %v", m.ExecutedTags(), want)
	}
	if out.Plan.RenamedFrom != "mail" || out.Plan.Column != "email" {
		t.Errorf("plan = %+v", out.Plan)
	}
}

func TestTableOperations(t *testing.T) {
	m := &catalog.Mock{}
	e, _ := newEngine(nil, m)
	ctx := context.Background()

	spec := schema.TableCreateSpec{Table: "orders", Columns: []schema.TableColumn{
		{ColumnSpec: schema.ColumnSpec{Name: "id", DataType: "INT"}, Increment: true},
		{ColumnSpec: schema.ColumnSpec{Name: "total", DataType: "DECIMAL", Size: "10,2"}},
	}}
	if _, err := e.CreateTable(ctx, "shop", spec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.AddColumn(ctx, "shop", "orders", schema.ColumnSpec{Name: "note", DataType: "VARCHAR", Size: "200", Nullable: true}); err != nil {
		t.Fatalf("add column: %v", err)
	}
	if _, err := e.DropColumn(ctx, "shop", "orders", "note"); err != nil {
		t.Fatalf("drop column: %v", err)
	}

	want := []string{dialect.TagCreateTable, dialect.TagAddColumn, dialect.TagDropColumn}
	if got := m.ExecutedTags(); !reflect.DeepEqual(got, want) {
		t.Errorf("executed = %v, want %v", got, want)
	}
	if m.Released != 3 {
		t.Errorf("released = %d, want 3", m.Released)
	}

	if _, err := e.CreateTable(ctx, "shop", schema.TableCreateSpec{Table: "empty"}); !errors.Is(err, schema.ErrInvalid) {
		t.Errorf("expected ErrInvalid for a table without columns, got %v", err)
	}
}

func TestTableOperationFailureIsWrapped(t *testing.T) {
	boom := errors.New("table exists")
	m := &catalog.Mock{ExecErrs: map[string]error{dialect.TagCreateTable: boom}}
	e, _ := newEngine(nil, m)

	spec := schema.TableCreateSpec{Table: "orders", Columns: []schema.TableColumn{
		{ColumnSpec: schema.ColumnSpec{Name: "id", DataType: "INT"}},
	}}
	st, err := e.CreateTable(context.Background(), "", spec)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if st.Tag != dialect.TagCreateTable {
		t.Errorf("statement should still be returned, got %+v", st)
	}
}

func TestBrowse(t *testing.T) {
	m := &catalog.Mock{Results: map[string]*catalog.Result{
		dialect.TagListDatabases: {Columns: []string{"database_id", "name"}, Rows: [][]any{{int64(5), "shop"}}},
		dialect.TagListTables:    {Columns: []string{"table_name"}, Rows: [][]any{{"users"}, {"orders"}}},
		dialect.TagDescribeTable: {
			Columns: []string{"name", "type", "default_value", "size", "precision", "is_null", "is_unique", "is_primary", "is_identity"},
			Rows:    [][]any{{"id", "int", nil, nil, int64(10), "NO", "NO", "YES", "YES"}},
		},
	}}
	e, _ := newEngine(nil, m)
	ctx := context.Background()

	dbs, err := e.ListDatabases(ctx)
	if err != nil || len(dbs) != 1 || dbs[0].Name != "shop" {
		t.Errorf("databases = %+v, %v", dbs, err)
	}
	tables, err := e.ListTables(ctx, "shop")
	if err != nil || len(tables) != 2 || tables[1].Name != "orders" {
		t.Errorf("tables = %+v, %v", tables, err)
	}
	cols, err := e.DescribeTable(ctx, "shop", "users")
	if err != nil || len(cols) != 1 {
		t.Fatalf("columns = %+v, %v", cols, err)
	}
	if !cols[0].Primary || !cols[0].Identity || cols[0].Nullable || cols[0].DataType != "INT" {
		t.Errorf("column = %+v", cols[0])
	}
	if !reflect.DeepEqual(m.Databases, []string{"", "shop", "shop"}) {
		t.Errorf("databases acquired = %v", m.Databases)
	}
}

func TestDescribedDefaultRoundTripsThroughAlter(t *testing.T) {
	m := &catalog.Mock{
		Constraints: map[schema.ConstraintKind][]string{
			schema.KindDefault: {"DF__users__age__5AEE82B9"},
		},
		Results: map[string]*catalog.Result{
			dialect.TagDescribeTable: {
				Columns: []string{"name", "type", "default_value", "size", "precision", "is_null", "is_unique", "is_primary", "is_identity"},
				Rows:    [][]any{{"age", "int", "('18')", nil, int64(10), "YES", "NO", "NO", "NO"}},
			},
		},
	}
	e, _ := newEngine(nil, m)
	ctx := context.Background()

	cols, err := e.DescribeTable(ctx, "shop", "users")
	if err != nil || len(cols) != 1 {
		t.Fatalf("columns = %+v, %v", cols, err)
	}
	prior := cols[0].ColumnSpec
	if prior.DefaultValue != "18" {
		t.Fatalf("described default = %q, want 18", prior.DefaultValue)
	}

	desired := prior
	desired.DefaultValue = "20"
	plan, err := e.PreviewAlter(ctx, schema.AlterColumnRequest{Database: "shop", Table: "users", Prior: prior, Desired: desired})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	var inverse string
	for _, st := range plan.Steps {
		if st.ID == "drop:default" && st.Inverse != nil {
			inverse = st.Inverse.Text
		}
	}
	if !strings.Contains(inverse, "DEFAULT '18'") {
		t.Errorf("drop:default inverse = %q, want it to restore DEFAULT '18'", inverse)
	}

	plan, err = e.PreviewAlter(ctx, schema.AlterColumnRequest{Database: "shop", Table: "users", Prior: prior, Desired: prior})
	if err != nil {
		t.Fatalf("preview unchanged: %v", err)
	}
	for _, id := range plan.StepIDs() {
		if id == "drop:default" || id == "add:default" {
			t.Errorf("resubmitting the described default should plan nothing, got %v", plan.StepIDs())
		}
	}
}

func TestAcquireFailure(t *testing.T) {
	m := &catalog.Mock{AcquireErr: errors.New("login failed")}
	e, _ := newEngine(nil, m)
	if _, err := e.ListTables(context.Background(), "shop"); err == nil {
		t.Fatal("expected error")
	}
	if err := e.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
}

func TestUndoRunsInversesNewestFirst(t *testing.T) {
	m := &catalog.Mock{}
	e, _ := newEngine(nil, m)

	inv1 := dialect.Statement{Text: "undo type", Tag: "undo_type"}
	inv2 := dialect.Statement{Text: "undo default", Tag: "undo_default"}
	steps := []alter.Step{
		{ID: "type", Action: alter.ActionAlterType, Inverse: &inv1},
		{ID: "add:default", Action: alter.ActionAdd, Kind: schema.KindDefault, Inverse: &inv2},
	}

	res, err := e.Undo(context.Background(), "shop", steps, rollback.Options{})
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if !reflect.DeepEqual(res.Compensated, []string{"add:default", "type"}) {
		t.Errorf("compensated = %v", res.Compensated)
	}
	if !reflect.DeepEqual(m.ExecutedTags(), []string{"undo_default", "undo_type"}) {
		t.Errorf("executed = %v", m.ExecutedTags())
	}
	if !reflect.DeepEqual(m.Databases, []string{"shop"}) {
		t.Errorf("databases = %v", m.Databases)
	}
}

func TestUndoDryRunExecutesNothing(t *testing.T) {
	m := &catalog.Mock{}
	e, _ := newEngine(nil, m)

	inv := dialect.Statement{Text: "undo", Tag: "undo"}
	res, err := e.Undo(context.Background(), "", []alter.Step{{ID: "type", Inverse: &inv}}, rollback.Options{DryRun: true})
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if len(res.Statements) != 1 || len(m.Executed) != 0 {
		t.Errorf("statements = %v, executed = %v", res.Statements, m.Executed)
	}
}
