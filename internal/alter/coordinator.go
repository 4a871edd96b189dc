package alter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/senomardetritos/sgbd-sqlserver/internal/catalog"
	"github.com/senomardetritos/sgbd-sqlserver/internal/dialect"
	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

// RenameState tracks the rename phase of an alteration.
type RenameState int

const (
	NotRenaming RenameState = iota
	Renaming
	Renamed
	RenameFailed
)

func (s RenameState) String() string {
	switch s {
	case NotRenaming:
		return "not_renaming"
	case Renaming:
		return "renaming"
	case Renamed:
		return "renamed"
	case RenameFailed:
		return "rename_failed"
	default:
		return fmt.Sprintf("RenameState(%d)", int(s))
	}
}

// Observer receives execution progress. PlanFinished is called by whoever
// owns the transaction boundary, once the plan's outcome is final.
type Observer interface {
	StepStarted(plan *Plan, step Step)
	StepFinished(plan *Plan, step Step, err error, elapsed time.Duration)
	PlanFinished(plan *Plan, err error)
}

// Observers fans events out to several observers.
type Observers []Observer

func (o Observers) StepStarted(plan *Plan, step Step) {
	for _, obs := range o {
		obs.StepStarted(plan, step)
	}
}

func (o Observers) StepFinished(plan *Plan, step Step, err error, elapsed time.Duration) {
	for _, obs := range o {
		obs.StepFinished(plan, step, err, elapsed)
	}
}

func (o Observers) PlanFinished(plan *Plan, err error) {
	for _, obs := range o {
		obs.PlanFinished(plan, err)
	}
}

// Coordinator applies alteration requests, renaming first when the desired
// name differs so that constraint lookups see the column's current name.
type Coordinator struct {
	dialect  dialect.Dialect
	planner  *Planner
	logger   *slog.Logger
	observer Observer
}

// NewCoordinator creates a coordinator. observer may be nil.
func NewCoordinator(d dialect.Dialect, planner *Planner, logger *slog.Logger, observer Observer) *Coordinator {
	if observer == nil {
		observer = Observers(nil)
	}
	return &Coordinator{dialect: d, planner: planner, logger: logger, observer: observer}
}

// Preview builds the full plan for req without executing anything. For a
// rename, constraints are resolved under the current name while every step
// after the rename addresses the new one.
func (c *Coordinator) Preview(ctx context.Context, q catalog.Querier, req schema.AlterColumnRequest) (*Plan, error) {
	plan := newPlan(req.Database, req.Table, req.Desired.Name)
	if req.Renaming() {
		step, err := c.renameStep(req)
		if err != nil {
			return nil, err
		}
		plan.RenamedFrom = req.Prior.Name
		plan.Steps = append(plan.Steps, step)
	}
	if err := c.planner.appendSteps(ctx, q, plan, req.Prior.Name, req.Prior, req.Desired); err != nil {
		return nil, err
	}
	return plan, nil
}

// Apply executes req against q, stopping at the first failing step. The
// returned plan is non-nil whenever any step was attempted and records how
// many steps completed.
func (c *Coordinator) Apply(ctx context.Context, q catalog.Querier, req schema.AlterColumnRequest) (*Plan, error) {
	if req.ExpectedFingerprint != "" {
		preview, err := c.Preview(ctx, q, req)
		if err != nil {
			return nil, err
		}
		if got := preview.Fingerprint(); got != req.ExpectedFingerprint {
			return nil, fmt.Errorf("%w: expected %s, planned %s", ErrPlanChanged, req.ExpectedFingerprint, got)
		}
	}

	plan := newPlan(req.Database, req.Table, req.Desired.Name)
	state := NotRenaming

	if req.Renaming() {
		step, err := c.renameStep(req)
		if err != nil {
			return nil, err
		}
		plan.RenamedFrom = req.Prior.Name
		plan.Steps = append(plan.Steps, step)

		state = Renaming
		if err := c.execute(ctx, q, plan, step); err != nil {
			state = RenameFailed
			c.logger.Error("rename failed", "plan_id", plan.ID, "table", req.Table,
				"from", req.Prior.Name, "to", req.Desired.Name, "state", state, "error", err)
			return plan, &RenameFailedError{From: req.Prior.Name, To: req.Desired.Name, Err: err}
		}
		plan.Executed++
		state = Renamed
	}

	c.logger.Debug("planning alteration", "plan_id", plan.ID, "table", req.Table,
		"column", plan.Column, "rename_state", state)

	first := len(plan.Steps)
	if err := c.planner.appendSteps(ctx, q, plan, plan.Column, req.Prior, req.Desired); err != nil {
		if plan.Executed > 0 {
			return plan, &StepFailedError{
				Step:      Step{ID: "resolve", Table: plan.Table, Column: plan.Column},
				Completed: plan.CompletedIDs(),
				Err:       err,
			}
		}
		return nil, err
	}

	for _, step := range plan.Steps[first:] {
		if err := c.execute(ctx, q, plan, step); err != nil {
			c.logger.Error("alteration step failed", "plan_id", plan.ID, "step", step.ID,
				"kind", step.Kind, "column", step.Column, "error", err)
			return plan, &StepFailedError{Step: step, Completed: plan.CompletedIDs(), Err: err}
		}
		plan.Executed++
	}
	return plan, nil
}

func (c *Coordinator) renameStep(req schema.AlterColumnRequest) (Step, error) {
	st, err := c.dialect.RenameColumn(req.Table, req.Prior.Name, req.Desired.Name)
	if err != nil {
		return Step{}, err
	}
	step := Step{
		ID:        "rename",
		Action:    ActionRename,
		Table:     req.Table,
		Column:    req.Prior.Name,
		Statement: st,
	}
	if inv, err := c.dialect.RenameColumn(req.Table, req.Desired.Name, req.Prior.Name); err == nil {
		step.Inverse = &inv
	}
	return step, nil
}

func (c *Coordinator) execute(ctx context.Context, q catalog.Querier, plan *Plan, step Step) error {
	c.observer.StepStarted(plan, step)
	start := time.Now()
	err := q.Exec(ctx, step.Statement)
	elapsed := time.Since(start)
	c.logger.Debug("executed statement", "plan_id", plan.ID, "step", step.ID, "kind", step.Kind,
		"column", step.Column, "sql", step.Statement.Text, "elapsed", elapsed, "ok", err == nil)
	c.observer.StepFinished(plan, step, err, elapsed)
	return err
}
