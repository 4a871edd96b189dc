package alter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/senomardetritos/sgbd-sqlserver/internal/catalog"
	"github.com/senomardetritos/sgbd-sqlserver/internal/constraint"
	"github.com/senomardetritos/sgbd-sqlserver/internal/dialect"
	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

// Options tunes planning.
type Options struct {
	// StrictResolution aborts planning when a lookup matches more than one
	// constraint instead of warning and using the first.
	StrictResolution bool
	// SkipUnchangedType omits the type step when type, size and nullability
	// are identical before and after.
	SkipUnchangedType bool
}

// Planner builds alteration plans.
type Planner struct {
	dialect  dialect.Dialect
	resolver *constraint.Resolver
	opts     Options
	logger   *slog.Logger
}

// NewPlanner creates a planner rendering statements with d.
func NewPlanner(d dialect.Dialect, opts Options, logger *slog.Logger) *Planner {
	return &Planner{dialect: d, resolver: constraint.NewResolver(d), opts: opts, logger: logger}
}

// Plan computes the steps converging table.column from before to after.
// The type step comes first, then Default, Unique and PrimaryKey steps, each
// emitted only when that kind changed.
func (p *Planner) Plan(ctx context.Context, q catalog.Querier, table, column string, before, after schema.ColumnSpec) (*Plan, error) {
	plan := newPlan("", table, column)
	if err := p.appendSteps(ctx, q, plan, column, before, after); err != nil {
		return nil, err
	}
	return plan, nil
}

// appendSteps adds the type and constraint steps to plan. Constraints are
// looked up under lookupColumn while statements address plan.Column; the two
// differ when previewing a rename that has not run yet.
func (p *Planner) appendSteps(ctx context.Context, q catalog.Querier, plan *Plan, lookupColumn string, before, after schema.ColumnSpec) error {
	table, column := plan.Table, plan.Column

	if !(p.opts.SkipUnchangedType && schema.SameType(before, after)) {
		st, err := p.dialect.AlterType(table, column, before, after)
		if err != nil {
			return fmt.Errorf("rendering type step: %w", err)
		}
		step := Step{ID: "type", Action: ActionAlterType, Table: table, Column: column, Statement: st}
		if inv, err := p.dialect.AlterType(table, column, after, before); err == nil {
			step.Inverse = &inv
		}
		plan.Steps = append(plan.Steps, step)
	}

	for _, kind := range schema.ConstraintKinds {
		if !kind.Changed(before, after) {
			continue
		}

		desc, err := p.resolver.Resolve(ctx, q, table, lookupColumn, kind)
		var amb *constraint.AmbiguousError
		switch {
		case errors.As(err, &amb):
			if p.opts.StrictResolution {
				return err
			}
			p.logger.Warn("ambiguous constraint resolution, using first match",
				"plan_id", plan.ID, "kind", kind, "table", table, "column", lookupColumn,
				"candidates", amb.Identifiers, "chosen", desc.Identifier)
			plan.Warnings = append(plan.Warnings, amb.Error())
		case err != nil:
			return err
		}
		desc.Column = column

		if desc.Exists() {
			step, err := p.dropStep(desc, before)
			if err != nil {
				return err
			}
			plan.Steps = append(plan.Steps, step)
		}

		if kind.Wanted(after) {
			// An existing constraint keeps its name; otherwise use the convention.
			if !desc.Exists() {
				desc.Identifier = constraint.Synthesize(table, column, kind)
			}
			step, err := p.addStep(desc, after.DefaultValue)
			if err != nil {
				return err
			}
			plan.Steps = append(plan.Steps, step)
		}
	}
	return nil
}

func (p *Planner) dropStep(desc schema.ConstraintDescriptor, before schema.ColumnSpec) (Step, error) {
	st, err := p.dialect.DropConstraint(desc)
	if err != nil {
		return Step{}, fmt.Errorf("rendering drop of %s: %w", desc.Identifier, err)
	}
	step := Step{
		ID:         dialect.DropTag(desc.Kind),
		Action:     ActionDrop,
		Kind:       desc.Kind,
		Table:      desc.Table,
		Column:     desc.Column,
		Constraint: desc.Identifier,
		Statement:  st,
	}
	// The dropped default's value is only known from the caller's prior shape.
	if desc.Kind != schema.KindDefault || before.DefaultValue != "" {
		if inv, err := p.dialect.AddConstraint(desc, before.DefaultValue); err == nil {
			step.Inverse = &inv
		}
	}
	return step, nil
}

func (p *Planner) addStep(desc schema.ConstraintDescriptor, value string) (Step, error) {
	st, err := p.dialect.AddConstraint(desc, value)
	if err != nil {
		return Step{}, fmt.Errorf("rendering add of %s: %w", desc.Identifier, err)
	}
	step := Step{
		ID:         dialect.AddTag(desc.Kind),
		Action:     ActionAdd,
		Kind:       desc.Kind,
		Table:      desc.Table,
		Column:     desc.Column,
		Constraint: desc.Identifier,
		Statement:  st,
	}
	if inv, err := p.dialect.DropConstraint(desc); err == nil {
		step.Inverse = &inv
	}
	return step, nil
}
