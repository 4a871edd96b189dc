// Package alter converges a column from its current shape to a desired one.
// The Planner resolves existing constraints and emits an ordered Plan; the
// Coordinator handles renames and executes plans step by step.
package alter

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"github.com/senomardetritos/sgbd-sqlserver/internal/dialect"
	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

// Step actions.
const (
	ActionRename    = "rename"
	ActionAlterType = "alter_type"
	ActionDrop      = "drop"
	ActionAdd       = "add"
)

// Step is one independently executable statement of a plan.
type Step struct {
	ID         string                `json:"id" yaml:"id"`
	Action     string                `json:"action" yaml:"action"`
	Kind       schema.ConstraintKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Table      string                `json:"table" yaml:"table"`
	Column     string                `json:"column" yaml:"column"`
	Constraint string                `json:"constraint,omitempty" yaml:"constraint,omitempty"`
	Statement  dialect.Statement     `json:"statement" yaml:"statement"`
	// Inverse undoes the step; nil when it cannot be derived.
	Inverse *dialect.Statement `json:"inverse,omitempty" yaml:"inverse,omitempty"`
}

// Plan is the ordered sequence of steps for one column alteration.
type Plan struct {
	ID       uuid.UUID `json:"id" yaml:"id"`
	Database string    `json:"database,omitempty" yaml:"database,omitempty"`
	Table    string    `json:"table" yaml:"table"`
	// Column is the column's name once the plan has run.
	Column string `json:"column" yaml:"column"`
	// RenamedFrom is set when the plan starts with a rename.
	RenamedFrom string   `json:"renamed_from,omitempty" yaml:"renamed_from,omitempty"`
	Steps       []Step   `json:"steps" yaml:"steps"`
	Warnings    []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	// Executed counts the leading steps that completed.
	Executed int `json:"executed" yaml:"executed"`
	// Outcome is set by the executor before PlanFinished.
	Outcome string `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	// Reverted lists completed steps whose effect was undone again.
	Reverted []string `json:"reverted,omitempty" yaml:"reverted,omitempty"`
}

func newPlan(database, table, column string) *Plan {
	return &Plan{ID: uuid.New(), Database: database, Table: table, Column: column}
}

// Fingerprint hashes the plan's statements. Two plans with the same
// statements in the same order share a fingerprint regardless of their ids.
func (p *Plan) Fingerprint() string {
	var b strings.Builder
	for _, s := range p.Steps {
		b.WriteString(s.Statement.Text)
		b.WriteByte(0)
		for _, a := range s.Statement.Args {
			fmt.Fprint(&b, a)
			b.WriteByte(0x1f)
		}
		b.WriteByte(0x1e)
	}
	return fmt.Sprintf("%016x", xxh3.Hash([]byte(b.String())))
}

// StepIDs lists the ids of all steps.
func (p *Plan) StepIDs() []string {
	ids := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		ids[i] = s.ID
	}
	return ids
}

// CompletedSteps returns the steps that executed successfully.
func (p *Plan) CompletedSteps() []Step {
	return p.Steps[:p.Executed]
}

// CompletedIDs lists the ids of the steps that executed successfully.
func (p *Plan) CompletedIDs() []string {
	ids := make([]string, 0, p.Executed)
	for _, s := range p.CompletedSteps() {
		ids = append(ids, s.ID)
	}
	return ids
}

// ConstraintSteps returns the steps that drop or add constraints.
func (p *Plan) ConstraintSteps() []Step {
	var out []Step
	for _, s := range p.Steps {
		if s.Action == ActionDrop || s.Action == ActionAdd {
			out = append(out, s)
		}
	}
	return out
}
