package rollback

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/senomardetritos/sgbd-sqlserver/internal/alter"
	"github.com/senomardetritos/sgbd-sqlserver/internal/catalog"
	"github.com/senomardetritos/sgbd-sqlserver/internal/dialect"
)

// Rollback compensates the completed steps of a plan that failed midway
// without a transaction to protect it.
type Rollback struct {
	q      catalog.Querier
	logger *slog.Logger
}

// Options controls what gets compensated.
type Options struct {
	Steps  []string // empty = every completed step
	DryRun bool
}

// Result holds the outcome of a compensation run.
type Result struct {
	Compensated []string            `json:"compensated" yaml:"compensated"`
	Skipped     []string            `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Statements  []dialect.Statement `json:"statements,omitempty" yaml:"statements,omitempty"`
	Errors      []string            `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// OK reports whether every inverse ran.
func (r *Result) OK() bool { return len(r.Errors) == 0 && len(r.Skipped) == 0 }

// New creates a compensation runner executing on q.
func New(q catalog.Querier, logger *slog.Logger) *Rollback {
	return &Rollback{q: q, logger: logger}
}

// Derive returns the steps to undo, newest first.
func Derive(completed []alter.Step, opts Options) []alter.Step {
	out := make([]alter.Step, 0, len(completed))
	for i := len(completed) - 1; i >= 0; i-- {
		s := completed[i]
		if len(opts.Steps) > 0 && !slices.Contains(opts.Steps, s.ID) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Execute runs the inverse of each completed step in reverse order. Each
// inverse is attempted even if a prior one fails; failures are collected.
func (r *Rollback) Execute(ctx context.Context, completed []alter.Step, opts Options) (*Result, error) {
	result := &Result{}

	for _, step := range Derive(completed, opts) {
		if step.Inverse == nil {
			result.Skipped = append(result.Skipped, step.ID)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: no inverse statement", step.ID))
			continue
		}
		result.Statements = append(result.Statements, *step.Inverse)
		if opts.DryRun {
			continue
		}
		if err := r.q.Exec(ctx, *step.Inverse); err != nil {
			r.logger.Error("compensation failed", "step", step.ID, "sql", step.Inverse.Text, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", step.ID, err))
			continue
		}
		r.logger.Info("compensated step", "step", step.ID, "column", step.Column)
		result.Compensated = append(result.Compensated, step.ID)
	}

	return result, nil
}
