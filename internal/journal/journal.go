// Package journal records every executed plan step together with its inverse
// statement, so partially applied alterations can be audited and reverted.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/senomardetritos/sgbd-sqlserver/internal/alter"
	"github.com/senomardetritos/sgbd-sqlserver/internal/config"
	"github.com/senomardetritos/sgbd-sqlserver/internal/dialect"
	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

// Entry statuses.
const (
	StatusExecuted = "executed"
	StatusFailed   = "failed"
	StatusApplied     = "applied"
	StatusAborted     = "aborted"
	StatusRolledBack  = "rolled_back"
	StatusCompensated = "compensated"
)

// ErrReverted is returned by StepsFor for a plan whose changes were already
// undone by a transaction rollback or compensation.
var ErrReverted = errors.New("plan was already reverted")

// ActionPlan marks the entry that closes a plan.
const ActionPlan = "plan"

// Entry is one journaled event.
type Entry struct {
	PlanID    string             `json:"plan_id" yaml:"plan_id" bson:"plan_id"`
	Database  string             `json:"database,omitempty" yaml:"database,omitempty" bson:"database,omitempty"`
	Table     string             `json:"table" yaml:"table" bson:"table"`
	Column    string             `json:"column" yaml:"column" bson:"column"`
	StepID    string             `json:"step,omitempty" yaml:"step,omitempty" bson:"step,omitempty"`
	Action    string             `json:"action" yaml:"action" bson:"action"`
	Kind      string             `json:"kind,omitempty" yaml:"kind,omitempty" bson:"kind,omitempty"`
	Statement *dialect.Statement `json:"statement,omitempty" yaml:"statement,omitempty" bson:"statement,omitempty"`
	Inverse   *dialect.Statement `json:"inverse,omitempty" yaml:"inverse,omitempty" bson:"inverse,omitempty"`
	Status    string             `json:"status" yaml:"status" bson:"status"`
	Error     string             `json:"error,omitempty" yaml:"error,omitempty" bson:"error,omitempty"`
	ElapsedMS int64              `json:"elapsed_ms,omitempty" yaml:"elapsed_ms,omitempty" bson:"elapsed_ms,omitempty"`
	// Reverted is set on the closing entry to the steps undone after a failure.
	Reverted []string `json:"reverted,omitempty" yaml:"reverted,omitempty" bson:"reverted,omitempty"`
	Time      time.Time          `json:"time" yaml:"time" bson:"time"`
}

// Sink persists journal entries.
type Sink interface {
	Write(ctx context.Context, entries []Entry) error
	Close(ctx context.Context) error
}

// Reader lists the most recent entries, newest first.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Open builds the sink selected by cfg. The "none" sink discards entries.
func Open(ctx context.Context, cfg config.JournalConfig) (Sink, error) {
	switch cfg.Sink {
	case "", "none":
		return nopSink{}, nil
	case "file":
		return NewFileSink(config.ExpandHome(cfg.Path)), nil
	case "mongodb":
		return NewMongoSink(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case "s3":
		return NewS3Sink(ctx, cfg.Region, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return nil, fmt.Errorf("unknown journal sink %q", cfg.Sink)
	}
}

type nopSink struct{}

func (nopSink) Write(context.Context, []Entry) error { return nil }
func (nopSink) Close(context.Context) error          { return nil }

const writeTimeout = 10 * time.Second

// Journal buffers step entries per plan and writes them to its sink once the
// plan finishes. It implements alter.Observer.
type Journal struct {
	sink   Sink
	logger *slog.Logger

	mu      sync.Mutex
	pending map[uuid.UUID][]Entry
	now     func() time.Time
}

// New creates a journal writing to sink.
func New(sink Sink, logger *slog.Logger) *Journal {
	if sink == nil {
		sink = nopSink{}
	}
	return &Journal{
		sink:    sink,
		logger:  logger,
		pending: make(map[uuid.UUID][]Entry),
		now:     time.Now,
	}
}

func (j *Journal) StepStarted(*alter.Plan, alter.Step) {}

func (j *Journal) StepFinished(plan *alter.Plan, step alter.Step, err error, elapsed time.Duration) {
	stmt := step.Statement
	e := Entry{
		PlanID:    plan.ID.String(),
		Database:  plan.Database,
		Table:     step.Table,
		Column:    step.Column,
		StepID:    step.ID,
		Action:    step.Action,
		Kind:      string(step.Kind),
		Statement: &stmt,
		Inverse:   step.Inverse,
		Status:    StatusExecuted,
		ElapsedMS: elapsed.Milliseconds(),
		Time:      j.now(),
	}
	if err != nil {
		e.Status = StatusFailed
		e.Error = err.Error()
	}

	j.mu.Lock()
	j.pending[plan.ID] = append(j.pending[plan.ID], e)
	j.mu.Unlock()
}

func (j *Journal) PlanFinished(plan *alter.Plan, err error) {
	j.mu.Lock()
	entries := j.pending[plan.ID]
	delete(j.pending, plan.ID)
	j.mu.Unlock()

	closing := Entry{
		PlanID:   plan.ID.String(),
		Database: plan.Database,
		Table:    plan.Table,
		Column:   plan.Column,
		Action:   ActionPlan,
		Status:   StatusApplied,
		Time:     j.now(),
	}
	if err != nil {
		closing.Status = StatusAborted
		closing.Error = err.Error()
	}
	switch plan.Outcome {
	case StatusRolledBack, StatusCompensated:
		closing.Status = plan.Outcome
	}
	closing.Reverted = plan.Reverted
	entries = append(entries, closing)

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if werr := j.sink.Write(ctx, entries); werr != nil {
		j.logger.Error("writing journal", "plan_id", plan.ID, "entries", len(entries), "error", werr)
	}
}

// Close releases the sink.
func (j *Journal) Close(ctx context.Context) error {
	return j.sink.Close(ctx)
}

// StepsFor rebuilds the executed steps of a plan from journal entries, in
// execution order, leaving out steps that were already reverted. The database
// the plan ran against is returned as well. A plan closed as rolled back or
// compensated yields ErrReverted.
func StepsFor(entries []Entry, planID string) ([]alter.Step, string, error) {
	var (
		matched  []Entry
		database string
		reverted = make(map[string]bool)
	)
	for _, e := range entries {
		if e.PlanID != planID {
			continue
		}
		if e.Database != "" {
			database = e.Database
		}
		if e.Action == ActionPlan {
			if e.Status == StatusRolledBack || e.Status == StatusCompensated {
				return nil, database, fmt.Errorf("%w: plan %s closed as %s", ErrReverted, planID, e.Status)
			}
			for _, id := range e.Reverted {
				reverted[id] = true
			}
			continue
		}
		if e.Status != StatusExecuted || e.Statement == nil {
			continue
		}
		matched = append(matched, e)
	}
	sort.SliceStable(matched, func(i, k int) bool { return matched[i].Time.Before(matched[k].Time) })

	steps := make([]alter.Step, 0, len(matched))
	for _, e := range matched {
		if reverted[e.StepID] {
			continue
		}
		steps = append(steps, alter.Step{
			ID:        e.StepID,
			Action:    e.Action,
			Kind:      schema.ConstraintKind(e.Kind),
			Table:     e.Table,
			Column:    e.Column,
			Statement: *e.Statement,
			Inverse:   e.Inverse,
		})
	}
	return steps, database, nil
}
