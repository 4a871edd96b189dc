// Package metrics records alteration progress through a pluggable backend.
// The default backend discards everything, so recording is always safe.
package metrics

import (
	"sync"
	"time"
)

// Metric names.
const (
	StepTotal           = "sgbd_step_total"
	StepDurationSeconds = "sgbd_step_duration_seconds"
	PlansTotal          = "sgbd_plans_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a duration-style value.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordStep counts one executed plan step and its latency.
func RecordStep(action, kind string, err error, d time.Duration) {
	if kind == "" {
		kind = "none"
	}
	lbls := Labels{
		"action": action,
		"kind":   kind,
		"status": status(err),
	}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordPlan counts a finished plan by outcome, e.g. "applied",
// "rolled_back", "compensated" or "failed".
func RecordPlan(outcome string) {
	current().IncCounter(PlansTotal, 1, Labels{"outcome": outcome})
}
