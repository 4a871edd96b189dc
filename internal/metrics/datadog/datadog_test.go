package datadog

import (
	"reflect"
	"testing"

	"github.com/senomardetritos/sgbd-sqlserver/internal/metrics"
)

type fakeClient struct {
	counts     map[string]int64
	histograms map[string]float64
	tags       [][]string
	closed     bool
}

func (f *fakeClient) Count(name string, value int64, tags []string, _ float64) error {
	f.counts[name] += value
	f.tags = append(f.tags, tags)
	return nil
}

func (f *fakeClient) Histogram(name string, value float64, tags []string, _ float64) error {
	f.histograms[name] = value
	f.tags = append(f.tags, tags)
	return nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestNewBackendRequiresAddr(t *testing.T) {
	if _, err := NewBackend(Config{}); err == nil {
		t.Fatal("expected error for empty Addr")
	}
}

func TestBackendForwardsToClient(t *testing.T) {
	fc := &fakeClient{counts: map[string]int64{}, histograms: map[string]float64{}}
	b := &Backend{client: fc}

	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"status": "success", "action": "add"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.5, nil)

	if fc.counts[metrics.StepTotal] != 1 {
		t.Errorf("count = %d", fc.counts[metrics.StepTotal])
	}
	if fc.histograms[metrics.StepDurationSeconds] != 0.5 {
		t.Errorf("histogram = %v", fc.histograms[metrics.StepDurationSeconds])
	}
	if want := []string{"action:add", "status:success"}; !reflect.DeepEqual(fc.tags[0], want) {
		t.Errorf("tags = %v, want %v", fc.tags[0], want)
	}
	if fc.tags[1] != nil {
		t.Errorf("nil labels should give nil tags, got %v", fc.tags[1])
	}

	if err := b.Flush(); err != nil || !fc.closed {
		t.Errorf("flush should close the client: %v", err)
	}
}
