package prom

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/senomardetritos/sgbd-sqlserver/internal/metrics"
)

func TestBackendCounters(t *testing.T) {
	b, err := NewBackend("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.jobName != "sgbd" {
		t.Errorf("default job = %q", b.jobName)
	}

	lbls := metrics.Labels{"action": "add", "kind": "default", "status": "success"}
	b.IncCounter(metrics.StepTotal, 1, lbls)
	b.IncCounter(metrics.StepTotal, 2, lbls)
	b.IncCounter(metrics.PlansTotal, 1, metrics.Labels{"outcome": "applied"})
	b.IncCounter("unknown_metric", 1, nil)

	if got := testutil.ToFloat64(b.stepCounter.WithLabelValues("add", "default", "success")); got != 3 {
		t.Errorf("step counter = %v, want 3", got)
	}
	if got := testutil.ToFloat64(b.planCounter.WithLabelValues("applied")); got != 1 {
		t.Errorf("plan counter = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	b, err := NewBackend("sgbd", "")
	if err != nil {
		t.Fatal(err)
	}
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.25,
		metrics.Labels{"action": "alter_type", "kind": "none", "status": "success"})
	b.IncCounter(metrics.PlansTotal, 1, metrics.Labels{"outcome": "failed"})

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{"sgbd_step_duration_seconds_count", `sgbd_plans_total{outcome="failed"} 1`} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestFlushWithoutGatewayIsNoop(t *testing.T) {
	b, _ := NewBackend("sgbd", "")
	if err := b.Flush(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFlushPushesToGateway(t *testing.T) {
	var gotPath, gotBody string
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	b, err := NewBackend("sgbd-test", gw.URL)
	if err != nil {
		t.Fatal(err)
	}
	b.IncCounter(metrics.PlansTotal, 1, metrics.Labels{"outcome": "applied"})

	if err := b.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if !strings.Contains(gotPath, "/metrics/job/sgbd-test") {
		t.Errorf("unexpected push path %q", gotPath)
	}
	if gotBody == "" {
		t.Error("expected a metrics payload")
	}
}
