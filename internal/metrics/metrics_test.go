package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserve(t *testing.T) {
	m := New()
	m.Observe("coding-task-3", "completed", 20*time.Millisecond, 50, 0)
	m.Observe("coding-task-3", "failed", time.Millisecond, 0, 0)
	m.Observe("coding-task-4", "completed", time.Millisecond, 90, 10)

	if got := testutil.ToFloat64(m.Runs.WithLabelValues("coding-task-3", "completed")); got != 1 {
		t.Fatalf("completed runs = %v", got)
	}
	if got := testutil.ToFloat64(m.Rows.WithLabelValues("coding-task-4")); got != 90 {
		t.Fatalf("rows = %v", got)
	}
	if got := testutil.ToFloat64(m.Shortfall.WithLabelValues("coding-task-4")); got != 10 {
		t.Fatalf("shortfall = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "taskgen_runs_total") {
		t.Fatalf("exposition missing runs counter")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Observe("coding-task-1", "completed", time.Second, 0, 0)
}
