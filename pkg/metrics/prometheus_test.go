package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordFallback("no_history")
	r.RecordFallback("no_history")
	r.RecordCache("hourly", "hit")
	r.RecordForecast("iterative", 0.2)

	if got := testutil.ToFloat64(r.fallbacks.WithLabelValues("no_history")); got != 2 {
		t.Fatalf("fallbacks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.cacheLookups.WithLabelValues("hourly", "hit")); got != 1 {
		t.Fatalf("cache hits = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(r.forecasts); n != 1 {
		t.Fatalf("forecast series = %d, want 1", n)
	}
}
