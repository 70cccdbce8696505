package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetModel(t *testing.T) {
	SetModel("v3", "MW", 89.52)
	if got := testutil.ToFloat64(ModelInfo.WithLabelValues("v3", "MW")); got != 1 {
		t.Fatalf("model info = %v", got)
	}
	if got := testutil.ToFloat64(ResidualStd); got != 89.52 {
		t.Fatalf("residual std = %v", got)
	}

	SetModel("v4", "MW", 1)
	if n := testutil.CollectAndCount(ModelInfo); n != 1 {
		t.Fatalf("stale model series kept: %d", n)
	}
}

func TestSetLastAvailable(t *testing.T) {
	ts := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	SetLastAvailable(ts)
	SetLastAvailable(time.Time{})
	if got := testutil.ToFloat64(LastAvailable); got != float64(ts.Unix()) {
		t.Fatalf("last available = %v", got)
	}
}
