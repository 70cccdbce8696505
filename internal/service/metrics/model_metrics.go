package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	ModelInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gridcast",
			Subsystem: "model",
			Name:      "info",
			Help:      "Loaded model artifacts, always 1",
		},
		[]string{"version", "unit"},
	)

	ResidualStd = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gridcast",
			Subsystem: "model",
			Name:      "residual_std",
			Help:      "Training residual standard deviation used for confidence bands",
		},
	)

	LastAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gridcast",
			Subsystem: "history",
			Name:      "last_available_timestamp_seconds",
			Help:      "Unix time of the newest stored actual",
		},
	)

	StatusLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gridcast",
			Subsystem: "status",
			Name:      "check_seconds",
			Help:      "Latency of health and status dependency checks",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"check"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(ModelInfo, ResidualStd, LastAvailable, StatusLatency)
	})
}

// SetModel publishes the artifact identity.
func SetModel(version, unit string, residualStd float64) {
	ModelInfo.Reset()
	ModelInfo.WithLabelValues(version, unit).Set(1)
	ResidualStd.Set(residualStd)
}

func SetLastAvailable(ts time.Time) {
	if ts.IsZero() {
		return
	}
	LastAvailable.Set(float64(ts.Unix()))
}

func ObserveCheck(check string, started time.Time) {
	StatusLatency.WithLabelValues(check).Observe(time.Since(started).Seconds())
}
