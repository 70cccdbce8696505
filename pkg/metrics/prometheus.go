package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	forecasts        *prometheus.HistogramVec
	fallbacks        *prometheus.CounterVec
	weatherFallbacks *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	latency          *prometheus.HistogramVec
}

// New registers the collectors on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers on reg, so tests can use a private registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		forecasts: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gridcast_forecast_duration_seconds",
				Help:    "Forecast computation time by mode",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
			},
			[]string{"mode"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridcast_fallback_total",
				Help: "Forecasts answered by the static fallback",
			},
			[]string{"reason"},
		),
		weatherFallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridcast_weather_fallback_total",
				Help: "Hours that used synthetic seasonal weather",
			},
			[]string{"reason"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridcast_cache_lookups_total",
				Help: "Forecast cache lookups",
			},
			[]string{"kind", "result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridcast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gridcast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordForecast(mode string, seconds float64) {
	r.forecasts.WithLabelValues(mode).Observe(seconds)
}

func (r *Recorder) RecordFallback(reason string) {
	r.fallbacks.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordWeatherFallback(reason string) {
	r.weatherFallbacks.WithLabelValues(reason).Inc()
}

// RecordCache counts a lookup; result is "hit" or "miss".
func (r *Recorder) RecordCache(kind, result string) {
	r.cacheLookups.WithLabelValues(kind, result).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordForecast(string, float64) {}
func (Nop) RecordFallback(string)          {}
func (Nop) RecordWeatherFallback(string)   {}
func (Nop) RecordCache(string, string)     {}
func (Nop) RecordError(string)             {}
func (Nop) RecordLatency(string, float64)  {}
