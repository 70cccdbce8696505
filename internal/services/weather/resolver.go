package weather

import (
	"context"
	"errors"
	"time"

	"GridCast/internal/domain/models"
	"GridCast/internal/domain/repository"
	applogger "GridCast/pkg/logger"
)

// Resolver returns weather for any hour without failing. Provider errors
// and timeouts degrade to the Seasonal model.
type Resolver struct {
	source   repository.WeatherSource
	seasonal *Seasonal
	timeout  time.Duration
	logger   *applogger.Logger
	metrics  repository.Metrics
	now      func() time.Time
}

// NewResolver accepts a nil source when weather fetching is disabled.
func NewResolver(source repository.WeatherSource, seasonal *Seasonal, timeout time.Duration, logger *applogger.Logger, metrics repository.Metrics) *Resolver {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &Resolver{
		source:   source,
		seasonal: seasonal,
		timeout:  timeout,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Resolve returns weather for ts and whether it is the synthetic substitute.
// Past hours use observed weather, current and future hours the forecast.
func (r *Resolver) Resolve(ctx context.Context, ts time.Time) (models.WeatherFields, bool) {
	if ts.Before(r.now().Truncate(time.Hour)) {
		return r.Historical(ctx, ts)
	}
	if r.source == nil {
		r.record("disabled")
		return r.seasonal.At(ts), true
	}
	cctx, cancel := r.bounded(ctx)
	defer cancel()
	w, err := r.source.GetForecast(cctx, ts)
	if err != nil {
		return r.degrade(ts, err), true
	}
	return w, false
}

// Historical resolves observed weather for a past hour.
func (r *Resolver) Historical(ctx context.Context, ts time.Time) (models.WeatherFields, bool) {
	if r.source == nil {
		r.record("disabled")
		return r.seasonal.At(ts), true
	}
	cctx, cancel := r.bounded(ctx)
	defer cancel()
	w, err := r.source.GetHistorical(cctx, ts)
	if err != nil {
		return r.degrade(ts, err), true
	}
	return w, false
}

func (r *Resolver) degrade(ts time.Time, err error) models.WeatherFields {
	switch {
	case errors.Is(err, ErrNotAvailable):
		r.record("out_of_range")
		r.logger.Debug("weather outside provider range, using seasonal model", applogger.Time("ts", ts))
	case errors.Is(err, context.DeadlineExceeded):
		r.record("timeout")
		r.logger.Warn("weather fetch timed out, using seasonal model", applogger.Time("ts", ts), applogger.Duration("timeout_ms", r.timeout))
	default:
		r.record("error")
		r.logger.Warn("weather fetch failed, using seasonal model", applogger.Time("ts", ts), applogger.Error(err))
	}
	return r.seasonal.At(ts)
}

// Prefetch warms the forecast cache for the next hours and returns how many
// hours came from the provider.
func (r *Resolver) Prefetch(ctx context.Context, from time.Time, hours int) int {
	if r.source == nil {
		return 0
	}
	from = from.UTC().Truncate(time.Hour)
	ok := 0
	for i := 0; i < hours; i++ {
		if ctx.Err() != nil {
			break
		}
		cctx, cancel := r.bounded(ctx)
		_, err := r.source.GetForecast(cctx, from.Add(time.Duration(i)*time.Hour))
		cancel()
		if err == nil {
			ok++
		}
	}
	r.logger.Info("weather prefetch done", applogger.Int("hours", hours), applogger.Int("fetched", ok))
	return ok
}

func (r *Resolver) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Resolver) record(reason string) {
	if r.metrics != nil {
		r.metrics.RecordWeatherFallback(reason)
	}
}
