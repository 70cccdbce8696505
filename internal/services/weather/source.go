package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"GridCast/internal/domain/models"
	"GridCast/internal/domain/repository"
	"GridCast/internal/service/cache"
)

// ErrNotAvailable is returned for hours outside the provider's forecast range
// or missing from its response.
var ErrNotAvailable = errors.New("weather not available")

const (
	forecastPrefix = "weather:hourly:"
	observedPrefix = "weather:observed:"
)

// CacheKey is the per-hour cache key, e.g. weather:hourly:2024-06-01T14.
func CacheKey(prefix string, ts time.Time) string {
	return prefix + ts.UTC().Format("2006-01-02T15")
}

// Source is the WeatherSource backed by a Provider with an hourly cache.
// Provider calls fetch whole days, so one miss warms 24 keys.
type Source struct {
	provider   Provider
	cache      cache.BytesCache
	ttl        time.Duration
	rangeHours int
	now        func() time.Time
}

func NewSource(p Provider, c cache.BytesCache, ttl time.Duration, rangeHours int) *Source {
	return &Source{provider: p, cache: c, ttl: ttl, rangeHours: rangeHours, now: time.Now}
}

var _ repository.WeatherSource = (*Source)(nil)

func (s *Source) GetForecast(ctx context.Context, ts time.Time) (models.WeatherFields, error) {
	ts = ts.UTC().Truncate(time.Hour)
	ahead := ts.Sub(s.now().UTC().Truncate(time.Hour))
	if ahead < 0 || ahead > time.Duration(s.rangeHours)*time.Hour {
		return models.WeatherFields{}, fmt.Errorf("%w: %s is %.0fh ahead, provider range %dh", ErrNotAvailable, ts.Format(time.RFC3339), ahead.Hours(), s.rangeHours)
	}
	return s.lookup(ctx, forecastPrefix, ts, s.provider.Forecast)
}

func (s *Source) GetHistorical(ctx context.Context, ts time.Time) (models.WeatherFields, error) {
	return s.lookup(ctx, observedPrefix, ts.UTC().Truncate(time.Hour), s.provider.Archive)
}

type fetchFunc func(ctx context.Context, from, to time.Time) ([]Reading, error)

func (s *Source) lookup(ctx context.Context, prefix string, ts time.Time, fetch fetchFunc) (models.WeatherFields, error) {
	if w, ok := s.cached(ctx, prefix, ts); ok {
		return w, nil
	}
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	readings, err := fetch(ctx, day, day)
	if err != nil {
		return models.WeatherFields{}, err
	}
	var (
		found bool
		out   models.WeatherFields
	)
	for _, r := range readings {
		s.store(ctx, prefix, r)
		if r.Time.Equal(ts) {
			out, found = r.Fields, true
		}
	}
	if !found {
		return models.WeatherFields{}, fmt.Errorf("%w: %s missing from provider response", ErrNotAvailable, ts.Format(time.RFC3339))
	}
	return out, nil
}

func (s *Source) cached(ctx context.Context, prefix string, ts time.Time) (models.WeatherFields, bool) {
	if s.cache == nil {
		return models.WeatherFields{}, false
	}
	b, ok, err := s.cache.GetBytes(ctx, CacheKey(prefix, ts))
	if err != nil || !ok {
		return models.WeatherFields{}, false
	}
	var w models.WeatherFields
	if err := json.Unmarshal(b, &w); err != nil {
		return models.WeatherFields{}, false
	}
	return w, true
}

func (s *Source) store(ctx context.Context, prefix string, r Reading) {
	if s.cache == nil {
		return
	}
	b, err := json.Marshal(r.Fields)
	if err != nil {
		return
	}
	_ = s.cache.SetBytes(ctx, CacheKey(prefix, r.Time), b, s.ttl)
}
