package repository

import (
	"context"
	"fmt"
	"time"

	"GridCast/internal/domain/models"
	domrepo "GridCast/internal/domain/repository"
	"GridCast/pkg/cache"
)

// maxTargetedInvalidation is the widest range invalidated day by day; wider
// ranges flush every forecast key.
const maxTargetedInvalidation = 31 * 24 * time.Hour

// ForecastCache stores forecast results and day arrays in a cache.Service.
type ForecastCache struct {
	svc    cache.Service
	loc    *time.Location
	window time.Duration
}

// NewForecastCache needs the forecast zone for day keys and the residual
// window length: a new actual at t changes forecasts that start up to
// window-1 hours before t.
func NewForecastCache(svc cache.Service, loc *time.Location, windowHours int) *ForecastCache {
	if loc == nil {
		loc = time.UTC
	}
	return &ForecastCache{svc: svc, loc: loc, window: time.Duration(windowHours-1) * time.Hour}
}

func (c *ForecastCache) Get(ctx context.Context, key string) (*models.ForecastResult, error) {
	var res models.ForecastResult
	if err := c.svc.Get(ctx, key, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *ForecastCache) Set(ctx context.Context, key string, res *models.ForecastResult, ttl time.Duration) error {
	return c.svc.Set(ctx, key, res, ttl)
}

// InvalidateRange drops forecasts whose horizon may include an hour in
// [start, end], plus the day arrays of those days.
func (c *ForecastCache) InvalidateRange(ctx context.Context, start, end time.Time) error {
	if end.Before(start) {
		start, end = end, start
	}
	from := start.Add(-c.window)
	if end.Sub(from) > maxTargetedInvalidation {
		_, err := c.svc.DeleteByPattern(ctx, "forecast:*")
		return err
	}

	for d := dayStart(from.UTC()); !d.After(end.UTC()); d = d.AddDate(0, 0, 1) {
		if _, err := c.svc.DeleteByPattern(ctx, domrepo.ForecastDayPattern(d)); err != nil {
			return fmt.Errorf("invalidate %s: %w", d.Format("2006-01-02"), err)
		}
	}
	var days []string
	for d := dayStart(from.In(c.loc)); !d.After(end.In(c.loc)); d = d.AddDate(0, 0, 1) {
		days = append(days, domrepo.DayKey(d))
	}
	return c.svc.Delete(ctx, days...)
}

func (c *ForecastCache) GetDay(ctx context.Context, date time.Time) ([]float64, error) {
	var vals []float64
	if err := c.svc.Get(ctx, domrepo.DayKey(date.In(c.loc)), &vals); err != nil {
		return nil, err
	}
	return vals, nil
}

func (c *ForecastCache) SetDay(ctx context.Context, date time.Time, values []float64, ttl time.Duration) error {
	return c.svc.Set(ctx, domrepo.DayKey(date.In(c.loc)), values, ttl)
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

var _ domrepo.ForecastCache = (*ForecastCache)(nil)
