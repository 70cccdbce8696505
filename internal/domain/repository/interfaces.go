package repository

import (
	"context"
	"time"

	"GridCast/internal/domain/models"
)

// HistoricalDataSource serves completed hours of demand and weather.
type HistoricalDataSource interface {
	// GetRange returns observations with start <= ts <= end ordered by time.
	GetRange(ctx context.Context, start, end time.Time) ([]models.ObservationPoint, error)
	LastAvailableTimestamp(ctx context.Context) (time.Time, error)
}

// ActualsWriter stores newly completed hours. Writing the same hour twice
// replaces the earlier row.
type ActualsWriter interface {
	AppendActuals(ctx context.Context, points []models.ObservationPoint) error
}

// HistoryStore is a history backend that can also be written and checked.
type HistoryStore interface {
	HistoricalDataSource
	ActualsWriter
	Health(ctx context.Context) error
	Close() error
}

// WeatherSource returns forecast weather (ErrNotAvailable outside the
// provider range) or historical weather for an hour.
type WeatherSource interface {
	GetForecast(ctx context.Context, ts time.Time) (models.WeatherFields, error)
	GetHistorical(ctx context.Context, ts time.Time) (models.WeatherFields, error)
}

type HolidayCalendar interface {
	IsHoliday(date time.Time) bool
}

// ForecastCache memoizes forecast results and full-day prediction arrays.
// Get and GetDay return cache.ErrCacheMiss on a miss.
type ForecastCache interface {
	Get(ctx context.Context, key string) (*models.ForecastResult, error)
	Set(ctx context.Context, key string, res *models.ForecastResult, ttl time.Duration) error
	InvalidateRange(ctx context.Context, start, end time.Time) error
	GetDay(ctx context.Context, date time.Time) ([]float64, error)
	SetDay(ctx context.Context, date time.Time, values []float64, ttl time.Duration) error
}

// ForecastPublisher announces freshly computed forecasts.
type ForecastPublisher interface {
	PublishForecast(ctx context.Context, res *models.ForecastResult) error
	Close() error
}

type Metrics interface {
	RecordForecast(mode string, seconds float64)
	RecordFallback(reason string)
	RecordWeatherFallback(reason string)
	RecordCache(kind, result string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
