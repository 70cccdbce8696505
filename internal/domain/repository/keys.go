package repository

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoHistory is returned by history backends that hold no rows at all.
var ErrNoHistory = errors.New("no history available")

// Forecast cache key layout. Hours are written in UTC so keys from
// processes in different zones agree; day keys use the forecast zone.
const (
	keyHourLayout = "2006-01-02T15:04"
	keyDayLayout  = "2006-01-02"
)

// ForecastKey is forecast:{kind}:{YYYY-MM-DDTHH:MM}:{hash8}.
func ForecastKey(kind string, start time.Time, hash string) string {
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return fmt.Sprintf("forecast:%s:%s:%s", kind, start.UTC().Format(keyHourLayout), hash)
}

// ForecastDayPattern matches every forecast key starting on the UTC day of t.
func ForecastDayPattern(t time.Time) string {
	return fmt.Sprintf("forecast:*:%sT*", t.UTC().Format(keyDayLayout))
}

// DayKey is forecast:day:{YYYY-MM-DD} for the local date of day.
func DayKey(day time.Time) string {
	return "forecast:day:" + day.Format(keyDayLayout)
}

// HorizonKind names an hourly horizon for cache keys, e.g. hourly-24.
func HorizonKind(horizon int) string {
	return fmt.Sprintf("hourly-%d", horizon)
}

const (
	KindSingle = "single"
	KindWeekly = "weekly"
)
