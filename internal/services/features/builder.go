package features

import (
	"errors"
	"fmt"
	"time"

	"GridCast/internal/domain/models"
	"GridCast/internal/domain/repository"
)

// ErrFeatureConfig marks a feature order that cannot feed the baseline
// model. It is a startup error, never a request error.
var ErrFeatureConfig = errors.New("feature configuration")

// DefaultOrder is the layout the baseline model is trained with.
var DefaultOrder = []string{
	"temperature_2m", "relativehumidity_2m", "apparent_temperature",
	"shortwave_radiation", "precipitation", "wind_speed_10m",
	"dow", "hour", "month", "is_weekend", "is_holiday",
	"heat_index",
	"lag_1", "lag_24", "lag_168",
	"roll24", "roll168",
}

// HistoryAccessor is the read side of a load history.
type HistoryAccessor interface {
	LoadAt(ts time.Time) (float64, bool)
	LatestBefore(ts time.Time) (float64, bool)
	MeanBetween(from, to time.Time) (float64, bool)
}

type featureFunc func(r *row) float64

// row holds the intermediate values of one build so the fill-forward chain
// is computed once regardless of order.
type row struct {
	ts      time.Time
	weather models.WeatherFields
	dow     int
	holiday bool
	lag1    float64
	lag24   float64
	lag168  float64
	roll24  float64
	roll168 float64
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var known = map[string]featureFunc{
	"temperature_2m":       func(r *row) float64 { return r.weather.Temperature },
	"relativehumidity_2m":  func(r *row) float64 { return r.weather.Humidity },
	"apparent_temperature": func(r *row) float64 { return r.weather.ApparentTemperature },
	"shortwave_radiation":  func(r *row) float64 { return r.weather.SolarRadiation },
	"precipitation":        func(r *row) float64 { return r.weather.Precipitation },
	"wind_speed_10m":       func(r *row) float64 { return r.weather.WindSpeed },
	"dow":                  func(r *row) float64 { return float64(r.dow) },
	"hour":                 func(r *row) float64 { return float64(r.ts.Hour()) },
	"month":                func(r *row) float64 { return float64(r.ts.Month()) },
	"is_weekend":           func(r *row) float64 { return b2f(r.dow >= 5) },
	"is_holiday":           func(r *row) float64 { return b2f(r.holiday) },
	"hour_of_week":         func(r *row) float64 { return float64(r.dow*24 + r.ts.Hour()) },
	"heat_index":           func(r *row) float64 { return HeatIndex(r.weather.Temperature, r.weather.Humidity) },
	"lag_1":                func(r *row) float64 { return r.lag1 },
	"lag_24":               func(r *row) float64 { return r.lag24 },
	"lag_168":              func(r *row) float64 { return r.lag168 },
	"roll24":               func(r *row) float64 { return r.roll24 },
	"roll168":              func(r *row) float64 { return r.roll168 },
}

// Builder turns a timestamp, a history and weather into a FeatureVector.
// It holds no mutable state and is shared by all requests.
type Builder struct {
	order    []string
	funcs    []featureFunc
	holidays repository.HolidayCalendar
	loc      *time.Location
}

// NewBuilder validates order against the expected feature count and the set
// of features this package knows how to compute.
func NewBuilder(order []string, expected int, holidays repository.HolidayCalendar, loc *time.Location) (*Builder, error) {
	if len(order) != expected {
		return nil, fmt.Errorf("%w: %d names configured, model expects %d", ErrFeatureConfig, len(order), expected)
	}
	funcs := make([]featureFunc, len(order))
	seen := make(map[string]bool, len(order))
	for i, name := range order {
		fn, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown feature %q", ErrFeatureConfig, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate feature %q", ErrFeatureConfig, name)
		}
		seen[name] = true
		funcs[i] = fn
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Builder{
		order:    append([]string(nil), order...),
		funcs:    funcs,
		holidays: holidays,
		loc:      loc,
	}, nil
}

func (b *Builder) Size() int { return len(b.order) }

func (b *Builder) Order() []string { return append([]string(nil), b.order...) }

// Build computes the features for ts. Only history strictly before ts is
// read. Missing lags are filled forward: lag_1 from the newest earlier value,
// lag_24 from lag_1, lag_168 from lag_24, roll24 from lag_1 and roll168 from
// roll24.
func (b *Builder) Build(ts time.Time, hist HistoryAccessor, w models.WeatherFields) models.FeatureVector {
	local := ts.In(b.loc)
	r := row{
		ts:      local,
		weather: w,
		dow:     (int(local.Weekday()) + 6) % 7,
	}
	if b.holidays != nil {
		r.holiday = b.holidays.IsHoliday(local)
	}

	var ok bool
	if r.lag1, ok = hist.LoadAt(ts.Add(-time.Hour)); !ok {
		r.lag1, _ = hist.LatestBefore(ts)
	}
	if r.lag24, ok = hist.LoadAt(ts.Add(-24 * time.Hour)); !ok {
		r.lag24 = r.lag1
	}
	if r.lag168, ok = hist.LoadAt(ts.Add(-168 * time.Hour)); !ok {
		r.lag168 = r.lag24
	}
	if r.roll24, ok = hist.MeanBetween(ts.Add(-24*time.Hour), ts); !ok {
		r.roll24 = r.lag1
	}
	if r.roll168, ok = hist.MeanBetween(ts.Add(-168*time.Hour), ts); !ok {
		r.roll168 = r.roll24
	}

	fv := make(models.FeatureVector, len(b.funcs))
	for i, fn := range b.funcs {
		fv[i] = fn(&r)
	}
	return fv
}
