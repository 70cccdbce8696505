package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GridCast/internal/domain/models"
	"GridCast/internal/service/cache"
)

type stubProvider struct {
	calls    int32
	err      error
	delay    time.Duration
	readings func(from time.Time) []Reading
}

func (p *stubProvider) Forecast(ctx context.Context, from, to time.Time) ([]Reading, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.readings(from), nil
}

func (p *stubProvider) Archive(ctx context.Context, from, to time.Time) ([]Reading, error) {
	return p.Forecast(ctx, from, to)
}

func dayOf(temp float64) func(time.Time) []Reading {
	return func(from time.Time) []Reading {
		out := make([]Reading, 24)
		for h := range out {
			out[h] = Reading{Time: from.Add(time.Duration(h) * time.Hour), Fields: models.WeatherFields{Temperature: temp + float64(h), Source: models.WeatherSourceProvider}}
		}
		return out
	}
}

var now = time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)

func newSource(p Provider) *Source {
	s := NewSource(p, cache.NewTTLCache(), 10*time.Minute, 120)
	s.now = func() time.Time { return now }
	return s
}

func TestSourceCachesWholeDay(t *testing.T) {
	p := &stubProvider{readings: dayOf(20)}
	s := newSource(p)
	ctx := context.Background()

	w, err := s.GetForecast(ctx, time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 34.0, w.Temperature)

	w, err = s.GetForecast(ctx, time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 40.0, w.Temperature)
	assert.EqualValues(t, 1, atomic.LoadInt32(&p.calls))
}

func TestSourceRange(t *testing.T) {
	s := newSource(&stubProvider{readings: dayOf(20)})
	ctx := context.Background()

	_, err := s.GetForecast(ctx, now.Add(121*time.Hour))
	assert.True(t, errors.Is(err, ErrNotAvailable))
	_, err = s.GetForecast(ctx, now.Add(-2*time.Hour))
	assert.True(t, errors.Is(err, ErrNotAvailable))
	_, err = s.GetForecast(ctx, now.Add(119*time.Hour))
	assert.NoError(t, err)
}

func TestResolverFallsBackToSeasonal(t *testing.T) {
	seasonal := NewSeasonal(25, time.UTC)
	ts := now.Add(3 * time.Hour).Truncate(time.Hour)

	r := NewResolver(newSource(&stubProvider{err: errors.New("boom")}), seasonal, time.Second, nil, nil)
	r.now = func() time.Time { return now }
	w, degraded := r.Resolve(context.Background(), ts)
	assert.True(t, degraded)
	assert.Equal(t, seasonal.At(ts), w)
	assert.Equal(t, models.WeatherSourceSynthetic, w.Source)

	slow := &stubProvider{delay: time.Second, readings: dayOf(20)}
	r = NewResolver(newSource(slow), seasonal, 20*time.Millisecond, nil, nil)
	r.now = func() time.Time { return now }
	start := time.Now()
	_, degraded = r.Resolve(context.Background(), ts)
	assert.True(t, degraded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	r = NewResolver(nil, seasonal, time.Second, nil, nil)
	_, degraded = r.Resolve(context.Background(), ts)
	assert.True(t, degraded)
}

// splitProvider serves archive and forecast days with different readings.
type splitProvider struct {
	forecast, archive *stubProvider
}

func (p splitProvider) Forecast(ctx context.Context, from, to time.Time) ([]Reading, error) {
	return p.forecast.Forecast(ctx, from, to)
}

func (p splitProvider) Archive(ctx context.Context, from, to time.Time) ([]Reading, error) {
	return p.archive.Forecast(ctx, from, to)
}

func TestResolverUsesArchiveForPastHours(t *testing.T) {
	p := splitProvider{forecast: &stubProvider{readings: dayOf(20)}, archive: &stubProvider{readings: dayOf(-5)}}
	r := NewResolver(newSource(p), NewSeasonal(25, time.UTC), time.Second, nil, nil)
	r.now = func() time.Time { return now }

	past := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	w, degraded := r.Resolve(context.Background(), past)
	assert.False(t, degraded)
	assert.Equal(t, 3.0, w.Temperature)

	ahead := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	w, degraded = r.Resolve(context.Background(), ahead)
	assert.False(t, degraded)
	assert.Equal(t, 32.0, w.Temperature)

	assert.EqualValues(t, 1, atomic.LoadInt32(&p.archive.calls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&p.forecast.calls))

	failing := splitProvider{forecast: &stubProvider{readings: dayOf(20)}, archive: &stubProvider{err: errors.New("archive down")}}
	r = NewResolver(newSource(failing), NewSeasonal(25, time.UTC), time.Second, nil, nil)
	r.now = func() time.Time { return now }
	w, degraded = r.Resolve(context.Background(), past)
	assert.True(t, degraded)
	assert.Equal(t, models.WeatherSourceSynthetic, w.Source)
}

func TestSeasonalDeterministicAndSeasonal(t *testing.T) {
	s := NewSeasonal(25, time.UTC)
	jan := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	jun := time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC)

	assert.Equal(t, s.At(jan), s.At(jan))
	assert.Greater(t, s.At(jun).Temperature, s.At(jan).Temperature+10)

	night := time.Date(2024, 6, 10, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, 0.0, s.At(night).SolarRadiation)
	assert.Equal(t, 100.0, s.At(jun).SolarRadiation)
	assert.Equal(t, s.At(jun).Temperature, s.At(jun).ApparentTemperature)
}

func TestOpenMeteoParsesHourly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-06-01", r.URL.Query().Get("start_date"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hourly":{
			"time":["2024-06-01T00:00","2024-06-01T01:00","2024-06-01T02:00"],
			"temperature_2m":[30.5,29.0,null],
			"relative_humidity_2m":[40,45,50],
			"apparent_temperature":[33.1,null,null],
			"shortwave_radiation":[0,0,0],
			"precipitation":[0,0.2,0],
			"wind_speed_10m":[2.5,3,3]}}`))
	}))
	defer srv.Close()

	p := NewOpenMeteo(28.6, 77.2, WithEndpoints(srv.URL, srv.URL), WithRetries(0))
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	got, err := p.Forecast(context.Background(), day, day)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 33.1, got[0].Fields.ApparentTemperature)
	assert.Equal(t, 29.0, got[1].Fields.ApparentTemperature)
	assert.Equal(t, 0.2, got[1].Fields.Precipitation)
	assert.True(t, got[1].Time.Equal(day.Add(time.Hour)))
}

func TestOpenMeteoRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"hourly":{"time":[],"temperature_2m":[]}}`))
	}))
	defer srv.Close()

	p := NewOpenMeteo(0, 0, WithEndpoints(srv.URL, srv.URL), WithRetries(2))
	_, err := p.Forecast(context.Background(), now, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}
