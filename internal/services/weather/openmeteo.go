package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"GridCast/internal/domain/models"
)

// Reading is one provider hour.
type Reading struct {
	Time   time.Time
	Fields models.WeatherFields
}

// Provider fetches hourly weather for whole UTC days, from and to inclusive.
type Provider interface {
	Forecast(ctx context.Context, from, to time.Time) ([]Reading, error)
	Archive(ctx context.Context, from, to time.Time) ([]Reading, error)
}

const hourlyVars = "temperature_2m,relative_humidity_2m,apparent_temperature,shortwave_radiation,precipitation,wind_speed_10m"

// OpenMeteo talks to the Open-Meteo forecast and archive APIs.
type OpenMeteo struct {
	forecastURL string
	archiveURL  string
	lat, lon    float64
	client      *http.Client
	backoff     backoff
	forecastCB  *gobreaker.CircuitBreaker
	archiveCB   *gobreaker.CircuitBreaker
}

type OpenMeteoOption func(*OpenMeteo)

func WithEndpoints(forecastURL, archiveURL string) OpenMeteoOption {
	return func(p *OpenMeteo) {
		if forecastURL != "" {
			p.forecastURL = forecastURL
		}
		if archiveURL != "" {
			p.archiveURL = archiveURL
		}
	}
}

func WithHTTPClient(c *http.Client) OpenMeteoOption {
	return func(p *OpenMeteo) { p.client = c }
}

func WithRetries(n int) OpenMeteoOption {
	return func(p *OpenMeteo) { p.backoff.maxRetries = n }
}

func NewOpenMeteo(lat, lon float64, opts ...OpenMeteoOption) *OpenMeteo {
	p := &OpenMeteo{
		forecastURL: "https://api.open-meteo.com/v1/forecast",
		archiveURL:  "https://archive-api.open-meteo.com/v1/archive",
		lat:         lat,
		lon:         lon,
		client:      &http.Client{Timeout: 10 * time.Second},
		backoff:     backoff{maxRetries: 2, initial: 200 * time.Millisecond, max: 2 * time.Second},
		forecastCB:  newBreaker("openmeteo-forecast"),
		archiveCB:   newBreaker("openmeteo-archive"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *OpenMeteo) Forecast(ctx context.Context, from, to time.Time) ([]Reading, error) {
	return p.fetch(ctx, p.forecastURL, p.forecastCB, from, to, models.WeatherSourceProvider)
}

func (p *OpenMeteo) Archive(ctx context.Context, from, to time.Time) ([]Reading, error) {
	return p.fetch(ctx, p.archiveURL, p.archiveCB, from, to, models.WeatherSourceObserved)
}

type hourlyPayload struct {
	Hourly struct {
		Time                []string   `json:"time"`
		Temperature         []*float64 `json:"temperature_2m"`
		Humidity            []*float64 `json:"relative_humidity_2m"`
		ApparentTemperature []*float64 `json:"apparent_temperature"`
		ShortwaveRadiation  []*float64 `json:"shortwave_radiation"`
		Precipitation       []*float64 `json:"precipitation"`
		WindSpeed           []*float64 `json:"wind_speed_10m"`
	} `json:"hourly"`
}

func (p *OpenMeteo) fetch(ctx context.Context, base string, cb *gobreaker.CircuitBreaker, from, to time.Time, source string) ([]Reading, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(p.lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(p.lon, 'f', 4, 64))
	q.Set("hourly", hourlyVars)
	q.Set("wind_speed_unit", "ms")
	q.Set("timezone", "GMT")
	q.Set("start_date", from.UTC().Format("2006-01-02"))
	q.Set("end_date", to.UTC().Format("2006-01-02"))
	u := base + "?" + q.Encode()

	resp, err := doWithRetry(ctx, p.client, cb, p.backoff, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload hourlyPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode open-meteo: %w", err)
	}
	return payload.readings(source)
}

func (h hourlyPayload) readings(source string) ([]Reading, error) {
	at := func(s []*float64, i int) (float64, bool) {
		if i >= len(s) || s[i] == nil {
			return 0, false
		}
		return *s[i], true
	}
	out := make([]Reading, 0, len(h.Hourly.Time))
	for i, raw := range h.Hourly.Time {
		ts, err := time.ParseInLocation("2006-01-02T15:04", raw, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse open-meteo time %q: %w", raw, err)
		}
		temp, ok := at(h.Hourly.Temperature, i)
		if !ok {
			// hours past the model run come back null
			continue
		}
		w := models.WeatherFields{Temperature: temp, Source: source}
		w.Humidity, _ = at(h.Hourly.Humidity, i)
		if w.ApparentTemperature, ok = at(h.Hourly.ApparentTemperature, i); !ok {
			w.ApparentTemperature = temp
		}
		w.SolarRadiation, _ = at(h.Hourly.ShortwaveRadiation, i)
		w.Precipitation, _ = at(h.Hourly.Precipitation, i)
		w.WindSpeed, _ = at(h.Hourly.WindSpeed, i)
		out = append(out, Reading{Time: ts, Fields: w})
	}
	return out, nil
}
