package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GridCast/internal/domain/models"
	"GridCast/internal/repository"
	"GridCast/internal/services/features"
	"GridCast/internal/services/inference"
	"GridCast/internal/services/residual"
	"GridCast/internal/usecase"
	"GridCast/pkg/config"
)

const window = 24

var lastHour = time.Date(2024, 3, 7, 23, 0, 0, 0, time.UTC)

type constWeather struct{}

func (constWeather) Resolve(context.Context, time.Time) (models.WeatherFields, bool) {
	return models.WeatherFields{Temperature: 22, Humidity: 40}, false
}

type response struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestHandler(t *testing.T, history *repository.MemoryHistoryStore) (*echo.Echo, *Hub) {
	t.Helper()
	n := len(features.DefaultOrder)
	b, err := features.NewBuilder(features.DefaultOrder, n, nil, time.UTC)
	require.NoError(t, err)

	art := &inference.Artifacts{
		Version:       "test-1",
		Baseline:      &inference.TreeEnsemble{BaseScore: 1000, NumFeatures: n},
		Correction:    inference.ConstantCorrection{Window: window},
		Scaler:        residual.Scaler{Mean: 0, Std: 1},
		FeatureOrder:  features.DefaultOrder,
		ResidualStats: models.DefaultResidualStats,
		Unit:          "MW",
		Checks:        map[string]bool{"manifest": true},
	}
	cfg := config.ForecastConfig{
		Timezone: "UTC", DefaultHorizon: 24, MaxHorizon: 168, RequestTimeout: 5 * time.Second,
		CacheTTL: time.Minute, MinSeedCoverage: 0.9, ResidualPolicy: "true_where_available", FallbackBase: 3000,
	}
	hub := NewHub(nil, nil)
	orch := usecase.NewOrchestrator(history, constWeather{}, b, usecase.ModelsFromArtifacts(art), nil, hub, nil, nil, cfg, window)

	h := NewForecastEchoHandler(nil, orch, Status{Artifacts: art, History: history, Timezone: "UTC"}, hub, nil)
	h.now = func() time.Time { return lastHour.Add(-2 * time.Hour) }
	e := echo.New()
	h.RegisterRoutes(e)
	return e, hub
}

func seededHistory() *repository.MemoryHistoryStore {
	pts := make([]models.ObservationPoint, 96)
	for i := range pts {
		pts[i] = models.ObservationPoint{Timestamp: lastHour.Add(-time.Duration(95-i) * time.Hour), Load: 1000}
	}
	return repository.NewMemoryHistory(pts)
}

func do(t *testing.T, e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var r response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r), rec.Body.String())
	return rec, r
}

func TestHorizonEndpoint(t *testing.T) {
	e, _ := newTestHandler(t, seededHistory())

	rec, r := do(t, e, http.MethodPost, "/api/v1/predict/horizon", `{"timestamp":"2024-03-08T00:00:00Z","horizon":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res models.ForecastResult
	require.NoError(t, json.Unmarshal(r.Data, &res))
	assert.Len(t, res.Points, 3)
	assert.Equal(t, models.ModeIterative, res.Metadata.Mode)
	assert.Equal(t, "MW", res.Metadata.Unit)
	assert.InDelta(t, 1000, res.Points[0].Combined, 1e-9)
}

func TestHorizonDefaultsTo24(t *testing.T) {
	e, _ := newTestHandler(t, seededHistory())
	rec, r := do(t, e, http.MethodPost, "/api/v1/predict/horizon", `{"timestamp":"2024-03-08T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res models.ForecastResult
	require.NoError(t, json.Unmarshal(r.Data, &res))
	assert.Equal(t, 24, res.Horizon)
}

func TestBadRequests(t *testing.T) {
	e, _ := newTestHandler(t, seededHistory())
	cases := map[string]struct{ path, body string }{
		"horizon zero":     {"/api/v1/predict/horizon", `{"timestamp":"2024-03-08T00:00:00Z","horizon":0}`},
		"horizon too long": {"/api/v1/predict/horizon", `{"timestamp":"2024-03-08T00:00:00Z","horizon":169}`},
		"bad timestamp":    {"/api/v1/predict/horizon", `{"timestamp":"yesterday"}`},
		"missing ts":       {"/api/v1/predict", `{}`},
		"humidity range":   {"/api/v1/predict", `{"timestamp":"2024-03-08T00:00:00Z","humidity":140}`},
		"bad start date":   {"/api/v1/predict/weekly", `{"start_date":"08/03/2024"}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec, _ := do(t, e, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestPredictEndpoint(t *testing.T) {
	e, _ := newTestHandler(t, seededHistory())
	rec, r := do(t, e, http.MethodPost, "/api/v1/predict", `{"timestamp":"2024-03-08T05:00:00Z","temperature":35}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res models.HourForecast
	require.NoError(t, json.Unmarshal(r.Data, &res))
	assert.True(t, res.Timestamp.Equal(time.Date(2024, 3, 8, 5, 0, 0, 0, time.UTC)))
	assert.Equal(t, models.ModeIterative, res.Metadata.Mode)
	assert.Equal(t, 5, res.Metadata.GapHours)
}

func TestWeeklyDefaultIsTomorrow(t *testing.T) {
	e, _ := newTestHandler(t, seededHistory())
	rec, r := do(t, e, http.MethodGet, "/api/v1/predict/weekly/default", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var wf models.WeeklyForecast
	require.NoError(t, json.Unmarshal(r.Data, &wf))
	assert.Equal(t, "2024-03-08", wf.StartDate)
	assert.Len(t, wf.Daily, 7)
}

func TestStatusAndHealth(t *testing.T) {
	e, _ := newTestHandler(t, seededHistory())

	rec, r := do(t, e, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st StatusResponse
	require.NoError(t, json.Unmarshal(r.Data, &st))
	assert.Equal(t, "ready", st.Status)
	assert.Equal(t, window, st.Model.SeqLen)
	assert.Equal(t, len(features.DefaultOrder), st.Model.NFeatures)
	require.NotNil(t, st.LastAvailable)
	assert.True(t, st.LastAvailable.Equal(lastHour))

	rec, _ = do(t, e, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	down := seededHistory()
	down.Fail = errors.New("clickhouse: connection refused")
	e, _ = newTestHandler(t, down)
	rec, r = do(t, e, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var hr HealthResponse
	require.NoError(t, json.Unmarshal(r.Data, &hr))
	assert.False(t, hr.Healthy)
	assert.Contains(t, hr.Checks["history"], "connection refused")

	// Predictions still answer, from the static curve.
	rec, r = do(t, e, http.MethodPost, "/api/v1/predict/horizon", `{"timestamp":"2024-03-08T00:00:00Z","horizon":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res models.ForecastResult
	require.NoError(t, json.Unmarshal(r.Data, &res))
	assert.Equal(t, models.ModeFallback, res.Metadata.Mode)
}

func TestStreamReceivesForecasts(t *testing.T) {
	e, hub := newTestHandler(t, seededHistory())
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Envelope {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var env Envelope
		require.NoError(t, json.Unmarshal(msg, &env))
		return env
	}
	assert.Equal(t, TypeHello, read().Type)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	res := usecase.StaticForecast(lastHour.Add(time.Hour), 2, 3000, time.UTC)
	require.NoError(t, hub.PublishForecast(context.Background(), res))

	env := read()
	assert.Equal(t, TypeForecast, env.Type)
	var ev repository.ForecastEvent
	require.NoError(t, json.Unmarshal(env.Payload, &ev))
	assert.Equal(t, 2, ev.Horizon)
	assert.Len(t, ev.Values, 2)
}
