package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	models "GridCast/internal/domain/models"
	domrepo "GridCast/internal/domain/repository"
	svcmetrics "GridCast/internal/service/metrics"
	"GridCast/internal/services/inference"
	"GridCast/internal/usecase"
	xhttp "GridCast/pkg/http"
	xlogger "GridCast/pkg/logger"
	"GridCast/pkg/util"
)

// Pinger is a dependency that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status bundles what /status and /health report on.
type Status struct {
	Artifacts *inference.Artifacts
	History   domrepo.HistoryStore
	Cache     Pinger // optional
	Timezone  string
}

// ForecastEchoHandler serves the /api/v1 forecast endpoints.
type ForecastEchoHandler struct {
	logger  *xlogger.Logger
	orch    *usecase.Orchestrator
	status  Status
	hub     *Hub
	limiter echo.MiddlewareFunc
	now     func() time.Time
}

// NewForecastEchoHandler accepts a nil hub and a nil limiter.
func NewForecastEchoHandler(logger *xlogger.Logger, orch *usecase.Orchestrator, status Status, hub *Hub, limiter echo.MiddlewareFunc) *ForecastEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ForecastEchoHandler{logger: logger, orch: orch, status: status, hub: hub, limiter: limiter, now: time.Now}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	if h.limiter != nil {
		g.Use(h.limiter)
	}
	g.POST("/predict", h.Predict)
	g.POST("/predict/horizon", h.Horizon)
	g.POST("/predict/weekly", h.Weekly)
	g.GET("/predict/weekly/default", h.WeeklyDefault)
	g.GET("/status", h.Status)
	if h.hub != nil {
		e.GET("/api/v1/stream", h.hub.Serve)
	}
	e.GET("/api/v1/health", h.Health)
}

// Predict answers a single hour, optionally with caller weather.
func (h *ForecastEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ts, ok := util.ParseTime(req.Timestamp, h.orch.Location())
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("timestamp", "timestamp must be RFC3339, ISO-8601 or unix seconds"))
	}

	in := models.AutoFetchWeather()
	if p := req.Patch(); p.Complete() {
		in = models.ProvidedWeather(p.Apply(models.WeatherFields{}))
	} else if !p.Empty() {
		in = models.PatchedWeather(p)
	}

	res, err := h.orch.PredictSingleHour(c.Request().Context(), ts, in)
	if err != nil {
		h.logger.Error("predict usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) Horizon(c echo.Context) error {
	req := &models.HorizonRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ts, ok := util.ParseTime(req.Timestamp, h.orch.Location())
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("timestamp", "timestamp must be RFC3339, ISO-8601 or unix seconds"))
	}

	res, err := h.orch.PredictHorizon(c.Request().Context(), ts, req.Horizon)
	if errors.Is(err, usecase.ErrInvalidHorizon) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("horizon", err.Error()).WithError(err))
	}
	if err != nil {
		h.logger.Error("horizon usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) Weekly(c echo.Context) error {
	req := &models.WeeklyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start := h.tomorrow()
	if req.StartDate != "" {
		d, ok := util.ParseDate(req.StartDate, h.orch.Location())
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("start_date", "start_date must be YYYY-MM-DD"))
		}
		start = d
	}
	return h.weekly(c, start)
}

func (h *ForecastEchoHandler) WeeklyDefault(c echo.Context) error {
	return h.weekly(c, h.tomorrow())
}

func (h *ForecastEchoHandler) weekly(c echo.Context, start time.Time) error {
	res, err := h.orch.PredictWeekly(c.Request().Context(), start)
	if err != nil {
		h.logger.Error("weekly usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) tomorrow() time.Time {
	return util.DayFloor(h.now().In(h.orch.Location())).AddDate(0, 0, 1)
}

type ModelInfo struct {
	Version      string             `json:"version"`
	TrainedAt    string             `json:"trained_at,omitempty"`
	SeqLen       int                `json:"seq_len"`
	NFeatures    int                `json:"n_features"`
	FeatureOrder []string           `json:"feature_order"`
	Unit         string             `json:"unit"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
}

type StatusResponse struct {
	Status        string               `json:"status"`
	Artifacts     map[string]bool      `json:"artifacts"`
	Model         ModelInfo            `json:"model"`
	ResidualStats models.ResidualStats `json:"residual_stats"`
	LastAvailable *time.Time           `json:"last_available,omitempty"`
	Timezone      string               `json:"timezone"`
	StreamClients int                  `json:"stream_clients"`
}

func (h *ForecastEchoHandler) Status(c echo.Context) error {
	a := h.status.Artifacts
	m := h.orch.Models()
	resp := StatusResponse{
		Status:        "ready",
		Artifacts:     a.Checks,
		ResidualStats: m.Stats,
		Timezone:      h.status.Timezone,
		Model: ModelInfo{
			Version:      m.Version,
			TrainedAt:    a.TrainedAt,
			SeqLen:       m.Correction.WindowSize(),
			NFeatures:    m.Baseline.FeatureCount(),
			FeatureOrder: a.FeatureOrder,
			Unit:         m.Unit,
			Metrics:      a.Metrics,
		},
	}
	if h.hub != nil {
		resp.StreamClients = h.hub.ClientCount()
	}

	started := time.Now()
	last, err := h.status.History.LastAvailableTimestamp(c.Request().Context())
	svcmetrics.ObserveCheck("last_available", started)
	switch {
	case err == nil:
		resp.LastAvailable = &last
		svcmetrics.SetLastAvailable(last)
	case errors.Is(err, domrepo.ErrNoHistory):
		resp.Status = "degraded"
	default:
		h.logger.Warn("status: history unavailable", xlogger.Error(err))
		resp.Status = "degraded"
	}
	return xhttp.SuccessResponse(c, resp)
}

type HealthResponse struct {
	Healthy bool              `json:"healthy"`
	Checks  map[string]string `json:"checks"`
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{Healthy: true, Checks: map[string]string{"model": "ok"}}
	check := func(name string, fn func(context.Context) error) {
		started := time.Now()
		err := fn(ctx)
		svcmetrics.ObserveCheck(name, started)
		if err != nil {
			resp.Healthy = false
			resp.Checks[name] = err.Error()
			return
		}
		resp.Checks[name] = "ok"
	}
	check("history", h.status.History.Health)
	if h.status.Cache != nil {
		check("cache", h.status.Cache.Ping)
	}
	if h.status.Artifacts == nil || h.status.Artifacts.Baseline == nil || h.status.Artifacts.Correction == nil {
		resp.Healthy = false
		resp.Checks["model"] = "not loaded"
	}

	code := http.StatusOK
	if !resp.Healthy {
		code = http.StatusServiceUnavailable
	}
	return xhttp.DataResponse(c, code, resp)
}
