package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"GridCast/internal/domain/models"
	domrepo "GridCast/internal/domain/repository"
	pkgkafka "GridCast/pkg/kafka"
	applogger "GridCast/pkg/logger"
	"GridCast/pkg/metrics"
	"GridCast/pkg/queue"
	"GridCast/pkg/util"
)

// ActualsHandler consumes completed hours from Kafka, stores them, drops
// the forecasts they make stale and asks for a refresh from the new L.
type ActualsHandler struct {
	topic   string
	writer  domrepo.ActualsWriter
	cache   domrepo.ForecastCache
	jobs    queue.Enqueuer
	horizon int
	loc     *time.Location
	metrics domrepo.Metrics
	logger  *applogger.Logger
}

// NewActualsHandler accepts a nil cache and a nil enqueuer. Timestamps are
// floored to the hour in loc.
func NewActualsHandler(topic string, writer domrepo.ActualsWriter, fc domrepo.ForecastCache, jobs queue.Enqueuer, horizon int, loc *time.Location, rec domrepo.Metrics, logger *applogger.Logger) *ActualsHandler {
	if loc == nil {
		loc = time.UTC
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = applogger.Nop()
	}
	return &ActualsHandler{
		topic:   topic,
		writer:  writer,
		cache:   fc,
		jobs:    jobs,
		horizon: horizon,
		loc:     loc,
		metrics: rec,
		logger:  logger.With(applogger.String("component", "actuals_handler")),
	}
}

func (h *ActualsHandler) Topic() string { return h.topic }

// Handle accepts one observation object or an array of them.
func (h *ActualsHandler) Handle(ctx context.Context, b []byte) error {
	pts, err := decodeActuals(b)
	if err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if len(pts) == 0 {
		return nil
	}

	first, last := pts[0].Timestamp, pts[0].Timestamp
	for i := range pts {
		p := &pts[i]
		if p.Timestamp.IsZero() || !finite(p.Load) || p.Load < 0 {
			h.metrics.RecordError("consumer_invalid")
			return fmt.Errorf("invalid actual at %s: load %v", p.Timestamp.Format(time.RFC3339), p.Load)
		}
		p.Timestamp = util.HourFloorIn(p.Timestamp, h.loc).UTC()
		if p.Timestamp.Before(first) {
			first = p.Timestamp
		}
		if p.Timestamp.After(last) {
			last = p.Timestamp
		}
	}

	started := time.Now()
	if err := h.writer.AppendActuals(ctx, pts); err != nil {
		h.metrics.RecordError("consumer_store")
		return fmt.Errorf("append actuals: %w", err)
	}
	h.metrics.RecordLatency("actuals_insert", time.Since(started).Seconds())

	if h.cache != nil {
		if err := h.cache.InvalidateRange(ctx, first, last); err != nil {
			h.logger.Warn("forecast invalidation failed", applogger.Time("from", first), applogger.Time("to", last), applogger.Error(err))
		}
	}
	if h.jobs != nil {
		payload := RefreshPayload{Start: last.Add(time.Hour), Horizon: h.horizon}
		if err := h.jobs.Enqueue(ctx, RefreshJobType, payload); err != nil {
			h.logger.Warn("refresh enqueue failed", applogger.Error(err))
		}
	}
	h.logger.Debug("actuals stored",
		applogger.Int("points", len(pts)),
		applogger.Time("from", first),
		applogger.Time("to", last),
	)
	return nil
}

func decodeActuals(b []byte) ([]models.ObservationPoint, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("empty actuals message")
	}
	if b[0] == '[' {
		var pts []models.ObservationPoint
		if err := json.Unmarshal(b, &pts); err != nil {
			return nil, fmt.Errorf("decode actuals: %w", err)
		}
		return pts, nil
	}
	var p models.ObservationPoint
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode actual: %w", err)
	}
	return []models.ObservationPoint{p}, nil
}

var _ pkgkafka.MessageHandler = (*ActualsHandler)(nil)
