package usecase

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"GridCast/internal/domain/models"
	applogger "GridCast/pkg/logger"
)

const (
	fallbackScore = 50
	fallbackBand  = 0.10
	// fallbackSwing is the relative day amplitude of the static curve,
	// peaking at fallbackPeakHour local time.
	fallbackSwing    = 0.15
	fallbackPeakHour = 14
)

func (o *Orchestrator) fallback(ctx context.Context, log *applogger.Logger, spec runSpec, cause error) *models.ForecastResult {
	reason := fallbackReason(ctx, cause)
	if errors.Is(cause, ErrModelFailure) {
		log.Error("model failed at request time, serving static fallback", applogger.Error(cause))
	} else {
		log.Warn("serving static fallback", applogger.String("reason", reason), applogger.Error(cause))
	}
	o.metrics.RecordFallback(reason)

	res := StaticForecast(spec.start, spec.horizon, o.cfg.FallbackBase, o.loc)
	res.Metadata.ID = uuid.NewString()
	res.Metadata.Reason = reason
	res.Metadata.ModelVersion = o.models.Version
	res.Metadata.Unit = o.models.Unit
	res.Metadata.GeneratedAt = o.now().UTC()
	o.metrics.RecordForecast(string(models.ModeFallback), 0)
	o.publish(log, res)
	return res
}

// StaticForecast is the day-shaped curve served when no model output can be
// trusted. It depends only on its arguments.
func StaticForecast(start time.Time, horizon int, base float64, loc *time.Location) *models.ForecastResult {
	if loc == nil {
		loc = time.UTC
	}
	res := &models.ForecastResult{
		Start:    start,
		Horizon:  horizon,
		Points:   make([]models.PredictionPoint, horizon),
		Metadata: models.ForecastMetadata{Mode: models.ModeFallback},
	}
	for i := range res.Points {
		ts := start.Add(time.Duration(i) * time.Hour)
		h := float64(ts.In(loc).Hour())
		v := base * (1 + fallbackSwing*math.Cos(2*math.Pi*(h-fallbackPeakHour)/24))
		res.Points[i] = models.PredictionPoint{
			Timestamp:       ts,
			Baseline:        v,
			Combined:        v,
			ConfidenceLower: v * (1 - fallbackBand),
			ConfidenceUpper: v * (1 + fallbackBand),
			Confidence:      fallbackScore,
			Tier:            models.TierStatic,
		}
	}
	return res
}
