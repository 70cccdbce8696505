package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"GridCast/internal/domain/models"
	"GridCast/internal/services/features"
	"GridCast/internal/services/residual"
)

// bandZ is the two-sided 95% normal quantile.
const bandZ = 1.96

type stepResult struct {
	base     float64
	resid    float64
	combined float64
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

func (o *Orchestrator) baseline(ctx context.Context, ts time.Time, hist *features.WorkingHistory, w models.WeatherFields) (float64, error) {
	fv := o.builder.Build(ts, hist, w)
	base, err := o.models.Baseline.Predict(ctx, fv)
	if err != nil {
		return 0, fmt.Errorf("%w: baseline at %s: %w", ErrModelFailure, ts.Format(time.RFC3339), err)
	}
	if !finite(base) {
		return 0, fmt.Errorf("%w: baseline at %s returned %v", ErrModelFailure, ts.Format(time.RFC3339), base)
	}
	return base, nil
}

// step runs both models for ts without mutating hist or tr.
func (o *Orchestrator) step(ctx context.Context, ts time.Time, hist *features.WorkingHistory, tr *residual.Tracker, w models.WeatherFields) (stepResult, error) {
	base, err := o.baseline(ctx, ts, hist, w)
	if err != nil {
		return stepResult{}, err
	}
	z, err := o.models.Correction.Predict(ctx, tr.Current())
	if err != nil {
		return stepResult{}, fmt.Errorf("%w: correction at %s: %w", ErrModelFailure, ts.Format(time.RFC3339), err)
	}
	r := tr.Scaler().Denormalize(z)
	if !finite(r) {
		return stepResult{}, fmt.Errorf("%w: correction at %s returned %v", ErrModelFailure, ts.Format(time.RFC3339), z)
	}
	return stepResult{base: base, resid: r, combined: math.Max(0, base+r)}, nil
}

func (o *Orchestrator) point(ts time.Time, s stepResult, score float64, tier models.Tier) models.PredictionPoint {
	margin := bandZ * o.models.Stats.Std
	return models.PredictionPoint{
		Timestamp:       ts,
		Baseline:        s.base,
		Residual:        s.resid,
		Combined:        s.combined,
		ConfidenceLower: math.Max(0, s.combined-margin),
		ConfidenceUpper: s.combined + margin,
		Confidence:      score,
		Tier:            tier,
	}
}

func (o *Orchestrator) newResult(spec runSpec, mode models.Mode) *models.ForecastResult {
	return &models.ForecastResult{
		Start:    spec.start,
		Horizon:  spec.horizon,
		Points:   make([]models.PredictionPoint, 0, spec.horizon),
		Metadata: models.ForecastMetadata{Mode: mode},
	}
}
