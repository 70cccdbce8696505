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

const policyPredicted = "predicted"

// historical replays a start inside the stored history. The residual
// window is rebuilt from [start-W, start-1h]: true residuals where an actual
// exists, predicted ones for holes. Horizon hours with an actual use it for
// later lags; hours past L run autoregressively.
func (o *Orchestrator) historical(ctx context.Context, rc *runContext) (*models.ForecastResult, error) {
	spec := rc.spec
	seedFrom := spec.start.Add(-time.Duration(o.window) * time.Hour)

	present := 0
	for ts := seedFrom; ts.Before(spec.start); ts = ts.Add(time.Hour) {
		if _, ok := rc.at(ts); ok {
			present++
		}
	}
	need := int(math.Ceil(o.cfg.MinSeedCoverage * float64(o.window)))
	if present < need {
		return nil, fmt.Errorf("%w: %d of %d seed hours present, need %d", ErrInsufficientHistory, present, o.window, need)
	}

	hist := features.NewWorkingHistory(rc.before(spec.start), o.loc)
	tr := residual.NewTracker(o.window, o.models.Scaler)
	for ts := seedFrom; ts.Before(spec.start); ts = ts.Add(time.Hour) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w, _ := o.weatherAt(ctx, rc, ts)
		if p, ok := rc.at(ts); ok {
			base, err := o.baseline(ctx, ts, hist, w)
			if err != nil {
				return nil, err
			}
			tr.Push(p.Load - base)
			continue
		}
		s, err := o.step(ctx, ts, hist, tr, w)
		if err != nil {
			return nil, err
		}
		tr.Push(s.resid)
		hist.Append(ts, s.combined)
	}

	res := o.newResult(spec, models.ModeHistorical)
	var actual, hybrid, base []float64
	for i := 0; i < spec.horizon; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ts := spec.start.Add(time.Duration(i) * time.Hour)
		w, degraded := o.weatherAt(ctx, rc, ts)
		if degraded {
			rc.degraded++
		}
		s, err := o.step(ctx, ts, hist, tr, w)
		if err != nil {
			return nil, err
		}

		p, ok := rc.at(ts)
		if ok && !ts.After(rc.last) {
			a := p.Load
			hist.Append(ts, a)
			if o.cfg.ResidualPolicy == policyPredicted {
				tr.Push(s.resid)
			} else {
				tr.Push(a - s.base)
			}
			pt := o.point(ts, s, 95, models.TierHistorical)
			pt.Actual = &a
			res.Points = append(res.Points, pt)
			actual = append(actual, a)
			hybrid = append(hybrid, s.combined)
			base = append(base, s.base)
			continue
		}
		hist.Append(ts, s.combined)
		tr.Push(s.resid)
		res.Points = append(res.Points, o.point(ts, s, 90, models.TierIterative))
	}

	res.Metadata.Actuals = len(actual)
	if len(actual) > 0 {
		res.Metadata.Metrics = &models.ForecastMetrics{
			Hybrid:   Accuracy(actual, hybrid),
			Baseline: Accuracy(actual, base),
			Samples:  len(actual),
		}
	}
	return res, nil
}
