package usecase

import (
	"context"
	"math"
	"time"

	"GridCast/internal/domain/models"
	domrepo "GridCast/internal/domain/repository"
	"GridCast/internal/services/features"
	"GridCast/internal/services/residual"
)

// iterative forecasts from the last real hours up to the anchor. Hours
// between the anchor and start are gap-filled first, from the day cache
// where a whole local day is memoized and by the models otherwise. Every
// combined prediction is appended to the working history.
func (o *Orchestrator) iterative(ctx context.Context, rc *runContext) (*models.ForecastResult, error) {
	spec := rc.spec
	seed := rc.before(rc.anchor.Add(time.Hour))
	if len(seed) == 0 {
		return nil, domrepo.ErrNoHistory
	}

	hist := features.NewWorkingHistory(seed, o.loc)
	tr := residual.NewTracker(o.window, o.models.Scaler)
	from := rc.anchor.Add(-time.Duration(o.window-1) * time.Hour)
	var resids []float64
	for _, p := range seed {
		if p.Timestamp.Before(from) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w, _ := o.weatherAt(ctx, rc, p.Timestamp)
		base, err := o.baseline(ctx, p.Timestamp, hist, w)
		if err != nil {
			return nil, err
		}
		resids = append(resids, p.Load-base)
	}
	tr.Initialize(resids)

	gap, err := o.fillGap(ctx, rc, hist, tr)
	if err != nil {
		return nil, err
	}

	res := o.newResult(spec, models.ModeIterative)
	res.Metadata.GapHours = gap
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
		hist.Append(ts, s.combined)
		tr.Push(s.resid)
		score := math.Max(75, 90-float64(i)/6)
		res.Points = append(res.Points, o.point(ts, s, score, models.TierIterative))
	}
	return res, nil
}

// fillGap advances hist and tr over (anchor, start) and returns the number
// of hours filled.
func (o *Orchestrator) fillGap(ctx context.Context, rc *runContext, hist *features.WorkingHistory, tr *residual.Tracker) (int, error) {
	start := rc.spec.start
	gap := 0
	for ts := rc.anchor.Add(time.Hour); ts.Before(start); {
		if err := ctx.Err(); err != nil {
			return gap, err
		}
		if n, err := o.fillDay(ctx, rc, ts, hist, tr); err != nil {
			return gap, err
		} else if n > 0 {
			gap += n
			ts = ts.Add(time.Duration(n) * time.Hour)
			continue
		}

		w, degraded := o.weatherAt(ctx, rc, ts)
		if degraded {
			rc.degraded++
		}
		s, err := o.step(ctx, ts, hist, tr, w)
		if err != nil {
			return gap, err
		}
		hist.Append(ts, s.combined)
		tr.Push(s.resid)
		gap++
		ts = ts.Add(time.Hour)
	}
	return gap, nil
}

// fillDay uses a memoized day when ts is a local midnight and the whole day
// lies inside the gap. It returns 0 when the cache cannot serve.
func (o *Orchestrator) fillDay(ctx context.Context, rc *runContext, ts time.Time, hist *features.WorkingHistory, tr *residual.Tracker) (int, error) {
	if o.cache == nil {
		return 0, nil
	}
	local := ts.In(o.loc)
	if local.Hour() != 0 || local.Minute() != 0 {
		return 0, nil
	}
	n := hoursInDay(local, o.loc)
	if ts.Add(time.Duration(n) * time.Hour).After(rc.spec.start) {
		return 0, nil
	}
	vals, err := o.cache.GetDay(ctx, local)
	if err != nil || len(vals) != n {
		return 0, nil
	}
	o.metrics.RecordCache("day", "hit")
	for i, v := range vals {
		h := ts.Add(time.Duration(i) * time.Hour)
		w, _ := o.weatherAt(ctx, rc, h)
		base, err := o.baseline(ctx, h, hist, w)
		if err != nil {
			return 0, err
		}
		hist.Append(h, v)
		tr.Push(v - base)
	}
	return n, nil
}
