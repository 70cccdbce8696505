package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"GridCast/internal/domain/models"
	domrepo "GridCast/internal/domain/repository"
	domsvc "GridCast/internal/domain/service"
	"GridCast/internal/services/features"
	"GridCast/internal/services/inference"
	"GridCast/internal/services/residual"
	"GridCast/pkg/cache"
	"GridCast/pkg/config"
	applogger "GridCast/pkg/logger"
	"GridCast/pkg/metrics"
	"GridCast/pkg/util"
)

const publishTimeout = 5 * time.Second

// WeatherResolver never fails; the bool reports a synthetic substitute.
type WeatherResolver interface {
	Resolve(ctx context.Context, ts time.Time) (models.WeatherFields, bool)
}

// Models is the read-only model state every run shares.
type Models struct {
	Baseline   domsvc.BaselineModel
	Correction domsvc.CorrectionModel
	Scaler     residual.Scaler
	Stats      models.ResidualStats
	Version    string
	Unit       string
}

func ModelsFromArtifacts(a *inference.Artifacts) Models {
	return Models{
		Baseline:   a.Baseline,
		Correction: a.Correction,
		Scaler:     a.Scaler,
		Stats:      a.ResidualStats,
		Version:    a.Version,
		Unit:       a.Unit,
	}
}

// Orchestrator routes each request to the historical, iterative or static
// mode and owns caching and publication of the results.
type Orchestrator struct {
	history   domrepo.HistoricalDataSource
	weather   WeatherResolver
	builder   *features.Builder
	models    Models
	cache     domrepo.ForecastCache
	publisher domrepo.ForecastPublisher
	metrics   domrepo.Metrics
	logger    *applogger.Logger
	cfg       config.ForecastConfig
	window    int
	loc       *time.Location
	now       func() time.Time

	wg sync.WaitGroup
}

// NewOrchestrator accepts a nil cache and a nil publisher.
func NewOrchestrator(
	history domrepo.HistoricalDataSource,
	weather WeatherResolver,
	builder *features.Builder,
	m Models,
	fc domrepo.ForecastCache,
	publisher domrepo.ForecastPublisher,
	rec domrepo.Metrics,
	logger *applogger.Logger,
	cfg config.ForecastConfig,
	window int,
) *Orchestrator {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = applogger.Nop()
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	if m.Stats.Std <= 0 {
		m.Stats = models.DefaultResidualStats
	}
	return &Orchestrator{
		history:   history,
		weather:   weather,
		builder:   builder,
		models:    m,
		cache:     fc,
		publisher: publisher,
		metrics:   rec,
		logger:    logger.With(applogger.String("component", "orchestrator")),
		cfg:       cfg,
		window:    window,
		loc:       loc,
		now:       time.Now,
	}
}

func (o *Orchestrator) Models() Models { return o.models }

func (o *Orchestrator) Location() *time.Location { return o.loc }

// hourFloor returns the start of ts's hour in the forecast zone.
func (o *Orchestrator) hourFloor(ts time.Time) time.Time { return util.HourFloorIn(ts, o.loc) }

// Wait blocks until in-flight publications finish.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// PredictHorizon forecasts horizon hours from start. Only an out-of-range
// horizon is an error; every other failure yields a static result.
func (o *Orchestrator) PredictHorizon(ctx context.Context, start time.Time, horizon int) (*models.ForecastResult, error) {
	if horizon < 1 || horizon > o.cfg.MaxHorizon {
		return nil, fmt.Errorf("%w: %d not in 1..%d", ErrInvalidHorizon, horizon, o.cfg.MaxHorizon)
	}
	return o.run(ctx, runSpec{
		start:   o.hourFloor(start),
		horizon: horizon,
		kind:    domrepo.HorizonKind(horizon),
		weather: models.AutoFetchWeather(),
	}), nil
}

// PredictSingleHour forecasts the hour at ts. The weather input replaces or
// patches the fetched weather of that hour only.
func (o *Orchestrator) PredictSingleHour(ctx context.Context, ts time.Time, in models.WeatherInput) (*models.HourForecast, error) {
	res := o.run(ctx, runSpec{
		start:   o.hourFloor(ts),
		horizon: 1,
		kind:    domrepo.KindSingle,
		weather: in,
	})
	return &models.HourForecast{PredictionPoint: res.Points[0], Metadata: res.Metadata}, nil
}

type runSpec struct {
	start   time.Time
	horizon int
	kind    string
	weather models.WeatherInput
}

func (s runSpec) end() time.Time { return s.start.Add(time.Duration(s.horizon-1) * time.Hour) }

func (o *Orchestrator) run(ctx context.Context, spec runSpec) *models.ForecastResult {
	began := o.now()
	if o.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RequestTimeout)
		defer cancel()
	}
	log := o.logger.With(
		applogger.Time("start", spec.start),
		applogger.Int("horizon", spec.horizon),
		applogger.String("kind", spec.kind),
	)

	rc, err := o.prepare(ctx, spec)
	if err != nil {
		return o.fallback(ctx, log, spec, err)
	}

	var key string
	if o.cache != nil && spec.weather.Cacheable() {
		key = domrepo.ForecastKey(spec.kind, spec.start, rc.seedHash(o.window))
		if res, ok := o.cached(ctx, log, key); ok {
			return res
		}
	}

	var res *models.ForecastResult
	if spec.start.After(rc.last) {
		res, err = o.iterative(ctx, rc)
	} else {
		res, err = o.historical(ctx, rc)
		if errors.Is(err, ErrInsufficientHistory) {
			log.Info("historical mode unavailable, switching to iterative", applogger.Error(err))
			res, err = o.iterative(ctx, rc)
		}
	}
	if err != nil {
		return o.fallback(ctx, log, spec, err)
	}

	last := rc.last
	res.Metadata.ID = uuid.NewString()
	res.Metadata.ModelVersion = o.models.Version
	res.Metadata.Unit = o.models.Unit
	res.Metadata.GeneratedAt = o.now().UTC()
	res.Metadata.LastAvailable = &last
	res.Metadata.DegradedWeatherHours = rc.degraded

	elapsed := o.now().Sub(began)
	o.metrics.RecordForecast(string(res.Metadata.Mode), elapsed.Seconds())
	log.Info("forecast computed",
		applogger.String("mode", string(res.Metadata.Mode)),
		applogger.Int("gap_hours", res.Metadata.GapHours),
		applogger.Int("degraded_weather_hours", rc.degraded),
		applogger.Duration("elapsed_ms", elapsed),
	)

	if key != "" {
		o.store(ctx, log, key, res)
	}
	o.publish(log, res)
	return res
}

// runContext holds what one run read from the history source.
type runContext struct {
	spec     runSpec
	last     time.Time
	anchor   time.Time
	loc      *time.Location
	obs      []models.ObservationPoint
	byHour   map[int64]int
	degraded int
}

// hourOf keys ts on the start of its local hour.
func (rc *runContext) hourOf(ts time.Time) int64 { return util.HourFloorIn(ts, rc.loc).Unix() }

// prepare reads L and every observation either mode can touch:
// [anchor-2W+1h, max(anchor, end)] with anchor = min(L, start-1h).
func (o *Orchestrator) prepare(ctx context.Context, spec runSpec) (*runContext, error) {
	last, err := o.history.LastAvailableTimestamp(ctx)
	if err != nil {
		if errors.Is(err, domrepo.ErrNoHistory) {
			return nil, err
		}
		return nil, historyError{err}
	}
	last = o.hourFloor(last)
	anchor := spec.start.Add(-time.Hour)
	if last.Before(anchor) {
		anchor = last
	}
	from := anchor.Add(-time.Duration(2*o.window-1) * time.Hour)
	to := anchor
	if spec.end().After(to) {
		to = spec.end()
	}
	obs, err := o.history.GetRange(ctx, from, to)
	if err != nil {
		return nil, historyError{err}
	}
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Timestamp.Before(obs[j].Timestamp) })
	rc := &runContext{
		spec:   spec,
		last:   last,
		anchor: anchor,
		loc:    o.loc,
		obs:    obs,
		byHour: make(map[int64]int, len(obs)),
	}
	for i, p := range obs {
		rc.byHour[rc.hourOf(p.Timestamp)] = i
	}
	return rc, nil
}

func (rc *runContext) at(ts time.Time) (models.ObservationPoint, bool) {
	i, ok := rc.byHour[rc.hourOf(ts)]
	if !ok {
		return models.ObservationPoint{}, false
	}
	return rc.obs[i], true
}

// before returns the observations strictly before ts.
func (rc *runContext) before(ts time.Time) []models.ObservationPoint {
	i := sort.Search(len(rc.obs), func(i int) bool { return !rc.obs[i].Timestamp.Before(ts) })
	return rc.obs[:i]
}

// seedHash fingerprints the real loads of the last W hours up to the anchor.
func (rc *runContext) seedHash(window int) string {
	from := rc.anchor.Add(-time.Duration(window-1) * time.Hour)
	var loads []float64
	for _, p := range rc.before(rc.anchor.Add(time.Hour)) {
		if !p.Timestamp.Before(from) {
			loads = append(loads, p.Load)
		}
	}
	return cache.HashValues(loads)
}

// weatherAt prefers stored weather, then the resolver. The request's weather
// input applies to the start hour.
func (o *Orchestrator) weatherAt(ctx context.Context, rc *runContext, ts time.Time) (models.WeatherFields, bool) {
	target := ts.Equal(rc.spec.start)
	if target {
		if w, ok := rc.spec.weather.Provided(); ok {
			return w, false
		}
	}
	var (
		w        models.WeatherFields
		degraded bool
	)
	if p, ok := rc.at(ts); ok && p.Weather != nil {
		w = *p.Weather
	} else {
		w, degraded = o.weather.Resolve(ctx, ts)
	}
	if target {
		w = rc.spec.weather.Resolve(w)
	}
	return w, degraded
}

func (o *Orchestrator) cached(ctx context.Context, log *applogger.Logger, key string) (*models.ForecastResult, bool) {
	res, err := o.cache.Get(ctx, key)
	switch {
	case err == nil:
		o.metrics.RecordCache("forecast", "hit")
		res.Metadata.CacheHit = true
		log.Debug("forecast cache hit", applogger.String("key", key))
		return res, true
	case errors.Is(err, cache.ErrCacheMiss):
		o.metrics.RecordCache("forecast", "miss")
	default:
		o.metrics.RecordCache("forecast", "error")
		log.Warn("forecast cache read failed", applogger.String("key", key), applogger.Error(err))
	}
	return nil, false
}

// store writes the result and every complete local day it covers.
func (o *Orchestrator) store(ctx context.Context, log *applogger.Logger, key string, res *models.ForecastResult) {
	ctx = context.WithoutCancel(ctx)
	if err := o.cache.Set(ctx, key, res, o.cfg.CacheTTL); err != nil {
		log.Warn("forecast cache write failed", applogger.String("key", key), applogger.Error(err))
		return
	}
	for i := 0; i < len(res.Points); i++ {
		day := res.Points[i].Timestamp.In(o.loc)
		if day.Hour() != 0 || day.Minute() != 0 {
			continue
		}
		n := hoursInDay(day, o.loc)
		if i+n > len(res.Points) {
			break
		}
		vals := make([]float64, n)
		for j := range vals {
			vals[j] = res.Points[i+j].Combined
		}
		if err := o.cache.SetDay(ctx, day, vals, o.cfg.CacheTTL); err != nil {
			log.Warn("day cache write failed", applogger.Time("day", day), applogger.Error(err))
		}
		i += n - 1
	}
}

func (o *Orchestrator) publish(log *applogger.Logger, res *models.ForecastResult) {
	if o.publisher == nil {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := o.publisher.PublishForecast(ctx, res); err != nil {
			o.metrics.RecordError("publish")
			log.Warn("publish forecast failed", applogger.String("id", res.Metadata.ID), applogger.Error(err))
		}
	}()
}

// hoursInDay counts the hours between local midnight day and the next one.
func hoursInDay(day time.Time, loc *time.Location) int {
	next := time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc)
	return int(next.Sub(day) / time.Hour)
}
