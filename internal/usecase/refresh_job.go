package usecase

import (
	"context"
	"fmt"
	"time"

	"GridCast/internal/domain/models"
	applogger "GridCast/pkg/logger"
	"GridCast/pkg/queue"
	"GridCast/pkg/util"
)

const RefreshJobType = "forecast.refresh"

// RefreshPayload asks for the forecast of horizon hours from Start.
type RefreshPayload struct {
	Start   time.Time `json:"start"`
	Horizon int       `json:"horizon"`
}

// Locker deduplicates refreshes across workers and processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type horizonPredictor interface {
	PredictHorizon(ctx context.Context, start time.Time, horizon int) (*models.ForecastResult, error)
}

// RefreshJob recomputes a forecast so that it is cached and published
// before anyone asks for it.
type RefreshJob struct {
	predictor horizonPredictor
	locker    Locker
	lockTTL   time.Duration
	loc       *time.Location
	logger    *applogger.Logger
}

// NewRefreshJob accepts a nil locker; every message then runs.
func NewRefreshJob(p *Orchestrator, locker Locker, lockTTL time.Duration, logger *applogger.Logger) *RefreshJob {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &RefreshJob{predictor: p, locker: locker, lockTTL: lockTTL, loc: p.Location(), logger: logger}
}

func (j *RefreshJob) Name() string { return "forecast refresh" }

func (j *RefreshJob) Type() string { return RefreshJobType }

func (j *RefreshJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[RefreshPayload](payload)
	if err != nil {
		return err
	}
	if p.Start.IsZero() || p.Horizon < 1 {
		return fmt.Errorf("refresh: invalid payload start=%s horizon=%d", p.Start, p.Horizon)
	}
	start := util.HourFloorIn(p.Start, j.loc)

	if j.locker != nil {
		key := fmt.Sprintf("lock:refresh:%s:%d", start.UTC().Format(time.RFC3339), p.Horizon)
		ok, err := j.locker.TryLock(ctx, key, j.lockTTL)
		if err != nil {
			return fmt.Errorf("refresh lock: %w", err)
		}
		if !ok {
			j.logger.Debug("refresh already running", applogger.Time("start", start))
			return nil
		}
		defer func() {
			if err := j.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
				j.logger.Warn("refresh unlock failed", applogger.String("key", key), applogger.Error(err))
			}
		}()
	}

	res, err := j.predictor.PredictHorizon(ctx, start, p.Horizon)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	j.logger.Info("forecast refreshed",
		applogger.Time("start", start),
		applogger.Int("horizon", p.Horizon),
		applogger.String("mode", string(res.Metadata.Mode)),
		applogger.Bool("cache_hit", res.Metadata.CacheHit),
	)
	return nil
}

var _ queue.Job = (*RefreshJob)(nil)
