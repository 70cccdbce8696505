package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"GridCast/internal/usecase"
	applogger "GridCast/pkg/logger"
	"GridCast/pkg/queue"
)

// Prefetcher warms the weather cache.
type Prefetcher interface {
	Prefetch(ctx context.Context, from time.Time, hours int) int
}

type Config struct {
	WeatherInterval time.Duration
	RefreshInterval time.Duration
	PrefetchHours   int
	Horizon         int
	JobTimeout      time.Duration
}

// Scheduler runs the periodic background work: weather prefetch and the
// next-day forecast refresh.
type Scheduler struct {
	scheduler *gocron.Scheduler
	weather   Prefetcher
	jobs      queue.Enqueuer
	cfg       Config
	loc       *time.Location
	logger    *applogger.Logger
	now       func() time.Time
}

// New accepts a nil weather prefetcher or enqueuer; the matching job is
// then not scheduled.
func New(weather Prefetcher, jobs queue.Enqueuer, cfg Config, loc *time.Location, lg *applogger.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if lg == nil {
		lg = applogger.Nop()
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		weather:   weather,
		jobs:      jobs,
		cfg:       cfg,
		loc:       loc,
		logger:    lg.With(applogger.String("component", "scheduler")),
		now:       time.Now,
	}
}

// Start schedules the jobs and starts the underlying scheduler. Each job
// also runs once right away.
func (s *Scheduler) Start() error {
	if s.weather != nil && s.cfg.WeatherInterval > 0 && s.cfg.PrefetchHours > 0 {
		if _, err := s.scheduler.Every(s.cfg.WeatherInterval).SingletonMode().Do(s.prefetchWeather); err != nil {
			return fmt.Errorf("schedule weather prefetch: %w", err)
		}
	}
	if s.jobs != nil && s.cfg.RefreshInterval > 0 {
		if _, err := s.scheduler.Every(s.cfg.RefreshInterval).SingletonMode().Do(s.enqueueRefresh); err != nil {
			return fmt.Errorf("schedule refresh: %w", err)
		}
	}
	if len(s.scheduler.Jobs()) == 0 {
		s.logger.Info("scheduler: nothing to schedule")
		return nil
	}
	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", applogger.Int("jobs", len(s.scheduler.Jobs())))
	return nil
}

func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) prefetchWeather() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()
	s.weather.Prefetch(ctx, s.now(), s.cfg.PrefetchHours)
}

func (s *Scheduler) enqueueRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()
	p := usecase.RefreshPayload{Start: s.NextDay(), Horizon: s.cfg.Horizon}
	if err := s.jobs.Enqueue(ctx, usecase.RefreshJobType, p); err != nil {
		s.logger.Warn("refresh enqueue failed", applogger.Error(err))
		return
	}
	s.logger.Debug("refresh enqueued", applogger.Time("start", p.Start))
}

// NextDay is local midnight of tomorrow.
func (s *Scheduler) NextDay() time.Time {
	n := s.now().In(s.loc)
	return time.Date(n.Year(), n.Month(), n.Day()+1, 0, 0, 0, 0, s.loc)
}
