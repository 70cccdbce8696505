package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "GridCast/internal/domain/repository"
	"GridCast/internal/service/ratelimit"
	"GridCast/internal/service/scheduler"
	"GridCast/internal/usecase"
	"GridCast/pkg/cache"
	pkgch "GridCast/pkg/clickhouse"
	"GridCast/pkg/config"
	xhttp "GridCast/pkg/http"
	pkgkafka "GridCast/pkg/kafka"
	applogger "GridCast/pkg/logger"
	"GridCast/pkg/queue"
)

// Components are the long-lived parts the App starts and stops. Consumer,
// Actuals, Producer and ClickHouse are nil when their backend is disabled.
type Components struct {
	HTTP         *xhttp.Server
	Orchestrator *usecase.Orchestrator
	History      domrepo.HistoryStore
	Cache        cache.Service
	Publisher    domrepo.ForecastPublisher
	Jobs         queue.Runner
	Scheduler    *scheduler.Scheduler
	Limiter      *ratelimit.Limiter
	Consumer     *pkgkafka.Consumer
	Actuals      pkgkafka.MessageHandler
	Producer     *pkgkafka.Producer
	ClickHouse   *pkgch.Client
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg  *config.Config
	log  *applogger.Logger
	c    Components
	stop chan struct{}
}

func New(cfg *config.Config, lg *applogger.Logger, c Components) *App {
	if lg == nil {
		lg = applogger.Nop()
	}
	return &App{cfg: cfg, log: lg, c: c, stop: make(chan struct{})}
}

// Orchestrator is used by the one-shot CLI commands.
func (a *App) Orchestrator() *usecase.Orchestrator { return a.c.Orchestrator }

// Run starts every component and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.Start(); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}
	<-ctx.Done()
	a.log.Info("shutdown signal received")

	sctx, scancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer scancel()
	return a.Shutdown(sctx)
}

func (a *App) Start() error {
	if a.c.Jobs != nil {
		if err := a.c.Jobs.Start(); err != nil {
			return err
		}
		a.log.Info("job queue started", applogger.Bool("redis", a.cfg.Queue.Enabled))
	}

	if a.c.Consumer != nil && a.c.Actuals != nil {
		a.c.Consumer.RegisterHandler(a.c.Actuals)
		if err := a.c.Consumer.Start(); err != nil {
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.c.Actuals.Topic()))
	}

	if a.c.Scheduler != nil && a.cfg.Scheduler.Enabled {
		if err := a.c.Scheduler.Start(); err != nil {
			return err
		}
	}

	if a.c.Limiter != nil {
		go ratelimit.Janitor(a.c.Limiter, time.Minute, a.stop)
	}

	return a.c.HTTP.Start()
}

// Shutdown stops intake first, then drains background work, then closes
// the backends.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")
	close(a.stop)

	if a.c.HTTP != nil {
		if err := a.c.HTTP.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}
	if a.c.Scheduler != nil {
		a.c.Scheduler.Stop()
	}
	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.c.Jobs != nil {
		if err := a.c.Jobs.Stop(ctx); err != nil {
			a.log.Warn("job queue stop error", applogger.Error(err))
		}
	}
	if a.c.Orchestrator != nil {
		a.c.Orchestrator.Wait()
	}
	if a.c.Publisher != nil {
		if err := a.c.Publisher.Close(); err != nil {
			a.log.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.c.Cache != nil {
		if err := a.c.Cache.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}
	if a.c.History != nil {
		if err := a.c.History.Close(); err != nil {
			a.log.Warn("history close error", applogger.Error(err))
		}
	}
	if a.c.ClickHouse != nil {
		if err := a.c.ClickHouse.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	// Flush aggregated error logs before the producer goes away.
	a.log.RemoveCollector()
	if a.c.Producer != nil {
		if err := a.c.Producer.Close(); err != nil {
			return err
		}
	}
	return nil
}
