package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"GridCast/internal/domain/repository"
	"GridCast/internal/handler/api"
	internalrepo "GridCast/internal/repository"
	icache "GridCast/internal/service/cache"
	svcmetrics "GridCast/internal/service/metrics"
	"GridCast/internal/service/ratelimit"
	"GridCast/internal/service/scheduler"
	"GridCast/internal/services/features"
	"GridCast/internal/services/holiday"
	"GridCast/internal/services/inference"
	"GridCast/internal/services/weather"
	"GridCast/internal/usecase"
	"GridCast/pkg/cache"
	pkgch "GridCast/pkg/clickhouse"
	"GridCast/pkg/config"
	xhttp "GridCast/pkg/http"
	pkgkafka "GridCast/pkg/kafka"
	applogger "GridCast/pkg/logger"
	"GridCast/pkg/metrics"
	"GridCast/pkg/queue"
	"GridCast/pkg/server"
)

const refreshLockTTL = 2 * time.Minute

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(100, 50*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the application logger. With Kafka enabled, error
// entries are aggregated and shipped to the log topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	lg, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil && cfg.Kafka.LogTopic != "" {
		lg.AddCollector(&applogger.CollectionConfig{
			Service:      "gridcast-" + cfg.Environment,
			TimeInterval: 30 * time.Second,
			Topic:        cfg.Kafka.LogTopic,
			Publisher:    producer,
		})
	}
	return lg, nil
}

// ProvideMetrics creates the Prometheus recorder and registers the model
// gauges.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	svcmetrics.Register()
	return metrics.New()
}

// ProvideClickHouseClient returns nil unless the history backend is
// ClickHouse.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.History.Backend != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port, cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideHistoryStore opens the configured history backend. The ClickHouse
// table is created if missing.
func ProvideHistoryStore(cfg *config.Config, ch *pkgch.Client, lg *applogger.Logger) (repository.HistoryStore, error) {
	switch cfg.History.Backend {
	case "clickhouse":
		table := cfg.ClickHouse.Database + "." + cfg.History.Table
		store := internalrepo.NewCHHistoryStore(ch, table, lg)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		stmts := append([]string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database}, store.Schema()...)
		if err := ch.InitSchema(ctx, stmts); err != nil {
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		return store, nil
	case "bolt":
		return internalrepo.OpenBoltHistory(cfg.History.BoltPath)
	case "memory":
		if cfg.History.SeedFile != "" {
			return internalrepo.LoadSeedFile(cfg.History.SeedFile)
		}
		return internalrepo.NewMemoryHistory(nil), nil
	}
	return nil, fmt.Errorf("unknown history backend %q", cfg.History.Backend)
}

// ProvideRedis returns nil when Redis is disabled.
func ProvideRedis(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2, 30*time.Second),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

func ProvideCacheService(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	switch cfg.Cache.Backend {
	case "redis":
		return rc
	case "layered":
		return cache.NewLayeredCache(rc, cache.WithLayeredMemory(cfg.Cache.MaxSize, time.Minute))
	}
	return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MaxSize), cache.WithMemoryCleanup(time.Minute))
}

func ProvideForecastCache(cfg *config.Config, svc cache.Service) repository.ForecastCache {
	return internalrepo.NewForecastCache(svc, cfg.Location(), cfg.Model.WindowSize)
}

// ProvideWeatherResolver wires Open-Meteo behind the hourly byte cache.
// With weather disabled every hour resolves to the seasonal substitute.
func ProvideWeatherResolver(cfg *config.Config, rc *cache.RedisCache, lg *applogger.Logger, rec repository.Metrics) *weather.Resolver {
	seasonal := weather.NewSeasonal(cfg.Weather.BaseTemp, cfg.Location())
	wl := lg.With(applogger.String("component", "weather"))
	if !cfg.Weather.Enabled {
		return weather.NewResolver(nil, seasonal, cfg.Weather.Timeout, wl, rec)
	}

	provider := weather.NewOpenMeteo(cfg.Weather.Latitude, cfg.Weather.Longitude,
		weather.WithEndpoints(cfg.Weather.ForecastURL, cfg.Weather.ArchiveURL),
		weather.WithRetries(cfg.Weather.MaxRetries),
		weather.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
	)
	var bc icache.BytesCache = icache.NewTTLCache()
	if rc != nil {
		bc = icache.NewRedisCache(rc.Client(), rc.Prefix())
	}
	source := weather.NewSource(provider, bc, cfg.Weather.CacheTTL, cfg.Weather.RangeHours)
	return weather.NewResolver(source, seasonal, cfg.Weather.Timeout, wl, rec)
}

func ProvideArtifacts(cfg *config.Config) (*inference.Artifacts, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a, err := inference.LoadArtifacts(ctx, cfg.Model)
	if err != nil {
		return nil, err
	}
	svcmetrics.SetModel(a.Version, a.Unit, a.ResidualStats.Std)
	return a, nil
}

func ProvideFeatureBuilder(cfg *config.Config, a *inference.Artifacts) (*features.Builder, error) {
	cal, err := holiday.New(cfg.Holidays.Fixed, cfg.Holidays.Dates)
	if err != nil {
		return nil, fmt.Errorf("holidays: %w", err)
	}
	return features.NewBuilder(a.FeatureOrder, cfg.Model.FeatureCount, cal, cfg.Location())
}

func ProvideHub(cfg *config.Config, lg *applogger.Logger) *api.Hub {
	return api.NewHub(lg.With(applogger.String("component", "stream")), cfg.Server.AllowedOrigins)
}

// ProvidePublisher fans forecasts out to stream clients and, with Kafka
// enabled, to the forecast topic.
func ProvidePublisher(cfg *config.Config, producer *pkgkafka.Producer, hub *api.Hub) repository.ForecastPublisher {
	pubs := internalrepo.Fanout{hub}
	if producer != nil {
		pubs = append(pubs, internalrepo.NewKafkaPublisher(producer, cfg.Kafka.ForecastTopic))
	}
	return pubs
}

func ProvideOrchestrator(
	cfg *config.Config,
	history repository.HistoryStore,
	resolver *weather.Resolver,
	builder *features.Builder,
	a *inference.Artifacts,
	fc repository.ForecastCache,
	pub repository.ForecastPublisher,
	rec repository.Metrics,
	lg *applogger.Logger,
) *usecase.Orchestrator {
	return usecase.NewOrchestrator(history, resolver, builder, usecase.ModelsFromArtifacts(a), fc, pub, rec,
		lg.With(applogger.String("component", "orchestrator")), cfg.Forecast, cfg.Model.WindowSize)
}

// ProvideJobQueue uses Redis when the queue is enabled and runs jobs
// in-process otherwise. The refresh job is registered here.
func ProvideJobQueue(cfg *config.Config, rc *cache.RedisCache, orch *usecase.Orchestrator, svc cache.Service, lg *applogger.Logger) queue.Runner {
	ql := lg.With(applogger.String("component", "queue"))
	var q queue.Runner
	if cfg.Queue.Enabled && rc != nil {
		q = queue.NewRedisQueue(ql, queue.QueueConfig{
			Workers:    cfg.Queue.Workers,
			RetryLimit: cfg.Queue.RetryLimit,
			RetryDelay: cfg.Queue.RetryDelay,
		}, rc.Client(), cfg.Queue.Name)
	} else {
		q = queue.NewInlineQueue(ql, 2*cfg.Forecast.RequestTimeout)
	}
	q.RegisterJob(usecase.NewRefreshJob(orch, svc, refreshLockTTL, ql))
	return q
}

// ProvideKafkaConsumer returns nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, lg *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	kl := lg.With(applogger.String("component", "kafka"))
	consumer, err := pkgkafka.NewConsumer(kl,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers, cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.LoggingHook{Log: kl})
	return consumer, nil
}

func ProvideActualsHandler(cfg *config.Config, history repository.HistoryStore, fc repository.ForecastCache, jobs queue.Runner, rec repository.Metrics, lg *applogger.Logger) *usecase.ActualsHandler {
	loc, err := time.LoadLocation(cfg.Forecast.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return usecase.NewActualsHandler(cfg.Kafka.ActualsTopic, history, fc, jobs, cfg.Forecast.DefaultHorizon, loc, rec,
		lg.With(applogger.String("component", "actuals")))
}

func ProvideScheduler(cfg *config.Config, resolver *weather.Resolver, jobs queue.Runner, lg *applogger.Logger) *scheduler.Scheduler {
	return scheduler.New(resolver, jobs, scheduler.Config{
		WeatherInterval: cfg.Scheduler.WeatherInterval,
		RefreshInterval: cfg.Scheduler.RefreshInterval,
		PrefetchHours:   cfg.Weather.PrefetchHours,
		Horizon:         cfg.Forecast.DefaultHorizon,
	}, cfg.Location(), lg)
}

func ProvideLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

func ProvideForecastHandler(
	cfg *config.Config,
	lg *applogger.Logger,
	orch *usecase.Orchestrator,
	a *inference.Artifacts,
	history repository.HistoryStore,
	svc cache.Service,
	hub *api.Hub,
	limiter *ratelimit.Limiter,
) *api.ForecastEchoHandler {
	var mw = ratelimit.PerMinute(limiter, cfg.RateLimit.RequestsPerMinute)
	if !cfg.RateLimit.Enabled {
		mw = nil
	}
	status := api.Status{Artifacts: a, History: history, Cache: svc, Timezone: cfg.Forecast.Timezone}
	return api.NewForecastEchoHandler(lg.With(applogger.String("component", "api")), orch, status, hub, mw)
}

func ProvideHTTPServer(cfg *config.Config, lg *applogger.Logger, h *api.ForecastEchoHandler) *xhttp.Server {
	metricsPath := cfg.Metrics.Path
	if !cfg.Metrics.Enabled {
		metricsPath = ""
	}
	return xhttp.NewServer(lg, h,
		xhttp.WithAddr(cfg.Server.Host, cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideApp assembles the application server.
func ProvideApp(
	cfg *config.Config,
	lg *applogger.Logger,
	srv *xhttp.Server,
	orch *usecase.Orchestrator,
	history repository.HistoryStore,
	svc cache.Service,
	pub repository.ForecastPublisher,
	jobs queue.Runner,
	sched *scheduler.Scheduler,
	limiter *ratelimit.Limiter,
	consumer *pkgkafka.Consumer,
	actuals *usecase.ActualsHandler,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
) *server.App {
	c := server.Components{
		HTTP:         srv,
		Orchestrator: orch,
		History:      history,
		Cache:        svc,
		Publisher:    pub,
		Jobs:         jobs,
		Scheduler:    sched,
		Limiter:      limiter,
		Producer:     producer,
		ClickHouse:   ch,
	}
	if consumer != nil {
		c.Consumer = consumer
		c.Actuals = actuals
	}
	return server.New(cfg, lg, c)
}
