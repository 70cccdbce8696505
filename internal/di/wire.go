//go:build wireinject
// +build wireinject

package di

import (
	"GridCast/pkg/config"
	"GridCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideRedis,

		// Repositories
		ProvideHistoryStore,
		ProvideCacheService,
		ProvideForecastCache,
		ProvideHub,
		ProvidePublisher,

		// Models and features
		ProvideArtifacts,
		ProvideFeatureBuilder,
		ProvideWeatherResolver,

		// Use cases and background work
		ProvideOrchestrator,
		ProvideJobQueue,
		ProvideKafkaConsumer,
		ProvideActualsHandler,
		ProvideScheduler,

		// HTTP
		ProvideLimiter,
		ProvideForecastHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
