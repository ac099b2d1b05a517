//go:build wireinject
// +build wireinject

package di

import (
	"MarkovCast/pkg/config"
	"MarkovCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisCache,

		// Realtime ingest
		ProvideTickStorage,
		ProvideTickPublisher,
		ProvideFinnhubStream,
		ProvideKafkaTicksHandler,
		ProvideTickProcessor,
		ProvideTickCollector,

		// Forecast stack
		ProvideHistorySource,
		ProvideFeatureStore,
		ProvideFeatureReader,
		ProvideCandleWriter,
		ProvideBacktestArchive,
		ProvidePriceLoader,
		ProvideForecaster,
		ProvideForecastUseCase,
		ProvideHistoryUseCase,
		ProvideBacktestUseCase,
		ProvideBacktestJob,

		// Caching and queue
		ProvideStatusCache,
		ProvideBytesCache,
		ProvideQueuePublisher,
		ProvideQueueConsumer,

		// HTTP
		ProvideForecastHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
