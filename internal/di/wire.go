//go:build wireinject
// +build wireinject

package di

import (
	"FinSignal/pkg/config"
	"FinSignal/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Foundation
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideCacheService,
		ProvideResponseCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideSignalStorage,
		ProvideZoneOrder,
		ProvideMarketResolver,
		ProvideThresholdSource,
		ProvideNotifyQueue,
		ProvideNotifier,
		ProvideFeedStream,

		// Engine services
		ProvideZoneClassifier,
		ProvideTrendEvaluator,
		ProvideTimingEvaluator,
		ProvideMomentumEvaluator,
		ProvideCombiner,
		ProvideAggregator,
		ProvideEmissionGate,

		// Use cases
		ProvideHybridEngine,
		ProvideSignalDispatcher,
		ProvideReadingsPipeline,
		ProvideReadingsCollector,
		ProvideKafkaReadingsHandler,

		// HTTP
		ProvideSignalsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
