//go:build wireinject
// +build wireinject

package di

import (
	"IgniteX/pkg/config"
	"IgniteX/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideLayeredCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideSignalStore,
		ProvideTierSource,
		ProvideTierPolicies,
		ProvideQuotaRegistry,
		ProvideSignalEvents,
		ProvideRedisQueue,
		ProvideNotifier,

		// Collaborator clients
		ProvideRegimeSource,
		ProvideWinRateSource,

		// Pipeline stages
		ProvideThresholdStore,
		ProvideGateChain,
		ProvideBuffer,
		ProvideIngress,
		ProvideSignalPipeline,
		ProvideIngestPipeline,
		ProvideCandidatesHandler,

		// Distribution
		ProvideHub,
		ProvideEngine,
		ProvideScheduler,

		// HTTP surface
		ProvideOpsHandler,
		ProvideSignalsHandler,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
