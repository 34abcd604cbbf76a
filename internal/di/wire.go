//go:build wireinject
// +build wireinject

package di

import (
	"MarketPulse/pkg/config"
	"MarketPulse/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideRedisCache,
	ProvideCache,
	ProvideKafkaProducer,
)

var repositorySet = wire.NewSet(
	ProvideBarStore,
	ProvideScoreStore,
	ProvideReportStore,
	ProvideEventPublisher,
	ProvideBarSource,
)

var usecaseSet = wire.NewSet(
	ProvideSnapshotFields,
	ProvideFetchBars,
	ProvideDailyScoring,
	ProvideComment,
	ProvideMarketSnapshot,
	ProvideDailyPipeline,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		infraSet,
		repositorySet,
		usecaseSet,

		ProvideReportQuery,
		ProvideRunQueue,
		ProvideRunDispatcher,
		ProvideKafkaConsumer,
		ProvideKafkaRunHandler,
		ProvideHTTPHandler,

		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeToolkit wires the use cases for one-shot CLI commands.
func InitializeToolkit(cfg *config.Config) (*Toolkit, error) {
	wire.Build(
		infraSet,
		repositorySet,
		usecaseSet,
		ProvideToolkit,
	)
	return &Toolkit{}, nil
}
