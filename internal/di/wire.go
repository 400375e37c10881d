//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"FinCast/pkg/config"
	"FinCast/pkg/server"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideStorage,
	ProvideRedisClient,
	ProvideCache,
	ProvidePublisher,
)

var forecastSet = wire.NewSet(
	ProvideOrchestrator,
	ProvideResultCache,
	ProvideAnomalyScan,
	ProvideForecastJobs,
	ProvideQueue,
	ProvideScheduler,
)

var httpSet = wire.NewSet(
	ProvideLimiter,
	ProvideHandler,
	ProvideHTTPServer,
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(infraSet, forecastSet, httpSet, ProvideApp)
	return nil, nil, nil
}
