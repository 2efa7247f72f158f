package main

import (
	"context"
	"log/slog"
	"os"

	"rewardnet/config"
	"rewardnet/internal/delivery"
	"rewardnet/internal/delivery/worker"
	"rewardnet/internal/delivery/worker/handler"
	"rewardnet/internal/infra/cache"
	logs "rewardnet/internal/infra/log"
	"rewardnet/internal/infra/metrics"
	"rewardnet/internal/infra/persistence/postgres"
	"rewardnet/internal/infra/pubsub"
	"rewardnet/internal/usecase/impl"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle
	fx.Shutdowner

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		injectHandler(),
		injectDelivery(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		postgres.New,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			postgres.NewParticipantRepository,
			postgres.NewCommissionRepository,
			postgres.NewTransactionManager,
		),
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			metrics.New,
			metrics.NewNetworkMetrics,
		),
		cache.Module,
		pubsub.Module,
	)
}

// The worker only distributes; placement and identifier services stay in the API binary.
func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewCommissionService,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewPushHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				worker.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start worker", slog.Any("error", err))

				if shutdownErr := params.Shutdown(); shutdownErr != nil {
					slog.Error("Failed to shutdown gracefully", slog.Any("error", shutdownErr))
					os.Exit(1)
				}
			}
		}()
	}
}
