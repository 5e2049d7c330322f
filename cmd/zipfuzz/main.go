package main

import (
	_ "go.uber.org/automaxprocs"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"zipfuzz/config"
	"zipfuzz/internal/crash"
	"zipfuzz/internal/mutate"
	"zipfuzz/internal/oracle"
	"zipfuzz/internal/scheduler"
	"zipfuzz/internal/stats"
	"zipfuzz/internal/types"
	"zipfuzz/internal/zipmodel"
	"zipfuzz/pkg/database"
	"zipfuzz/pkg/logger"
	"zipfuzz/pkg/mq"
	"zipfuzz/pkg/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,        // inject config
			logger.NewLogger,         // inject logger
			telemetry.NewTelemetry,   // inject telemetry
			database.NewDBConnection, // inject optional db connection
			database.NewRedisClient,  // inject optional redis client
			mq.NewRabbitMQ,           // inject optional rabbitmq service
			types.NewRunID,           // inject run identity
			zipmodel.LoadSeed,        // inject seed archive
			mutate.NewEngine,         // inject mutation engine
			oracle.NewAdapter,        // inject oracle adapter
			crash.NewManager,         // inject crash archiver
			stats.NewReporter,        // inject run statistics
		),
		fx.Invoke(
			scheduler.NewScheduler,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			zlogger := fxevent.ZapLogger{Logger: log}
			zlogger.UseLogLevel(zap.DebugLevel)
			return &zlogger
		}),
	)
	app.Run()
}
