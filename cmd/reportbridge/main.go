package main

import (
	_ "go.uber.org/automaxprocs"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"nezha/pkg/config"
	"nezha/pkg/database"
	"nezha/pkg/dedup"
	"nezha/pkg/logger"
	"nezha/pkg/mq"
	"nezha/pkg/telemetry"
	"nezha/pkg/watchdog"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			database.NewDBConnection,
			database.NewRedisClient,
			logger.NewLogger,
			mq.NewRabbitMQ,
			telemetry.NewTelemetry,
			telemetry.NewTracerFactory,
			dedup.NewGuard,
			watchdog.NewWatchDogFactory,
			newBridgeApp,
		),
		fx.Invoke(func(*bridgeApp) {}),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			zlogger := fxevent.ZapLogger{Logger: log}
			zlogger.UseLogLevel(zap.DebugLevel)
			return &zlogger
		}),
	)
	app.Run()
}
