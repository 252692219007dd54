package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"nezha/pkg/config"
	"nezha/pkg/database"
	"nezha/pkg/dedup"
	"nezha/pkg/mq"
	"nezha/pkg/watchdog"
)

const divergenceQueueName = "nezha_divergence_reports"

// bridgeApp ingests the report files internal/report.Reporter writes
// under WatchDir, persists one DivergenceReport per file (skipping
// files it has already forwarded), and publishes a notification onto
// RabbitMQ — turning the core's filesystem artifacts into events the
// rest of the fuzzing infrastructure can react to.
type bridgeApp struct {
	logger   *zap.Logger
	config   *config.AppConfig
	db       *gorm.DB
	guard    *dedup.Guard
	rabbitMQ mq.RabbitMQ
	watchers *watchdog.WatchDogFactory
}

type bridgeParams struct {
	fx.In

	Logger    *zap.Logger
	Config    *config.AppConfig
	DB        *gorm.DB
	Guard     *dedup.Guard
	RabbitMQ  mq.RabbitMQ
	Watchers  *watchdog.WatchDogFactory
	Lifecycle fx.Lifecycle
}

func newBridgeApp(p bridgeParams) *bridgeApp {
	app := &bridgeApp{
		logger:   p.Logger,
		config:   p.Config,
		db:       p.DB,
		guard:    p.Guard,
		rabbitMQ: p.RabbitMQ,
		watchers: p.Watchers,
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			app.start(ctx)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			return nil
		},
	})

	return app
}

func isSummaryFile(path string) bool {
	return strings.HasSuffix(path, ".txt") && strings.HasPrefix(filepath.Base(path), "diff-")
}

func (a *bridgeApp) start(ctx context.Context) {
	notifyChan := make(chan string, 64)
	watcher := a.watchers.New(ctx, notifyChan, isSummaryFile)
	watcher.AddDir(a.config.WatchDir)

	go func() {
		for path := range notifyChan {
			a.handleFile(ctx, path)
		}
	}()
}

func (a *bridgeApp) handleFile(ctx context.Context, path string) {
	fields, err := parseReportFilename(path)
	if err != nil {
		a.logger.Warn("ignoring unrecognized file in watch dir", zap.String("path", path), zap.Error(err))
		return
	}

	claimed, err := a.guard.ClaimOnce(ctx, filepath.Base(path))
	if err != nil {
		a.logger.Error("dedup claim failed, forwarding anyway", zap.String("path", path), zap.Error(err))
	} else if !claimed {
		return
	}

	if sidecar, err := readSidecar(path); err != nil {
		a.logger.Warn("failed to read sidecar, forwarding from filename alone", zap.String("path", path), zap.Error(err))
	} else if sidecar != nil {
		if sidecar.HExit != fields.HExit || sidecar.HCoarse != fields.HCoarse || sidecar.HFine != fields.HFine {
			a.logger.Warn("sidecar hashes disagree with filename, trusting filename",
				zap.String("path", path), zap.Uint32("sidecarHExit", sidecar.HExit), zap.Uint32("fieldsHExit", fields.HExit))
		}
		a.logger.Debug("sidecar target breakdown", zap.String("path", path), zap.Int("targets", len(sidecar.Targets)))
	}

	sourcePath := diffPathFor(path)
	report := database.NewDivergenceReport(fields.DistinctOut, fields.HExit, fields.HCoarse, fields.HFine, fields.InputSHA1, path, sourcePath)
	if err := database.AddDivergenceReport(ctx, a.db, report); err != nil {
		a.logger.Error("failed to persist divergence report", zap.String("path", path), zap.Error(err))
		return
	}

	if err := a.publish(ctx, report); err != nil {
		a.logger.Error("failed to publish divergence event", zap.String("path", path), zap.Error(err))
		return
	}

	a.logger.Info("forwarded divergence report",
		zap.String("summary", path),
		zap.Uint32("hExit", fields.HExit),
		zap.Uint32("hCoarse", fields.HCoarse),
		zap.Uint32("hFine", fields.HFine),
	)
}

// diffPathFor maps a diffs-summary/*.txt path back to its sibling raw
// artifact under diffs/, following internal/report.Reporter's fixed
// baseDir/{diffs,diffs-summary} layout.
func diffPathFor(summaryPath string) string {
	dir := filepath.Dir(summaryPath)
	sibling := filepath.Join(filepath.Dir(dir), "diffs", strings.TrimSuffix(filepath.Base(summaryPath), ".txt"))
	return sibling
}

func (a *bridgeApp) publish(ctx context.Context, report *database.DivergenceReport) error {
	channel := a.rabbitMQ.GetChannel()
	if channel == nil {
		return fmt.Errorf("reportbridge: no RabbitMQ channel available")
	}
	defer channel.Close()

	q, err := channel.QueueDeclare(divergenceQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("reportbridge: declaring queue: %w", err)
	}

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("reportbridge: marshaling report: %w", err)
	}

	return channel.PublishWithContext(ctx, "", q.Name, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}
