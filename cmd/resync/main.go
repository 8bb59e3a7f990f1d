// resync re-derives every plant's watering reminder from stored state and
// pushes it to the notification gateway. Run it after a gateway outage or
// data import:
//
//	go run ./cmd/resync
//
// Set PUSHGATEWAY_URL to publish the pass's counters to a Prometheus
// Pushgateway.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/plantcare/config"
	"github.com/ErlanBelekov/plantcare/internal/infrastructure/postgres"
	ctxlog "github.com/ErlanBelekov/plantcare/internal/log"
	"github.com/ErlanBelekov/plantcare/internal/metrics"
	"github.com/ErlanBelekov/plantcare/internal/notify"
	"github.com/ErlanBelekov/plantcare/internal/scheduler"
	"github.com/ErlanBelekov/plantcare/internal/season"
	"github.com/ErlanBelekov/plantcare/internal/usecase"
	"github.com/lmittmann/tint"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg, logger)
	stop()
	os.Exit(code)
}

// run returns the process exit code: 1 when the pass could not run, 2 when
// some reminders failed to sync.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) int {
	if cfg.UsesMemoryGateway() {
		logger.Error("resync needs GATEWAY_URL: the in-memory gateway would discard every reminder")
		return 1
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db", "error", err)
		return 1
	}
	defer pool.Close()

	gateway := notify.NewGateway(cfg.Env, cfg.GatewayURL, cfg.GatewayTimeout(), logger)
	if err := gateway.Ping(ctx); err != nil {
		logger.Error("notification gateway unreachable", "error", err)
		return 1
	}

	uc := usecase.NewPlantUsecase(
		postgres.NewPlantRepository(pool, logger),
		scheduler.New(gateway, logger),
		season.NewResolver(cfg.SouthernRegions),
		cfg.Location(),
		logger,
	)

	start := time.Now()
	summary, err := uc.ResyncAll(ctx, cfg.ResyncBatchSize)
	pushMetrics(ctx, cfg.PushgatewayURL, logger)
	if err != nil {
		logger.Error("resync aborted", "error", err, "processed", summary.Processed)
		return 1
	}

	logger.Info("resync complete", "duration", time.Since(start))
	if summary.Failed > 0 {
		return 2
	}
	return 0
}

// pushMetrics publishes the pass's counters. A failed push is logged and does
// not change the exit code.
func pushMetrics(ctx context.Context, url string, logger *slog.Logger) {
	if url == "" {
		logger.Info("PUSHGATEWAY_URL not set, resync metrics not published")
		return
	}
	if err := metrics.PushResync(context.WithoutCancel(ctx), url); err != nil {
		logger.Warn("resync metrics not published", "error", err)
		return
	}
	logger.Info("resync metrics pushed", "url", url)
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
