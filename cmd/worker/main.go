package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alphaboard/research-qa/internal/bootstrap"
	"github.com/alphaboard/research-qa/internal/config"
	"github.com/alphaboard/research-qa/internal/core/domain"
	"github.com/alphaboard/research-qa/internal/observability/logging"
	"github.com/alphaboard/research-qa/internal/observability/metrics"
)

const service = "worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(service, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(service)
	go serveMetrics(cfg.WorkerMetricsPort, workerMetrics)
	go runCacheJanitor(ctx, app, workerMetrics, time.Duration(cfg.CacheSweepSeconds)*time.Second)

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeQueryAnswered(ctx, func(handlerCtx context.Context, event domain.QueryAuditEvent) error {
		workerMetrics.StartAuditEvent()
		workerMetrics.ObserveAuditLag(service, time.Since(event.AnsweredAt))

		handleErr := handleAuditEvent(handlerCtx, event)
		workerMetrics.FinishAuditEvent(service, handleErr)
		return handleErr
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

// handleAuditEvent is the audit sink: one structured log line per
// answered query, consumed downstream by the log pipeline.
func handleAuditEvent(_ context.Context, event domain.QueryAuditEvent) error {
	slog.Info("query_answered",
		"event_id", event.ID,
		"tenant", event.TenantID,
		"question_hash", event.QuestionHash,
		"tier", event.Tier,
		"cache_hit", event.CacheHit,
		"duration_ms", event.DurationMS,
		"answered_at", event.AnsweredAt,
	)
	return nil
}

func runCacheJanitor(ctx context.Context, app *bootstrap.App, m *metrics.WorkerMetrics, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			removed, err := app.Cache.DeleteExpired(sweepCtx)
			cancel()

			m.FinishCacheSweep(service, removed, err)
			if err != nil {
				slog.Warn("cache_sweep_failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("cache_sweep_done", "removed", removed)
			}
		}
	}
}

func serveMetrics(port string, m *metrics.WorkerMetrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if err := http.ListenAndServe(":"+port, mux); err != nil {
		slog.Error("worker_metrics_server_failed", "error", err)
	}
}
