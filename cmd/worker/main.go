// Command worker runs the submit and poll workers as a long-lived process
// with an internal scheduler, for deployments without an external cron.
// Each tick is the same single-shot batch the cron endpoints run, so the
// slot discipline is identical in both modes.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/ai-video-generator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-video-generator/internal/app"
	"github.com/fairyhunter13/ai-video-generator/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	// Dedicated metrics endpoint; the worker serves no API traffic.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: ":9090", Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		if err := srv.ListenAndServe(); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = deps.Close() }()

	slog.Info("worker starting",
		slog.Duration("submit_interval", cfg.SubmitWorkerInterval),
		slog.Duration("poll_interval", cfg.PollWorkerInterval))

	go runLoop(ctx, cfg.SubmitWorkerInterval, "submit", func(c context.Context) error {
		report, err := deps.Submit.RunOnce(c)
		if err == nil {
			slog.Info("submit run done",
				slog.Int("submitted", report.Submitted),
				slog.Int("failed", report.Failed),
				slog.Int("slots", report.Slots),
				slog.String("reason", report.Reason))
		}
		return err
	})
	go runLoop(ctx, cfg.PollWorkerInterval, "poll", func(c context.Context) error {
		report, err := deps.Poll.RunOnce(c)
		if err == nil {
			slog.Info("poll run done",
				slog.Int("polled", report.Polled),
				slog.Int("completed", report.Completed),
				slog.Int("failed", report.Failed),
				slog.Int("slots", report.Slots),
				slog.String("reason", report.Reason))
		}
		return err
	})

	<-ctx.Done()
	slog.Info("worker shutting down")
}

// runLoop ticks fn at the given interval until the context ends. Run
// errors are logged and the loop continues; the next tick retries.
func runLoop(ctx context.Context, interval time.Duration, name string, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				slog.Error("worker run failed", slog.String("worker", name), slog.Any("error", err))
			}
		}
	}
}
