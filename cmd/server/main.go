// Command server starts the video generation HTTP API, including the
// cron-facing worker trigger endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpserver "github.com/fairyhunter13/ai-video-generator/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-video-generator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-video-generator/internal/app"
	"github.com/fairyhunter13/ai-video-generator/internal/config"
	"github.com/fairyhunter13/ai-video-generator/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = deps.Close() }()

	defaults, err := config.LoadRenderDefaults(cfg.RenderDefaultsFile)
	if err != nil {
		slog.Error("render defaults load failed", slog.Any("error", err))
		os.Exit(1)
	}

	srv := httpserver.NewServer(cfg,
		usecase.NewGenerateService(deps.Jobs, deps.Events, defaults),
		usecase.NewStatusService(deps.Jobs),
		usecase.NewCatalogService(deps.Provider, deps.Cache, cfg.CatalogCacheTTL),
		usecase.NewUploadService(deps.Assets, cfg.MaxImageMB*1024*1024),
		deps.Submit,
		deps.Poll,
	)
	handler := app.BuildRouter(cfg, srv, deps.Assets.Dir())

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
