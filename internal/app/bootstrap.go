package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	assetfs "github.com/fairyhunter13/ai-video-generator/internal/adapter/assetstore/fs"
	"github.com/fairyhunter13/ai-video-generator/internal/adapter/catalogcache"
	"github.com/fairyhunter13/ai-video-generator/internal/adapter/events/redpanda"
	providerreal "github.com/fairyhunter13/ai-video-generator/internal/adapter/provider/real"
	providerstub "github.com/fairyhunter13/ai-video-generator/internal/adapter/provider/stub"
	"github.com/fairyhunter13/ai-video-generator/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-video-generator/internal/config"
	"github.com/fairyhunter13/ai-video-generator/internal/domain"
	"github.com/fairyhunter13/ai-video-generator/internal/worker"
)

// Deps holds the wired infrastructure shared by the server and worker
// processes.
type Deps struct {
	Pool     *pgxpool.Pool
	Jobs     *postgres.JobRepo
	Limits   *postgres.RateLimitRepo
	Provider domain.VideoProvider
	Events   domain.EventPublisher
	Cache    domain.CatalogCache
	Assets   *assetfs.Store
	Submit   *worker.SubmitWorker
	Poll     *worker.PollWorker

	closers []io.Closer
}

// Bootstrap connects infrastructure, seeds the rate-limit budgets, and
// builds the two workers. Call Close on shutdown.
func Bootstrap(ctx context.Context, cfg config.Config) (*Deps, error) {
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("op=app.bootstrap: %w", err)
	}

	d := &Deps{
		Pool:   pool,
		Jobs:   postgres.NewJobRepo(pool),
		Limits: postgres.NewRateLimitRepo(pool),
	}

	// Budgets are upserted at startup; the table stays the system of
	// record for in-window state.
	if err := d.Limits.Seed(ctx, cfg.ProviderAPIName, worker.SubmitCaller, cfg.SubmitMaxPerWindow, cfg.RateWindowSecs); err != nil {
		pool.Close()
		return nil, err
	}
	if err := d.Limits.Seed(ctx, cfg.ProviderAPIName, worker.PollCaller, cfg.PollMaxPerWindow, cfg.RateWindowSecs); err != nil {
		pool.Close()
		return nil, err
	}

	if cfg.ProviderStub {
		slog.Info("using stub provider")
		d.Provider = providerstub.New()
	} else {
		d.Provider = providerreal.New(cfg)
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := redpanda.NewProducer(cfg.KafkaBrokers, cfg.EventsTopic)
		if err != nil {
			pool.Close()
			return nil, err
		}
		d.Events = producer
		d.closers = append(d.closers, producer)
	} else {
		slog.Info("no event brokers configured; job events disabled")
		d.Events = redpanda.Noop{}
	}

	if cfg.RedisAddr != "" {
		cache := catalogcache.New(cfg.RedisAddr)
		d.Cache = cache
		d.closers = append(d.closers, cache)
	} else {
		slog.Info("no redis configured; catalog cache disabled")
		d.Cache = catalogcache.Noop{}
	}

	assets, err := assetfs.New(cfg.AssetDir, cfg.PublicBaseURL)
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	d.Assets = assets

	d.Submit = &worker.SubmitWorker{
		Jobs:      d.Jobs,
		Slots:     d.Limits,
		Provider:  d.Provider,
		Events:    d.Events,
		APIName:   cfg.ProviderAPIName,
		BatchSize: cfg.SubmitBatchSize,
	}
	d.Poll = &worker.PollWorker{
		Jobs:      d.Jobs,
		Slots:     d.Limits,
		Provider:  d.Provider,
		Events:    d.Events,
		APIName:   cfg.ProviderAPIName,
		BatchSize: cfg.PollBatchSize,
	}
	return d, nil
}

// Close releases all held resources.
func (d *Deps) Close() error {
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			slog.Error("close failed", slog.Any("error", err))
		}
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
	return nil
}
