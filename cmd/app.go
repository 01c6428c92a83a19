package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-crawler/internal/archive"
	"github.com/JakeFAU/newsroom-crawler/internal/clock/system"
	"github.com/JakeFAU/newsroom-crawler/internal/config"
	"github.com/JakeFAU/newsroom-crawler/internal/crawler"
	"github.com/JakeFAU/newsroom-crawler/internal/extract"
	"github.com/JakeFAU/newsroom-crawler/internal/fetcher"
	collyfetcher "github.com/JakeFAU/newsroom-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/newsroom-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/newsroom-crawler/internal/headless/detector"
	"github.com/JakeFAU/newsroom-crawler/internal/id/uuid"
	"github.com/JakeFAU/newsroom-crawler/internal/ingest"
	"github.com/JakeFAU/newsroom-crawler/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/newsroom-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/newsroom-crawler/internal/scheduler"
	"github.com/JakeFAU/newsroom-crawler/internal/storage/gcs"
	"github.com/JakeFAU/newsroom-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/newsroom-crawler/internal/storage/memory"
	"github.com/JakeFAU/newsroom-crawler/internal/storage/postgres"
	"github.com/JakeFAU/newsroom-crawler/internal/storage/sqlite"
)

// App owns the configuration, the logger and every resource a command opens.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	closers []func() error
}

// GetLogger returns the application logger.
func (a *App) GetLogger() *zap.Logger { return a.logger }

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close resource", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}

type migrator interface {
	Migrate(ctx context.Context) error
}

// openRepository opens the configured article store. Postgres and SQLite are
// migrated first when storage.auto_migrate is set.
func (a *App) openRepository(ctx context.Context, ids crawler.IDGenerator, clock crawler.Clock) (crawler.Repository, error) {
	storageCfg := a.cfg.Storage
	var repo crawler.Repository
	switch storageCfg.Backend {
	case config.BackendPostgres:
		store, err := postgres.New(ctx, postgres.Config{
			DSN:             storageCfg.Postgres.DSN,
			MaxConns:        storageCfg.Postgres.MaxConns,
			MinConns:        storageCfg.Postgres.MinConns,
			MaxConnLifetime: time.Duration(storageCfg.Postgres.MaxConnLifetimeMinutes) * time.Minute,
		}, ids, clock)
		if err != nil {
			return nil, err
		}
		repo = store
	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, sqlite.Config{Path: storageCfg.SQLite.Path}, ids, clock)
		if err != nil {
			return nil, err
		}
		repo = store
	default:
		a.logger.Warn("using in-memory article store; articles are lost on exit")
		repo = memorystorage.NewArticleStore(ids, clock)
	}
	a.onClose(repo.Close)

	if m, ok := repo.(migrator); ok && storageCfg.AutoMigrate {
		if err := m.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate %s: %w", storageCfg.Backend, err)
		}
	}
	a.logger.Info("article store ready", zap.String("backend", storageCfg.Backend))
	return repo, nil
}

// buildFetcher wires the static fetcher and, when enabled, the headless one
// behind a router.
func (a *App) buildFetcher() crawler.Fetcher {
	cfg := a.cfg
	static := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		RespectRobots: !cfg.Crawler.IgnoreRobots,
		Timeout:       cfg.FetchTimeout(),
		MaxBodyBytes:  cfg.HTTP.MaxBodyBytes,
	})

	var rendered crawler.Fetcher
	if cfg.Headless.Enabled {
		headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
			WaitSelector:      cfg.Headless.WaitSelector,
			SettleDelay:       time.Duration(cfg.Headless.SettleDelayMs) * time.Millisecond,
		})
		if err != nil {
			a.logger.Warn("headless fetcher init failed; rendering falls back to static fetches", zap.Error(err))
		} else {
			rendered = headless
			a.onClose(func() error {
				headless.Close()
				return nil
			})
		}
	} else if cfg.Crawler.RenderListing || cfg.Crawler.RenderArticles {
		a.logger.Warn("headless disabled; render flags are served by the static fetcher")
	}
	return fetcher.NewRouter(static, rendered, a.logger.Named("fetcher"))
}

func (a *App) buildArchiver(ctx context.Context, clock crawler.Clock) (scheduler.Archiver, error) {
	cfg := a.cfg.Archive
	var store crawler.BlobStore
	switch cfg.Provider {
	case config.ArchiveLocal:
		dir, err := local.New(local.Config{BaseDir: cfg.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("init local archive: %w", err)
		}
		store = dir
	case config.ArchiveGCS:
		gcsCfg := gcs.Config{Bucket: cfg.GCSBucket, CredentialsFile: cfg.GCSCredentialsFile}
		client, err := gcs.NewClient(ctx, gcsCfg)
		if err != nil {
			return nil, err
		}
		blobs, err := gcs.New(client, gcsCfg)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		a.onClose(blobs.Close)
		store = blobs
	case config.ArchiveMemory:
		store = memorystorage.NewBlobStore()
	default:
		return nil, nil
	}
	return archive.New(store, clock, cfg.Prefix), nil
}

func (a *App) buildPublisher(ctx context.Context) (crawler.Publisher, error) {
	cfg := a.cfg.PubSub
	if cfg.TopicName == "" {
		return nil, nil
	}
	client, err := pubsubpublisher.NewClient(ctx, pubsubpublisher.Config{
		ProjectID:       cfg.ProjectID,
		CredentialsFile: cfg.CredentialsFile,
	})
	if err != nil {
		return nil, err
	}
	publisher := pubsubpublisher.New(client)
	a.onClose(publisher.Close)
	return publisher, nil
}

// pipeline bundles what the crawl commands need.
type pipeline struct {
	repo      crawler.Repository
	scheduler *scheduler.Scheduler
	ids       crawler.IDGenerator
	clock     crawler.Clock
}

// buildPipeline opens the store and assembles a Scheduler around it.
func (a *App) buildPipeline(ctx context.Context) (*pipeline, error) {
	cfg := a.cfg
	ids := uuid.New()
	clock := system.New()

	repo, err := a.openRepository(ctx, ids, clock)
	if err != nil {
		return nil, err
	}

	listings, err := extract.NewListingParser(cfg.Listing)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	extractor, err := extract.NewArticleExtractor(cfg.Article)
	if err != nil {
		return nil, fmt.Errorf("article rules: %w", err)
	}

	archiver, err := a.buildArchiver(ctx, clock)
	if err != nil {
		return nil, err
	}
	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		return nil, err
	}

	base, maxDelay := cfg.Backoff()
	deps := scheduler.Deps{
		Fetcher:   a.buildFetcher(),
		Listings:  listings,
		Extractor: extractor,
		Ingester:  ingest.New(repo, clock, ingest.Config{Private: cfg.Crawler.Private}, a.logger),
		Allowlist: crawler.NewDomainAllowlist(cfg.Crawler.AllowedDomains),
		Limiter: ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.Crawler.RequestsPerSecond,
			DefaultBurst: cfg.Crawler.Burst,
		}),
		Retry:     crawler.NewExponentialRetryPolicy(cfg.HTTP.MaxRetries, base, maxDelay),
		Archiver:  archiver,
		Publisher: publisher,
		Clock:     clock,
	}
	if cfg.Headless.Promote {
		deps.Detector = detector.NewHeuristic(cfg.Headless.PromotionThresh, cfg.Headless.RequiredMarkers...)
	}

	sched, err := scheduler.New(deps, scheduler.Config{
		RenderListing:  cfg.Crawler.RenderListing,
		RenderArticles: cfg.Crawler.RenderArticles,
		EventTopic:     cfg.PubSub.TopicName,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	return &pipeline{repo: repo, scheduler: sched, ids: ids, clock: clock}, nil
}
