// Package app provides the main application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes methods to run
// different operational modes:
//
//   - Ingest mode: registers seed feeds and polls RSS sources into raw items
//   - Worker mode: normalizes raw items and runs ingest-time deduplication
//   - Sweep mode: finds and removes duplicates already in the store
//   - Sync mode: backfills the search index from the document store
//   - Bot mode: admin Telegram bot for operator commands
//   - HTTP mode: standalone health and metrics server
//
// Each mode can be run independently or combined based on deployment needs.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lueurxax/rss-dedup-digest/internal/bot"
	"github.com/lueurxax/rss-dedup-digest/internal/core/llm"
	"github.com/lueurxax/rss-dedup-digest/internal/core/solr"
	"github.com/lueurxax/rss-dedup-digest/internal/ingest/rss"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/config"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/locks"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/observability"
	"github.com/lueurxax/rss-dedup-digest/internal/process/dedup"
	"github.com/lueurxax/rss-dedup-digest/internal/process/pipeline"
	"github.com/lueurxax/rss-dedup-digest/internal/process/sources"
	db "github.com/lueurxax/rss-dedup-digest/internal/storage"
)

const (
	errBotInit        = "bot initialization failed: %w"
	checkNameDatabase = "database"
	checkNameSolr     = "solr"
	userAgent         = "rss-dedup-digest/1.0"
)

// App holds the application dependencies and provides methods to run different modes.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger
}

// New creates a new App instance with the given dependencies.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) *App {
	return &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
	}
}

// StartHealthServer starts the health check and metrics server.
func (a *App) StartHealthServer(ctx context.Context) error {
	checks := map[string]observability.Pinger{checkNameDatabase: a.database}

	if a.cfg.SolrEnabled {
		checks[checkNameSolr] = a.newArticleIndex()
	}

	srv := observability.NewServer(checks, a.cfg.HealthPort, a.logger)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("health server start: %w", err)
	}

	return nil
}

// RunHTTP runs the HTTP-only mode.
func (a *App) RunHTTP(ctx context.Context) error {
	a.logger.Info().Msg("Starting HTTP-only mode")

	return a.StartHealthServer(ctx)
}

// RunIngest registers seed feeds and then polls every active source.
func (a *App) RunIngest(ctx context.Context) error {
	a.logger.Info().Msg("Starting ingest mode")

	fetcher := a.newFetcher()

	if a.cfg.SeedFeedsPath != "" {
		if err := a.registerSeeds(ctx, fetcher); err != nil {
			return err
		}
	}

	poller := rss.NewPoller(a.database, fetcher, a.logger)

	if err := poller.Run(ctx, a.cfg.RSSPollInterval); err != nil {
		return fmt.Errorf("poller run: %w", err)
	}

	return nil
}

func (a *App) registerSeeds(ctx context.Context, fetcher *rss.Fetcher) error {
	seeds, err := rss.LoadSeeds(a.cfg.SeedFeedsPath)
	if err != nil {
		return fmt.Errorf("load seed feeds: %w", err)
	}

	report := rss.RegisterSeeds(ctx, a.newRegistrar(fetcher), seeds, a.logger)

	a.logger.Info().
		Int("registered", report.Registered).
		Int("duplicates", report.Duplicates).
		Int("failed", report.Failed).
		Msg("Seed feeds registered")

	return nil
}

// RunWorker runs the normalization and deduplication pipeline.
func (a *App) RunWorker(ctx context.Context) error {
	a.logger.Info().Msg("Starting worker mode")

	index := a.newArticleIndex()
	a.ensureIndex(ctx, index)

	var locker pipeline.Locker

	if a.cfg.RedisAddr != "" {
		redis, err := locks.NewRedis(locks.Config{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			TTL:      a.cfg.IngestLockTTL,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("ingest lock init: %w", err)
		}
		defer redis.Close()

		locker = redis
	}

	p := pipeline.New(
		a.database,
		llm.New(a.cfg, a.logger),
		a.newDedupEngine(index),
		locker,
		pipeline.Options{
			BatchSize:    a.cfg.WorkerBatchSize,
			PollInterval: a.cfg.WorkerPollInterval,
			ClaimTimeout: a.cfg.WorkerClaimTimeout,
		},
		a.logger,
	)

	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	return nil
}

// RunSweep runs one duplicate sweep under the sweep advisory lock.
func (a *App) RunSweep(ctx context.Context, dryRun bool) (dedup.SweepReport, error) {
	a.logger.Info().Bool("dry_run", dryRun).Msg("Starting sweep mode")

	return a.newSweeper().FindAndRemoveDuplicates(ctx, dryRun)
}

// RunSync runs one index sync under the sync advisory lock.
func (a *App) RunSync(ctx context.Context, full bool) (dedup.SyncReport, error) {
	a.logger.Info().Bool("full", full).Msg("Starting sync mode")

	return a.newIndexSync().Run(ctx, full)
}

// RunBot runs the bot mode.
func (a *App) RunBot(ctx context.Context) error {
	a.logger.Info().Msg("Starting bot mode")

	engine := sources.NewEngine(a.database, a.logger)

	b, err := bot.New(a.cfg, bot.Deps{
		Sweeper:   a.newSweeper(),
		Registrar: sources.NewRegistrar(engine, a.database, a.newFetcher(), a.logger),
		Sources:   engine,
		Search:    a.newArticleIndex(),
		Reindexer: a.newIndexSync(),
	}, a.logger)
	if err != nil {
		return fmt.Errorf(errBotInit, err)
	}

	if err := b.Run(ctx); err != nil {
		return fmt.Errorf("bot run: %w", err)
	}

	return nil
}

func (a *App) newArticleIndex() *solr.ArticleIndex {
	cfg := solr.Config{
		Collection: a.cfg.SolrCollection,
		ConfigSet:  a.cfg.SolrConfigSet,
		Timeout:    a.cfg.SolrTimeout,
		MaxResults: a.cfg.SolrMaxResults,
	}

	if a.cfg.SolrEnabled {
		cfg.BaseURL = a.cfg.SolrURL
	}

	return solr.NewArticleIndex(solr.New(cfg), a.logger)
}

func (a *App) ensureIndex(ctx context.Context, index *solr.ArticleIndex) {
	if !a.cfg.SolrEnabled {
		return
	}

	if err := index.EnsureIndex(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("could not ensure search collection, duplicate checks will fall back")
	}
}

func (a *App) newDedupEngine(index *solr.ArticleIndex) *dedup.Engine {
	return dedup.NewEngine(a.database, index, a.logger, dedup.WithSemanticWindow(a.cfg.DedupWindow))
}

func (a *App) newFetcher() *rss.Fetcher {
	return rss.NewFetcher(rss.FetcherOptions{
		Timeout:   a.cfg.RSSFetchTimeout,
		RPS:       a.cfg.RSSFetchRPS,
		MaxItems:  a.cfg.RSSMaxItems,
		UserAgent: userAgent,
	}, a.logger)
}

func (a *App) newRegistrar(fetcher sources.FeedFetcher) *sources.Registrar {
	return sources.NewRegistrar(sources.NewEngine(a.database, a.logger), a.database, fetcher, a.logger)
}

func (a *App) newSweeper() *lockedSweeper {
	index := a.newArticleIndex()
	sweeper := dedup.NewSweeper(a.database, index, a.newDedupEngine(index), a.logger)

	return &lockedSweeper{locker: a.database, lockID: db.SweepLockID, sweeper: sweeper}
}

func (a *App) newIndexSync() *lockedSync {
	index := a.newArticleIndex()
	sync := dedup.NewIndexSync(a.database, index, a.newDedupEngine(index), a.logger)

	return &lockedSync{locker: a.database, lockID: db.IndexSyncLockID, sync: sync}
}
