package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/rss-dedup-digest/internal/app"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/config"
	db "github.com/lueurxax/rss-dedup-digest/internal/storage"
)

const usage = "Usage: %s --mode=[ingest|worker|sweep|sync|bot|http] [--dry-run] [--full]"

func main() {
	mode := flag.String("mode", "", "Service mode (ingest, worker, sweep, sync, bot, http)")
	dryRun := flag.Bool("dry-run", false, "Report duplicates without removing them (sweep mode)")
	full := flag.Bool("full", false, "Recreate the search index and re-index everything (sync mode)")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolOpts := db.PoolOptions{
		MaxConns:          cfg.DBMaxConnections,
		MinConns:          cfg.DBMinConnections,
		MaxConnIdleTime:   cfg.DBMaxConnIdleTime,
		MaxConnLifetime:   cfg.DBMaxConnLifetime,
		HealthCheckPeriod: cfg.DBHealthCheckPeriod,
	}

	database, err := db.NewWithOptions(ctx, cfg.PostgresDSN, poolOpts, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	application := app.New(cfg, database, &logger)

	if runsHealthServer(*mode) {
		go func() {
			if err := application.StartHealthServer(ctx); err != nil {
				logger.Error().Err(err).Msg("health check server error")
			}
		}()
	}

	if err := runMode(ctx, application, &logger, *mode, *dryRun, *full); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("application stopped")
			return
		}

		logger.Fatal().Err(err).Msg("application error")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.IsLocal() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(level).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

// runsHealthServer reports whether mode is a daemon that serves probes
// next to its own work. The http mode serves them itself.
func runsHealthServer(mode string) bool {
	switch mode {
	case "ingest", "worker", "bot":
		return true
	default:
		return false
	}
}

func runMode(ctx context.Context, application *app.App, logger *zerolog.Logger, mode string, dryRun, full bool) error {
	switch mode {
	case "ingest":
		return application.RunIngest(ctx)
	case "worker":
		return application.RunWorker(ctx)
	case "bot":
		return application.RunBot(ctx)
	case "http":
		return application.RunHTTP(ctx)
	case "sweep":
		report, err := application.RunSweep(ctx, dryRun)
		if err != nil {
			return err
		}

		for _, d := range report.Details {
			logger.Info().
				Str("article_id", d.ArticleID).
				Str("original_id", d.OriginalID).
				Str("method", d.Method).
				Float64("similarity", d.Similarity).
				Str("status", d.Status).
				Str("title", d.Title).
				Msg("duplicate")
		}

		return nil
	case "sync":
		report, err := application.RunSync(ctx, full)
		if err != nil {
			return err
		}

		logger.Info().Int("indexed", report.Indexed).Int("failed", report.Failed).Bool("full", report.Full).Msg("index sync finished")

		return nil
	default:
		log.Fatalf(usage, os.Args[0])

		return nil
	}
}
