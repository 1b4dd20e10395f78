package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// TickerConfig configures a ticker loop.
type TickerConfig struct {
	Name     string
	Interval time.Duration

	// RunOnStart runs OnTick once before the first tick.
	RunOnStart bool
	OnTick     func(ctx context.Context)

	Logger *zerolog.Logger
}

// TickerLoop calls cfg.OnTick every Interval until ctx is canceled.
// Ticks that fire while OnTick is still running are dropped.
func TickerLoop(ctx context.Context, cfg TickerConfig) error {
	logger := loggerOrNop(cfg.Logger)

	if cfg.Interval <= 0 {
		return fmt.Errorf("ticker loop %s: interval must be positive", cfg.Name)
	}

	logger.Info().Str(logFieldWorker, cfg.Name).Dur("interval", cfg.Interval).Msg("starting ticker loop")
	defer logger.Info().Str(logFieldWorker, cfg.Name).Msg("ticker loop stopped")

	tick := func() {
		if cfg.OnTick == nil {
			return
		}

		_ = guard(logger, cfg.Name, func() error {
			cfg.OnTick(ctx)
			return nil
		})
	}

	if cfg.RunOnStart {
		tick()
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("ticker loop %s: %w", cfg.Name, ctx.Err())
		case <-ticker.C:
			tick()
		}
	}
}
