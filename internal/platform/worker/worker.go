// Package worker runs the background loops behind the feed poller and the
// normalization pipeline: a poll loop with periodic side tasks, and a plain
// ticker loop. A panicking step is logged and the loop keeps going.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	logFieldWorker = "worker"
	logFieldTask   = "task"
)

// ProcessFunc does one unit of work. It should return quickly if nothing is pending.
type ProcessFunc func(ctx context.Context) error

// PeriodicTask runs every Interval between process steps.
type PeriodicTask struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
	lastRun  time.Time
}

// Config configures a poll loop.
type Config struct {
	// Name identifies the worker for logging.
	Name string

	// PollInterval is the pause between process steps.
	PollInterval time.Duration

	Process       ProcessFunc
	PeriodicTasks []PeriodicTask

	// OnError decides whether the loop survives a Process error.
	// Nil logs the error and continues.
	OnError func(err error) bool

	Logger *zerolog.Logger
}

// Loop runs cfg.Process every PollInterval until ctx is canceled or OnError
// asks it to stop.
func Loop(ctx context.Context, cfg Config) error {
	logger := loggerOrNop(cfg.Logger)

	logger.Info().Str(logFieldWorker, cfg.Name).Msg("starting worker loop")
	defer logger.Info().Str(logFieldWorker, cfg.Name).Msg("worker loop stopped")

	tasks := make([]PeriodicTask, len(cfg.PeriodicTasks))
	copy(tasks, cfg.PeriodicTasks)

	for {
		if ctx.Err() != nil {
			return fmt.Errorf("worker loop %s: %w", cfg.Name, ctx.Err())
		}

		runDueTasks(ctx, tasks, time.Now(), logger)

		if err := processStep(ctx, cfg, logger); err != nil {
			return err
		}

		if err := Wait(ctx, cfg.PollInterval); err != nil {
			return err
		}
	}
}

func runDueTasks(ctx context.Context, tasks []PeriodicTask, now time.Time, logger *zerolog.Logger) {
	for i := range tasks {
		task := &tasks[i]
		if task.Interval <= 0 || task.Run == nil {
			continue
		}

		if now.Sub(task.lastRun) < task.Interval {
			continue
		}

		logger.Debug().Str(logFieldTask, task.Name).Msg("running periodic task")

		_ = guard(logger, task.Name, func() error {
			task.Run(ctx)
			return nil
		})

		task.lastRun = now
	}
}

func processStep(ctx context.Context, cfg Config, logger *zerolog.Logger) error {
	if cfg.Process == nil {
		return nil
	}

	err := guard(logger, cfg.Name, func() error { return cfg.Process(ctx) })
	if err == nil {
		return nil
	}

	if cfg.OnError != nil {
		if !cfg.OnError(err) {
			return err
		}

		return nil
	}

	logger.Error().Err(err).Str(logFieldWorker, cfg.Name).Msg("process error")

	return nil
}

// guard runs fn and turns a panic into an error.
func guard(logger *zerolog.Logger, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Str(logFieldWorker, name).Msg("recovered from panic")

			err = fmt.Errorf("%s: panic: %v", name, r)
		}
	}()

	return fn()
}

// Wait blocks until d elapses or ctx is canceled.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func loggerOrNop(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()

		return &nop
	}

	return logger
}
