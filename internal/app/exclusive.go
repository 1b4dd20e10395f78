package app

import (
	"context"

	"github.com/lueurxax/rss-dedup-digest/internal/process/dedup"
)

type advisoryLocker interface {
	WithAdvisoryLock(ctx context.Context, lockID int64, fn func(ctx context.Context) error) error
}

type sweepRunner interface {
	FindAndRemoveDuplicates(ctx context.Context, dryRun bool) (dedup.SweepReport, error)
}

type syncRunner interface {
	Run(ctx context.Context, full bool) (dedup.SyncReport, error)
}

// lockedSweeper keeps two sweeps from overlapping across processes.
type lockedSweeper struct {
	locker  advisoryLocker
	lockID  int64
	sweeper sweepRunner
}

func (s *lockedSweeper) FindAndRemoveDuplicates(ctx context.Context, dryRun bool) (dedup.SweepReport, error) {
	var report dedup.SweepReport

	err := s.locker.WithAdvisoryLock(ctx, s.lockID, func(ctx context.Context) error {
		var runErr error

		report, runErr = s.sweeper.FindAndRemoveDuplicates(ctx, dryRun)

		return runErr
	})

	return report, err
}

type lockedSync struct {
	locker advisoryLocker
	lockID int64
	sync   syncRunner
}

func (s *lockedSync) Run(ctx context.Context, full bool) (dedup.SyncReport, error) {
	var report dedup.SyncReport

	err := s.locker.WithAdvisoryLock(ctx, s.lockID, func(ctx context.Context) error {
		var runErr error

		report, runErr = s.sync.Run(ctx, full)

		return runErr
	})

	return report, err
}
