// Package pipeline drives raw feed items through normalization and the
// article deduplication engine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
	apperrors "github.com/lueurxax/rss-dedup-digest/internal/core/errors"
	"github.com/lueurxax/rss-dedup-digest/internal/core/llm"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/observability"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/worker"
	"github.com/lueurxax/rss-dedup-digest/internal/process/dedup"
)

// Repository is the raw item queue.
type Repository interface {
	ClaimPendingRawItems(ctx context.Context, limit int) ([]domain.RawItem, error)
	ReleaseStaleRawItems(ctx context.Context, cutoff time.Time) (int64, error)
	UpdateRawItemStatus(ctx context.Context, id, status, reason string) error
	CountPendingRawItems(ctx context.Context) (int, error)
}

// ArticleProcessor decides whether a normalized article is stored.
type ArticleProcessor interface {
	ProcessArticle(ctx context.Context, a *domain.Article) (dedup.ProcessResult, error)
}

// Locker serializes work on the same key across workers. It returns
// apperrors.ErrLockNotAcquired when the key is held elsewhere.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Options tunes the worker. Zero values fall back to defaults.
type Options struct {
	BatchSize    int
	PollInterval time.Duration
	ClaimTimeout time.Duration
}

// BatchReport counts the outcomes of one batch.
type BatchReport struct {
	Claimed    int
	Saved      int
	Duplicates int
	Failed     int
	Deferred   int
}

// Pipeline claims pending raw items, normalizes them and hands them to the
// deduplication engine.
type Pipeline struct {
	repo       Repository
	normalizer llm.Normalizer
	processor  ArticleProcessor
	locker     Locker
	hasher     *dedup.Hasher
	opts       Options
	logger     *zerolog.Logger
}

// New creates a Pipeline. locker may be nil to run without cross-worker locking.
func New(repo Repository, normalizer llm.Normalizer, processor ArticleProcessor, locker Locker, opts Options, logger *zerolog.Logger) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	if opts.ClaimTimeout <= 0 {
		opts.ClaimTimeout = DefaultClaimTimeout
	}

	return &Pipeline{
		repo:       repo,
		normalizer: normalizer,
		processor:  processor,
		locker:     locker,
		hasher:     dedup.NewHasher(dedup.DefaultHashMinLength),
		opts:       opts,
		logger:     logger,
	}
}

// Run processes batches until ctx is canceled.
func (p *Pipeline) Run(ctx context.Context) error {
	return worker.Loop(ctx, worker.Config{
		Name:         "pipeline",
		PollInterval: p.opts.PollInterval,
		PeriodicTasks: []worker.PeriodicTask{{
			Name:     "recover-stale-items",
			Interval: RecoveryInterval,
			Run:      p.recoverStale,
		}},
		Process: func(ctx context.Context) error {
			_, err := p.ProcessBatch(ctx)
			return err
		},
		Logger: p.logger,
	})
}

// recoverStale returns items claimed by a crashed worker to the queue.
func (p *Pipeline) recoverStale(ctx context.Context) {
	recovered, err := p.repo.ReleaseStaleRawItems(ctx, time.Now().Add(-p.opts.ClaimTimeout))
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to release stale raw items")
		return
	}

	if recovered > 0 {
		p.logger.Info().Int64("recovered", recovered).Msg("released stale raw items")
	}
}

// ProcessBatch handles one batch of pending items.
func (p *Pipeline) ProcessBatch(ctx context.Context) (BatchReport, error) {
	correlationID := uuid.New().String()
	logger := p.logger.With().Str(LogFieldCorrelationID, correlationID).Logger()

	start := time.Now()
	defer func() {
		observability.PipelineBatchDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	items, err := p.repo.ClaimPendingRawItems(ctx, p.opts.BatchSize)
	if err != nil {
		return BatchReport{}, fmt.Errorf("claim raw items: %w", err)
	}

	report := BatchReport{Claimed: len(items)}
	if len(items) == 0 {
		return report, nil
	}

	if backlog, err := p.repo.CountPendingRawItems(ctx); err == nil {
		logger.Info().Int("backlog", backlog).Int(LogFieldCount, len(items)).Msg("Pipeline batch claimed")
		observability.PipelineBacklog.Set(float64(backlog))
	}

	results, err := p.normalizer.Normalize(ctx, items)
	if err != nil {
		logger.Error().Err(err).Msg("normalizer failed for batch")

		for _, item := range items {
			p.setStatus(ctx, &logger, item.ID, domain.RawStatusFailed, fmt.Sprintf(reasonNormalizeError, err))
		}

		report.Failed = len(items)
		observability.PipelineProcessed.WithLabelValues(metricStatusFailed).Add(float64(len(items)))

		return report, nil
	}

	for i, item := range items {
		var res llm.Result
		if i < len(results) {
			res = results[i]
		}

		status := p.processItem(ctx, &logger, item, res)

		switch status {
		case metricStatusSaved:
			report.Saved++
		case metricStatusDup:
			report.Duplicates++
		case metricStatusDeferred:
			report.Deferred++
		default:
			report.Failed++
		}

		observability.PipelineProcessed.WithLabelValues(status).Inc()
	}

	logger.Info().
		Int("saved", report.Saved).
		Int("duplicates", report.Duplicates).
		Int("failed", report.Failed).
		Int("deferred", report.Deferred).
		Msg("Pipeline batch complete")

	return report, nil
}

func (p *Pipeline) processItem(ctx context.Context, logger *zerolog.Logger, item domain.RawItem, res llm.Result) string {
	if res.Item == nil {
		err := res.Err
		if err == nil {
			err = llm.ErrNoResultsExtracted
		}

		p.setStatus(ctx, logger, item.ID, domain.RawStatusFailed, fmt.Sprintf(reasonNormalizeError, err))

		return metricStatusFailed
	}

	article := res.Item.Article(item)

	if res.Item.DuplicateHint != "" {
		logger.Debug().Str(LogFieldRawItemID, item.ID).Str(LogFieldDuplicateHint, res.Item.DuplicateHint).Msg("normalizer duplicate hint")
	}

	var result dedup.ProcessResult

	run := func(ctx context.Context) error {
		var err error

		result, err = p.processor.ProcessArticle(ctx, &article)

		return err
	}

	var err error
	if p.locker != nil {
		key := lockKeyPrefix + p.hasher.ContentHash(article.Title, article.Summary)
		err = p.locker.WithLock(ctx, key, run)
	} else {
		err = run(ctx)
	}

	switch {
	case errors.Is(err, apperrors.ErrLockNotAcquired):
		p.setStatus(ctx, logger, item.ID, domain.RawStatusPending, reasonLockBusy)
		return metricStatusDeferred
	case err != nil:
		logger.Warn().Err(err).Str(LogFieldRawItemID, item.ID).Msg("article processing failed")
		p.setStatus(ctx, logger, item.ID, domain.RawStatusFailed, fmt.Sprintf(reasonProcessError, err))

		return metricStatusFailed
	case result.Saved:
		logger.Debug().Str(LogFieldRawItemID, item.ID).Str(LogFieldArticleID, result.ArticleID).Str(LogFieldReason, result.Reason).Msg("article saved")
		p.setStatus(ctx, logger, item.ID, domain.RawStatusProcessed, result.Reason)

		return metricStatusSaved
	default:
		p.setStatus(ctx, logger, item.ID, domain.RawStatusDuplicate, result.Reason)
		return metricStatusDup
	}
}

func (p *Pipeline) setStatus(ctx context.Context, logger *zerolog.Logger, id, status, reason string) {
	if err := p.repo.UpdateRawItemStatus(ctx, id, status, reason); err != nil {
		logger.Error().Err(err).Str(LogFieldRawItemID, id).Msg(LogMsgFailedToUpdateStatus)
	}
}
