package rss

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/observability"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/worker"
)

// PollStore is the storage surface the poller needs.
type PollStore interface {
	ListSources(ctx context.Context, activeOnly bool) ([]domain.Source, error)
	SaveRawItem(ctx context.Context, item *domain.RawItem) (bool, error)
}

// FeedReader fetches a feed with its entries.
type FeedReader interface {
	Fetch(ctx context.Context, feedURL string) (domain.FeedMetadata, error)
}

// PollReport summarizes one pass over all active sources.
type PollReport struct {
	Sources  int
	Failed   int
	Inserted int
	Skipped  int
}

// Poller inserts new feed entries as pending raw items.
type Poller struct {
	store  PollStore
	reader FeedReader
	logger *zerolog.Logger
}

// NewPoller creates a Poller.
func NewPoller(store PollStore, reader FeedReader, logger *zerolog.Logger) *Poller {
	return &Poller{store: store, reader: reader, logger: logger}
}

// Run polls every interval until ctx is canceled.
func (p *Poller) Run(ctx context.Context, interval time.Duration) error {
	return worker.TickerLoop(ctx, worker.TickerConfig{
		Name:       "rss-poller",
		Interval:   interval,
		RunOnStart: true,
		OnTick: func(ctx context.Context) {
			if _, err := p.PollOnce(ctx); err != nil {
				p.logger.Error().Err(err).Msg("feed poll failed")
			}
		},
		Logger: p.logger,
	})
}

// PollOnce fetches every active source once. A failing feed is logged and
// counted; it does not stop the pass.
func (p *Poller) PollOnce(ctx context.Context) (PollReport, error) {
	sources, err := p.store.ListSources(ctx, true)
	if err != nil {
		return PollReport{}, fmt.Errorf("list sources: %w", err)
	}

	report := PollReport{Sources: len(sources)}

	for _, src := range sources {
		if ctx.Err() != nil {
			return report, fmt.Errorf("poll interrupted: %w", ctx.Err())
		}

		inserted, skipped, err := p.pollSource(ctx, src)
		report.Inserted += inserted
		report.Skipped += skipped

		if err != nil {
			report.Failed++
			p.logger.Warn().Err(err).Str("source_id", src.ID).Str("link", src.Link).Msg("feed poll failed for source")
		}
	}

	p.logger.Info().
		Int("sources", report.Sources).
		Int("failed", report.Failed).
		Int("inserted", report.Inserted).
		Int("skipped", report.Skipped).
		Msg("feed poll complete")

	return report, nil
}

func (p *Poller) pollSource(ctx context.Context, src domain.Source) (int, int, error) {
	feed, err := p.reader.Fetch(ctx, src.Link)
	if err != nil {
		return 0, 0, err
	}

	name := src.Title
	if name == "" {
		name = feed.Title
	}

	var inserted, skipped int

	for _, item := range feed.Items {
		raw := &domain.RawItem{
			SourceID:    src.ID,
			SourceName:  name,
			GUID:        item.GUID,
			Title:       item.Title,
			Content:     item.Content,
			URL:         item.Link,
			PublishedAt: item.PublishedAt,
			Status:      domain.RawStatusPending,
		}

		created, err := p.store.SaveRawItem(ctx, raw)
		if err != nil {
			return inserted, skipped, fmt.Errorf("save raw item %q: %w", item.GUID, err)
		}

		if created {
			inserted++
		} else {
			skipped++
		}
	}

	observability.FeedItemsIngested.WithLabelValues(src.ID).Add(float64(inserted))

	return inserted, skipped, nil
}
