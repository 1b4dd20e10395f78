package dedup

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/observability"
)

const defaultSyncBatchSize = 200

// IndexAdmin manages the search collection lifecycle.
type IndexAdmin interface {
	EnsureIndex(ctx context.Context) error
	RecreateIndex(ctx context.Context) error
}

// SyncStore lists articles for re-indexing.
type SyncStore interface {
	ListArticles(ctx context.Context, filter domain.ArticleFilter) ([]domain.Article, error)
}

// ArticleIndexer pushes a stored article to the search index.
type ArticleIndexer interface {
	IndexArticle(ctx context.Context, a domain.Article) error
}

// SyncReport summarizes an index sync.
type SyncReport struct {
	Indexed int
	Failed  int
	Full    bool
}

// IndexSync backfills the search index from the document store.
type IndexSync struct {
	store     SyncStore
	admin     IndexAdmin
	indexer   ArticleIndexer
	batchSize int
	logger    *zerolog.Logger
}

// NewIndexSync creates an IndexSync.
func NewIndexSync(store SyncStore, admin IndexAdmin, indexer ArticleIndexer, logger *zerolog.Logger) *IndexSync {
	return &IndexSync{
		store:     store,
		admin:     admin,
		indexer:   indexer,
		batchSize: defaultSyncBatchSize,
		logger:    logger,
	}
}

// Run indexes every article not yet indexed. With full set the collection is
// recreated and every article is pushed again.
func (s *IndexSync) Run(ctx context.Context, full bool) (SyncReport, error) {
	report := SyncReport{Full: full}

	if full {
		if err := s.admin.RecreateIndex(ctx); err != nil {
			return report, fmt.Errorf("recreate index: %w", err)
		}
	} else if err := s.admin.EnsureIndex(ctx); err != nil {
		return report, fmt.Errorf("ensure index: %w", err)
	}

	filter := domain.ArticleFilter{UnindexedOnly: !full}

	articles, err := s.store.ListArticles(ctx, filter)
	if err != nil {
		return report, fmt.Errorf("list articles: %w", err)
	}

	for i, a := range articles {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("index sync interrupted: %w", err)
		}

		if err := s.indexer.IndexArticle(ctx, a); err != nil {
			report.Failed++

			observability.IndexSyncDocuments.WithLabelValues(observability.StatusError).Inc()
			s.logger.Warn().Err(err).Str(logFieldArticleID, a.ID).Msg("failed to index article")

			continue
		}

		report.Indexed++

		observability.IndexSyncDocuments.WithLabelValues(observability.StatusOK).Inc()

		if (i+1)%s.batchSize == 0 {
			s.logger.Info().Int("indexed", report.Indexed).Int("total", len(articles)).Msg("index sync progress")
		}
	}

	s.logger.Info().
		Bool("full", full).
		Int("indexed", report.Indexed).
		Int("failed", report.Failed).
		Msg("index sync finished")

	return report, nil
}
