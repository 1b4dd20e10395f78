package dedup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
	apperrors "github.com/lueurxax/rss-dedup-digest/internal/core/errors"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/observability"
)

// Sweep match methods.
const (
	SweepMethodAdvancedTitle = "advanced_title_match"
	SweepMethodSimpleTitle   = "simple_title_match"
	SweepMethodContentHash   = "exact_content_hash"
	SweepMethodSemantic      = "semantic_similarity"
)

// Sweep detail statuses.
const (
	SweepStatusRemoved = "removed"
	SweepStatusError   = "error"
	SweepStatusDryRun  = "dry_run"
)

const fmtRawDuplicateReason = "duplicate of article %s"

// SweepStore is the storage surface the sweep needs.
type SweepStore interface {
	ListArticles(ctx context.Context, filter domain.ArticleFilter) ([]domain.Article, error)
	DeleteArticle(ctx context.Context, id string) error
	ListRawItems(ctx context.Context, filter domain.RawItemFilter) ([]domain.RawItem, error)
	UpdateRawItemStatus(ctx context.Context, id, status, reason string) error
}

// DocumentRemover deletes documents from the search index.
type DocumentRemover interface {
	DeleteDocument(ctx context.Context, id string) error
}

// SemanticChecker runs a relevance lookup for an already stored article.
type SemanticChecker interface {
	SemanticCheck(ctx context.Context, a domain.Article) (Decision, error)
}

// SweepDetail describes one duplicate found by a sweep.
type SweepDetail struct {
	ArticleID         string
	Title             string
	CreatedAt         time.Time
	PublishedAt       time.Time
	OriginalID        string
	OriginalTitle     string
	OriginalCreatedAt time.Time
	Method            string
	Similarity        float64
	Status            string
	Error             string
}

// SweepReport summarizes a sweep.
type SweepReport struct {
	DuplicatesFound   int
	DuplicatesRemoved int
	Errors            int
	DryRun            bool
	Details           []SweepDetail
}

// Sweeper finds and removes duplicates that slipped into the store.
type Sweeper struct {
	store    SweepStore
	index    DocumentRemover
	semantic SemanticChecker
	hasher   *Hasher
	logger   *zerolog.Logger
}

// NewSweeper creates a Sweeper. semantic may be nil to disable the relevance pass.
func NewSweeper(store SweepStore, index DocumentRemover, semantic SemanticChecker, logger *zerolog.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		index:    index,
		semantic: semantic,
		hasher:   NewHasher(DefaultHashMinLength),
		logger:   logger,
	}
}

type sweepMatch struct {
	article    domain.Article
	original   domain.Article
	method     string
	similarity float64
}

// FindAndRemoveDuplicates scans every stored article oldest first. The first
// occurrence of each story is kept. Later ones are reported, and removed
// unless dryRun is set.
func (s *Sweeper) FindAndRemoveDuplicates(ctx context.Context, dryRun bool) (SweepReport, error) {
	report := SweepReport{DryRun: dryRun}

	articles, err := s.store.ListArticles(ctx, domain.ArticleFilter{})
	if err != nil {
		report.Errors++

		return report, fmt.Errorf("list articles: %w", err)
	}

	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].CreatedAt.Before(articles[j].CreatedAt)
	})

	matches := s.findMatches(ctx, articles)
	report.DuplicatesFound = len(matches)

	for _, m := range matches {
		detail := SweepDetail{
			ArticleID:         m.article.ID,
			Title:             m.article.Title,
			CreatedAt:         m.article.CreatedAt,
			PublishedAt:       m.article.PublishedAt,
			OriginalID:        m.original.ID,
			OriginalTitle:     m.original.Title,
			OriginalCreatedAt: m.original.CreatedAt,
			Method:            m.method,
			Similarity:        m.similarity,
			Status:            SweepStatusDryRun,
		}

		if !dryRun {
			if err := s.remove(ctx, m); err != nil {
				detail.Status = SweepStatusError
				detail.Error = err.Error()
				report.Errors++
			} else {
				detail.Status = SweepStatusRemoved
				report.DuplicatesRemoved++
			}
		}

		report.Details = append(report.Details, detail)
	}

	observability.SweepDuplicatesFound.Set(float64(report.DuplicatesFound))
	observability.SweepDuplicatesRemoved.Add(float64(report.DuplicatesRemoved))
	observability.SweepErrors.Add(float64(report.Errors))

	s.logger.Info().
		Bool("dry_run", dryRun).
		Int("scanned", len(articles)).
		Int("found", report.DuplicatesFound).
		Int("removed", report.DuplicatesRemoved).
		Int("errors", report.Errors).
		Msg("duplicate sweep finished")

	return report, nil
}

func (s *Sweeper) findMatches(ctx context.Context, articles []domain.Article) []sweepMatch {
	var (
		accepted    []domain.Article
		byTitle     = make(map[string]domain.Article)
		byHash      = make(map[string]domain.Article)
		matches     []sweepMatch
		hashOfIndex = make([]string, len(articles))
	)

	for i, a := range articles {
		hashOfIndex[i] = s.hasher.ContentHash(a.Title, a.Summary)
	}

	for i, a := range articles {
		if m, ok := matchTitle(a, accepted); ok {
			matches = append(matches, m)
			continue
		}

		if orig, ok := byHash[hashOfIndex[i]]; ok {
			matches = append(matches, sweepMatch{article: a, original: orig, method: SweepMethodContentHash, similarity: 1})
			continue
		}

		if m, ok := s.matchSemantic(ctx, a, byTitle); ok {
			matches = append(matches, m)
			continue
		}

		accepted = append(accepted, a)
		byHash[hashOfIndex[i]] = a

		if _, exists := byTitle[a.Title]; !exists {
			byTitle[a.Title] = a
		}
	}

	return matches
}

func matchTitle(a domain.Article, accepted []domain.Article) (sweepMatch, bool) {
	for _, orig := range accepted {
		detailed := DetailedSimilarity(a.Title, orig.Title)
		simple := SimpleSimilarity(a.Title, orig.Title)

		advancedHit := detailed > sweepDetailedTitleThreshold
		simpleHit := simple > sweepSimpleTitleThreshold

		if !advancedHit && !simpleHit {
			continue
		}

		m := sweepMatch{article: a, original: orig, method: SweepMethodAdvancedTitle, similarity: detailed}
		if simpleHit && (!advancedHit || simple > detailed) {
			m.method = SweepMethodSimpleTitle
			m.similarity = simple
		}

		return m, true
	}

	return sweepMatch{}, false
}

// matchSemantic only accepts originals that resolve to an already kept
// article with exactly the same title.
func (s *Sweeper) matchSemantic(ctx context.Context, a domain.Article, byTitle map[string]domain.Article) (sweepMatch, bool) {
	if s.semantic == nil || len(byTitle) == 0 {
		return sweepMatch{}, false
	}

	decision, err := s.semantic.SemanticCheck(ctx, a)
	if err != nil {
		s.logger.Warn().Err(err).Str(logFieldArticleID, a.ID).Msg("semantic sweep check failed")
		return sweepMatch{}, false
	}

	if !decision.IsDuplicate || decision.Original == nil || decision.Score <= sweepSemanticThreshold {
		return sweepMatch{}, false
	}

	orig, ok := byTitle[decision.Original.Title]
	if !ok {
		return sweepMatch{}, false
	}

	return sweepMatch{article: a, original: orig, method: SweepMethodSemantic, similarity: decision.Score}, true
}

func (s *Sweeper) remove(ctx context.Context, m sweepMatch) error {
	if err := s.store.DeleteArticle(ctx, m.article.ID); err != nil {
		s.logger.Error().Err(err).Str(logFieldArticleID, m.article.ID).Msg("failed to delete duplicate article")
		return fmt.Errorf("delete article: %w", err)
	}

	if s.index != nil {
		if err := s.index.DeleteDocument(ctx, m.article.ID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn().Err(err).Str(logFieldArticleID, m.article.ID).Msg("failed to delete duplicate from index")
		}
	}

	s.markRawDuplicate(ctx, m)

	s.logger.Info().
		Str(logFieldArticleID, m.article.ID).
		Str(logFieldOriginalID, m.original.ID).
		Str(logFieldMethod, m.method).
		Float64(logFieldSimilarity, m.similarity).
		Msg("duplicate article removed")

	return nil
}

// markRawDuplicate flags the raw item behind a removed article. Failures are logged only.
func (s *Sweeper) markRawDuplicate(ctx context.Context, m sweepMatch) {
	reason := fmt.Sprintf(fmtRawDuplicateReason, m.original.ID)

	rawID := m.article.RawItemID
	if rawID == "" {
		rawID = s.findRawByTitle(ctx, m.article)
	}

	if rawID == "" {
		return
	}

	if err := s.store.UpdateRawItemStatus(ctx, rawID, domain.RawStatusDuplicate, reason); err != nil {
		s.logger.Warn().Err(err).Str("raw_item_id", rawID).Msg("failed to mark raw item duplicate")
	}
}

func (s *Sweeper) findRawByTitle(ctx context.Context, a domain.Article) string {
	filter := domain.RawItemFilter{Limit: rawLookupLimit}
	if a.SourceID != "" {
		filter.SourceIDs = []string{a.SourceID}
	}

	raws, err := s.store.ListRawItems(ctx, filter)
	if err != nil {
		s.logger.Warn().Err(err).Str(logFieldArticleID, a.ID).Msg("failed to list raw items")
		return ""
	}

	var (
		bestID    string
		bestScore float64
	)

	for _, r := range raws {
		score := SimpleSimilarity(r.Title, a.Title)
		if a.OriginalTitle != "" {
			score = max(score, SimpleSimilarity(r.Title, a.OriginalTitle))
		}

		if score > bestScore {
			bestID, bestScore = r.ID, score
		}
	}

	if bestScore < rawTitleMatchThreshold {
		return ""
	}

	return bestID
}
