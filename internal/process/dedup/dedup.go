package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/observability"
)

// ErrMissingTitle is returned when an article without a title is submitted.
var ErrMissingTitle = errors.New("article title is required")

// Method names how a duplicate was detected.
type Method string

// Detection methods.
const (
	MethodHash           Method = "hash"
	MethodTextSimilarity Method = "text_similarity"
	MethodNone           Method = "none"
)

const (
	outcomeDuplicate   = "duplicate"
	outcomeUnique      = "unique"
	outcomeError       = "error"
	reasonSaved        = "saved"
	reasonSavedFlagged = "saved with low-confidence duplicate flag"
	reasonIndexPending = "saved; index update deferred to sync"
	fmtDuplicateReason = "duplicate of %s (method=%s, score=%.2f)"
	fmtFallbackReason  = "fallback save without duplicate check: %v"
)

// SearchIndex is the search-engine surface the duplicate checks need.
type SearchIndex interface {
	FindByHashes(ctx context.Context, contentHash, titleHash string, limit int) ([]domain.IndexedDocument, error)
	MoreLikeThis(ctx context.Context, q domain.SimilarQuery) ([]domain.IndexedDocument, error)
	IndexDocument(ctx context.Context, doc domain.IndexedDocument) error
}

// ArticleStore persists articles.
type ArticleStore interface {
	SaveArticle(ctx context.Context, a *domain.Article) error
	MarkArticleIndexed(ctx context.Context, id string, at time.Time) error
}

// Decision is the outcome of a duplicate check.
type Decision struct {
	IsDuplicate bool
	Method      Method
	Score       float64
	Original    *domain.IndexedDocument
	Candidates  []domain.IndexedDocument
}

// ProcessResult reports what happened to a submitted article.
type ProcessResult struct {
	Saved     bool
	ArticleID string
	Reason    string
	Decision  Decision
}

// Engine checks incoming articles against the index and stores the unique ones.
type Engine struct {
	store  ArticleStore
	index  SearchIndex
	hasher *Hasher
	window time.Duration
	now    func() time.Time
	logger *zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithSemanticWindow sets how far back semantic lookups reach.
func WithSemanticWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.window = d
		}
	}
}

// WithHasher replaces the default hasher.
func WithHasher(h *Hasher) Option {
	return func(e *Engine) {
		if h != nil {
			e.hasher = h
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an article deduplication engine.
func NewEngine(store ArticleStore, index SearchIndex, logger *zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		index:  index,
		hasher: NewHasher(DefaultHashMinLength),
		window: DefaultSemanticWindow,
		now:    time.Now,
		logger: logger,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// CheckDuplicate runs the hash stage and then the semantic stage.
// Articles whose combined text is too short skip straight to the semantic stage.
func (e *Engine) CheckDuplicate(ctx context.Context, a domain.Article) (Decision, error) {
	title := strings.TrimSpace(a.Title)
	if title == "" {
		return Decision{Method: MethodNone}, ErrMissingTitle
	}

	if utf8.RuneCountInString(joinText(title, a.Summary)) >= minHashableContentLength {
		decision, err := e.checkHashes(ctx, title, a.Summary)
		if err != nil {
			return Decision{Method: MethodNone}, err
		}

		if decision.IsDuplicate {
			return decision, nil
		}
	}

	return e.SemanticCheck(ctx, a)
}

func (e *Engine) checkHashes(ctx context.Context, title, content string) (Decision, error) {
	contentHash := e.hasher.ContentHash(title, content)
	titleHash := e.hasher.Hash(title)

	hits, err := e.index.FindByHashes(ctx, contentHash, titleHash, hashCandidateLimit)
	if err != nil {
		return Decision{}, fmt.Errorf("find by hashes: %w", err)
	}

	if len(hits) > hashCandidateLimit {
		hits = hits[:hashCandidateLimit]
	}

	combined := joinText(title, content)

	for i := range hits {
		hit := hits[i]

		simple := SimpleSimilarity(title, hit.Title)
		detailed := DetailedSimilarity(title, hit.Title)
		combinedSim := DetailedSimilarity(combined, joinText(hit.Title, hit.Summary))

		sameTitle := hit.TitleHash == titleHash
		if !sameTitle &&
			simple <= hashSimpleTitleThreshold &&
			detailed <= hashDetailedTitleThreshold &&
			(combinedSim <= hashCombinedThreshold || detailed <= hashCombinedTitleFloor) {
			continue
		}

		score := max(simple, detailed, combinedSim)

		e.logger.Debug().
			Str(logFieldOriginalID, hit.ID).
			Float64(logFieldSimilarity, score).
			Bool("title_hash_match", sameTitle).
			Msg("hash stage matched")

		return Decision{
			IsDuplicate: true,
			Method:      MethodHash,
			Score:       score,
			Original:    &hit,
		}, nil
	}

	return Decision{Method: MethodNone}, nil
}

// SemanticCheck looks for relevance matches among recently created documents,
// excluding the article itself.
func (e *Engine) SemanticCheck(ctx context.Context, a domain.Article) (Decision, error) {
	title := strings.TrimSpace(a.Title)

	hits, err := e.index.MoreLikeThis(ctx, domain.SimilarQuery{
		Title:        title,
		Content:      a.Summary,
		ExcludeID:    a.ID,
		CreatedAfter: e.now().Add(-e.window),
		MinScore:     semanticMinRawScore,
		TitleBoost:   semanticTitleBoost,
		ContentBoost: semanticContentBoost,
		Rows:         semanticCandidateRows,
	})
	if err != nil {
		return Decision{Method: MethodNone}, fmt.Errorf("more like this: %w", err)
	}

	if len(hits) == 0 {
		return Decision{Method: MethodNone}, nil
	}

	top := hits[0]
	candidates := hits[1:]
	normalized := top.Score / semanticScoreDivisor

	if normalized > semanticScoreThreshold {
		contentSim := DetailedSimilarity(joinText(title, a.Summary), joinText(top.Title, top.Summary))
		if contentSim > semanticContentThreshold {
			return Decision{
				IsDuplicate: true,
				Method:      MethodTextSimilarity,
				Score:       normalized,
				Original:    &top,
				Candidates:  candidates,
			}, nil
		}

		e.logger.Debug().
			Str(logFieldOriginalID, top.ID).
			Float64("normalized_score", normalized).
			Float64("content_similarity", contentSim).
			Msg("relevance match rejected by content similarity")
	}

	return Decision{Method: MethodNone, Candidates: candidates}, nil
}

// ProcessArticle checks an article and saves it unless it is a confident duplicate.
// On success a.ID holds the stored identifier.
func (e *Engine) ProcessArticle(ctx context.Context, a *domain.Article) (ProcessResult, error) {
	if strings.TrimSpace(a.Title) == "" {
		return ProcessResult{Reason: ErrMissingTitle.Error()}, ErrMissingTitle
	}

	decision, err := e.CheckDuplicate(ctx, *a)
	if err != nil {
		observability.DedupDecisions.WithLabelValues(string(MethodNone), outcomeError).Inc()
		e.logger.Error().Err(err).Str(logFieldTitle, a.Title).Msg("duplicate check failed, saving without it")

		return e.saveFallback(ctx, a, err)
	}

	if decision.IsDuplicate && blocksSave(decision) {
		observability.DedupDecisions.WithLabelValues(string(decision.Method), outcomeDuplicate).Inc()
		e.logger.Info().
			Str(logFieldOriginalID, decision.Original.ID).
			Str(logFieldMethod, string(decision.Method)).
			Float64(logFieldSimilarity, decision.Score).
			Str(logFieldTitle, a.Title).
			Msg("duplicate article rejected")

		return ProcessResult{
			Reason:   fmt.Sprintf(fmtDuplicateReason, decision.Original.ID, decision.Method, decision.Score),
			Decision: decision,
		}, nil
	}

	reason := reasonSaved

	if decision.IsDuplicate {
		originalID := decision.Original.ID
		score := decision.Score
		a.DuplicateOf = &originalID
		a.SimilarityScore = &score
		reason = reasonSavedFlagged
	}

	observability.DedupDecisions.WithLabelValues(string(decision.Method), outcomeUnique).Inc()

	if err := e.store.SaveArticle(ctx, a); err != nil {
		return ProcessResult{Reason: err.Error(), Decision: decision}, fmt.Errorf("save article: %w", err)
	}

	if err := e.IndexArticle(ctx, *a); err != nil {
		e.logger.Warn().Err(err).Str(logFieldArticleID, a.ID).Msg("article saved but not indexed")

		reason = reasonIndexPending
	}

	return ProcessResult{Saved: true, ArticleID: a.ID, Reason: reason, Decision: decision}, nil
}

// IndexArticle pushes a stored article to the search index with freshly computed hashes.
func (e *Engine) IndexArticle(ctx context.Context, a domain.Article) error {
	doc := domain.IndexedDocument{
		Article:     a,
		ContentHash: e.hasher.ContentHash(a.Title, a.Summary),
		TitleHash:   e.hasher.Hash(a.Title),
	}

	if err := e.index.IndexDocument(ctx, doc); err != nil {
		return fmt.Errorf("index document: %w", err)
	}

	if err := e.store.MarkArticleIndexed(ctx, a.ID, e.now()); err != nil {
		e.logger.Warn().Err(err).Str(logFieldArticleID, a.ID).Msg("failed to mark article indexed")
	}

	return nil
}

func (e *Engine) saveFallback(ctx context.Context, a *domain.Article, checkErr error) (ProcessResult, error) {
	if err := e.store.SaveArticle(ctx, a); err != nil {
		return ProcessResult{Reason: err.Error()}, fmt.Errorf("fallback save: %w", err)
	}

	observability.DedupFallbacks.Inc()

	return ProcessResult{
		Saved:     true,
		ArticleID: a.ID,
		Reason:    fmt.Sprintf(fmtFallbackReason, checkErr),
	}, nil
}

// blocksSave reports whether a flagged duplicate is confident enough to reject.
func blocksSave(d Decision) bool {
	return d.Method == MethodHash || d.Score >= lowConfidenceSaveCeiling
}
