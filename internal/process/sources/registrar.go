package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
	apperrors "github.com/lueurxax/rss-dedup-digest/internal/core/errors"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/observability"
	db "github.com/lueurxax/rss-dedup-digest/internal/storage"
)

// ErrDuplicateSource is returned when a registration duplicates an existing source.
var ErrDuplicateSource = errors.New("duplicate source")

const (
	resultRegistered = "registered"
	resultDuplicate  = "duplicate"
	resultError      = "error"
)

// DuplicateError carries the check that rejected a registration.
type DuplicateError struct {
	Result CheckResult
}

func (e *DuplicateError) Error() string {
	if e.Result.Existing == nil {
		return fmt.Sprintf("%s: %s", ErrDuplicateSource, e.Result.Reason)
	}

	return fmt.Sprintf("%s: matches %s (%s, confidence %.2f)",
		ErrDuplicateSource, e.Result.Existing.Link, e.Result.Reason, e.Result.Confidence)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicateSource }

// FeedFetcher reads feed metadata from the network.
type FeedFetcher interface {
	FetchMetadata(ctx context.Context, feedURL string) (domain.FeedMetadata, error)
}

// SourceWriter persists sources.
type SourceWriter interface {
	SaveSource(ctx context.Context, s *domain.Source) error
}

// Registration is a request to add a feed.
type Registration struct {
	URL         string
	Title       string
	Description string
	Category    string
	Language    string
	IsPublic    bool
	OwnerID     int64
	Metadata    *domain.FeedMetadata
}

// Registrar validates and stores new sources.
type Registrar struct {
	engine  *Engine
	store   SourceWriter
	fetcher FeedFetcher
	logger  *zerolog.Logger
}

// NewRegistrar creates a Registrar. fetcher may be nil when callers always supply metadata.
func NewRegistrar(engine *Engine, store SourceWriter, fetcher FeedFetcher, logger *zerolog.Logger) *Registrar {
	return &Registrar{engine: engine, store: store, fetcher: fetcher, logger: logger}
}

// Register checks req against existing sources and stores it with a
// normalized link. Duplicates are rejected with a *DuplicateError.
func (r *Registrar) Register(ctx context.Context, req Registration) (*domain.Source, error) {
	feedURL := strings.TrimSpace(req.URL)
	if Host(feedURL) == "" {
		observability.SourceRegistrations.WithLabelValues(resultError).Inc()
		return nil, fmt.Errorf("feed url %q: %w", req.URL, apperrors.ErrInvalidInput)
	}

	meta, err := r.metadata(ctx, feedURL, req)
	if err != nil {
		observability.SourceRegistrations.WithLabelValues(resultError).Inc()
		return nil, err
	}

	check, err := r.engine.CheckSource(ctx, feedURL, meta)
	if err != nil {
		observability.SourceRegistrations.WithLabelValues(resultError).Inc()
		return nil, fmt.Errorf("check source: %w", err)
	}

	if check.IsDuplicate {
		observability.SourceRegistrations.WithLabelValues(resultDuplicate).Inc()
		r.logger.Info().Str("feed_url", feedURL).Str("reason", check.Reason).Msg("duplicate source rejected")

		return nil, &DuplicateError{Result: check}
	}

	src := &domain.Source{
		Link:        NormalizeURL(feedURL),
		Title:       firstNonEmpty(req.Title, meta.Title),
		Description: firstNonEmpty(req.Description, meta.Description),
		Category:    req.Category,
		Language:    firstNonEmpty(req.Language, meta.Language),
		IsPublic:    req.IsPublic,
		IsActive:    true,
		OwnerID:     req.OwnerID,
		Metadata:    meta,
	}

	if err := r.store.SaveSource(ctx, src); err != nil {
		if errors.Is(err, db.ErrDuplicateLink) {
			observability.SourceRegistrations.WithLabelValues(resultDuplicate).Inc()

			return nil, &DuplicateError{Result: CheckResult{IsDuplicate: true, Confidence: exactConfidence, Reason: reasonExactURL}}
		}

		observability.SourceRegistrations.WithLabelValues(resultError).Inc()

		return nil, fmt.Errorf("save source: %w", err)
	}

	observability.SourceRegistrations.WithLabelValues(resultRegistered).Inc()
	r.logger.Info().Str("source_id", src.ID).Str("link", src.Link).Msg("source registered")

	return src, nil
}

func (r *Registrar) metadata(ctx context.Context, feedURL string, req Registration) (domain.FeedMetadata, error) {
	if req.Metadata != nil {
		meta := *req.Metadata
		if meta.FeedURL == "" {
			meta.FeedURL = feedURL
		}

		return meta, nil
	}

	if r.fetcher == nil {
		return domain.FeedMetadata{FeedURL: feedURL, Title: req.Title, Description: req.Description}, nil
	}

	meta, err := r.fetcher.FetchMetadata(ctx, feedURL)
	if err != nil {
		return domain.FeedMetadata{}, fmt.Errorf("fetch feed metadata: %w", err)
	}

	return meta, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}

	return ""
}
