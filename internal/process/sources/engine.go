// Package sources decides whether a submitted RSS feed is a publication that
// is already registered, and registers the ones that are not.
package sources

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
	apperrors "github.com/lueurxax/rss-dedup-digest/internal/core/errors"
	"github.com/lueurxax/rss-dedup-digest/internal/process/dedup"
)

// Signal gates and weights. A signal contributes similarity times weight
// only when its similarity exceeds the gate.
const (
	titleGate         = 0.85
	titleWeight       = 0.4
	descriptionGate   = 0.80
	descriptionWeight = 0.3
	homeLinkGate      = 0.90
	homeLinkWeight    = 0.3
	feedURLGate       = 0.80
	feedURLWeight     = 0.2

	// DuplicateConfidence is the confidence a candidate must exceed to count as a duplicate.
	DuplicateConfidence = 0.75
	// DefaultPotentialThreshold is the default floor for FindPotentialDuplicates.
	DefaultPotentialThreshold = 0.70

	exactConfidence = 1.0
)

const (
	reasonExactURL      = "Exact URL match"
	reasonNormalizedURL = "Normalized URL match"
	reasonNoSameDomain  = "No sources on the same domain"
	reasonNoSignals     = "No similarity signals above threshold"
	reasonInvalidURL    = "Could not determine feed host"
	fmtSignal           = "%s similarity %.2f"
	reasonSeparator     = "; "
)

// Store is the read surface the duplicate checks need.
type Store interface {
	GetSource(ctx context.Context, id string) (*domain.Source, error)
	FindSourceByLinks(ctx context.Context, links []string) (*domain.Source, error)
	FindSourcesByHost(ctx context.Context, host string) ([]domain.Source, error)
	ListSources(ctx context.Context, activeOnly bool) ([]domain.Source, error)
}

// CheckResult is the outcome of a source duplicate check.
type CheckResult struct {
	IsDuplicate bool
	Existing    *domain.Source
	Confidence  float64
	Reason      string
}

// Match is an existing source scored against another source.
type Match struct {
	Source     domain.Source
	Confidence float64
	Reason     string
}

// PotentialDuplicates lists sources resembling Source.
type PotentialDuplicates struct {
	Source     domain.Source
	Duplicates []Match
}

// DomainGroup is a set of sources sharing a host.
type DomainGroup struct {
	Domain            string
	Sources           []domain.Source
	AverageConfidence float64
}

// Engine compares feed registrations by URL and metadata.
type Engine struct {
	store  Store
	logger *zerolog.Logger
}

// NewEngine creates a source deduplication engine.
func NewEngine(store Store, logger *zerolog.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// CheckSource reports whether feedURL with meta duplicates a registered source.
func (e *Engine) CheckSource(ctx context.Context, feedURL string, meta domain.FeedMetadata) (CheckResult, error) {
	existing, err := e.store.FindSourceByLinks(ctx, lookupLinks(feedURL))

	switch {
	case err == nil:
		return CheckResult{IsDuplicate: true, Existing: existing, Confidence: exactConfidence, Reason: reasonExactURL}, nil
	case !errors.Is(err, apperrors.ErrSourceNotFound):
		return CheckResult{}, fmt.Errorf("find source by link: %w", err)
	}

	host := Host(feedURL)
	if host == "" {
		return CheckResult{Reason: reasonInvalidURL}, nil
	}

	sameDomain, err := e.store.FindSourcesByHost(ctx, host)
	if err != nil {
		return CheckResult{}, fmt.Errorf("find sources by host: %w", err)
	}

	if len(sameDomain) == 0 {
		return CheckResult{Reason: reasonNoSameDomain}, nil
	}

	candidate := profile{normalizedURL: NormalizeURL(feedURL), title: meta.Title, description: meta.Description, homeLink: meta.Link}

	best := CheckResult{Reason: reasonNoSignals}

	for i := range sameDomain {
		confidence, reason := score(candidate, profileOf(sameDomain[i]))
		if confidence > best.Confidence {
			best = CheckResult{Existing: &sameDomain[i], Confidence: confidence, Reason: reason}
		}
	}

	best.IsDuplicate = best.Confidence > DuplicateConfidence

	if best.Existing != nil {
		e.logger.Debug().
			Str("feed_url", feedURL).
			Str("source_id", best.Existing.ID).
			Float64("confidence", best.Confidence).
			Bool("duplicate", best.IsDuplicate).
			Msg("source similarity computed")
	}

	return best, nil
}

// FindPotentialDuplicates scores every source on the same host as sourceID.
// Matches above threshold are returned most similar first. A non-positive
// threshold falls back to DefaultPotentialThreshold.
func (e *Engine) FindPotentialDuplicates(ctx context.Context, sourceID string, threshold float64) (PotentialDuplicates, error) {
	if threshold <= 0 {
		threshold = DefaultPotentialThreshold
	}

	src, err := e.store.GetSource(ctx, sourceID)
	if err != nil {
		return PotentialDuplicates{}, fmt.Errorf("get source: %w", err)
	}

	result := PotentialDuplicates{Source: *src}

	host := Host(src.Link)
	if host == "" {
		return result, nil
	}

	sameDomain, err := e.store.FindSourcesByHost(ctx, host)
	if err != nil {
		return result, fmt.Errorf("find sources by host: %w", err)
	}

	self := profileOf(*src)

	for _, other := range sameDomain {
		if other.ID == src.ID {
			continue
		}

		confidence, reason := score(self, profileOf(other))
		if confidence > threshold {
			result.Duplicates = append(result.Duplicates, Match{Source: other, Confidence: confidence, Reason: reason})
		}
	}

	sort.SliceStable(result.Duplicates, func(i, j int) bool {
		return result.Duplicates[i].Confidence > result.Duplicates[j].Confidence
	})

	return result, nil
}

// DomainStats groups registered sources by host and averages the pairwise
// confidence inside each group. Only hosts with at least two sources are
// reported, highest average first.
func (e *Engine) DomainStats(ctx context.Context) ([]DomainGroup, error) {
	all, err := e.store.ListSources(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	byHost := make(map[string][]domain.Source)

	for _, s := range all {
		if host := Host(s.Link); host != "" {
			byHost[host] = append(byHost[host], s)
		}
	}

	var groups []DomainGroup

	for host, members := range byHost {
		if len(members) < 2 {
			continue
		}

		var (
			total float64
			pairs int
		)

		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				confidence, _ := score(profileOf(members[i]), profileOf(members[j]))
				total += confidence
				pairs++
			}
		}

		groups = append(groups, DomainGroup{
			Domain:            host,
			Sources:           members,
			AverageConfidence: total / float64(pairs),
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].AverageConfidence != groups[j].AverageConfidence {
			return groups[i].AverageConfidence > groups[j].AverageConfidence
		}

		return groups[i].Domain < groups[j].Domain
	})

	return groups, nil
}

// profile is the comparable view of a source or a registration candidate.
type profile struct {
	normalizedURL string
	title         string
	description   string
	homeLink      string
}

func profileOf(s domain.Source) profile {
	title := s.Title
	if title == "" {
		title = s.Metadata.Title
	}

	description := s.Description
	if description == "" {
		description = s.Metadata.Description
	}

	return profile{
		normalizedURL: NormalizeURL(s.Link),
		title:         title,
		description:   description,
		homeLink:      s.Metadata.Link,
	}
}

// score combines the weighted signals between two profiles, capped at 1.
// Signals with an empty side never fire.
func score(a, b profile) (float64, string) {
	if a.normalizedURL != "" && comparisonKey(a.normalizedURL) == comparisonKey(b.normalizedURL) {
		return exactConfidence, reasonNormalizedURL
	}

	signals := []struct {
		name   string
		a, b   string
		gate   float64
		weight float64
	}{
		{name: "title", a: a.title, b: b.title, gate: titleGate, weight: titleWeight},
		{name: "description", a: a.description, b: b.description, gate: descriptionGate, weight: descriptionWeight},
		{name: "home link", a: NormalizeURL(a.homeLink), b: NormalizeURL(b.homeLink), gate: homeLinkGate, weight: homeLinkWeight},
		{name: "url", a: a.normalizedURL, b: b.normalizedURL, gate: feedURLGate, weight: feedURLWeight},
	}

	var (
		confidence float64
		reasons    []string
	)

	for _, s := range signals {
		if strings.TrimSpace(s.a) == "" || strings.TrimSpace(s.b) == "" {
			continue
		}

		sim := dedup.EditSimilarity(s.a, s.b)
		if sim <= s.gate {
			continue
		}

		confidence += sim * s.weight
		reasons = append(reasons, fmt.Sprintf(fmtSignal, s.name, sim))
	}

	if len(reasons) == 0 {
		return 0, reasonNoSignals
	}

	return min(confidence, exactConfidence), strings.Join(reasons, reasonSeparator)
}
