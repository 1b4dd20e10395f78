// Package llm turns raw feed items into normalized articles through a chat
// completion model. Every model response is validated against a JSON schema
// before it reaches the deduplication engine.
package llm

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/config"
)

// NormalizedItem is the structured output the model returns for one raw item.
type NormalizedItem struct {
	Index           int             `json:"index"`
	Title           string          `json:"title"`
	Summary         string          `json:"summary"`
	OriginalTitle   string          `json:"original_title"`
	OriginalSummary string          `json:"original_summary"`
	Language        string          `json:"language"`
	Topics          []string        `json:"topics"`
	Tags            []string        `json:"tags"`
	Entities        domain.Entities `json:"entities"`
	DuplicateHint   string          `json:"duplicate_hint"`
	Theme           string          `json:"theme"`
	Importance      int             `json:"importance"`
}

// Result pairs a raw item with its normalized form. Err is set when the
// model output for that item was missing or failed validation.
type Result struct {
	RawItemID string
	Item      *NormalizedItem
	Err       error
}

// Normalizer normalizes batches of raw items. The returned slice is aligned
// with the input.
type Normalizer interface {
	Normalize(ctx context.Context, items []domain.RawItem) ([]Result, error)
}

// New returns the OpenAI normalizer, or the offline one when no API key is set
// or the key is "mock".
func New(cfg *config.Config, logger *zerolog.Logger) Normalizer {
	if cfg.LLMAPIKey == "" || cfg.LLMAPIKey == llmAPIKeyMock {
		logger.Warn().Msg("LLM_API_KEY not set, using passthrough normalizer")

		return NewPassthrough()
	}

	return NewOpenAI(cfg, logger)
}

// Article builds the article for raw from the normalized output. The theme
// is coerced onto the closed set, the importance clamped, and a missing
// language detected from the original text.
func (n NormalizedItem) Article(raw domain.RawItem) domain.Article {
	originalTitle := firstNonEmpty(n.OriginalTitle, raw.Title)
	originalSummary := firstNonEmpty(n.OriginalSummary, raw.Content)

	language := strings.ToLower(strings.TrimSpace(n.Language))
	if language == "" {
		language = DetectLanguage(originalTitle + " " + originalSummary)
	}

	return domain.Article{
		ExternalID:      raw.GUID,
		RawItemID:       raw.ID,
		SourceID:        raw.SourceID,
		SourceName:      raw.SourceName,
		URL:             raw.URL,
		Title:           strings.TrimSpace(n.Title),
		OriginalTitle:   originalTitle,
		Summary:         strings.TrimSpace(n.Summary),
		OriginalSummary: originalSummary,
		Language:        language,
		Theme:           domain.ParseTheme(n.Theme),
		Topics:          compact(n.Topics),
		Tags:            compact(n.Tags),
		Entities:        n.Entities,
		PublishedAt:     raw.PublishedAt,
		Importance:      domain.ClampImportance(n.Importance),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	return ""
}

// compact trims values and drops empty and repeated entries.
func compact(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}

		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		out = append(out, v)
	}

	return out
}
