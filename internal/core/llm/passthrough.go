package llm

import (
	"context"
	"strings"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
)

const passthroughImportance = 50

// passthroughNormalizer copies raw fields through without a model. It keeps
// local runs and tests working without an API key.
type passthroughNormalizer struct{}

// NewPassthrough returns a normalizer that uses the raw title and content as-is.
func NewPassthrough() Normalizer {
	return passthroughNormalizer{}
}

func (passthroughNormalizer) Normalize(_ context.Context, items []domain.RawItem) ([]Result, error) {
	results := make([]Result, len(items))

	for i, raw := range items {
		results[i] = Result{
			RawItemID: raw.ID,
			Item: &NormalizedItem{
				Index:           i,
				Title:           strings.TrimSpace(raw.Title),
				Summary:         truncate(strings.TrimSpace(raw.Content), maxContentRunes),
				OriginalTitle:   raw.Title,
				OriginalSummary: raw.Content,
				Theme:           string(domain.ThemeSociety),
				Importance:      passthroughImportance,
			},
		}
	}

	return results, nil
}
