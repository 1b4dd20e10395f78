package domain

import "time"

// IndexedDocument is the search-engine projection of an article.
// Score is only populated on search results.
type IndexedDocument struct {
	Article
	ContentHash string
	TitleHash   string
	Score       float64
}

// SimilarQuery describes a relevance lookup against indexed articles.
type SimilarQuery struct {
	Title        string
	Content      string
	ExcludeID    string
	CreatedAfter time.Time
	MinScore     float64
	TitleBoost   float64
	ContentBoost float64
	Rows         int
}

// ArticleFilter narrows article listings. Zero values disable a condition.
type ArticleFilter struct {
	SourceIDs     []string
	CreatedFrom   time.Time
	CreatedTo     time.Time
	UnindexedOnly bool
	Limit         int
}

// RawItemFilter narrows raw item listings. Zero values disable a condition.
type RawItemFilter struct {
	SourceIDs   []string
	Statuses    []string
	CreatedFrom time.Time
	Limit       int
}
