package domain

import "time"

// Article is a normalized news article produced by the AI normalizer.
type Article struct {
	ID              string
	ExternalID      string
	RawItemID       string
	SourceID        string
	SourceName      string
	URL             string
	Title           string
	OriginalTitle   string
	Summary         string
	OriginalSummary string
	Language        string
	Theme           Theme
	Topics          []string
	Tags            []string
	Entities        Entities
	PublishedAt     time.Time
	CreatedAt       time.Time
	Importance      int
	DuplicateOf     *string
	SimilarityScore *float64
	IndexedAt       *time.Time
}

// GetID returns the article identifier.
func (a Article) GetID() string { return a.ID }

// Entities groups named entities by kind.
type Entities struct {
	Organizations []string `json:"organizations"`
	People        []string `json:"people"`
	Products      []string `json:"products"`
}

// RawItem is an unprocessed feed entry waiting for normalization.
type RawItem struct {
	ID           string
	SourceID     string
	SourceName   string
	GUID         string
	Title        string
	Content      string
	URL          string
	PublishedAt  time.Time
	Status       string
	StatusReason string
	CreatedAt    time.Time
}

// GetID returns the raw item identifier.
func (r RawItem) GetID() string { return r.ID }

// Raw item status constants.
const (
	RawStatusPending    = "pending"
	RawStatusProcessing = "processing"
	RawStatusProcessed  = "processed"
	RawStatusDuplicate  = "duplicate"
	RawStatusFailed     = "failed"
)

// Source is a registered RSS feed. Link is unique across all sources.
type Source struct {
	ID          string
	Link        string
	Title       string
	Description string
	Category    string
	Language    string
	IsPublic    bool
	IsActive    bool
	OwnerID     int64
	Metadata    FeedMetadata
	CreatedAt   time.Time
}

// GetID returns the source identifier.
func (s Source) GetID() string { return s.ID }

// FeedMetadata describes a feed as reported by the feed itself.
type FeedMetadata struct {
	FeedURL     string     `json:"feed_url"`
	Link        string     `json:"link"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Author      string     `json:"author,omitempty"`
	Language    string     `json:"language,omitempty"`
	Items       []FeedItem `json:"items,omitempty"`
}

// FeedItem is a single entry of a parsed feed.
type FeedItem struct {
	GUID        string    `json:"guid"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Content     string    `json:"content,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}
