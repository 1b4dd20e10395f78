// Package rss fetches RSS and Atom feeds and stores their entries as raw
// items for the normalization pipeline.
package rss

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/htmlutils"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/observability"
)

const (
	defaultUserAgent    = "rss-dedup-digest/1.0 (+https://github.com/lueurxax/rss-dedup-digest)"
	defaultFetchTimeout = 30 * time.Second
	defaultMaxItems     = 50
	maxFeedBytes        = 10 * 1024 * 1024 // 10MB
	maxRedirects        = 10
	languageCodeLength  = 2
	guidPrefixHash      = "sha256:"
	headerUserAgent     = "User-Agent"
	headerAccept        = "Accept"
	acceptFeeds         = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
)

var (
	errFeedFetchFailed  = errors.New("feed fetch failed")
	errTooManyRedirects = errors.New("too many redirects")
)

// FetcherOptions configures a Fetcher. Zero values fall back to defaults.
type FetcherOptions struct {
	Timeout   time.Duration
	RPS       float64
	MaxItems  int
	UserAgent string
}

// Fetcher downloads and parses feeds.
type Fetcher struct {
	httpClient *http.Client
	feedParser *gofeed.Parser
	limiter    *rate.Limiter
	userAgent  string
	maxItems   int
	logger     *zerolog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts FetcherOptions, logger *zerolog.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultFetchTimeout
	}

	if opts.MaxItems <= 0 {
		opts.MaxItems = defaultMaxItems
	}

	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errTooManyRedirects
				}

				return nil
			},
		},
		feedParser: gofeed.NewParser(),
		limiter:    limiter,
		userAgent:  opts.UserAgent,
		maxItems:   opts.MaxItems,
		logger:     logger,
	}
}

// Fetch downloads feedURL and returns its metadata with up to MaxItems entries.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (domain.FeedMetadata, error) {
	feed, err := f.fetchFeed(ctx, feedURL)
	if err != nil {
		observability.FeedFetches.WithLabelValues(observability.StatusError).Inc()
		return domain.FeedMetadata{}, err
	}

	observability.FeedFetches.WithLabelValues(observability.StatusOK).Inc()

	meta := metadataOf(feedURL, feed)

	for _, item := range feed.Items {
		if len(meta.Items) >= f.maxItems {
			break
		}

		if converted, ok := toFeedItem(item); ok {
			meta.Items = append(meta.Items, converted)
		}
	}

	f.logger.Debug().Str("feed_url", feedURL).Int("items", len(meta.Items)).Msg("feed fetched")

	return meta, nil
}

// FetchMetadata returns feed-level metadata only.
func (f *Fetcher) FetchMetadata(ctx context.Context, feedURL string) (domain.FeedMetadata, error) {
	meta, err := f.Fetch(ctx, feedURL)
	meta.Items = nil

	return meta, err
}

func (f *Fetcher) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}

	req.Header.Set(headerUserAgent, f.userAgent)
	req.Header.Set(headerAccept, acceptFeeds)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", errFeedFetchFailed, resp.StatusCode)
	}

	feed, err := f.feedParser.Parse(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	return feed, nil
}

func metadataOf(feedURL string, feed *gofeed.Feed) domain.FeedMetadata {
	meta := domain.FeedMetadata{
		FeedURL:     feedURL,
		Link:        strings.TrimSpace(feed.Link),
		Title:       htmlutils.ToText(feed.Title),
		Description: htmlutils.ToText(feed.Description),
		Language:    languageCode(feed.Language),
	}

	if feed.Author != nil {
		meta.Author = strings.TrimSpace(feed.Author.Name)
	}

	return meta
}

// toFeedItem converts a parsed entry. Entries with neither title nor content are dropped.
func toFeedItem(item *gofeed.Item) (domain.FeedItem, bool) {
	title := htmlutils.ToText(item.Title)

	content := htmlutils.ToText(item.Content)
	if content == "" {
		content = htmlutils.ToText(item.Description)
	}

	if title == "" && content == "" {
		return domain.FeedItem{}, false
	}

	link := strings.TrimSpace(item.Link)

	return domain.FeedItem{
		GUID:        itemGUID(item.GUID, link, title+"\n"+content),
		Title:       title,
		Link:        link,
		Content:     content,
		PublishedAt: publishedAt(item),
	}, true
}

// itemGUID prefers the feed's GUID, then the link, then a digest of the text.
func itemGUID(guid, link, text string) string {
	if guid = strings.TrimSpace(guid); guid != "" {
		return guid
	}

	if link != "" {
		return link
	}

	sum := sha256.Sum256([]byte(text))

	return guidPrefixHash + hex.EncodeToString(sum[:])
}

// publishedAt uses gofeed's parsed dates and falls back to dateparse for
// formats gofeed does not understand.
func publishedAt(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC()
	}

	for _, raw := range []string{item.Published, item.Updated} {
		if raw = strings.TrimSpace(raw); raw == "" {
			continue
		}

		if t, err := dateparse.ParseIn(raw, time.UTC); err == nil {
			return t.UTC()
		}
	}

	return time.Time{}
}

// languageCode reduces "en-US" style tags to "en".
func languageCode(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if len(lang) > languageCodeLength && (lang[languageCodeLength] == '-' || lang[languageCodeLength] == '_') {
		return lang[:languageCodeLength]
	}

	return lang
}
