package solr

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
	"github.com/lueurxax/rss-dedup-digest/internal/platform/observability"
)

const (
	similarQueryFieldsFmt = "title^%g content^%g"
	searchQueryFields     = "title^3 original_title^2 content^1"
	similarMinimumMatch   = "30%"
	searchMinimumMatch    = "2<75%"
	fieldsWithScore       = "*,score"
	hashQueryFmt          = `content_hash:"%s" OR title_hash:"%s"`
	excludeIDFilterFmt    = `-id:"%s"`
	createdAfterFilterFmt = "created_at:[%s TO *]"
	sortCreatedAsc        = "created_at asc"
	matchAllQuery         = "*:*"
	maxInterestingTerms   = 25
	minTermLength         = 3
	minFuzzyTermLength    = 5
	fuzzySuffix           = "~1"
	opIndex               = "index"
	opHashes              = "find_by_hashes"
	opSimilar             = "more_like_this"
	opSearch              = "search"
	opDelete              = "delete"
	opUpdate              = "update_fields"
)

// ArticleIndex stores article projections in a Solr collection.
type ArticleIndex struct {
	client *Client
	retry  RetryConfig
	logger *zerolog.Logger
}

// NewArticleIndex creates an ArticleIndex on top of client.
func NewArticleIndex(client *Client, logger *zerolog.Logger) *ArticleIndex {
	return &ArticleIndex{
		client: client,
		retry:  DefaultRetryConfig(),
		logger: logger,
	}
}

// Ping checks the collection is reachable.
func (x *ArticleIndex) Ping(ctx context.Context) error {
	return x.client.Ping(ctx)
}

// EnsureIndex creates the collection and its fields if they are missing.
func (x *ArticleIndex) EnsureIndex(ctx context.Context) error {
	exists, err := x.client.CollectionExists(ctx)
	if err != nil {
		return err
	}

	if !exists {
		x.logger.Info().Str("collection", x.client.Collection()).Msg("creating search collection")

		if err := x.client.CreateCollection(ctx); err != nil {
			return err
		}
	}

	return x.client.EnsureFields(ctx, articleSchema)
}

// RecreateIndex drops the collection and creates it again.
func (x *ArticleIndex) RecreateIndex(ctx context.Context) error {
	x.logger.Warn().Str("collection", x.client.Collection()).Msg("recreating search collection")

	if err := x.client.DropCollection(ctx); err != nil {
		return err
	}

	if err := x.client.CreateCollection(ctx); err != nil {
		return err
	}

	return x.client.EnsureFields(ctx, articleSchema)
}

// IndexDocument writes or replaces a document keyed by the article ID.
func (x *ArticleIndex) IndexDocument(ctx context.Context, doc domain.IndexedDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("index document: %w", ErrBadRequest)
	}

	err := x.client.IndexWithRetry(ctx, x.retry, toIndexDocument(doc))
	record(opIndex, err)

	if err != nil {
		return fmt.Errorf("index article %s: %w", doc.ID, err)
	}

	return nil
}

// FindByHashes returns documents whose content or title fingerprint matches, oldest first.
func (x *ArticleIndex) FindByHashes(ctx context.Context, contentHash, titleHash string, limit int) ([]domain.IndexedDocument, error) {
	query := fmt.Sprintf(hashQueryFmt, escapePhrase(contentHash), escapePhrase(titleHash))

	resp, err := x.client.Search(ctx, query,
		WithRows(limit),
		WithSort(sortCreatedAsc),
	)
	record(opHashes, err)

	if err != nil {
		return nil, fmt.Errorf("find by hashes: %w", err)
	}

	return toIndexed(resp.Response.Docs), nil
}

// MoreLikeThis runs a weighted relevance query built from the most
// distinctive terms of the title and content. Hits at or below MinScore are dropped.
func (x *ArticleIndex) MoreLikeThis(ctx context.Context, q domain.SimilarQuery) ([]domain.IndexedDocument, error) {
	terms := interestingTerms(q.Title, q.Content)
	if len(terms) == 0 {
		return nil, nil
	}

	opts := []SearchOption{
		WithEdismax(fmt.Sprintf(similarQueryFieldsFmt, boostOrDefault(q.TitleBoost), boostOrDefault(q.ContentBoost))),
		WithMinimumMatch(similarMinimumMatch),
		WithFields(fieldsWithScore),
	}

	if q.Rows > 0 {
		opts = append(opts, WithRows(q.Rows))
	}

	if !q.CreatedAfter.IsZero() {
		opts = append(opts, WithFilterQuery(fmt.Sprintf(createdAfterFilterFmt, FormatTime(q.CreatedAfter))))
	}

	if q.ExcludeID != "" {
		opts = append(opts, WithFilterQuery(fmt.Sprintf(excludeIDFilterFmt, escapePhrase(q.ExcludeID))))
	}

	resp, err := x.client.Search(ctx, strings.Join(terms, " "), opts...)
	record(opSimilar, err)

	if err != nil {
		return nil, fmt.Errorf("more like this: %w", err)
	}

	hits := toIndexed(resp.Response.Docs)
	out := hits[:0]

	for _, h := range hits {
		if h.Score > q.MinScore {
			out = append(out, h)
		}
	}

	return out, nil
}

// SearchArticles runs a tolerant full-text search over titles and content.
func (x *ArticleIndex) SearchArticles(ctx context.Context, query string, rows int) ([]domain.IndexedDocument, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	for i, t := range terms {
		if utf8.RuneCountInString(t) >= minFuzzyTermLength {
			terms[i] = t + fuzzySuffix
		}
	}

	opts := []SearchOption{
		WithEdismax(searchQueryFields),
		WithMinimumMatch(searchMinimumMatch),
		WithFields(fieldsWithScore),
	}

	if rows > 0 {
		opts = append(opts, WithRows(rows))
	}

	resp, err := x.client.Search(ctx, strings.Join(terms, " "), opts...)
	record(opSearch, err)

	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}

	return toIndexed(resp.Response.Docs), nil
}

// UpdateFields sets the given fields on an indexed document.
func (x *ArticleIndex) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	err := x.client.AtomicUpdateWithRetry(ctx, id, fields, x.retry)
	record(opUpdate, err)

	if err != nil {
		return fmt.Errorf("update fields of %s: %w", id, err)
	}

	return nil
}

// DeleteDocument removes a document by ID.
func (x *ArticleIndex) DeleteDocument(ctx context.Context, id string) error {
	err := x.client.Delete(ctx, id)
	record(opDelete, err)

	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}

	return nil
}

// CountAll returns the number of indexed documents.
func (x *ArticleIndex) CountAll(ctx context.Context) (int, error) {
	resp, err := x.client.Search(ctx, matchAllQuery, WithRows(0))
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}

	return resp.Response.NumFound, nil
}

func record(op string, err error) {
	status := observability.StatusOK
	if err != nil {
		status = observability.StatusError
	}

	observability.IndexOperations.WithLabelValues(op, status).Inc()
}

func toIndexDocument(doc domain.IndexedDocument) IndexDocument {
	d := NewIndexDocument(doc.ID).
		SetField(FieldSourceID, doc.SourceID).
		SetField(FieldSourceName, doc.SourceName).
		SetField(FieldURL, doc.URL).
		SetField(FieldTitle, doc.Title).
		SetField(FieldOriginalTitle, doc.OriginalTitle).
		SetField(FieldContent, doc.Summary).
		SetField(FieldLanguage, doc.Language).
		SetField(FieldTheme, string(doc.Theme)).
		SetField(FieldTopics, doc.Topics).
		SetField(FieldTags, doc.Tags).
		SetField(FieldImportance, doc.Importance).
		SetField(FieldContentHash, doc.ContentHash).
		SetField(FieldTitleHash, doc.TitleHash).
		SetField(FieldPublishedAt, doc.PublishedAt).
		SetField(FieldCreatedAt, doc.CreatedAt)

	if doc.DuplicateOf != nil {
		d.SetField(FieldDuplicateOf, *doc.DuplicateOf)
	}

	return d
}

func toIndexed(docs []Document) []domain.IndexedDocument {
	out := make([]domain.IndexedDocument, 0, len(docs))

	for _, d := range docs {
		a := domain.Article{
			ID:            d.ID,
			SourceID:      d.SourceID,
			SourceName:    d.SourceName,
			URL:           d.URL,
			Title:         d.Title,
			OriginalTitle: d.OriginalTitle,
			Summary:       d.Content,
			Language:      d.Language,
			Theme:         domain.Theme(d.Theme),
			Topics:        d.Topics,
			Tags:          d.Tags,
			Importance:    d.Importance,
			PublishedAt:   d.PublishedAt,
			CreatedAt:     d.CreatedAt,
		}

		if d.DuplicateOf != "" {
			dup := d.DuplicateOf
			a.DuplicateOf = &dup
		}

		out = append(out, domain.IndexedDocument{
			Article:     a,
			ContentHash: d.ContentHash,
			TitleHash:   d.TitleHash,
			Score:       d.Score,
		})
	}

	return out
}

// interestingTerms returns the most frequent non-stop terms of title and
// content, capped. Ties keep first-appearance order, title first.
func interestingTerms(title, content string) []string {
	counts := make(map[string]int)

	var terms []string

	for _, t := range append(queryTerms(title), queryTerms(content)...) {
		if _, stop := stopTerms[t]; stop {
			continue
		}

		if counts[t] == 0 {
			terms = append(terms, t)
		}

		counts[t]++
	}

	sort.SliceStable(terms, func(i, j int) bool {
		return counts[terms[i]] > counts[terms[j]]
	})

	if len(terms) > maxInterestingTerms {
		terms = terms[:maxInterestingTerms]
	}

	return terms
}

// queryTerms splits text on anything that is not a letter or digit, so the
// result never carries query syntax.
func queryTerms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	out := fields[:0]

	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTermLength && !isOperator(f) {
			out = append(out, f)
		}
	}

	return out
}

func isOperator(term string) bool {
	switch term {
	case "and", "not":
		return true
	}

	return false
}

func boostOrDefault(b float64) float64 {
	if b <= 0 {
		return 1
	}

	return b
}

// escapePhrase escapes a value for use inside a quoted Solr phrase.
func escapePhrase(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
