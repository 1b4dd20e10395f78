package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
	apperrors "github.com/lueurxax/rss-dedup-digest/internal/core/errors"
)

var articleColumns = []string{
	"id", "external_id", "raw_item_id", "source_id", "source_name", "url",
	"title", "original_title", "summary", "original_summary", "language", "theme",
	"topics", "tags", "entities", "importance", "published_at", "created_at",
	"duplicate_of", "similarity_score", "indexed_at",
}

// SaveArticle inserts a new article and fills in its generated ID and creation time.
func (db *DB) SaveArticle(ctx context.Context, a *domain.Article) error {
	entities, err := json.Marshal(a.Entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}

	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query, args, err := psql.Insert(tableArticles).
		Columns(
			"external_id", "raw_item_id", "source_id", "source_name", "url",
			"title", "original_title", "summary", "original_summary", "language", "theme",
			"topics", "tags", "entities", "importance", "published_at", "created_at",
			"duplicate_of", "similarity_score",
		).
		Values(
			SanitizeUTF8(a.ExternalID), toUUID(a.RawItemID), toUUID(a.SourceID), SanitizeUTF8(a.SourceName), a.URL,
			SanitizeUTF8(a.Title), SanitizeUTF8(a.OriginalTitle), SanitizeUTF8(a.Summary), SanitizeUTF8(a.OriginalSummary),
			a.Language, string(a.Theme),
			sanitizeAll(a.Topics), sanitizeAll(a.Tags), entities, a.Importance, toTimestamptz(a.PublishedAt), createdAt,
			toUUIDPtr(a.DuplicateOf), toFloat8Ptr(a.SimilarityScore),
		).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert article: %w", err)
	}

	var (
		id      pgtype.UUID
		created pgtype.Timestamptz
	)

	if err := db.Pool.QueryRow(ctx, query, args...).Scan(&id, &created); err != nil {
		return fmt.Errorf("insert article: %w", err)
	}

	a.ID = fromUUID(id)
	a.CreatedAt = fromTimestamptz(created)

	return nil
}

// GetArticle loads an article by ID.
func (db *DB) GetArticle(ctx context.Context, id string) (*domain.Article, error) {
	query, args, err := psql.Select(articleColumns...).
		From(tableArticles).
		Where(sq.Eq{"id": toUUID(id)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get article: %w", err)
	}

	a, err := scanArticle(db.Pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrArticleNotFound
		}

		return nil, fmt.Errorf("get article: %w", err)
	}

	return a, nil
}

// ListArticles returns articles matching filter, oldest first.
func (db *DB) ListArticles(ctx context.Context, filter domain.ArticleFilter) ([]domain.Article, error) {
	query, args, err := articleListQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list articles: %w", err)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var out []domain.Article

	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}

		out = append(out, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}

	return out, nil
}

func articleListQuery(filter domain.ArticleFilter) sq.SelectBuilder {
	builder := psql.Select(articleColumns...).
		From(tableArticles).
		OrderBy("created_at ASC", "id ASC")

	if len(filter.SourceIDs) > 0 {
		builder = builder.Where(sq.Eq{"source_id": toUUIDs(filter.SourceIDs)})
	}

	if !filter.CreatedFrom.IsZero() {
		builder = builder.Where(sq.GtOrEq{"created_at": filter.CreatedFrom})
	}

	if !filter.CreatedTo.IsZero() {
		builder = builder.Where(sq.Lt{"created_at": filter.CreatedTo})
	}

	if filter.UnindexedOnly {
		builder = builder.Where(sq.Eq{"indexed_at": nil})
	}

	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	return builder
}

// DeleteArticle removes an article. A missing article yields ErrArticleNotFound.
func (db *DB) DeleteArticle(ctx context.Context, id string) error {
	query, args, err := psql.Delete(tableArticles).Where(sq.Eq{"id": toUUID(id)}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete article: %w", err)
	}

	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.ErrArticleNotFound
	}

	return nil
}

// MarkArticleIndexed records when an article last reached the search index.
func (db *DB) MarkArticleIndexed(ctx context.Context, id string, at time.Time) error {
	query, args, err := psql.Update(tableArticles).
		Set("indexed_at", toTimestamptz(at)).
		Where(sq.Eq{"id": toUUID(id)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark indexed: %w", err)
	}

	if _, err := db.Pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark article indexed: %w", err)
	}

	return nil
}

// CountArticles returns the number of stored articles.
func (db *DB) CountArticles(ctx context.Context) (int, error) {
	var n int

	if err := db.Pool.QueryRow(ctx, "SELECT count(*) FROM articles").Scan(&n); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}

	return n, nil
}

func scanArticle(row pgx.Row) (*domain.Article, error) {
	var (
		a           domain.Article
		id          pgtype.UUID
		rawItemID   pgtype.UUID
		sourceID    pgtype.UUID
		theme       string
		entities    []byte
		publishedAt pgtype.Timestamptz
		createdAt   pgtype.Timestamptz
		duplicateOf pgtype.UUID
		similarity  pgtype.Float8
		indexedAt   pgtype.Timestamptz
	)

	err := row.Scan(
		&id, &a.ExternalID, &rawItemID, &sourceID, &a.SourceName, &a.URL,
		&a.Title, &a.OriginalTitle, &a.Summary, &a.OriginalSummary, &a.Language, &theme,
		&a.Topics, &a.Tags, &entities, &a.Importance, &publishedAt, &createdAt,
		&duplicateOf, &similarity, &indexedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}

	if len(entities) > 0 {
		if err := json.Unmarshal(entities, &a.Entities); err != nil {
			return nil, fmt.Errorf("unmarshal entities: %w", err)
		}
	}

	a.ID = fromUUID(id)
	a.RawItemID = fromUUID(rawItemID)
	a.SourceID = fromUUID(sourceID)
	a.Theme = domain.Theme(theme)
	a.PublishedAt = fromTimestamptz(publishedAt)
	a.CreatedAt = fromTimestamptz(createdAt)
	a.DuplicateOf = fromUUIDPtr(duplicateOf)
	a.SimilarityScore = fromFloat8Ptr(similarity)
	a.IndexedAt = fromTimestamptzPtr(indexedAt)

	return &a, nil
}
