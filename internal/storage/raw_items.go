package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
)

const rawItemReturning = `id, source_id, (SELECT s.title FROM sources s WHERE s.id = raw_items.source_id),
	guid, title, content, url, published_at, status, status_reason, created_at`

const claimPendingSQL = `
	UPDATE raw_items
	SET status = $1, claimed_at = now()
	WHERE id IN (
		SELECT id FROM raw_items
		WHERE status = $2
		ORDER BY created_at
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	)
	RETURNING ` + rawItemReturning

const releaseStaleSQL = `
	UPDATE raw_items
	SET status = $1, claimed_at = NULL
	WHERE status = $2 AND claimed_at < $3`

// SaveRawItem stores a feed entry once per source and GUID.
// It reports false when the entry was already stored.
func (db *DB) SaveRawItem(ctx context.Context, item *domain.RawItem) (bool, error) {
	status := item.Status
	if status == "" {
		status = domain.RawStatusPending
	}

	query, args, err := psql.Insert(tableRawItems).
		Columns("source_id", "guid", "title", "content", "url", "published_at", "status").
		Values(
			toUUID(item.SourceID), SanitizeUTF8(item.GUID), SanitizeUTF8(item.Title), SanitizeUTF8(item.Content),
			item.URL, toTimestamptz(item.PublishedAt), status,
		).
		Suffix("ON CONFLICT (source_id, guid) DO NOTHING RETURNING id, created_at").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert raw item: %w", err)
	}

	var (
		id        pgtype.UUID
		createdAt pgtype.Timestamptz
	)

	if err := db.Pool.QueryRow(ctx, query, args...).Scan(&id, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("insert raw item: %w", err)
	}

	item.ID = fromUUID(id)
	item.Status = status
	item.CreatedAt = fromTimestamptz(createdAt)

	return true, nil
}

// ClaimPendingRawItems moves up to limit pending items to processing and returns them.
// Concurrent workers never receive the same item.
func (db *DB) ClaimPendingRawItems(ctx context.Context, limit int) ([]domain.RawItem, error) {
	rows, err := db.Pool.Query(ctx, claimPendingSQL, domain.RawStatusProcessing, domain.RawStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending raw items: %w", err)
	}
	defer rows.Close()

	return collectRawItems(rows)
}

// ReleaseStaleRawItems returns items stuck in processing since before cutoff to pending.
func (db *DB) ReleaseStaleRawItems(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, releaseStaleSQL, domain.RawStatusPending, domain.RawStatusProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("release stale raw items: %w", err)
	}

	return tag.RowsAffected(), nil
}

// ListRawItems returns raw items matching filter, newest first.
func (db *DB) ListRawItems(ctx context.Context, filter domain.RawItemFilter) ([]domain.RawItem, error) {
	builder := psql.Select(
		"id", "source_id", "(SELECT s.title FROM sources s WHERE s.id = raw_items.source_id)",
		"guid", "title", "content", "url", "published_at", "status", "status_reason", "created_at",
	).
		From(tableRawItems).
		OrderBy("created_at DESC")

	if len(filter.SourceIDs) > 0 {
		builder = builder.Where(sq.Eq{"source_id": toUUIDs(filter.SourceIDs)})
	}

	if len(filter.Statuses) > 0 {
		builder = builder.Where(sq.Eq{"status": filter.Statuses})
	}

	if !filter.CreatedFrom.IsZero() {
		builder = builder.Where(sq.GtOrEq{"created_at": filter.CreatedFrom})
	}

	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list raw items: %w", err)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list raw items: %w", err)
	}
	defer rows.Close()

	return collectRawItems(rows)
}

// UpdateRawItemStatus sets the processing status of a raw item.
func (db *DB) UpdateRawItemStatus(ctx context.Context, id, status, reason string) error {
	query, args, err := psql.Update(tableRawItems).
		Set("status", status).
		Set("status_reason", SanitizeUTF8(reason)).
		Where(sq.Eq{"id": toUUID(id)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update raw item status: %w", err)
	}

	if _, err := db.Pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update raw item status: %w", err)
	}

	return nil
}

// CountPendingRawItems returns the pipeline backlog size.
func (db *DB) CountPendingRawItems(ctx context.Context) (int, error) {
	var n int

	if err := db.Pool.QueryRow(ctx, "SELECT count(*) FROM raw_items WHERE status = $1", domain.RawStatusPending).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending raw items: %w", err)
	}

	return n, nil
}

func collectRawItems(rows pgx.Rows) ([]domain.RawItem, error) {
	var out []domain.RawItem

	for rows.Next() {
		var (
			r           domain.RawItem
			id          pgtype.UUID
			sourceID    pgtype.UUID
			sourceName  pgtype.Text
			publishedAt pgtype.Timestamptz
			createdAt   pgtype.Timestamptz
		)

		if err := rows.Scan(
			&id, &sourceID, &sourceName, &r.GUID, &r.Title, &r.Content, &r.URL,
			&publishedAt, &r.Status, &r.StatusReason, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan raw item: %w", err)
		}

		r.ID = fromUUID(id)
		r.SourceID = fromUUID(sourceID)
		r.SourceName = sourceName.String
		r.PublishedAt = fromTimestamptz(publishedAt)
		r.CreatedAt = fromTimestamptz(createdAt)

		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw items: %w", err)
	}

	return out, nil
}
