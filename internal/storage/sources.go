package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
	apperrors "github.com/lueurxax/rss-dedup-digest/internal/core/errors"
)

const pgUniqueViolation = "23505"

// ErrDuplicateLink is returned when a source with the same link already exists.
var ErrDuplicateLink = errors.New("source link already registered")

var sourceColumns = []string{
	"id", "link", "title", "description", "category", "language",
	"is_public", "is_active", "owner_id", "metadata", "created_at",
}

// SaveSource inserts a new source and fills in its generated ID.
func (db *DB) SaveSource(ctx context.Context, s *domain.Source) error {
	metadata, err := json.Marshal(s.Metadata)
	if err != nil {
		return fmt.Errorf("marshal source metadata: %w", err)
	}

	query, args, err := psql.Insert(tableSources).
		Columns("link", "title", "description", "category", "language", "is_public", "is_active", "owner_id", "metadata").
		Values(
			s.Link, SanitizeUTF8(s.Title), SanitizeUTF8(s.Description), s.Category, s.Language,
			s.IsPublic, s.IsActive, toInt8(s.OwnerID), metadata,
		).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert source: %w", err)
	}

	var (
		id        pgtype.UUID
		createdAt pgtype.Timestamptz
	)

	if err := db.Pool.QueryRow(ctx, query, args...).Scan(&id, &createdAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateLink
		}

		return fmt.Errorf("insert source: %w", err)
	}

	s.ID = fromUUID(id)
	s.CreatedAt = fromTimestamptz(createdAt)

	return nil
}

// GetSource loads a source by ID.
func (db *DB) GetSource(ctx context.Context, id string) (*domain.Source, error) {
	return db.getSourceWhere(ctx, sq.Eq{"id": toUUID(id)})
}

// FindSourceByLinks returns the first source whose link is one of links.
func (db *DB) FindSourceByLinks(ctx context.Context, links []string) (*domain.Source, error) {
	if len(links) == 0 {
		return nil, apperrors.ErrSourceNotFound
	}

	return db.getSourceWhere(ctx, sq.Eq{"link": links})
}

// FindSourcesByHost returns sources whose link mentions host.
func (db *DB) FindSourcesByHost(ctx context.Context, host string) ([]domain.Source, error) {
	pattern := "%" + escapeLike(host) + "%"

	return db.listSourcesWhere(ctx, sq.ILike{"link": pattern})
}

// ListSources returns all sources, optionally only the active ones.
func (db *DB) ListSources(ctx context.Context, activeOnly bool) ([]domain.Source, error) {
	var cond sq.Sqlizer = sq.Expr("TRUE")
	if activeOnly {
		cond = sq.Eq{"is_active": true}
	}

	return db.listSourcesWhere(ctx, cond)
}

// SetSourceActive enables or disables polling of a source.
func (db *DB) SetSourceActive(ctx context.Context, id string, active bool) error {
	query, args, err := psql.Update(tableSources).
		Set("is_active", active).
		Where(sq.Eq{"id": toUUID(id)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set source active: %w", err)
	}

	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set source active: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.ErrSourceNotFound
	}

	return nil
}

func (db *DB) getSourceWhere(ctx context.Context, cond sq.Sqlizer) (*domain.Source, error) {
	query, args, err := psql.Select(sourceColumns...).
		From(tableSources).
		Where(cond).
		OrderBy("created_at ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get source: %w", err)
	}

	s, err := scanSource(db.Pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrSourceNotFound
		}

		return nil, fmt.Errorf("get source: %w", err)
	}

	return s, nil
}

func (db *DB) listSourcesWhere(ctx context.Context, cond sq.Sqlizer) ([]domain.Source, error) {
	query, args, err := psql.Select(sourceColumns...).
		From(tableSources).
		Where(cond).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sources: %w", err)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []domain.Source

	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}

		out = append(out, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}

	return out, nil
}

func scanSource(row pgx.Row) (*domain.Source, error) {
	var (
		s         domain.Source
		id        pgtype.UUID
		ownerID   pgtype.Int8
		metadata  []byte
		createdAt pgtype.Timestamptz
	)

	if err := row.Scan(
		&id, &s.Link, &s.Title, &s.Description, &s.Category, &s.Language,
		&s.IsPublic, &s.IsActive, &ownerID, &metadata, &createdAt,
	); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &s.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal source metadata: %w", err)
		}
	}

	s.ID = fromUUID(id)
	s.OwnerID = fromInt8(ownerID)
	s.CreatedAt = fromTimestamptz(createdAt)

	return &s, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
