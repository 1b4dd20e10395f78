package db

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
)

const testUUID = "6f1c2a4e-8d2b-4c1a-9b7e-0c3d5e7f9a10"

func TestArticleListQuery(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		filter   domain.ArticleFilter
		contains []string
		absent   []string
		args     int
	}{
		{
			name:     "no filter",
			filter:   domain.ArticleFilter{},
			contains: []string{"FROM articles", "ORDER BY created_at ASC, id ASC"},
			absent:   []string{"WHERE", "LIMIT"},
		},
		{
			name:     "unindexed with limit",
			filter:   domain.ArticleFilter{UnindexedOnly: true, Limit: 50},
			contains: []string{"indexed_at IS NULL", "LIMIT 50"},
		},
		{
			name:     "sources and window",
			filter:   domain.ArticleFilter{SourceIDs: []string{testUUID, "not-a-uuid"}, CreatedFrom: from, CreatedTo: from.Add(time.Hour)},
			contains: []string{"source_id IN ($1)", "created_at >= $2", "created_at < $3"},
			args:     3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := articleListQuery(tt.filter).ToSql()
			require.NoError(t, err)

			for _, s := range tt.contains {
				assert.Contains(t, query, s)
			}

			for _, s := range tt.absent {
				assert.NotContains(t, query, s)
			}

			assert.Len(t, args, tt.args)
		})
	}
}

func TestUUIDHelpers(t *testing.T) {
	assert.Equal(t, testUUID, fromUUID(toUUID(testUUID)))
	assert.False(t, toUUID("garbage").Valid)
	assert.Empty(t, fromUUID(toUUID("")))
	assert.Nil(t, fromUUIDPtr(toUUIDPtr(nil)))

	id := testUUID
	got := fromUUIDPtr(toUUIDPtr(&id))
	require.NotNil(t, got)
	assert.Equal(t, testUUID, *got)
	assert.Len(t, toUUIDs([]string{testUUID, "bad"}), 1)
}

func TestNullableHelpers(t *testing.T) {
	assert.False(t, toTimestamptz(time.Time{}).Valid)
	assert.Nil(t, fromTimestamptzPtr(toTimestamptzPtr(nil)))

	score := 0.42
	got := fromFloat8Ptr(toFloat8Ptr(&score))
	require.NotNil(t, got)
	assert.InDelta(t, 0.42, *got, 1e-12)
	assert.Nil(t, fromFloat8Ptr(toFloat8Ptr(nil)))

	assert.False(t, toInt8(0).Valid)
	assert.Equal(t, int64(7), fromInt8(toInt8(7)))
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "ok", SanitizeUTF8("ok"))
	assert.Equal(t, "ab", SanitizeUTF8("a\xffb"))
	assert.Equal(t, []string{"ab", "c"}, sanitizeAll([]string{"a\xffb", "c"}))
	assert.NotNil(t, sanitizeAll(nil))
}

func TestEscapeLike(t *testing.T) {
	got := escapeLike(`news_site%\x`)
	assert.Equal(t, `news\_site\%\\x`, got)
	assert.False(t, strings.Contains(strings.ReplaceAll(got, `\%`, ""), "%"))
}
