package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
	apperrors "github.com/lueurxax/rss-dedup-digest/internal/core/errors"
	db "github.com/lueurxax/rss-dedup-digest/internal/storage"
)

var errStoreDown = errors.New("store unavailable")

type memStore struct {
	mu      sync.Mutex
	sources []domain.Source
	seq     int
	failAll error
}

func (m *memStore) GetSource(_ context.Context, id string) (*domain.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.sources {
		if m.sources[i].ID == id {
			s := m.sources[i]
			return &s, nil
		}
	}

	return nil, apperrors.ErrSourceNotFound
}

func (m *memStore) FindSourceByLinks(_ context.Context, links []string) (*domain.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failAll != nil {
		return nil, m.failAll
	}

	for i := range m.sources {
		for _, l := range links {
			if m.sources[i].Link == l {
				s := m.sources[i]
				return &s, nil
			}
		}
	}

	return nil, apperrors.ErrSourceNotFound
}

func (m *memStore) FindSourcesByHost(_ context.Context, host string) ([]domain.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Source

	for _, s := range m.sources {
		if strings.Contains(strings.ToLower(s.Link), strings.ToLower(host)) {
			out = append(out, s)
		}
	}

	return out, nil
}

func (m *memStore) ListSources(_ context.Context, _ bool) ([]domain.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]domain.Source(nil), m.sources...), nil
}

func (m *memStore) SaveSource(_ context.Context, s *domain.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.sources {
		if existing.Link == s.Link {
			return db.ErrDuplicateLink
		}
	}

	m.seq++
	s.ID = fmt.Sprintf("src-%d", m.seq)
	m.sources = append(m.sources, *s)

	return nil
}

func (m *memStore) add(s domain.Source) {
	m.sources = append(m.sources, s)
}

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func TestCheckSourceExactURLAcrossSchemes(t *testing.T) {
	store := &memStore{}
	engine := NewEngine(store, testLogger())
	registrar := NewRegistrar(engine, store, nil, testLogger())

	first, err := registrar.Register(context.Background(), Registration{URL: "http://example.com/rss", Title: "Example"})
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/rss", first.Link)

	res, err := engine.CheckSource(context.Background(), "https://www.example.com/rss/", domain.FeedMetadata{})
	require.NoError(t, err)

	assert.True(t, res.IsDuplicate)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
	assert.Equal(t, reasonExactURL, res.Reason)
	require.NotNil(t, res.Existing)
	assert.Equal(t, first.ID, res.Existing.ID)
}

func TestCheckSourceNormalizedURLOnSameDomain(t *testing.T) {
	store := &memStore{}
	store.add(domain.Source{ID: "legacy", Link: "HTTP://Example.com:80/rss/"})

	res, err := NewEngine(store, testLogger()).CheckSource(context.Background(), "https://www.example.com/rss", domain.FeedMetadata{})
	require.NoError(t, err)

	assert.True(t, res.IsDuplicate)
	assert.InDelta(t, 1.0, res.Confidence, 1e-9)
	assert.Equal(t, reasonNormalizedURL, res.Reason)
}

func TestCheckSourceWeightedSignals(t *testing.T) {
	store := &memStore{}
	store.add(domain.Source{
		ID:          "daily",
		Link:        "https://news.example.com/feed",
		Title:       "Example Daily News",
		Description: "All the news from Example city",
		Metadata:    domain.FeedMetadata{Link: "https://news.example.com"},
	})
	store.add(domain.Source{
		ID:    "sports",
		Link:  "https://news.example.com/sports/rss",
		Title: "Example Sports",
	})

	engine := NewEngine(store, testLogger())

	t.Run("same publication", func(t *testing.T) {
		res, err := engine.CheckSource(context.Background(), "https://news.example.com/rss/all", domain.FeedMetadata{
			Title:       "Example Daily News",
			Description: "All the news from Example city",
			Link:        "https://www.news.example.com/",
		})
		require.NoError(t, err)

		assert.True(t, res.IsDuplicate)
		assert.Greater(t, res.Confidence, DuplicateConfidence)
		assert.LessOrEqual(t, res.Confidence, 1.0)
		assert.Equal(t, "daily", res.Existing.ID)
		assert.Contains(t, res.Reason, "title similarity 1.00")
		assert.Contains(t, res.Reason, "description similarity 1.00")
	})

	t.Run("different feed on same domain", func(t *testing.T) {
		res, err := engine.CheckSource(context.Background(), "https://news.example.com/weather/rss", domain.FeedMetadata{
			Title:       "Weather Alerts",
			Description: "Storm and heat warnings",
		})
		require.NoError(t, err)

		assert.False(t, res.IsDuplicate)
		assert.Less(t, res.Confidence, DuplicateConfidence)
	})

	t.Run("empty metadata never matches on text", func(t *testing.T) {
		res, err := engine.CheckSource(context.Background(), "https://news.example.com/a/very/different/path.xml", domain.FeedMetadata{})
		require.NoError(t, err)

		assert.False(t, res.IsDuplicate)
		assert.NotContains(t, res.Reason, "title")
		assert.NotContains(t, res.Reason, "description")
	})
}

func TestCheckSourceNoSameDomain(t *testing.T) {
	store := &memStore{}
	store.add(domain.Source{ID: "x", Link: "https://other.org/rss", Title: "Example Daily News"})

	res, err := NewEngine(store, testLogger()).CheckSource(context.Background(), "https://example.com/rss", domain.FeedMetadata{Title: "Example Daily News"})
	require.NoError(t, err)

	assert.False(t, res.IsDuplicate)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, reasonNoSameDomain, res.Reason)
}

func TestCheckSourceStoreFailure(t *testing.T) {
	store := &memStore{failAll: errStoreDown}

	_, err := NewEngine(store, testLogger()).CheckSource(context.Background(), "https://example.com/rss", domain.FeedMetadata{})
	require.ErrorIs(t, err, errStoreDown)
}

func TestScoreSignals(t *testing.T) {
	base := profile{
		normalizedURL: "https://ex.com/feed",
		title:         "Morning Briefing",
		description:   "Top stories every morning",
		homeLink:      "https://ex.com",
	}

	t.Run("title only", func(t *testing.T) {
		other := profile{normalizedURL: "https://ex.com/zzzzzzzzzzzzzzzzzz", title: "Morning Briefing"}
		confidence, reason := score(base, other)

		assert.InDelta(t, titleWeight, confidence, 1e-9)
		assert.Equal(t, "title similarity 1.00", reason)
	})

	t.Run("home link root forms match", func(t *testing.T) {
		other := profile{normalizedURL: "https://zz.org/x", homeLink: "https://www.ex.com/"}
		confidence, reason := score(base, other)

		assert.InDelta(t, homeLinkWeight, confidence, 1e-9)
		assert.Equal(t, "home link similarity 1.00", reason)
	})

	t.Run("all signals capped", func(t *testing.T) {
		other := base
		other.normalizedURL = "https://ex.com/feeds"

		confidence, _ := score(base, other)
		assert.InDelta(t, 1.0, confidence, 1e-9)
	})

	t.Run("below every gate", func(t *testing.T) {
		confidence, reason := score(base, profile{normalizedURL: "https://ex.com/quarterly-report.xml", title: "Evening"})

		assert.Zero(t, confidence)
		assert.Equal(t, reasonNoSignals, reason)
	})
}

func TestFindPotentialDuplicates(t *testing.T) {
	store := &memStore{}
	store.add(domain.Source{ID: "a", Link: "https://ex.com/feed", Title: "Morning Briefing", Description: "Top stories every morning"})
	store.add(domain.Source{ID: "b", Link: "https://ex.com/feeds", Title: "Morning Briefing", Description: "Top stories every morning"})
	store.add(domain.Source{ID: "c", Link: "https://ex.com/sport", Title: "Sport"})
	store.add(domain.Source{ID: "d", Link: "https://elsewhere.org/feed", Title: "Morning Briefing"})

	engine := NewEngine(store, testLogger())

	res, err := engine.FindPotentialDuplicates(context.Background(), "a", 0)
	require.NoError(t, err)

	assert.Equal(t, "a", res.Source.ID)
	require.Len(t, res.Duplicates, 1)
	assert.Equal(t, "b", res.Duplicates[0].Source.ID)
	assert.Greater(t, res.Duplicates[0].Confidence, DefaultPotentialThreshold)

	_, err = engine.FindPotentialDuplicates(context.Background(), "missing", 0)
	require.ErrorIs(t, err, apperrors.ErrSourceNotFound)
}

func TestDomainStats(t *testing.T) {
	store := &memStore{}
	store.add(domain.Source{ID: "a1", Link: "https://alpha.com/rss"})
	store.add(domain.Source{ID: "a2", Link: "http://www.alpha.com/rss/"})
	store.add(domain.Source{ID: "b1", Link: "https://beta.com/news", Title: "Beta"})
	store.add(domain.Source{ID: "b2", Link: "https://beta.com/sport", Title: "Beta Sport"})
	store.add(domain.Source{ID: "c1", Link: "https://gamma.com/rss"})

	groups, err := NewEngine(store, testLogger()).DomainStats(context.Background())
	require.NoError(t, err)

	require.Len(t, groups, 2)
	assert.Equal(t, "alpha.com", groups[0].Domain)
	assert.InDelta(t, 1.0, groups[0].AverageConfidence, 1e-9)
	assert.Equal(t, "beta.com", groups[1].Domain)
	assert.Less(t, groups[1].AverageConfidence, groups[0].AverageConfidence)
	assert.Len(t, groups[1].Sources, 2)
}
