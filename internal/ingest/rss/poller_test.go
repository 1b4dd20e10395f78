package rss

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
)

type mockPollStore struct {
	mock.Mock
}

func (m *mockPollStore) ListSources(ctx context.Context, activeOnly bool) ([]domain.Source, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.Source), args.Error(1)
}

func (m *mockPollStore) SaveRawItem(ctx context.Context, item *domain.RawItem) (bool, error) {
	args := m.Called(ctx, item)

	return args.Bool(0), args.Error(1)
}

type mockFeedReader struct {
	mock.Mock
}

func (m *mockFeedReader) Fetch(ctx context.Context, feedURL string) (domain.FeedMetadata, error) {
	args := m.Called(ctx, feedURL)

	return args.Get(0).(domain.FeedMetadata), args.Error(1)
}

func TestPollOnce(t *testing.T) {
	store := &mockPollStore{}
	reader := &mockFeedReader{}

	store.On("ListSources", mock.Anything, true).Return([]domain.Source{
		{ID: "s1", Link: "https://a.example/rss", Title: "A"},
		{ID: "s2", Link: "https://b.example/rss"},
	}, nil)

	reader.On("Fetch", mock.Anything, "https://a.example/rss").Return(domain.FeedMetadata{
		Title: "A feed",
		Items: []domain.FeedItem{
			{GUID: "a1", Title: "One", Link: "https://a.example/1"},
			{GUID: "a2", Title: "Two", Link: "https://a.example/2"},
		},
	}, nil)
	reader.On("Fetch", mock.Anything, "https://b.example/rss").Return(domain.FeedMetadata{}, errors.New("timeout"))

	store.On("SaveRawItem", mock.Anything, mock.MatchedBy(func(r *domain.RawItem) bool { return r.GUID == "a1" })).Return(true, nil)
	store.On("SaveRawItem", mock.Anything, mock.MatchedBy(func(r *domain.RawItem) bool { return r.GUID == "a2" })).Return(false, nil)

	report, err := NewPoller(store, reader, nopLogger()).PollOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PollReport{Sources: 2, Failed: 1, Inserted: 1, Skipped: 1}, report)

	store.AssertCalled(t, "SaveRawItem", mock.Anything, mock.MatchedBy(func(r *domain.RawItem) bool {
		return r.GUID == "a1" && r.SourceID == "s1" && r.SourceName == "A" && r.Status == domain.RawStatusPending && r.URL == "https://a.example/1"
	}))
	reader.AssertExpectations(t)
}

func TestPollOnceListFailure(t *testing.T) {
	store := &mockPollStore{}
	store.On("ListSources", mock.Anything, true).Return(nil, errors.New("db down"))

	_, err := NewPoller(store, &mockFeedReader{}, nopLogger()).PollOnce(context.Background())
	assert.Error(t, err)
}

func TestPollOnceSaveFailureCountsSource(t *testing.T) {
	store := &mockPollStore{}
	reader := &mockFeedReader{}

	store.On("ListSources", mock.Anything, true).Return([]domain.Source{{ID: "s1", Link: "https://a.example/rss"}}, nil)
	reader.On("Fetch", mock.Anything, "https://a.example/rss").Return(domain.FeedMetadata{
		Title: "Feed title",
		Items: []domain.FeedItem{{GUID: "a1"}, {GUID: "a2"}},
	}, nil)
	store.On("SaveRawItem", mock.Anything, mock.Anything).Return(false, errors.New("constraint")).Once()

	report, err := NewPoller(store, reader, nopLogger()).PollOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Inserted)
	store.AssertNumberOfCalls(t, "SaveRawItem", 1)
}
