package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
	apperrors "github.com/lueurxax/rss-dedup-digest/internal/core/errors"
	"github.com/lueurxax/rss-dedup-digest/internal/core/llm"
	"github.com/lueurxax/rss-dedup-digest/internal/process/dedup"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) ClaimPendingRawItems(ctx context.Context, limit int) ([]domain.RawItem, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]domain.RawItem), args.Error(1)
}

func (m *mockRepo) ReleaseStaleRawItems(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)

	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepo) UpdateRawItemStatus(ctx context.Context, id, status, reason string) error {
	return m.Called(ctx, id, status, reason).Error(0)
}

func (m *mockRepo) CountPendingRawItems(ctx context.Context) (int, error) {
	args := m.Called(ctx)

	return args.Int(0), args.Error(1)
}

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) ProcessArticle(ctx context.Context, a *domain.Article) (dedup.ProcessResult, error) {
	args := m.Called(ctx, a)

	return args.Get(0).(dedup.ProcessResult), args.Error(1)
}

type stubNormalizer struct {
	results []llm.Result
	err     error
}

func (s stubNormalizer) Normalize(context.Context, []domain.RawItem) ([]llm.Result, error) {
	return s.results, s.err
}

type stubLocker struct {
	busy map[string]bool
	keys []string
}

func (s *stubLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	s.keys = append(s.keys, key)
	if s.busy[key] {
		return fmt.Errorf("lock %s: %w", key, apperrors.ErrLockNotAcquired)
	}

	return fn(ctx)
}

func nopLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func normalized(title string) *llm.NormalizedItem {
	return &llm.NormalizedItem{Title: title, Summary: "summary of " + title, Language: "en", Theme: "economy", Importance: 40}
}

func titled(title string) any {
	return mock.MatchedBy(func(a *domain.Article) bool { return a.Title == title })
}

func TestProcessBatchOutcomes(t *testing.T) {
	repo := &mockRepo{}
	processor := &mockProcessor{}

	items := []domain.RawItem{{ID: "r1", Title: "t1"}, {ID: "r2", Title: "t2"}, {ID: "r3", Title: "t3"}, {ID: "r4", Title: "t4"}}

	repo.On("ClaimPendingRawItems", mock.Anything, 5).Return(items, nil)
	repo.On("CountPendingRawItems", mock.Anything).Return(12, nil)
	repo.On("UpdateRawItemStatus", mock.Anything, "r1", domain.RawStatusProcessed, "saved").Return(nil)
	repo.On("UpdateRawItemStatus", mock.Anything, "r2", domain.RawStatusDuplicate, "duplicate of a1 (method=hash, score=1.00)").Return(nil)
	repo.On("UpdateRawItemStatus", mock.Anything, "r3", domain.RawStatusFailed, mock.AnythingOfType("string")).Return(nil)
	repo.On("UpdateRawItemStatus", mock.Anything, "r4", domain.RawStatusFailed, mock.AnythingOfType("string")).Return(nil)

	processor.On("ProcessArticle", mock.Anything, titled("Unique")).Return(dedup.ProcessResult{Saved: true, ArticleID: "a2", Reason: "saved"}, nil)
	processor.On("ProcessArticle", mock.Anything, titled("Copy")).Return(dedup.ProcessResult{Reason: "duplicate of a1 (method=hash, score=1.00)"}, nil)
	processor.On("ProcessArticle", mock.Anything, titled("Broken")).Return(dedup.ProcessResult{}, errors.New("store down"))

	normalizer := stubNormalizer{results: []llm.Result{
		{RawItemID: "r1", Item: normalized("Unique")},
		{RawItemID: "r2", Item: normalized("Copy")},
		{RawItemID: "r3", Item: normalized("Broken")},
		{RawItemID: "r4", Err: llm.ErrNoResultsExtracted},
	}}

	p := New(repo, normalizer, processor, nil, Options{BatchSize: 5}, nopLogger())

	report, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, BatchReport{Claimed: 4, Saved: 1, Duplicates: 1, Failed: 2}, report)
	repo.AssertExpectations(t)
	processor.AssertExpectations(t)
}

func TestProcessBatchMapsRawFieldsOntoArticle(t *testing.T) {
	repo := &mockRepo{}
	processor := &mockProcessor{}

	published := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	item := domain.RawItem{ID: "r1", SourceID: "s1", GUID: "g1", Title: "Original", URL: "https://x.example/1", PublishedAt: published}

	repo.On("ClaimPendingRawItems", mock.Anything, DefaultBatchSize).Return([]domain.RawItem{item}, nil)
	repo.On("CountPendingRawItems", mock.Anything).Return(0, nil)
	repo.On("UpdateRawItemStatus", mock.Anything, "r1", domain.RawStatusProcessed, "saved").Return(nil)

	processor.On("ProcessArticle", mock.Anything, mock.MatchedBy(func(a *domain.Article) bool {
		return a.Title == "Canonical" && a.RawItemID == "r1" && a.SourceID == "s1" &&
			a.OriginalTitle == "Original" && a.URL == item.URL && a.PublishedAt.Equal(published)
	})).Return(dedup.ProcessResult{Saved: true, ArticleID: "a1", Reason: "saved"}, nil)

	p := New(repo, stubNormalizer{results: []llm.Result{{RawItemID: "r1", Item: normalized("Canonical")}}}, processor, nil, Options{}, nopLogger())

	_, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	processor.AssertExpectations(t)
}

func TestProcessBatchEmptyQueue(t *testing.T) {
	repo := &mockRepo{}
	repo.On("ClaimPendingRawItems", mock.Anything, DefaultBatchSize).Return([]domain.RawItem{}, nil)

	report, err := New(repo, stubNormalizer{}, &mockProcessor{}, nil, Options{}, nopLogger()).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Claimed)
	repo.AssertNotCalled(t, "CountPendingRawItems", mock.Anything)
}

func TestProcessBatchClaimFailure(t *testing.T) {
	repo := &mockRepo{}
	repo.On("ClaimPendingRawItems", mock.Anything, DefaultBatchSize).Return(nil, errors.New("db down"))

	_, err := New(repo, stubNormalizer{}, &mockProcessor{}, nil, Options{}, nopLogger()).ProcessBatch(context.Background())
	assert.Error(t, err)
}

func TestProcessBatchNormalizerFailureMarksItemsFailed(t *testing.T) {
	repo := &mockRepo{}
	items := []domain.RawItem{{ID: "r1"}, {ID: "r2"}}

	repo.On("ClaimPendingRawItems", mock.Anything, DefaultBatchSize).Return(items, nil)
	repo.On("CountPendingRawItems", mock.Anything).Return(0, nil)
	repo.On("UpdateRawItemStatus", mock.Anything, mock.Anything, domain.RawStatusFailed, mock.MatchedBy(func(reason string) bool {
		return reason == "normalization failed: circuit breaker is open"
	})).Return(nil).Twice()

	normalizer := stubNormalizer{err: llm.ErrCircuitBreakerOpen}

	report, err := New(repo, normalizer, &mockProcessor{}, nil, Options{}, nopLogger()).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed)
	repo.AssertExpectations(t)
}

func TestProcessBatchDefersWhenContentLocked(t *testing.T) {
	repo := &mockRepo{}
	processor := &mockProcessor{}

	items := []domain.RawItem{{ID: "r1"}, {ID: "r2"}}
	first := normalized("Central bank raises rates again")
	second := normalized("Central bank raises rates again")

	locker := &stubLocker{busy: map[string]bool{}}
	p := New(repo, stubNormalizer{results: []llm.Result{{RawItemID: "r1", Item: first}, {RawItemID: "r2", Item: second}}}, processor, locker, Options{}, nopLogger())

	key := lockKeyPrefix + p.hasher.ContentHash(first.Title, first.Summary)
	calls := 0

	repo.On("ClaimPendingRawItems", mock.Anything, DefaultBatchSize).Return(items, nil)
	repo.On("CountPendingRawItems", mock.Anything).Return(0, nil)
	repo.On("UpdateRawItemStatus", mock.Anything, "r1", domain.RawStatusProcessed, "saved").Return(nil)
	repo.On("UpdateRawItemStatus", mock.Anything, "r2", domain.RawStatusPending, reasonLockBusy).Return(nil)

	processor.On("ProcessArticle", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		calls++
		locker.busy[key] = true
	}).Return(dedup.ProcessResult{Saved: true, ArticleID: "a1", Reason: "saved"}, nil)

	report, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, report.Saved)
	assert.Equal(t, 1, report.Deferred)
	assert.Equal(t, []string{key, key}, locker.keys)
	repo.AssertExpectations(t)
}

func TestRecoverStale(t *testing.T) {
	repo := &mockRepo{}
	repo.On("ReleaseStaleRawItems", mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
		return time.Since(cutoff) >= time.Minute
	})).Return(int64(3), nil)

	New(repo, stubNormalizer{}, &mockProcessor{}, nil, Options{ClaimTimeout: time.Minute}, nopLogger()).recoverStale(context.Background())

	repo.AssertExpectations(t)
}
