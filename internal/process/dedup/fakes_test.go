package dedup

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/rss-dedup-digest/internal/core/domain"
	apperrors "github.com/lueurxax/rss-dedup-digest/internal/core/errors"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func nopLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

type fakeIndex struct {
	mu sync.Mutex

	docs       map[string]domain.IndexedDocument
	hashHits   []domain.IndexedDocument
	similar    []domain.IndexedDocument
	lastQuery  domain.SimilarQuery
	mltCalls   int
	deleted    []string
	recreated  bool
	ensured    bool
	hashErr    error
	mltErr     error
	indexErr   error
	deleteErr  error
	adminErr   error
	indexCalls int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: make(map[string]domain.IndexedDocument)}
}

func (f *fakeIndex) FindByHashes(_ context.Context, contentHash, titleHash string, limit int) ([]domain.IndexedDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.hashErr != nil {
		return nil, f.hashErr
	}

	if f.hashHits != nil {
		return f.hashHits, nil
	}

	var out []domain.IndexedDocument

	for _, d := range f.docs {
		if d.ContentHash == contentHash || d.TitleHash == titleHash {
			out = append(out, d)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (f *fakeIndex) MoreLikeThis(_ context.Context, q domain.SimilarQuery) ([]domain.IndexedDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.mltCalls++
	f.lastQuery = q

	if f.mltErr != nil {
		return nil, f.mltErr
	}

	var out []domain.IndexedDocument

	for _, d := range f.similar {
		if d.ID == q.ExcludeID || d.Score <= q.MinScore {
			continue
		}

		out = append(out, d)
	}

	return out, nil
}

func (f *fakeIndex) IndexDocument(_ context.Context, doc domain.IndexedDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.indexCalls++

	if f.indexErr != nil {
		return f.indexErr
	}

	f.docs[doc.ID] = doc

	return nil
}

func (f *fakeIndex) DeleteDocument(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return f.deleteErr
	}

	f.deleted = append(f.deleted, id)

	if _, ok := f.docs[id]; !ok {
		return fmt.Errorf("document %s: %w", id, apperrors.ErrNotFound)
	}

	delete(f.docs, id)

	return nil
}

func (f *fakeIndex) EnsureIndex(context.Context) error {
	f.ensured = true
	return f.adminErr
}

func (f *fakeIndex) RecreateIndex(context.Context) error {
	f.recreated = true
	f.docs = make(map[string]domain.IndexedDocument)

	return f.adminErr
}

type fakeStore struct {
	mu sync.Mutex

	articles     map[string]domain.Article
	raws         []domain.RawItem
	statuses     map[string]string
	indexed      map[string]time.Time
	lastFilter   domain.ArticleFilter
	seq          int
	saveErr      error
	listErr      error
	deleteErrFor map[string]error
	deletedIDs   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		articles:     make(map[string]domain.Article),
		statuses:     make(map[string]string),
		indexed:      make(map[string]time.Time),
		deleteErrFor: make(map[string]error),
	}
}

func (s *fakeStore) SaveArticle(_ context.Context, a *domain.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return s.saveErr
	}

	s.seq++
	a.ID = fmt.Sprintf("article-%d", s.seq)

	if a.CreatedAt.IsZero() {
		a.CreatedAt = testNow.Add(time.Duration(s.seq) * time.Minute)
	}

	s.articles[a.ID] = *a

	return nil
}

func (s *fakeStore) MarkArticleIndexed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.indexed[id] = at

	return nil
}

func (s *fakeStore) ListArticles(_ context.Context, filter domain.ArticleFilter) ([]domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastFilter = filter

	if s.listErr != nil {
		return nil, s.listErr
	}

	out := make([]domain.Article, 0, len(s.articles))

	for _, a := range s.articles {
		if filter.UnindexedOnly {
			if _, ok := s.indexed[a.ID]; ok {
				continue
			}
		}

		out = append(out, a)
	}

	// Map order is random; sweep sorting must not depend on it.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	return out, nil
}

func (s *fakeStore) DeleteArticle(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deleteErrFor[id]; err != nil {
		return err
	}

	if _, ok := s.articles[id]; !ok {
		return apperrors.ErrArticleNotFound
	}

	delete(s.articles, id)
	s.deletedIDs = append(s.deletedIDs, id)

	return nil
}

func (s *fakeStore) ListRawItems(_ context.Context, filter domain.RawItemFilter) ([]domain.RawItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.RawItem

	for _, r := range s.raws {
		if len(filter.SourceIDs) > 0 && r.SourceID != filter.SourceIDs[0] {
			continue
		}

		out = append(out, r)
	}

	return out, nil
}

func (s *fakeStore) UpdateRawItemStatus(_ context.Context, id, status, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[id] = status

	return nil
}

func (s *fakeStore) put(a domain.Article) {
	s.articles[a.ID] = a
}
