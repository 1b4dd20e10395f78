package locks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lueurxax/rss-dedup-digest/internal/core/errors"
)

type memBackend struct {
	mu         sync.Mutex
	held       map[string]string
	ttls       map[string]time.Duration
	acquireErr error
	releaseErr error
}

func newMemBackend() *memBackend {
	return &memBackend{held: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memBackend) acquire(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.acquireErr != nil {
		return false, m.acquireErr
	}

	if _, ok := m.held[key]; ok {
		return false, nil
	}

	m.held[key] = token
	m.ttls[key] = ttl

	return true, nil
}

func (m *memBackend) release(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held[key] == token {
		delete(m.held, key)
	}

	return m.releaseErr
}

func (m *memBackend) ping(context.Context) error { return nil }

func nopLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func TestWithLockRunsAndReleases(t *testing.T) {
	backend := newMemBackend()
	lock := newRedis(backend, 0, nopLogger())

	ran := false
	err := lock.WithLock(context.Background(), "k", func(context.Context) error {
		ran = true

		assert.Contains(t, backend.held, "k")

		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.Empty(t, backend.held)
	assert.Equal(t, defaultTTL, backend.ttls["k"])
}

func TestWithLockHeldElsewhere(t *testing.T) {
	backend := newMemBackend()
	backend.held["k"] = "other-worker"

	lock := newRedis(backend, time.Second, nopLogger())

	err := lock.WithLock(context.Background(), "k", func(context.Context) error {
		t.Fatal("fn must not run while the lock is held")
		return nil
	})

	require.ErrorIs(t, err, apperrors.ErrLockNotAcquired)
	assert.Equal(t, "other-worker", backend.held["k"])
}

func TestWithLockPropagatesErrors(t *testing.T) {
	fnErr := errors.New("processing failed")

	backend := newMemBackend()
	lock := newRedis(backend, time.Second, nopLogger())

	err := lock.WithLock(context.Background(), "k", func(context.Context) error { return fnErr })
	require.ErrorIs(t, err, fnErr)
	assert.Empty(t, backend.held, "lock is released after a failure")

	backend.acquireErr = errors.New("connection refused")

	err = lock.WithLock(context.Background(), "k", func(context.Context) error { return nil })
	require.ErrorIs(t, err, backend.acquireErr)
}

func TestWithLockReleaseFailureKeepsResult(t *testing.T) {
	backend := newMemBackend()
	backend.releaseErr = errors.New("timeout")

	lock := newRedis(backend, time.Second, nopLogger())

	err := lock.WithLock(context.Background(), "k", func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestNewRedisRequiresAddr(t *testing.T) {
	_, err := NewRedis(Config{}, nopLogger())
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
