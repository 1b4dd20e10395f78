// Package locks provides a Redis-backed mutual exclusion keyed by string,
// used to stop two workers from ingesting the same content at once.
package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"github.com/rs/zerolog"

	apperrors "github.com/lueurxax/rss-dedup-digest/internal/core/errors"
)

const (
	defaultTTL    = 30 * time.Second
	releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`
)

// Config holds connection parameters for Redis.
type Config struct {
	Addr     string
	Password string
	TTL      time.Duration
}

// backend performs the raw lock operations.
type backend interface {
	acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	release(ctx context.Context, key, token string) error
	ping(ctx context.Context) error
}

// Redis is a best-effort distributed lock. A holder that outlives the TTL
// loses the lock silently.
type Redis struct {
	backend backend
	ttl     time.Duration
	closeFn func()
	logger  *zerolog.Logger
}

// NewRedis connects to Redis and returns a lock manager.
func NewRedis(cfg Config, logger *zerolog.Logger) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr: %w", apperrors.ErrInvalidInput)
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{cfg.Addr},
		Password:     cfg.Password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	r := newRedis(&rueidisBackend{client: client, unlock: rueidis.NewLuaScript(releaseScript)}, cfg.TTL, logger)
	r.closeFn = client.Close

	return r, nil
}

func newRedis(b backend, ttl time.Duration, logger *zerolog.Logger) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &Redis{backend: b, ttl: ttl, logger: logger}
}

// WithLock runs fn while holding key. It returns apperrors.ErrLockNotAcquired
// without running fn when the key is already held.
func (r *Redis) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()

	acquired, err := r.backend.acquire(ctx, key, token, r.ttl)
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}

	if !acquired {
		return fmt.Errorf("lock %s: %w", key, apperrors.ErrLockNotAcquired)
	}

	defer func() {
		//nolint:contextcheck // release must run even when ctx is canceled
		if err := r.backend.release(context.Background(), key, token); err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("failed to release lock")
		}
	}()

	return fn(ctx)
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.backend.ping(ctx)
}

// Close shuts down the client.
func (r *Redis) Close() {
	if r.closeFn != nil {
		r.closeFn()
	}
}

type rueidisBackend struct {
	client rueidis.Client
	unlock *rueidis.Lua
}

func (b *rueidisBackend) acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	cmd := b.client.B().Set().Key(key).Value(token).Nx().PxMilliseconds(ttl.Milliseconds()).Build()

	err := b.client.Do(ctx, cmd).Error()
	if rueidis.IsRedisNil(err) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("set nx: %w", err)
	}

	return true, nil
}

func (b *rueidisBackend) release(ctx context.Context, key, token string) error {
	if err := b.unlock.Exec(ctx, b.client, []string{key}, []string{token}).Error(); err != nil {
		return fmt.Errorf("release script: %w", err)
	}

	return nil
}

func (b *rueidisBackend) ping(ctx context.Context) error {
	if err := b.client.Do(ctx, b.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	return nil
}
