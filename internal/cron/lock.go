package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/instance"
)

// defaultLockTTL bounds how long a crashed worker can block other instances.
const defaultLockTTL = 10 * time.Minute

// Lock coordinates exclusive cron runs across worker instances.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	// Refresh extends a held lock; false means it was lost.
	Refresh(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndExpire(ctx context.Context, key, expected string, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}

// RedisLock is a SET NX lock whose value names the owning process, so only
// the owner can refresh or delete it.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration

	mu    sync.Mutex
	token string
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

// TTL is how long the lock survives without a refresh.
func (l *RedisLock) TTL() time.Duration { return l.ttl }

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	token := instance.GetID() + "/" + uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

func (l *RedisLock) Refresh(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token == "" {
		return false, nil
	}
	ok, err := l.store.CompareAndExpire(ctx, l.key, l.token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("refresh %s: %w", l.key, err)
	}
	if !ok {
		l.token = ""
	}
	return ok, nil
}

// Release is a no-op once the lock expired and another worker took it.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	if _, err := l.store.CompareAndDelete(ctx, l.key, token); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
