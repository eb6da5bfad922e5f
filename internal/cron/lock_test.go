package cron

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) CompareAndExpire(_ context.Context, key, expected string, ttl time.Duration) (bool, error) {
	if m.values[key] != expected {
		return false, nil
	}
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	if m.values[key] != expected {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()
	first, err := NewRedisLock(store, "sf:lock:cron", 0)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "sf:lock:cron", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLockTTL, first.TTL())

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, strings.Contains(store.values["sf:lock:cron"], "/"), "token names the owning instance")

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.values, "sf:lock:cron", "non-owner release keeps the lock")

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockRefresh(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()
	lock, err := NewRedisLock(store, "sf:lock:cron", time.Minute)
	require.NoError(t, err)

	held, err := lock.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, held, "refresh without acquire reports not held")

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	store.ttls["sf:lock:cron"] = time.Second

	held, err = lock.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, held)
	assert.Equal(t, time.Minute, store.ttls["sf:lock:cron"])
}

func TestRedisLockAfterTakeover(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()
	lock, err := NewRedisLock(store, "sf:lock:cron", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	store.values["sf:lock:cron"] = "other-worker/token"
	held, err := lock.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, held)

	require.NoError(t, lock.Release(ctx))
	assert.Equal(t, "other-worker/token", store.values["sf:lock:cron"])
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "key", 0)
	require.Error(t, err)
	_, err = NewRedisLock(newMemoryStore(), "", 0)
	require.Error(t, err)
}
