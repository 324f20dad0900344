package idempotency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupStore(t *testing.T) (*RedisStore, *redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, testLogger()), client, mr
}

func TestRedisStoreLock(t *testing.T) {
	store, _, mr := setupStore(t)
	ctx := context.Background()

	ok, err := store.Lock(ctx, "reminder:r1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Lock(ctx, "reminder:r1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.ReleaseLock(ctx, "reminder:r1"))
	ok, err = store.Lock(ctx, "reminder:r1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = store.Lock(ctx, "reminder:r1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock expires with its ttl")
}

func TestRedisStoreRecord(t *testing.T) {
	store, _, _ := setupStore(t)
	ctx := context.Background()

	record, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, record)

	require.NoError(t, store.Set(ctx, "k", &Record{
		Status:     StatusCompleted,
		StatusCode: http.StatusCreated,
		Response:   []byte(`{"id":"b1"}`),
	}, time.Hour))

	record, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, StatusCompleted, record.Status)
	assert.Equal(t, http.StatusCreated, record.StatusCode)
	assert.JSONEq(t, `{"id":"b1"}`, string(record.Response))
}

func TestManagerExecute(t *testing.T) {
	store, _, _ := setupStore(t)
	m := NewManager(store, time.Second, testLogger())
	ctx := context.Background()

	calls := 0
	op := func(context.Context) (int, interface{}, error) {
		calls++
		return http.StatusCreated, map[string]string{"id": "b1"}, nil
	}

	first, err := m.Execute(ctx, "sms:1", time.Hour, op)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, http.StatusCreated, first.StatusCode)

	second, err := m.Execute(ctx, "sms:1", time.Hour, op)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, http.StatusCreated, second.StatusCode)
	assert.JSONEq(t, string(first.Response), string(second.Response))
	assert.Equal(t, 1, calls)
}

func TestManagerDoesNotStoreFailures(t *testing.T) {
	store, _, _ := setupStore(t)
	m := NewManager(store, time.Second, testLogger())
	ctx := context.Background()

	boom := errors.New("boom")
	_, err := m.Execute(ctx, "sms:2", time.Hour, func(context.Context) (int, interface{}, error) {
		return 0, nil, boom
	})
	require.ErrorIs(t, err, boom)

	result, err := m.Execute(ctx, "sms:2", time.Hour, func(context.Context) (int, interface{}, error) {
		return http.StatusOK, "ok", nil
	})
	require.NoError(t, err)
	assert.False(t, result.FromCache)
}

func TestManagerReportsInProgress(t *testing.T) {
	store, _, _ := setupStore(t)
	m := NewManager(store, time.Minute, testLogger())
	ctx := context.Background()

	locked, err := store.Lock(ctx, "sms:3", time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	_, err = m.Execute(ctx, "sms:3", time.Hour, func(context.Context) (int, interface{}, error) {
		t.Fatal("operation must not run while the key is locked")
		return 0, nil, nil
	})
	assert.ErrorIs(t, err, ErrRequestInProgress)
}

func TestCleanerRemovesKeysWithoutExpiry(t *testing.T) {
	store, client, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "fresh", &Record{Status: StatusCompleted}, time.Hour))
	require.NoError(t, client.Set(ctx, keyPrefix+"stale", "x", 0).Err())

	c := NewCleaner(client, testLogger(), time.Minute, 24*time.Hour)
	assert.Equal(t, 1, c.cleanup(ctx))

	assert.Equal(t, int64(0), client.Exists(ctx, keyPrefix+"stale").Val())
	assert.Equal(t, int64(1), client.Exists(ctx, keyPrefix+"fresh").Val())
}
