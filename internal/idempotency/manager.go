// Package idempotency replays the stored result of an operation that was
// already executed under the same key.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var ErrRequestInProgress = errors.New("request with this key is already in progress")

// Operation returns the status code and body to store for replays.
type Operation func(ctx context.Context) (int, interface{}, error)

type Result struct {
	StatusCode int
	Response   json.RawMessage
	FromCache  bool
}

type Manager interface {
	Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error)
}

type manager struct {
	store   Store
	lockTTL time.Duration
	log     *slog.Logger
}

func NewManager(store Store, lockTTL time.Duration, log *slog.Logger) Manager {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store:   store,
		lockTTL: lockTTL,
		log:     log,
	}
}

// Execute runs fn once per key. A completed record is replayed; a key whose
// lock is held without a completed record reports ErrRequestInProgress.
// Failed operations are not stored, so the caller may retry them.
func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	if cached, err := m.completed(ctx, key); err != nil || cached != nil {
		return cached, err
	}

	locked, err := m.store.Lock(ctx, key, m.lockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		cached, err := m.completed(ctx, key)
		if err != nil || cached != nil {
			return cached, err
		}
		return nil, ErrRequestInProgress
	}
	defer func() {
		if err := m.store.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
			m.log.Warn("idempotency lock not released", slog.String("key", key), slog.Any("error", err))
		}
	}()

	statusCode, response, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}

	if err := m.store.Set(ctx, key, &Record{
		Status:     StatusCompleted,
		StatusCode: statusCode,
		Response:   body,
	}, ttl); err != nil {
		return nil, err
	}

	return &Result{StatusCode: statusCode, Response: body}, nil
}

func (m *manager) completed(ctx context.Context, key string) (*Result, error) {
	record, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if record == nil || record.Status != StatusCompleted {
		return nil, nil
	}

	return &Result{StatusCode: record.StatusCode, Response: record.Response, FromCache: true}, nil
}
