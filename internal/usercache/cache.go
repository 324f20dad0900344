// Package usercache keeps user profiles, push token included, in Redis in
// front of the user repository.
package usercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/billsafe/internal/domain"
)

const DefaultTTL = 15 * time.Minute

// Store is the key/value subset of the Redis client used by the cache.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// entry carries the push token, which domain.User keeps out of its JSON form.
type entry struct {
	User      *domain.User `json:"user"`
	PushToken string       `json:"push_token,omitempty"`
}

// Cache provides Redis-backed caching for user profiles.
type Cache struct {
	store Store
	ttl   time.Duration
}

func NewCache(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl}
}

// Get returns nil without error on a miss.
func (c *Cache) Get(ctx context.Context, userID string) (*domain.User, error) {
	if c == nil || c.store == nil {
		return nil, nil
	}

	data, err := c.store.Get(ctx, cacheKey(userID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached user: %w", err)
	}

	var e entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	if e.User == nil {
		return nil, nil
	}

	e.User.PushToken = e.PushToken
	return e.User, nil
}

func (c *Cache) Set(ctx context.Context, user *domain.User) error {
	if c == nil || c.store == nil || user == nil {
		return nil
	}

	payload, err := json.Marshal(entry{User: user, PushToken: user.PushToken})
	if err != nil {
		return fmt.Errorf("encode user for cache: %w", err)
	}

	if err := c.store.Set(ctx, cacheKey(user.ID), payload, c.ttl); err != nil {
		return fmt.Errorf("set cached user: %w", err)
	}

	return nil
}

func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	if c == nil || c.store == nil {
		return nil
	}

	if err := c.store.Delete(ctx, cacheKey(userID)); err != nil {
		return fmt.Errorf("delete cached user: %w", err)
	}

	return nil
}

func cacheKey(userID string) string {
	return "user:" + userID
}
