package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// slidingWindow trims the window, admits the request when there is room and
// returns {allowed, count, oldest score}. Rejected requests are not recorded.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = ARGV[1]
local cutoff = ARGV[2]
local window = tonumber(ARGV[3])
local limit = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', cutoff)

local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
	redis.call('ZADD', key, now, ARGV[5])
	count = count + 1
	allowed = 1
end
redis.call('PEXPIRE', key, window)

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local first = tonumber(now)
if oldest[2] then
	first = tonumber(oldest[2])
end

return {allowed, count, first}
`)

// RedisLimiter keeps one sorted set of request timestamps per client so the
// budget is shared by every replica.
type RedisLimiter struct {
	client *redis.Client
	now    func() time.Time
	log    *slog.Logger
}

func NewRedisLimiter(client *redis.Client, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{client: client, now: time.Now, log: log}
}

func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if l.client == nil {
		return nil, errors.New("redis client is not configured for rate limiting")
	}

	now := l.now()
	if limit <= 0 {
		return newResult(false, limit, 0, now.Add(window)), nil
	}

	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()

	raw, err := slidingWindow.Run(ctx, l.client, []string{redisKeyPrefix + key},
		strconv.FormatInt(nowMs, 10),
		"("+strconv.FormatInt(nowMs-windowMs, 10),
		windowMs,
		limit,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		l.log.Error("rate limit script failed", slog.String("key", key), slog.Any("error", err))
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if len(raw) != 3 {
		return nil, fmt.Errorf("rate limit check: unexpected reply %v", raw)
	}

	resetAt := time.UnixMilli(raw[2]).Add(window)
	return newResult(raw[0] == 1, limit, int(raw[1]), resetAt), nil
}
