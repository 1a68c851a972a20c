package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// slidingWindowScript prunes expired entries, counts both windows, and
// records the request only when it is admitted. Running as one script keeps
// check-and-record atomic across concurrent callers.
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local burst_start = tonumber(ARGV[3])
local limit = tonumber(ARGV[4])
local burst = tonumber(ARGV[5])
local ttl = tonumber(ARGV[6])

redis.call("ZREMRANGEBYSCORE", key, "-inf", window_start)

local window_count = redis.call("ZCARD", key)
local burst_count = redis.call("ZCOUNT", key, "(" .. burst_start, "+inf")

local allowed = 0
if window_count < limit and burst_count < burst then
  allowed = 1
  redis.call("ZADD", key, now, now .. "-" .. redis.call("INCR", key .. ":seq"))
  redis.call("PEXPIRE", key, ttl)
  redis.call("PEXPIRE", key .. ":seq", ttl)
  window_count = window_count + 1
  burst_count = burst_count + 1
end

local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
local oldest_score = 0
if oldest[2] then
  oldest_score = tonumber(oldest[2])
end

return {allowed, window_count, burst_count, oldest_score}
`

type RedisStore struct {
	client *redis.Client
	script *redis.Script
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		script: redis.NewScript(slidingWindowScript),
	}
}

func (s *RedisStore) Take(ctx context.Context, key string, now time.Time, policy Policy) (Result, error) {
	nowMs := now.UnixMilli()
	values, err := s.script.Run(ctx, s.client,
		[]string{"ratelimit:" + key},
		nowMs,
		nowMs-policy.Window.Milliseconds(),
		nowMs-BurstWindow.Milliseconds(),
		policy.Limit,
		policy.Burst,
		policy.Window.Milliseconds()*2,
	).Slice()
	if err != nil {
		return Result{}, err
	}
	if len(values) < 4 {
		return Result{}, fmt.Errorf("ratelimit: unexpected script response of length %d", len(values))
	}

	result := Result{
		Allowed:     toInt64(values[0]) == 1,
		WindowCount: int(toInt64(values[1])),
		BurstCount:  int(toInt64(values[2])),
	}
	if oldest := toInt64(values[3]); oldest > 0 {
		result.OldestInWin = time.UnixMilli(oldest)
	}
	return result, nil
}

func toInt64(value any) int64 {
	switch cast := value.(type) {
	case int64:
		return cast
	case int:
		return int64(cast)
	case float64:
		return int64(cast)
	default:
		return 0
	}
}
