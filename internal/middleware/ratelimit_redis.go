package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateKeyPrefix = "welcome:ratelimit:"

// hitScript runs the fixed-window check atomically. Times are unix milliseconds.
// KEYS[1] window hash; ARGV now, window, limit. Returns 1 when allowed.
var hitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local count = tonumber(redis.call('HGET', KEYS[1], 'count') or '0')
local reset = tonumber(redis.call('HGET', KEYS[1], 'reset_at') or '0')
if reset == 0 then
  reset = now + window
end
if now > reset then
  count = 0
  reset = now + window
end
if count >= limit then
  return 0
end
count = count + 1
redis.call('HSET', KEYS[1], 'count', count, 'reset_at', reset)
redis.call('PEXPIRE', KEYS[1], reset - now + 1)
return 1
`)

// RedisWindowStore shares windows across processes through Redis.
type RedisWindowStore struct {
	client *redis.Client
}

func NewRedisWindowStore(client *redis.Client) *RedisWindowStore {
	return &RedisWindowStore{client: client}
}

// Hit implements WindowStore.
func (s *RedisWindowStore) Hit(ctx context.Context, key string, limit int, d time.Duration, now time.Time) (bool, error) {
	res, err := hitScript.Run(ctx, s.client, []string{rateKeyPrefix + key},
		now.UnixMilli(), d.Milliseconds(), limit).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}
