package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"welcome-backend/internal/models"
)

const historyKeyPrefix = "welcome:history:"

// RedisStore keeps each history in a Redis list trimmed to the cap.
// Keys expire after ttl of inactivity.
type RedisStore struct {
	client *redis.Client
	max    int
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, maxHistory int, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{
		client: client,
		max:    maxHistory,
		ttl:    ttl,
	}
}

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, key string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		values = append(values, b)
	}

	k := s.key(key)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, k, values...)
		pipe.LTrim(ctx, k, int64(-s.max), -1)
		pipe.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: append to %s: %w", key, err)
	}
	return nil
}

// Messages implements Store.
func (s *RedisStore) Messages(ctx context.Context, key string) ([]models.Message, error) {
	raw, err := s.client.LRange(ctx, s.key(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", key, err)
	}

	out := make([]models.Message, 0, len(raw))
	for _, item := range raw {
		var m models.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("session: decode %s: %w", key, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Len implements Store.
func (s *RedisStore) Len(ctx context.Context, key string) (int, error) {
	n, err := s.client.LLen(ctx, s.key(key)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Reset implements Store.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// Close implements Store. The client belongs to the caller and stays open.
func (s *RedisStore) Close() error {
	return nil
}

func (s *RedisStore) key(id string) string {
	return historyKeyPrefix + id
}
