// Package session keeps the bounded conversation history of each visitor.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"welcome-backend/internal/models"
)

var (
	ErrInvalidConfig    = errors.New("session: invalid store configuration")
	ErrInvalidStoreType = errors.New("session: unsupported store type")
)

// Store holds one bounded history per session key. Implementations must be
// safe for concurrent use.
type Store interface {
	// Append adds messages to the key's history, evicting the oldest past the cap.
	Append(ctx context.Context, key string, msgs ...models.Message) error

	// Messages returns the key's history, oldest first. Unknown keys yield an empty slice.
	Messages(ctx context.Context, key string) ([]models.Message, error)

	Len(ctx context.Context, key string) (int, error)

	// Reset empties the key's history.
	Reset(ctx context.Context, key string) error

	Close() error
}

// StoreType represents the type of session store.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

const defaultTTL = 24 * time.Hour

type storeConfig struct {
	maxHistory  int
	redisClient *redis.Client
	redisTTL    time.Duration
}

// StoreOption configures NewStore.
type StoreOption func(*storeConfig)

func WithMaxHistory(n int) StoreOption {
	return func(c *storeConfig) { c.maxHistory = n }
}

func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) { c.redisClient = client }
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) { c.redisTTL = ttl }
}

// NewStore creates a Store of the given type. Redis requires WithRedisClient.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{maxHistory: 10}
	for _, opt := range opts {
		opt(config)
	}
	if config.maxHistory < 1 {
		return nil, ErrInvalidConfig
	}

	switch storeType {
	case StoreTypeMemory:
		return NewMemoryStore(config.maxHistory), nil

	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return NewRedisStore(config.redisClient, config.maxHistory, config.redisTTL), nil

	default:
		return nil, ErrInvalidStoreType
	}
}
