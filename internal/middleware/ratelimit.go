package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WindowStore counts hits per key in fixed windows.
type WindowStore interface {
	// Hit records a request for key at now and reports whether it is within limit.
	// A rejected hit is not counted.
	Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (bool, error)
}

// RateLimiter is a per-client fixed-window limiter. A window starts at the
// first request of a key and lasts one window duration.
type RateLimiter struct {
	store   WindowStore
	limit   int
	window  time.Duration
	now     func() time.Time
	logger  *zap.Logger
	message string
}

func NewRateLimiter(store WindowStore, limit int, window time.Duration, message string, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		store:   store,
		limit:   limit,
		window:  window,
		now:     time.Now,
		logger:  logger,
		message: message,
	}
}

// Allow counts a request from key and reports whether it may proceed.
// Store failures let the request through.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := rl.store.Hit(ctx, key, rl.limit, rl.window, rl.now())
	if err != nil {
		rl.logger.Warn("rate limit store unavailable, allowing request", zap.String("client", key), zap.Error(err))
		return true, err
	}
	if !ok {
		rl.logger.Info("rate limit exceeded", zap.String("client", key), zap.Int("limit", rl.limit))
	}
	return ok, nil
}

// Middleware rejects requests over the quota with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ok, _ := rl.Allow(r.Context(), ClientKey(r)); !ok {
			WriteRateLimited(w, rl.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryWindowStore keeps windows in a process-lifetime map.
type MemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string]*window
	stop    chan struct{}
	once    sync.Once
}

func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{
		windows: make(map[string]*window),
		stop:    make(chan struct{}),
	}
}

// Hit implements WindowStore.
func (s *MemoryWindowStore) Hit(ctx context.Context, key string, limit int, d time.Duration, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.windows[key]
	if !exists {
		w = &window{resetAt: now.Add(d)}
		s.windows[key] = w
	}

	if now.After(w.resetAt) {
		w.count = 0
		w.resetAt = now.Add(d)
	}

	if w.count >= limit {
		return false, nil
	}

	w.count++
	return true, nil
}

// StartCleanup drops windows that expired more than one window ago, every interval.
func (s *MemoryWindowStore) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case now := <-ticker.C:
				s.sweep(now, interval)
			}
		}
	}()
}

func (s *MemoryWindowStore) sweep(now time.Time, idle time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, w := range s.windows {
		if now.Sub(w.resetAt) > idle {
			delete(s.windows, key)
		}
	}
}

func (s *MemoryWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Close stops the cleanup goroutine.
func (s *MemoryWindowStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}
