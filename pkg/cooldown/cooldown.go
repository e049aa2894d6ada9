// Package cooldown guards subjects against duplicate evaluation. Acquiring
// the guard succeeds at most once per subject per window, which makes the
// evaluate operation safe to retry and keeps concurrent triggers from
// racing duplicate records onto the same subject.
package cooldown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGuard implements the cool-down across instances using SET NX with
// an expiry equal to the window.
type RedisGuard struct {
	client *redis.Client
	window time.Duration
}

// NewRedisGuard connects to Redis at addr.
func NewRedisGuard(addr, password string, db int, window time.Duration) *RedisGuard {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisGuard{client: rdb, window: window}
}

// Acquire returns true if the subject is outside its cool-down window.
// The acquisition itself starts a new window.
func (g *RedisGuard) Acquire(ctx context.Context, subjectID string) (bool, error) {
	key := fmt.Sprintf("eval_cooldown:%s", subjectID)
	ok, err := g.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.window).Result()
	if err != nil {
		return false, fmt.Errorf("cooldown setnx: %w", err)
	}
	return ok, nil
}

// Release ends the subject's window early. The orchestrator calls this
// when a run fails before its evaluation is persisted, so the subject
// stays immediately retryable.
func (g *RedisGuard) Release(ctx context.Context, subjectID string) error {
	key := fmt.Sprintf("eval_cooldown:%s", subjectID)
	if err := g.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cooldown del: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (g *RedisGuard) Close() error {
	return g.client.Close()
}

// MemoryGuard is a single-process guard for tests and local development.
type MemoryGuard struct {
	mu       sync.Mutex
	window   time.Duration
	acquired map[string]time.Time
	clock    func() time.Time
}

// NewMemoryGuard creates an in-process guard.
func NewMemoryGuard(window time.Duration) *MemoryGuard {
	return &MemoryGuard{
		window:   window,
		acquired: make(map[string]time.Time),
		clock:    time.Now,
	}
}

// WithClock overrides the clock for testing.
func (g *MemoryGuard) WithClock(clock func() time.Time) *MemoryGuard {
	g.clock = clock
	return g
}

// Acquire returns true if the subject is outside its cool-down window.
func (g *MemoryGuard) Acquire(_ context.Context, subjectID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock()
	if last, ok := g.acquired[subjectID]; ok && now.Sub(last) < g.window {
		return false, nil
	}
	g.acquired[subjectID] = now
	return true, nil
}

// Release ends the subject's window early.
func (g *MemoryGuard) Release(_ context.Context, subjectID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.acquired, subjectID)
	return nil
}
