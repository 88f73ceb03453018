// Package claims guards against duplicate concurrent generations for the
// same (thread, capability) pair. A claim is a short-lived marker acquired
// before calling the model and released after the result is persisted; the
// TTL bounds how long a crashed worker can hold a pair hostage.
package claims

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Guard issues claims. With a Redis client the claim is shared across
// instances via SET NX; without one it degrades to a process-local map,
// which is enough for single-instance deployments.
type Guard struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger

	mu    sync.Mutex
	local map[string]time.Time
}

// New creates a guard. redisClient may be nil.
func New(redisClient *redis.Client, ttl time.Duration, logger zerolog.Logger) *Guard {
	return &Guard{
		redis:  redisClient,
		ttl:    ttl,
		logger: logger.With().Str("component", "claims").Logger(),
		local:  make(map[string]time.Time),
	}
}

func claimKey(threadID, capability string) string {
	return fmt.Sprintf("ai:claim:%s:%s", threadID, capability)
}

// Acquire attempts to claim (threadID, capability). It returns false when
// another generation already holds the claim. Redis errors fall through to
// acquisition so a cache outage degrades idempotence, not availability.
func (g *Guard) Acquire(ctx context.Context, threadID, capability string) bool {
	key := claimKey(threadID, capability)

	if g.redis != nil {
		ok, err := g.redis.SetNX(ctx, key, "1", g.ttl).Result()
		if err != nil {
			g.logger.Warn().Err(err).Str("key", key).Msg("claim check failed, proceeding without dedup")
			return true
		}
		return ok
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if until, held := g.local[key]; held && now.Before(until) {
		return false
	}
	// Sweep expired claims so abandoned keys don't accumulate for the
	// process lifetime.
	for k, until := range g.local {
		if now.After(until) {
			delete(g.local, k)
		}
	}
	g.local[key] = now.Add(g.ttl)
	return true
}

// Release frees a claim so the next trigger can regenerate immediately
// instead of waiting out the TTL.
func (g *Guard) Release(ctx context.Context, threadID, capability string) {
	key := claimKey(threadID, capability)

	if g.redis != nil {
		if err := g.redis.Del(ctx, key).Err(); err != nil {
			g.logger.Warn().Err(err).Str("key", key).Msg("failed to release claim, TTL will expire it")
		}
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.local, key)
}
