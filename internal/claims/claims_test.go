package claims

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestGuard_LocalAcquireRelease(t *testing.T) {
	g := New(nil, time.Minute, zerolog.Nop())
	ctx := context.Background()

	assert.True(t, g.Acquire(ctx, "t-1", "summarize"))
	assert.False(t, g.Acquire(ctx, "t-1", "summarize"))

	// Other capabilities and threads are independent pairs.
	assert.True(t, g.Acquire(ctx, "t-1", "reply"))
	assert.True(t, g.Acquire(ctx, "t-2", "summarize"))

	g.Release(ctx, "t-1", "summarize")
	assert.True(t, g.Acquire(ctx, "t-1", "summarize"))
}

func TestGuard_LocalClaimExpires(t *testing.T) {
	g := New(nil, 10*time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	assert.True(t, g.Acquire(ctx, "t-1", "summarize"))
	time.Sleep(20 * time.Millisecond)
	assert.True(t, g.Acquire(ctx, "t-1", "summarize"))
}

func TestGuard_LocalSweepEvictsExpiredClaims(t *testing.T) {
	g := New(nil, 10*time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	for _, threadID := range []string{"t-1", "t-2", "t-3"} {
		assert.True(t, g.Acquire(ctx, threadID, "summarize"))
	}
	time.Sleep(20 * time.Millisecond)

	// Acquiring any key sweeps every expired entry, not just its own.
	assert.True(t, g.Acquire(ctx, "t-9", "summarize"))

	g.mu.Lock()
	defer g.mu.Unlock()
	assert.Len(t, g.local, 1)
	assert.Contains(t, g.local, claimKey("t-9", "summarize"))
}

func TestGuard_ConcurrentAcquireAdmitsExactlyOne(t *testing.T) {
	g := New(nil, time.Minute, zerolog.Nop())
	ctx := context.Background()

	const attempts = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Acquire(ctx, "t-1", "summarize") {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
}

func TestClaimKey(t *testing.T) {
	assert.Equal(t, "ai:claim:t-1:summarize", claimKey("t-1", "summarize"))
}
