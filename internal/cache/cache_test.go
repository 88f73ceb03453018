package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBlockCache_SetAndGet(t *testing.T) {
	c := New(time.Minute)

	c.Set("user-1", "COMPANY CONTEXT:\npolicy: refunds within 30 days")

	block, ok := c.Get("user-1")
	assert.True(t, ok)
	assert.Contains(t, block, "refunds within 30 days")

	_, ok = c.Get("user-2")
	assert.False(t, ok)
}

func TestBlockCache_ExpiredEntryIsEvicted(t *testing.T) {
	c := New(10 * time.Millisecond)

	c.Set("user-1", "block")
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("user-1")
	assert.False(t, ok)

	c.mu.Lock()
	_, stillThere := c.entries["user-1"]
	c.mu.Unlock()
	assert.False(t, stillThere)
}

func TestBlockCache_SetOverwrites(t *testing.T) {
	c := New(time.Minute)

	c.Set("user-1", "old")
	c.Set("user-1", "new")

	block, _ := c.Get("user-1")
	assert.Equal(t, "new", block)
}
