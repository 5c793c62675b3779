package fnal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetAndGet(t *testing.T) {
	c := newCache[string, int]("t", 10, time.Minute, time.Minute)
	defer c.Stop()

	_, _, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", 42)
	v, negative, ok := c.Get("a")
	require.True(t, ok)
	assert.False(t, negative)
	assert.Equal(t, 42, v)
}

func TestCache_NegativeOverwrittenByPositive(t *testing.T) {
	c := newCache[string, string]("t", 10, time.Minute, time.Minute)
	defer c.Stop()

	c.SetNegative("id", "")
	_, negative, ok := c.Get("id")
	require.True(t, ok)
	assert.True(t, negative)

	c.Set("id", "found")
	v, negative, ok := c.Get("id")
	require.True(t, ok)
	assert.False(t, negative, "a positive Set must overwrite a prior negative entry")
	assert.Equal(t, "found", v)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c := newCache[string, int]("t", 10, 10*time.Millisecond, 10*time.Millisecond)
	defer c.Stop()

	c.Set("a", 1)
	_, _, ok := c.Get("a")
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)
	_, _, ok = c.Get("a")
	assert.False(t, ok, "entry should have expired")
}

func TestCache_NegativeTTLIndependentOfPositiveTTL(t *testing.T) {
	c := newCache[string, int]("t", 10, time.Hour, 10*time.Millisecond)
	defer c.Stop()

	c.SetNegative("a", 0)
	time.Sleep(30 * time.Millisecond)
	_, _, ok := c.Get("a")
	assert.False(t, ok, "negative entry should expire on its own, shorter TTL")
}

func TestCache_EvictsOldestWhenOverCapacity(t *testing.T) {
	c := newCache[string, int]("t", 2, 0, 0)
	defer c.Stop()

	c.Set("a", 1)
	time.Sleep(time.Millisecond)
	c.Set("b", 2)
	time.Sleep(time.Millisecond)
	// touch "a" so it's more recently used than "b"
	_, _, _ = c.Get("a")
	time.Sleep(time.Millisecond)
	c.Set("c", 3)

	_, _, aOK := c.Get("a")
	_, _, bOK := c.Get("b")
	_, _, cOK := c.Get("c")
	assert.True(t, aOK, "recently touched entry should survive eviction")
	assert.False(t, bOK, "least recently used entry should be evicted")
	assert.True(t, cOK)
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	c := newCache[string, int]("t", 10, 0, 0)
	defer c.Stop()

	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)
	_, _, ok := c.Get("a")
	assert.True(t, ok)
}

func TestCache_Stats(t *testing.T) {
	c := newCache[string, int]("mine", 10, time.Minute, time.Minute)
	defer c.Stop()

	c.Set("a", 1)
	c.Get("a")
	c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, "mine", stats.Name)
	assert.Equal(t, 1, stats.Entries)
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
}

func TestCache_InvalidateAll(t *testing.T) {
	c := newCache[string, int]("t", 10, 0, 0)
	defer c.Stop()

	c.Set("a", 1)
	c.Set("b", 2)
	c.InvalidateAll()

	_, _, aOK := c.Get("a")
	_, _, bOK := c.Get("b")
	assert.False(t, aOK)
	assert.False(t, bOK)
}
