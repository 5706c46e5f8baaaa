// ABOUTME: Tests for the nonce claim cache used by the message send handler.
// ABOUTME: Validates duplicate rejection, release, TTL expiry, eviction, and concurrency safety.

package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// newTestCache returns a cache with a controllable clock.
func newTestCache(t *testing.T, ttl time.Duration, maxSize int) (*Cache, *time.Time) {
	t.Helper()
	c := New(ttl, maxSize)
	t.Cleanup(c.Close)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestClaim_FirstWins(t *testing.T) {
	c, _ := newTestCache(t, 5*time.Minute, 100)

	assert.True(t, c.Claim("s|n1"))
	assert.False(t, c.Claim("s|n1"), "second claim is a duplicate")
	assert.True(t, c.Claimed("s|n1"))
	assert.True(t, c.Claim("s|n2"))
}

func TestClaim_ScopedBySession(t *testing.T) {
	c, _ := newTestCache(t, 5*time.Minute, 100)

	assert.True(t, c.Claim(Key("alice", "n1")))
	assert.True(t, c.Claim(Key("bob", "n1")), "same nonce in another session is distinct")
}

func TestClaim_AfterTTL(t *testing.T) {
	c, now := newTestCache(t, time.Minute, 100)

	assert.True(t, c.Claim("k"))
	*now = now.Add(2 * time.Minute)

	assert.False(t, c.Claimed("k"))
	assert.True(t, c.Claim("k"), "expired claim can be taken again")
	assert.Equal(t, 1, c.Len())
}

func TestRelease(t *testing.T) {
	c, _ := newTestCache(t, 5*time.Minute, 100)

	assert.True(t, c.Claim("k"))
	c.Release("k")
	assert.False(t, c.Claimed("k"))
	assert.True(t, c.Claim("k"), "released key can be retried")

	// releasing an unknown key is harmless
	c.Release("missing")
}

func TestEvictsOldestAtCapacity(t *testing.T) {
	c, _ := newTestCache(t, 5*time.Minute, 3)

	c.Claim("a")
	c.Claim("b")
	c.Claim("c")
	c.Claim("d")

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Claimed("a"), "oldest key evicted")
	assert.True(t, c.Claimed("d"))
}

func TestRemoveExpired(t *testing.T) {
	c, now := newTestCache(t, time.Minute, 100)

	c.Claim("old-1")
	c.Claim("old-2")
	*now = now.Add(90 * time.Second)
	c.Claim("fresh")

	c.removeExpired()

	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Claimed("fresh"))
}

func TestClose_Idempotent(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close()
}

func TestClaim_Concurrent(t *testing.T) {
	c := New(5*time.Minute, 1000)
	defer c.Close()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Claim("same-nonce") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load(), "exactly one concurrent claim wins")

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Claim(fmt.Sprintf("n-%d", i))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 101, c.Len())
}
