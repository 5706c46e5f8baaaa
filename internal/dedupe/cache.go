// ABOUTME: Thread-safe TTL cache of claimed keys for idempotent form submissions
// ABOUTME: The send handler claims each client nonce once so double submits do not repost

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// entry stores when a key was claimed and its position in the eviction order.
type entry struct {
	claimedAt time.Time
	element   *list.Element
}

// Cache remembers claimed keys for a TTL, bounded by a maximum size.
// Insertion order is kept in a doubly-linked list for O(1) eviction.
type Cache struct {
	mu      sync.Mutex
	claimed map[string]*entry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a cache with the given TTL and maximum size. A background
// goroutine drops expired keys every minute until Close.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		claimed: make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Key scopes a nonce to one browser session.
func Key(session, nonce string) string {
	return session + "|" + nonce
}

// Claim marks key as taken. It returns false when the key was already
// claimed within the TTL, i.e. the submission is a duplicate.
func (c *Cache) Claim(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.claimed[key]; ok {
		if now.Sub(e.claimedAt) < c.ttl {
			return false
		}
		c.order.Remove(e.element)
		delete(c.claimed, key)
	}

	if len(c.claimed) >= c.maxSize {
		c.evictOldest()
	}

	c.claimed[key] = &entry{
		claimedAt: now,
		element:   c.order.PushBack(key),
	}
	return true
}

// Release forgets key so the same submission can be retried, used when
// the upstream send failed.
func (c *Cache) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.claimed[key]; ok {
		c.order.Remove(e.element)
		delete(c.claimed, key)
	}
}

// Claimed reports whether key is currently claimed.
func (c *Cache) Claimed(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.claimed[key]
	return ok && c.now().Sub(e.claimedAt) < c.ttl
}

// Len returns the number of keys held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.claimed)
}

// evictOldest must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.claimed, key)
}

func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

// removeExpired walks from the oldest key and stops at the first live one.
func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		key, _ := front.Value.(string)
		e := c.claimed[key]
		if e == nil || now.Sub(e.claimedAt) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.claimed, key)
	}
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
