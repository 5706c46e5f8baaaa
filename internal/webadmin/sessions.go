// ABOUTME: Per-browser memory of the conversations a session has listed
// ABOUTME: Lets the window and send handlers resolve participants without refetching the list

package webadmin

import (
	"context"
	"sync"
	"time"

	"github.com/tripdesk/tripdesk-admin/internal/chat"
)

// maxRemembered bounds the conversations kept per browser session.
const maxRemembered = 500

// browserSession holds what one browser has seen.
type browserSession struct {
	conversations map[chat.ID]*chat.Conversation
	lastUsed      time.Time
}

// sessionCache maps browser session ids to their conversations.
type sessionCache struct {
	mu          sync.Mutex
	sessions    map[string]*browserSession
	idleTimeout time.Duration
	now         func() time.Time
	cancel      context.CancelFunc
}

func newSessionCache(idleTimeout time.Duration) *sessionCache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &sessionCache{
		sessions:    make(map[string]*browserSession),
		idleTimeout: idleTimeout,
		now:         time.Now,
		cancel:      cancel,
	}
	go c.cleanupLoop(ctx)
	return c
}

// remember records the conversations of a loaded list page.
func (c *sessionCache) remember(session string, convs []chat.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[session]
	if !ok {
		s = &browserSession{conversations: make(map[chat.ID]*chat.Conversation)}
		c.sessions[session] = s
	}
	if len(s.conversations)+len(convs) > maxRemembered {
		// start over rather than tracking insertion order
		s.conversations = make(map[chat.ID]*chat.Conversation)
	}
	for i := range convs {
		conv := convs[i]
		if conv.ID == "" {
			continue
		}
		s.conversations[conv.ID] = &conv
	}
	s.lastUsed = c.now()
}

// lookup returns a conversation this session has listed.
func (c *sessionCache) lookup(session string, id chat.ID) (*chat.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[session]
	if !ok {
		return nil, false
	}
	conv, ok := s.conversations[id]
	if ok {
		s.lastUsed = c.now()
	}
	return conv, ok
}

// cleanupLoop periodically drops idle sessions
func (c *sessionCache) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *sessionCache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.idleTimeout)
	removed := 0
	for id, s := range c.sessions {
		if s.lastUsed.Before(cutoff) {
			delete(c.sessions, id)
			removed++
		}
	}
	return removed
}

// Close stops the cleanup goroutine.
func (c *sessionCache) Close() {
	c.cancel()
}
