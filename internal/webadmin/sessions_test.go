// ABOUTME: Tests for the per-browser conversation memory
// ABOUTME: Verifies remember/lookup scoping, bounds, and idle sweeping

package webadmin

import (
	"fmt"
	"testing"
	"time"

	"github.com/tripdesk/tripdesk-admin/internal/chat"
)

func TestSessionCache_RememberAndLookup(t *testing.T) {
	c := newSessionCache(time.Minute)
	defer c.Close()

	c.remember("s1", []chat.Conversation{{ID: "a"}, {ID: "b"}, {ID: ""}})

	if _, ok := c.lookup("s1", "a"); !ok {
		t.Error("expected conversation a for s1")
	}
	if _, ok := c.lookup("s2", "a"); ok {
		t.Error("sessions must not see each other's conversations")
	}
	if _, ok := c.lookup("s1", ""); ok {
		t.Error("conversations without id are not remembered")
	}
}

func TestSessionCache_ReturnsCopies(t *testing.T) {
	c := newSessionCache(time.Minute)
	defer c.Close()

	convs := []chat.Conversation{{ID: "a", UnreadCount: 1}}
	c.remember("s1", convs)
	convs[0].UnreadCount = 5

	got, _ := c.lookup("s1", "a")
	if got.UnreadCount != 1 {
		t.Errorf("UnreadCount = %d, want 1", got.UnreadCount)
	}
}

func TestSessionCache_Bounded(t *testing.T) {
	c := newSessionCache(time.Minute)
	defer c.Close()

	batch := make([]chat.Conversation, maxRemembered)
	for i := range batch {
		batch[i] = chat.Conversation{ID: chat.ID(fmt.Sprintf("c%d", i))}
	}
	c.remember("s1", batch)
	c.remember("s1", []chat.Conversation{{ID: "new"}})

	if _, ok := c.lookup("s1", "new"); !ok {
		t.Error("newest conversation should be remembered")
	}
	if _, ok := c.lookup("s1", "c0"); ok {
		t.Error("old conversations should be dropped past the bound")
	}
}

func TestSessionCache_Sweep(t *testing.T) {
	c := newSessionCache(time.Minute)
	defer c.Close()

	now := time.Now()
	c.now = func() time.Time { return now }
	c.remember("idle", []chat.Conversation{{ID: "a"}})

	now = now.Add(30 * time.Second)
	c.remember("active", []chat.Conversation{{ID: "b"}})

	now = now.Add(45 * time.Second)
	if removed := c.sweep(); removed != 1 {
		t.Fatalf("sweep removed %d, want 1", removed)
	}
	if _, ok := c.lookup("idle", "a"); ok {
		t.Error("idle session should be gone")
	}
	if _, ok := c.lookup("active", "b"); !ok {
		t.Error("active session should survive")
	}
}
