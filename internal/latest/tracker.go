// ABOUTME: Keyed stale-response guard for overlapping list and view loads
// ABOUTME: A newer request with different parameters cancels and invalidates older ones

package latest

import (
	"context"
	"sync"
	"time"
)

// DefaultIdleTimeout is how long an unused slot is kept.
const DefaultIdleTimeout = 30 * time.Minute

// slot tracks the parameters of the newest request for one browser
// session and one list.
type slot struct {
	key      string
	gen      uint64 // seq of the request that switched to key
	inflight map[uint64]context.CancelFunc
	lastUsed time.Time
}

// Tracker hands out tickets per (session, list) slot. Only tickets issued
// since the slot last switched keys are current.
type Tracker struct {
	mu          sync.Mutex
	slots       map[string]*slot // keyed by "session|list"
	seq         uint64
	idleTimeout time.Duration
	now         func() time.Time
	cancel      context.CancelFunc
}

// New creates a Tracker and starts its cleanup loop. Call Close to stop it.
func New(idleTimeout time.Duration) *Tracker {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		slots:       make(map[string]*slot),
		idleTimeout: idleTimeout,
		now:         time.Now,
		cancel:      cancel,
	}
	go t.cleanupLoop(ctx)
	return t
}

// slotKey uses | as delimiter since session ids are UUIDs.
func slotKey(session, list string) string {
	return session + "|" + list
}

// Ticket is one in-flight request.
type Ticket struct {
	tracker *Tracker
	slot    string
	key     string
	seq     uint64
	gen     uint64
}

// Begin registers a request for key in the (session, list) slot. If the
// slot's newest key differs, every in-flight request for the old key is
// cancelled and becomes stale. Repeating the same key leaves earlier
// requests running since their results are still valid.
func (t *Tracker) Begin(parent context.Context, session, list, key string) (*Ticket, context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	id := slotKey(session, list)
	s, ok := t.slots[id]
	if !ok {
		s = &slot{key: key, gen: t.seq, inflight: make(map[uint64]context.CancelFunc)}
		t.slots[id] = s
	}
	if s.key != key {
		for seq, cancel := range s.inflight {
			cancel()
			delete(s.inflight, seq)
		}
		s.key = key
		s.gen = t.seq
	}

	ctx, cancel := context.WithCancel(parent)
	s.inflight[t.seq] = cancel
	s.lastUsed = t.now()

	return &Ticket{tracker: t, slot: id, key: key, seq: t.seq, gen: s.gen}, ctx
}

// Current reports whether the ticket's parameters are still the newest
// for its slot. A ticket superseded once stays stale even if the slot later
// returns to the same key, since its context was cancelled.
func (tk *Ticket) Current() bool {
	tk.tracker.mu.Lock()
	defer tk.tracker.mu.Unlock()

	s, ok := tk.tracker.slots[tk.slot]
	return ok && s.key == tk.key && s.gen == tk.gen
}

// Key returns the parameters key the ticket was issued for.
func (tk *Ticket) Key() string {
	return tk.key
}

// Done releases the ticket's context. Safe to call more than once.
func (tk *Ticket) Done() {
	tk.tracker.mu.Lock()
	defer tk.tracker.mu.Unlock()

	s, ok := tk.tracker.slots[tk.slot]
	if !ok {
		return
	}
	if cancel, ok := s.inflight[tk.seq]; ok {
		cancel()
		delete(s.inflight, tk.seq)
	}
}

// Len returns the number of tracked slots.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

// Close stops the cleanup loop and cancels everything in flight.
func (t *Tracker) Close() {
	t.cancel()

	t.mu.Lock()
	defer t.mu.Unlock()
	for id, s := range t.slots {
		for _, cancel := range s.inflight {
			cancel()
		}
		delete(t.slots, id)
	}
}

func (t *Tracker) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

// sweep drops slots idle past the timeout with nothing in flight.
func (t *Tracker) sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for id, s := range t.slots {
		if len(s.inflight) == 0 && now.Sub(s.lastUsed) > t.idleTimeout {
			delete(t.slots, id)
			removed++
		}
	}
	return removed
}
