package mettle

import (
	"sort"
	"sync"
	"sync/atomic"
)

// AuthStateHub fans auth-state notifications out to subscribers. Backend
// implementations embed one to satisfy AuthAPI's OnAuthStateChange. It
// is safe for concurrent use; emit order follows subscription order.
type AuthStateHub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*authSubscription
}

func NewAuthStateHub() *AuthStateHub {
	return &AuthStateHub{
		subs: map[uint64]*authSubscription{},
	}
}

type authSubscription struct {
	id     uint64
	hub    *AuthStateHub
	fn     AuthCallback
	closed atomic.Bool
}

var _ Subscription = (*authSubscription)(nil)

// Unsubscribe removes the callback. It is idempotent and safe to call
// from inside the callback itself. An Emit racing with Unsubscribe may
// still invoke the callback once; subscribers discard such stragglers
// with their own teardown guard, the way SessionSync's mounted flag
// does.
func (s *authSubscription) Unsubscribe() {
	if s.closed.Swap(true) {
		return
	}

	s.hub.mu.Lock()
	delete(s.hub.subs, s.id)
	s.hub.mu.Unlock()
}

// Subscribe registers fn for future notifications.
func (h *AuthStateHub) Subscribe(fn AuthCallback) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &authSubscription{id: h.nextID, hub: h, fn: fn}
	h.subs[sub.id] = sub

	return sub
}

// Emit delivers an auth-state notification to every live subscriber.
func (h *AuthStateHub) Emit(event AuthEvent, session *Session) {
	h.mu.Lock()
	snapshot := make([]*authSubscription, 0, len(h.subs))
	for _, sub := range h.subs {
		snapshot = append(snapshot, sub)
	}
	h.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].id < snapshot[j].id })

	for _, sub := range snapshot {
		if sub.closed.Load() {
			continue
		}
		sub.fn(event, session)
	}
}

// Close cancels every remaining subscription.
func (h *AuthStateHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subs {
		sub.closed.Store(true)
		delete(h.subs, id)
	}
}
