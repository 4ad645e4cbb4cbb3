package notify

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Hub is the directory of currently known observers
type Hub struct {
	mu        sync.RWMutex
	observers map[string]Observer
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		observers: make(map[string]Observer),
	}
}

// Attach adds o, replacing any observer with the same id
func (h *Hub) Attach(o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.observers[o.ID()] = o
}

// Detach removes the observer with the given id
func (h *Hub) Detach(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.observers, id)
}

// Lookup returns the observer with the given id
func (h *Hub) Lookup(id string) (Observer, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	o, ok := h.observers[id]
	return o, ok
}

// All returns every attached observer ordered by id
func (h *Hub) All() []Observer {
	h.mu.RLock()
	defer h.mu.RUnlock()

	all := make([]Observer, 0, len(h.observers))
	for _, o := range h.observers {
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ID() < all[j].ID()
	})
	return all
}

// Len returns the number of attached observers
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.observers)
}

// ExpireIdle detaches and closes every Session nobody has streamed for
// longer than maxIdle, returning how many were removed
func (h *Hub) ExpireIdle(maxIdle time.Duration, now time.Time) int {
	cutoff := now.Add(-maxIdle)

	h.mu.Lock()
	defer h.mu.Unlock()

	expired := 0
	for id, o := range h.observers {
		session, ok := o.(*Session)
		if !ok || !session.expireIfIdle(cutoff) {
			continue
		}
		delete(h.observers, id)
		expired++
	}
	return expired
}

// RunExpiry calls ExpireIdle every interval until ctx is done
func (h *Hub) RunExpiry(ctx context.Context, maxIdle, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.ExpireIdle(maxIdle, now)
		}
	}
}
