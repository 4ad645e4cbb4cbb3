package waiter

import (
	"sync"

	"github.com/Taichi-iskw/yt-skip/internal/model"
)

// Registry maps a video to the observers waiting for its result.
// Entries are one-shot: Drain hands the list out and forgets it.
type Registry struct {
	mu      sync.Mutex
	waiters map[model.VideoID][]string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		waiters: make(map[model.VideoID][]string),
	}
}

// Register appends observerID to the list for id, creating it if absent
func (r *Registry) Register(id model.VideoID, observerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.waiters[id] = append(r.waiters[id], observerID)
}

// Drain returns the observers waiting for id in registration order and clears the entry
func (r *Registry) Drain(id model.VideoID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	observers := r.waiters[id]
	delete(r.waiters, id)
	return observers
}

// Peek returns a copy of the observers waiting for id without clearing the entry
func (r *Registry) Peek(id model.VideoID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.waiters[id]...)
}

// Len returns the number of registrations for id
func (r *Registry) Len(id model.VideoID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.waiters[id])
}

// Has reports whether observerID is waiting for id
func (r *Registry) Has(id model.VideoID, observerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, observer := range r.waiters[id] {
		if observer == observerID {
			return true
		}
	}
	return false
}
