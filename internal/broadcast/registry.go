package broadcast

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrDuplicateSubscriber is returned by Add for a subscriber already registered.
	ErrDuplicateSubscriber = errors.New("broadcast: subscriber already registered")

	// ErrRegistryClosed is returned by Add after CloseAll.
	ErrRegistryClosed = errors.New("broadcast: registry closed")
)

// Registry is the set of Open subscribers, keyed by identity. It is the single
// source of truth for who receives the next line and is safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]*Subscriber
	closed bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[uuid.UUID]*Subscriber)}
}

// Add transitions s from Connecting to Open and inserts it. It fails if s was
// closed before it could be inserted, if s is already registered, or if the
// registry has been shut down.
func (r *Registry) Add(s *Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		s.markClosed()
		return ErrRegistryClosed
	}
	switch s.State() {
	case StateClosed:
		return ErrSubscriberClosed
	case StateOpen:
		return ErrDuplicateSubscriber
	}
	if _, ok := r.subs[s.id]; ok {
		return ErrDuplicateSubscriber
	}

	s.markOpen()
	r.subs[s.id] = s
	return nil
}

// Remove closes s and deletes it from the registry. It is idempotent and only
// ever deletes the exact subscriber passed in. Calling Remove before Add
// leaves s Closed so the later Add fails. Remove reports whether this call
// closed s.
func (r *Registry) Remove(s *Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(s)
}

func (r *Registry) removeLocked(s *Subscriber) bool {
	if cur, ok := r.subs[s.id]; ok && cur == s {
		delete(r.subs, s.id)
	}
	return s.markClosed()
}

// CloseAll closes every registered subscriber, empties the registry and
// rejects further Adds. It returns the number of subscribers closed.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, s := range r.subs {
		if s.markClosed() {
			n++
		}
		delete(r.subs, id)
	}
	r.closed = true
	return n
}

// Len returns the number of Open subscribers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Contains reports whether a subscriber with the given identity is registered.
func (r *Registry) Contains(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subs[id]
	return ok
}
