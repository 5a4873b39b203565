package session

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// PortAllocator picks a port not in held.
type PortAllocator interface {
	Allocate(held map[int]bool) (int, error)
}

// Registry is the authoritative in-memory map of live sessions. Values
// are copied in and out so callers never share a *Session with it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[Key]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[Key]*Session)}
}

func (r *Registry) Get(key Key) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[key]
	if !ok {
		return nil, false
	}
	cp := *s
	return &cp, true
}

func (r *Registry) Upsert(s *Session) {
	cp := *s
	r.mu.Lock()
	r.sessions[s.Key] = &cp
	r.mu.Unlock()
}

func (r *Registry) Remove(key Key) {
	r.mu.Lock()
	delete(r.sessions, key)
	r.mu.Unlock()
}

// Reserve allocates a host port and records s with it in one critical
// section, so two concurrent reservations can never pick the same port.
// A non-zero preferred port is an existing binding to record as is: it
// is used when free and fails with ErrPortHeld otherwise, never swapped
// for another. s.HostPort is set on success.
func (r *Registry) Reserve(s *Session, preferred int, alloc PortAllocator) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	held := make(map[int]bool, len(r.sessions))
	for k, other := range r.sessions {
		if k != s.Key && other.HostPort > 0 {
			held[other.HostPort] = true
		}
	}

	port := preferred
	if port > 0 && held[port] {
		return 0, fmt.Errorf("%w: %d", ErrPortHeld, port)
	}
	if port <= 0 {
		var err error
		port, err = alloc.Allocate(held)
		if err != nil {
			return 0, err
		}
	}

	s.HostPort = port
	cp := *s
	r.sessions[s.Key] = &cp
	return port, nil
}

// Touch bumps LastActivityAt for a tracked session.
func (r *Registry) Touch(key Key, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	if ok {
		s.LastActivityAt = at
	}
	return ok
}

// Snapshot returns point-in-time copies ordered by key.
func (r *Registry) Snapshot() []Session {
	r.mu.RLock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
