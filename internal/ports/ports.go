// Package ports hands out host ports for published session containers.
package ports

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

var ErrExhausted = errors.New("no free host port in range")

// Allocator picks ports from [Base, Base+Span). It keeps no reservation
// table of its own: callers pass the ports currently held and must keep
// the allocate-and-record sequence under their own lock.
type Allocator struct {
	Base int
	Span int

	// intn returns a value in [0, n); swapped in tests.
	intn func(n int) int
}

func NewAllocator(base, span int) *Allocator {
	return &Allocator{Base: base, Span: span, intn: rand.IntN}
}

// Allocate starts at a random offset in the range and probes upward,
// wrapping once, until it finds a port not present in held.
func (a *Allocator) Allocate(held map[int]bool) (int, error) {
	if a.Span <= 0 {
		return 0, fmt.Errorf("%w: empty range at %d", ErrExhausted, a.Base)
	}
	start := a.intn(a.Span)
	for i := 0; i < a.Span; i++ {
		port := a.Base + (start+i)%a.Span
		if !held[port] {
			return port, nil
		}
	}
	return 0, fmt.Errorf("%w: %d-%d", ErrExhausted, a.Base, a.Base+a.Span-1)
}

// Contains reports whether port falls inside the allocator's range.
func (a *Allocator) Contains(port int) bool {
	return port >= a.Base && port < a.Base+a.Span
}
