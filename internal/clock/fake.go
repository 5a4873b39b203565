package clock

import (
	"sync"
	"time"
)

// Fake is a Clock that only moves when Advance is called. Tickers created
// from it fire once per Advance that crosses their next deadline; like
// time.Ticker, ticks are dropped when the consumer falls behind.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	tickers []*fakeTicker
}

func NewFake(initial time.Time) *Fake {
	return &Fake{current: initial}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{
		ch:       make(chan time.Time, 1),
		interval: d,
		next:     f.current.Add(d),
	}
	f.tickers = append(f.tickers, t)
	return t
}

// Advance moves the clock forward by d and fires any due tickers.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)

	live := f.tickers[:0]
	for _, t := range f.tickers {
		if t.isStopped() {
			continue
		}
		if !f.current.Before(t.next) {
			select {
			case t.ch <- f.current:
			default:
			}
			for !f.current.Before(t.next) {
				t.next = t.next.Add(t.interval)
			}
		}
		live = append(live, t)
	}
	f.tickers = live
}

type fakeTicker struct {
	ch       chan time.Time
	interval time.Duration
	next     time.Time

	mu      sync.Mutex
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Tickers returns the number of tickers that have not been stopped.
func (f *Fake) Tickers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tickers {
		if !t.isStopped() {
			n++
		}
	}
	return n
}
