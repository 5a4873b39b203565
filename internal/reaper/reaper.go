// Package reaper stops sessions that have seen no activity for longer
// than the configured idle threshold.
package reaper

import (
	"context"
	"log/slog"
	"time"

	"github.com/p-arndt/labkasten/internal/clock"
	"github.com/p-arndt/labkasten/internal/session"
)

type Reaper struct {
	sessions Sessions
	clock    clock.Clock
	interval time.Duration
	idle     time.Duration
	logger   *slog.Logger
}

func New(sessions Sessions, clk clock.Clock, interval, idle time.Duration, logger *slog.Logger) *Reaper {
	if clk == nil {
		clk = clock.Real()
	}
	return &Reaper{
		sessions: sessions,
		clock:    clk,
		interval: interval,
		idle:     idle,
		logger:   logger,
	}
}

// Run sweeps every interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	if r.interval <= 0 || r.idle <= 0 {
		r.logger.Info("reaper disabled", "interval", r.interval, "idle", r.idle)
		return
	}
	r.logger.Info("reaper started", "interval", r.interval, "idle", r.idle)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return
		case <-ticker.C():
			r.sweep(ctx)
		}
	}
}

// sweep stops every session idle past the threshold and returns how many
// it stopped. The final idle check is made by the manager under the
// session's own lock; the snapshot only narrows the candidates.
func (r *Reaper) sweep(ctx context.Context) int {
	cutoff := r.clock.Now().Add(-r.idle)

	reaped := 0
	for _, s := range r.sessions.Snapshot() {
		if ctx.Err() != nil {
			break
		}
		if !s.LastActivityAt.Before(cutoff) {
			continue
		}
		if r.stop(ctx, s, cutoff) {
			reaped++
		}
	}

	if reaped > 0 {
		r.logger.Info("reaper: stopped idle sessions", "count", reaped)
	}
	return reaped
}

func (r *Reaper) stop(ctx context.Context, s session.Session, cutoff time.Time) (stopped bool) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("reaper: stop panicked", "key", s.Key.String(), "panic", p)
			stopped = false
		}
	}()

	if !r.sessions.StopIfIdle(ctx, s.Key, cutoff) {
		r.logger.Debug("reaper: session active again, skipped", "key", s.Key.String())
		return false
	}
	r.logger.Info("reaped idle session", "key", s.Key.String(), "last_activity", s.LastActivityAt)
	return true
}
