package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/p-arndt/labkasten/internal/driver"
)

// Status reports the live state of key. It never fails: an unreachable
// or missing container answers as stopped and its entry is pruned.
// Observing a running session counts as activity.
func (m *Manager) Status(ctx context.Context, key Key) *Session {
	if err := key.Validate(); err != nil {
		return stopped(key)
	}

	unlock := m.locks.lock(key)
	defer unlock()

	logger := m.logger.With("key", key.String())

	sess, ok := m.registry.Get(key)
	if !ok {
		if key.Kind == KindWorkstation {
			if rec := m.reconcileWorkstation(ctx, key, logger); rec != nil {
				return rec
			}
		}
		return stopped(key)
	}

	running, err := m.inspectRunning(ctx, sess.ContainerName)
	if err != nil {
		logger.Warn("status inspect failed, pruning session", "container", sess.ContainerName, "error", err)
		m.registry.Remove(key)
		return stopped(key)
	}
	if !running {
		logger.Info("session container not running, pruning", "container", sess.ContainerName)
		m.registry.Remove(key)
		sess.Status = StatusStopped
		return sess
	}

	now := m.clock.Now()
	m.registry.Touch(key, now)
	sess.LastActivityAt = now
	return sess
}

// reconcileWorkstation rebuilds a registry entry for a workstation whose
// container survived a restart of this process. A stopped leftover is
// removed instead.
func (m *Manager) reconcileWorkstation(ctx context.Context, key Key, logger *slog.Logger) *Session {
	name := ContainerName(m.cfg.Runtime.NamePrefix, key)

	running, err := m.inspectRunning(ctx, name)
	if err != nil {
		if !errors.Is(err, driver.ErrNotFound) {
			logger.Warn("workstation reconcile inspect failed", "container", name, "error", err)
		}
		return nil
	}
	if !running {
		if err := m.remove(ctx, name); err != nil {
			logger.Warn("stale workstation cleanup failed", "container", name, "error", err)
		}
		return nil
	}

	observed := 0
	inspectCtx, cancel := withTimeout(ctx, m.cfg.Timeouts.InspectTimeout())
	published, err := m.driver.PublishedPorts(inspectCtx, name)
	cancel()
	if err != nil {
		logger.Warn("workstation port lookup failed", "container", name, "error", err)
	}
	if len(published) > 0 {
		observed = published[0]
	}

	now := m.clock.Now()
	ws := m.cfg.Workstation
	sess := &Session{
		Key:            key,
		ContainerName:  name,
		Image:          ws.Image,
		InternalPort:   ws.InternalPort,
		Status:         StatusRunning,
		StartedAt:      now,
		LastActivityAt: now,
	}
	port, err := m.registry.Reserve(sess, observed, m.workstationPorts)
	if errors.Is(err, ErrPortHeld) {
		logger.Warn("workstation reconcile skipped, published port belongs to another session",
			"container", name, "observed_port", observed)
		return nil
	}
	if err != nil {
		logger.Error("workstation reconcile port allocation failed", "error", err)
		return nil
	}
	sess.AccessURL = accessURL(ws.Scheme, m.cfg.PublicHost, port)
	m.registry.Upsert(sess)

	logger.Info("workstation reconciled", "container", name, "host_port", port, "observed_port", observed)
	return sess
}

// Stop removes the container for key and forgets the session. Runtime
// failures are logged; the caller always sees success.
func (m *Manager) Stop(ctx context.Context, key Key) StopResult {
	if err := key.Validate(); err != nil {
		return StopResult{Success: true}
	}

	unlock := m.locks.lock(key)
	defer unlock()

	m.stopLocked(ctx, key)
	return StopResult{Success: true}
}

func (m *Manager) stopLocked(ctx context.Context, key Key) {
	name := ContainerName(m.cfg.Runtime.NamePrefix, key)
	if sess, ok := m.registry.Get(key); ok {
		name = sess.ContainerName
		sess.Status = StatusStopping
		m.registry.Upsert(sess)
	}

	if err := m.remove(ctx, name); err != nil {
		m.logger.Warn("stop: container remove failed", "key", key.String(), "container", name, "error", err)
	}
	m.registry.Remove(key)
	m.logger.Info("session stopped", "key", key.String(), "container", name)
}

// StopIfIdle stops key only if its last activity is before cutoff. The
// check and the stop happen under the key's lock, so activity recorded
// concurrently is never reaped.
func (m *Manager) StopIfIdle(ctx context.Context, key Key, cutoff time.Time) bool {
	unlock := m.locks.lock(key)
	defer unlock()

	sess, ok := m.registry.Get(key)
	if !ok || sess.Status != StatusRunning || !sess.LastActivityAt.Before(cutoff) {
		return false
	}
	m.logger.Info("stopping idle session", "key", key.String(), "last_activity", sess.LastActivityAt)
	m.stopLocked(ctx, key)
	return true
}

// List returns the tracked sessions belonging to owner.
func (m *Manager) List(owner string) []Session {
	var out []Session
	for _, s := range m.registry.Snapshot() {
		if s.Key.Owner == owner {
			out = append(out, s)
		}
	}
	return out
}

// Snapshot returns every tracked session.
func (m *Manager) Snapshot() []Session {
	return m.registry.Snapshot()
}
