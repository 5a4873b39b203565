package reaper

import (
	"context"
	"time"

	"github.com/p-arndt/labkasten/internal/session"
)

// Sessions is the part of the session manager the reaper drives.
type Sessions interface {
	Snapshot() []session.Session
	StopIfIdle(ctx context.Context, key session.Key, cutoff time.Time) bool
}
