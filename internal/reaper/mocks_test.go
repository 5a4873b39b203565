package reaper

import (
	"context"
	"time"

	"github.com/p-arndt/labkasten/internal/session"
	"github.com/stretchr/testify/mock"
)

type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) Snapshot() []session.Session {
	args := m.Called()
	if s := args.Get(0); s != nil {
		return s.([]session.Session)
	}
	return nil
}

func (m *MockSessions) StopIfIdle(ctx context.Context, key session.Key, cutoff time.Time) bool {
	args := m.Called(ctx, key, cutoff)
	return args.Bool(0)
}
