package api

import (
	"context"

	"github.com/p-arndt/labkasten/internal/catalog"
	"github.com/p-arndt/labkasten/internal/session"
	"github.com/stretchr/testify/mock"
)

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Start(ctx context.Context, key session.Key) (*session.Session, error) {
	args := m.Called(ctx, key)
	if sess := args.Get(0); sess != nil {
		return sess.(*session.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionService) Stop(ctx context.Context, key session.Key) session.StopResult {
	args := m.Called(ctx, key)
	return args.Get(0).(session.StopResult)
}

func (m *MockSessionService) Status(ctx context.Context, key session.Key) *session.Session {
	args := m.Called(ctx, key)
	return args.Get(0).(*session.Session)
}

func (m *MockSessionService) Execute(ctx context.Context, key session.Key, command string) (*session.ExecResult, error) {
	args := m.Called(ctx, key, command)
	if res := args.Get(0); res != nil {
		return res.(*session.ExecResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionService) List(owner string) []session.Session {
	args := m.Called(owner)
	if sessions := args.Get(0); sessions != nil {
		return sessions.([]session.Session)
	}
	return nil
}

func (m *MockSessionService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) List(ctx context.Context) ([]*catalog.Entry, error) {
	args := m.Called(ctx)
	if labs := args.Get(0); labs != nil {
		return labs.([]*catalog.Entry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCatalogService) Get(ctx context.Context, id string) (*catalog.Entry, error) {
	args := m.Called(ctx, id)
	if e := args.Get(0); e != nil {
		return e.(*catalog.Entry), args.Error(1)
	}
	return nil, args.Error(1)
}
