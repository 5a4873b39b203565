package session

import (
	"context"

	"github.com/p-arndt/labkasten/internal/catalog"
	"github.com/p-arndt/labkasten/internal/driver"
	"github.com/stretchr/testify/mock"
)

type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDriver) ImageExists(ctx context.Context, image string) (bool, error) {
	args := m.Called(ctx, image)
	return args.Bool(0), args.Error(1)
}

func (m *MockDriver) PullImage(ctx context.Context, image string) error {
	args := m.Called(ctx, image)
	return args.Error(0)
}

func (m *MockDriver) RunDetached(ctx context.Context, opts driver.RunOpts) (string, error) {
	args := m.Called(ctx, opts)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) Remove(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockDriver) InspectRunning(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockDriver) PublishedPorts(ctx context.Context, name string) ([]int, error) {
	args := m.Called(ctx, name)
	if p := args.Get(0); p != nil {
		return p.([]int), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDriver) Exec(ctx context.Context, name string, cmd []string) (*driver.ExecResult, error) {
	args := m.Called(ctx, name, cmd)
	if res := args.Get(0); res != nil {
		return res.(*driver.ExecResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDriver) Logs(ctx context.Context, name string, tailLines int) (string, error) {
	args := m.Called(ctx, name, tailLines)
	return args.String(0), args.Error(1)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) Get(ctx context.Context, id string) (*catalog.Entry, error) {
	args := m.Called(ctx, id)
	if e := args.Get(0); e != nil {
		return e.(*catalog.Entry), args.Error(1)
	}
	return nil, args.Error(1)
}
