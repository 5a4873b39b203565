package pool

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockImageRuntime struct {
	mock.Mock
}

func (m *MockImageRuntime) ImageExists(ctx context.Context, image string) (bool, error) {
	args := m.Called(ctx, image)
	return args.Bool(0), args.Error(1)
}

func (m *MockImageRuntime) PullImage(ctx context.Context, image string) error {
	args := m.Called(ctx, image)
	return args.Error(0)
}
