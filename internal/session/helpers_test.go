package session

import (
	"context"
	"testing"
	"time"

	"github.com/p-arndt/labkasten/internal/catalog"
	"github.com/p-arndt/labkasten/internal/clock"
	"github.com/p-arndt/labkasten/internal/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	mgr   *Manager
	drv   *MockDriver
	cat   *MockCatalog
	clock *clock.Fake
	logs  *testutil.LogBuffer

	// inspect is the catch-all InspectRunning expectation; tests that need
	// a container to vanish Unset it and register their own.
	inspect *mock.Call
}

func newTestEnv() *testEnv {
	drv := &MockDriver{}
	cat := &MockCatalog{}
	clk := clock.NewFake(testEpoch)
	logger, logs := testutil.TestLogger()
	mgr := NewManager(testutil.TestConfig(), drv, cat, clk, logger)
	return &testEnv{mgr: mgr, drv: drv, cat: cat, clock: clk, logs: logs}
}

func labEntry(id string) *catalog.Entry {
	return &catalog.Entry{ID: id, Name: id, Image: "img:tag", InternalPort: 80}
}

// expectHealthyStart registers driver calls for a start that succeeds.
func (e *testEnv) expectHealthyStart(id string) {
	e.cat.On("Get", mock.Anything, id).Return(labEntry(id), nil).Maybe()
	if e.inspect != nil {
		return
	}
	e.drv.On("ImageExists", mock.Anything, "img:tag").Return(true, nil).Maybe()
	e.drv.On("Remove", mock.Anything, mock.Anything).Return(nil).Maybe()
	e.drv.On("RunDetached", mock.Anything, mock.Anything).Return("cid", nil).Maybe()
	e.inspect = e.drv.On("InspectRunning", mock.Anything, mock.Anything).Return(true, nil).Maybe()
}

func (e *testEnv) startLab(t *testing.T, owner, id string) *Session {
	t.Helper()
	e.expectHealthyStart(id)
	sess, err := e.mgr.Start(context.Background(), LabKey(owner, id))
	require.NoError(t, err)
	return sess
}
