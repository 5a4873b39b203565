package api

import (
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/p-arndt/labkasten/internal/session"
	"github.com/p-arndt/labkasten/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func dialTerminal(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	wsURL := testutil.WebsocketURL(srv.URL, path)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) terminalFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame terminalFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestTerminalRelaysCommands(t *testing.T) {
	mockMgr := &MockSessionService{}
	s := testAPIServer(mockMgr, &MockCatalogService{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	key := session.LabKey("u1", "dvwa")
	mockMgr.On("Execute", mock.Anything, key, "echo hi").Return(&session.ExecResult{Success: true, Output: "hi\n"}, nil)
	mockMgr.On("Execute", mock.Anything, key, "false").Return(&session.ExecResult{Success: false, ExitCode: 1}, nil)

	conn := dialTerminal(t, srv, "/v1/labs/dvwa/terminal?owner=u1")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("echo hi")))
	frame := readFrame(t, conn)
	assert.True(t, frame.Success)
	assert.Equal(t, "hi\n", frame.Output)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("false")))
	frame = readFrame(t, conn)
	assert.False(t, frame.Success)
	assert.Equal(t, 1, frame.ExitCode)
}

func TestTerminalReportsSessionNotRunning(t *testing.T) {
	mockMgr := &MockSessionService{}
	s := testAPIServer(mockMgr, &MockCatalogService{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	mockMgr.On("Execute", mock.Anything, session.WorkstationKey("u1"), "ls").
		Return(nil, fmt.Errorf("%w: workstation/workstation/u1", session.ErrSessionNotRunning))

	conn := dialTerminal(t, srv, "/v1/workstation/terminal?owner=u1")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ls")))
	frame := readFrame(t, conn)
	assert.False(t, frame.Success)
	assert.Equal(t, ErrCodeSessionNotRunning, frame.ErrorCode)
}

func TestTerminalRejectsMissingOwner(t *testing.T) {
	s := testAPIServer(&MockSessionService{}, &MockCatalogService{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := testutil.WebsocketURL(srv.URL, "/v1/workstation/terminal")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}
