package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/p-arndt/labkasten/internal/session"
)

const (
	wsReadDeadline  = 2 * time.Minute
	wsWriteDeadline = 10 * time.Second
	wsPingInterval  = 30 * time.Second
	wsReadLimit     = maxCommandBytes + 1024
)

// terminalFrame is written back for every command frame received.
type terminalFrame struct {
	Success   bool   `json:"success"`
	Output    string `json:"output"`
	ExitCode  int    `json:"exit_code"`
	Truncated bool   `json:"truncated,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// handleTerminal relays a websocket: each text frame is one command run
// through Execute, answered by one JSON frame.
func (s *Server) handleTerminal(kf keyFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := s.resolveKey(w, r, kf)
		if !ok {
			return
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Debug("terminal upgrade failed", "key", key.String(), "error", err)
			return
		}
		defer conn.Close()

		logger := s.logger.With("key", key.String(), "request_id", requestID(r.Context()))
		logger.Info("terminal opened")
		defer logger.Info("terminal closed")

		conn.SetReadLimit(wsReadLimit)
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		})

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		frames := make(chan terminalFrame)
		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			for {
				if err := conn.SetReadDeadline(time.Now().Add(wsReadDeadline)); err != nil {
					return
				}
				msgType, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if msgType != websocket.TextMessage {
					continue
				}
				frame := s.runTerminalCommand(ctx, key, string(msg))
				select {
				case frames <- frame:
				case <-ctx.Done():
					return
				}
			}
		}()

		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()

		for {
			select {
			case <-readDone:
				return
			case frame := <-frames:
				conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
				if err := conn.WriteJSON(frame); err != nil {
					logger.Debug("terminal write failed", "error", err)
					return
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

func (s *Server) runTerminalCommand(ctx context.Context, key session.Key, cmd string) terminalFrame {
	if err := validateCommand(cmd); err != nil {
		return terminalFrame{Output: err.Error(), ExitCode: -1, ErrorCode: ErrCodeInvalidRequest}
	}
	if !s.limiter.Allow(key.Owner) {
		return terminalFrame{Output: "too many commands; slow down", ExitCode: -1, ErrorCode: ErrCodeRateLimited}
	}
	res, err := s.manager.Execute(ctx, key, cmd)
	if err != nil {
		apiErr, _ := toAPIError(err)
		return terminalFrame{Output: apiErr.Message, ExitCode: -1, ErrorCode: apiErr.Code}
	}
	return terminalFrame{Success: res.Success, Output: res.Output, ExitCode: res.ExitCode, Truncated: res.Truncated}
}
