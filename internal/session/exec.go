package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/p-arndt/labkasten/internal/driver"
)

// Execute runs command through the configured shell inside the session's
// container. Stdout and stderr are returned concatenated in that order.
// A runtime failure is folded into an unsuccessful result carrying the
// runtime's diagnostic; only a missing session is an error.
func (m *Manager) Execute(ctx context.Context, key Key, command string) (*ExecResult, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	unlock := m.locks.lock(key)
	defer unlock()

	sess, ok := m.registry.Get(key)
	if !ok || sess.Status != StatusRunning {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotRunning, key)
	}

	logger := m.logger.With("key", key.String(), "container", sess.ContainerName)

	execCtx, cancel := withTimeout(ctx, m.cfg.Timeouts.ExecTimeout())
	defer cancel()

	res, err := m.driver.Exec(execCtx, sess.ContainerName, m.shellCommand(command))
	if err != nil {
		logger.Warn("exec failed", "error", err)
		if errors.Is(err, driver.ErrNotFound) {
			m.registry.Remove(key)
		}
		return &ExecResult{Success: false, Output: driver.Diagnostic(err), ExitCode: -1}, nil
	}

	out := &ExecResult{
		Success:   res.ExitCode == 0,
		Output:    res.Stdout + res.Stderr,
		ExitCode:  res.ExitCode,
		Truncated: res.Truncated,
	}
	if out.Success {
		m.registry.Touch(key, m.clock.Now())
	}
	logger.Debug("exec finished", "exit_code", res.ExitCode, "output_bytes", len(out.Output))
	return out, nil
}

func (m *Manager) shellCommand(command string) []string {
	shell := m.cfg.Exec.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	return []string{shell, "-c", command}
}
