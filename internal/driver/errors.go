package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRuntimeUnavailable = errors.New("container runtime unavailable")
	ErrPullFailed         = errors.New("image pull failed")
	ErrNameConflict       = errors.New("container name conflict")
	ErrStartFailed        = errors.New("container start failed")
	ErrNotFound           = errors.New("container not found")
	ErrTimeout            = errors.New("container runtime timeout")
)

// Error carries the runtime's raw diagnostic alongside the failure class.
type Error struct {
	Op         string
	Kind       error
	Diagnostic string
}

func (e *Error) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Diagnostic)
}

func (e *Error) Unwrap() error { return e.Kind }

// Fail builds an *Error for op. If ctx has expired the failure is
// reclassified as ErrTimeout, since the runtime's own message is then
// usually just a cancellation echo.
func Fail(ctx context.Context, op string, kind error, diagnostic string) error {
	if ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = ErrTimeout
	}
	return &Error{Op: op, Kind: kind, Diagnostic: strings.TrimSpace(diagnostic)}
}

// Diagnostic returns the raw runtime text attached to err, or err.Error()
// when it carries none.
func Diagnostic(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Diagnostic != "" {
		return de.Diagnostic
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
