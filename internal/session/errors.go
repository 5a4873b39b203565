package session

import "errors"

var (
	ErrNotContainerized  = errors.New("lab is not containerized")
	ErrUnknownResource   = errors.New("unknown lab")
	ErrSessionNotRunning = errors.New("session not running")
	ErrInvalidKey        = errors.New("invalid session key")
	ErrPortHeld          = errors.New("host port held by another session")
)
