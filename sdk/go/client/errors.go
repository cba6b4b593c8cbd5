package client

import "errors"

// Client-specific errors
var (
	ErrClientClosed   = errors.New("client is closed")
	ErrAlreadyRunning = errors.New("client is already running")
	ErrDialFailed     = errors.New("failed to connect")
	ErrConnectionLost = errors.New("connection lost")
	ErrInvalidConfig  = errors.New("invalid client configuration")
)
