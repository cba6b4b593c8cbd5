package server

import "errors"

// Server-specific errors
var (
	ErrServerClosed         = errors.New("server is closed")
	ErrServerNotRunning     = errors.New("server is not running")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrMaxClientsReached    = errors.New("maximum clients reached")
	ErrClientNotFound       = errors.New("client not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidConfig        = errors.New("invalid server configuration")
	ErrListenerFailed       = errors.New("failed to create listener")
)
