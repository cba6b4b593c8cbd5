package protocol

import "errors"

// Core protocol errors
var (
	ErrInvalidMessage        = errors.New("invalid message")
	ErrUnknownCommand        = errors.New("unknown command")
	ErrMessageTooLarge       = errors.New("message too large")
	ErrSerializationFailed   = errors.New("message serialization failed")
	ErrDeserializationFailed = errors.New("message deserialization failed")
)
