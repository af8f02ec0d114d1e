package websocket

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteTimeout     = errors.New("write timeout")
	ErrInvalidJSON      = errors.New("invalid JSON data")
)

// Handler-related errors
var (
	ErrInvalidPath     = errors.New("invalid websocket path")
	ErrInvalidClass    = errors.New("unknown connection class")
	ErrInvalidIdentity = errors.New("identity must be a positive integer")
)
