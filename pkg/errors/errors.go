package chatsync_errors

import "errors"

// Common errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrNotFound        = errors.New("not found")
	ErrRoomNotFound    = errors.New("room not found")
	ErrNoMorePages     = errors.New("no more pages")
	ErrUnsupportedKind = errors.New("unsupported message kind")
	ErrKindMismatch    = errors.New("message kind does not match content type")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
)
