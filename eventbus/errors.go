package eventbus

import "errors"

var (
	// ErrBusClosed is returned when publishing to a stopped Bus.
	ErrBusClosed = errors.New("event bus is closed")

	// ErrNilPayload is returned when Publish is given a nil payload.
	ErrNilPayload = errors.New("event payload is nil")
)
