package bus

import (
	"errors"
	"fmt"
)

var (
	// ErrNoHeader indicates no packet is being composed.
	ErrNoHeader = errors.New("no packet header set")
	// ErrShortFrame indicates a frame ended before the 4 header bytes.
	ErrShortFrame = errors.New("frame shorter than header")
	// ErrNoFrame indicates the bytes do not contain a complete frame.
	ErrNoFrame = errors.New("no complete frame")
)

// SendError wraps a transport failure while sending a packet.
type SendError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *SendError) Error() string {
	return fmt.Sprintf("bus send: %s: %v", e.Op, e.Err)
}

// Unwrap supports errors.Is/As.
func (e *SendError) Unwrap() error {
	return e.Err
}
