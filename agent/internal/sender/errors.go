package sender

import (
	"errors"
	"fmt"
)

// Sentinel errors attached to drop diagnostics.
var (
	// ErrNoTransport means no delivery mechanism could be bound.
	ErrNoTransport = errors.New("sender: no transport bound")
	// ErrInvalidItem means the envelope builder rejected an item.
	ErrInvalidItem = errors.New("sender: item failed validation")
	// ErrUnparseableResponse means a partial-success body failed to decode or
	// its counts did not add up.
	ErrUnparseableResponse = errors.New("sender: unparseable batch response")
	// ErrClosed means the sender has been torn down.
	ErrClosed = errors.New("sender: torn down")
	// ErrTransportPanic means the transport panicked mid-request.
	ErrTransportPanic = errors.New("sender: transport panicked")
)

// TransportError describes a failed delivery attempt. Status is zero for
// network-level failures.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("transport: %v", e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("transport: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transport: status %d", e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retriable reports whether the failure is classified as retriable:
// a network error or one of 408, 429, 500, 503.
func (e *TransportError) Retriable() bool {
	if e.Status == 0 {
		return true
	}
	return isRetriable(e.Status)
}
