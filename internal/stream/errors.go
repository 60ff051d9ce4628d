package stream

import (
	"errors"
	"fmt"
)

const (
	// MalformedThreshold defines the number of consecutive malformed frames allowed
	MalformedThreshold = 5
)

var (
	// ErrInvalidState is returned when an operation is not permitted in the current session state
	ErrInvalidState = errors.New("invalid session state")

	// ErrInvalidInput is returned when an unsupported band is selected
	ErrInvalidInput = errors.New("unsupported band")

	// ErrTooManyMalformed is reported when the consecutive malformed frames exceed the threshold
	ErrTooManyMalformed = errors.New("too many consecutive malformed frames")
)

// TransportError reports a connection that failed to open or dropped unexpectedly.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("connection error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerError carries an error payload sent by the server. Message is kept verbatim.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}
