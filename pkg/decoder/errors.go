package decoder

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSessionClosed is returned by Submit and Flush after Close.
	ErrSessionClosed = errors.New("decoder: session closed")

	// ErrOutOfOrder is returned when a payload's timestamp does not advance
	// past the previous one. The payload is rejected and not decoded.
	ErrOutOfOrder = errors.New("decoder: timestamp out of order")
)

// ConfigurationError reports unsupported or invalid codec parameters.
// It is fatal to Open; the caller may retry with a different configuration.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decoder: configuration: %v", e.Err)
	}
	return fmt.Sprintf("decoder: configuration %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// DecodeError reports one payload that could not be decoded. The session
// stays usable and continues with the next payload.
type DecodeError struct {
	PTS time.Duration
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoder: payload at %v: %v", e.PTS, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
