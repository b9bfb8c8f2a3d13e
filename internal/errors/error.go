package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMalformedRecord   = errors.New("malformed game record")
	ErrInvalidRecord     = errors.New("game record rejected by validator")
	ErrEngineStartup     = errors.New("katago engine failed to start")
	ErrEngineUnavailable = errors.New("katago engine is not running")
	ErrStreamingTimeout  = errors.New("streaming analysis timed out")
	ErrEngineRejected    = errors.New("katago rejected the query")
	ErrProtocolNoise     = errors.New("unusable katago response line")
	ErrConfiguration     = errors.New("invalid configuration")
)

// StartupError carries the stderr captured while waiting for the readiness banner.
type StartupError struct {
	Reason string
	Stderr []string
}

func (e *StartupError) Error() string {
	if len(e.Stderr) == 0 {
		return fmt.Sprintf("%s: %s", ErrEngineStartup, e.Reason)
	}
	return fmt.Sprintf("%s: %s\n--- katago stderr ---\n%s", ErrEngineStartup, e.Reason, strings.Join(e.Stderr, "\n"))
}

func (e *StartupError) Unwrap() error { return ErrEngineStartup }

// TimeoutError is returned when no result arrived within the per-turn window.
type TimeoutError struct {
	Received int
	Expected int
	Window   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s after %d of %d turns (window %s)", ErrStreamingTimeout, e.Received, e.Expected, e.Window)
}

func (e *TimeoutError) Unwrap() error { return ErrStreamingTimeout }

// EngineError is an error line KataGo emitted for a pending query.
type EngineError struct {
	ID      string
	Message string
	Field   string
}

func (e *EngineError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s %s: %s (field %s)", ErrEngineRejected, e.ID, e.Message, e.Field)
	}
	return fmt.Sprintf("%s %s: %s", ErrEngineRejected, e.ID, e.Message)
}

func (e *EngineError) Unwrap() error { return ErrEngineRejected }
