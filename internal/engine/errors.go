package engine

import (
	"errors"
	"fmt"

	"scenecast/internal/services"
)

// ErrConversionActive is returned when an encode is requested while another
// conversion holds the engine. The engine scratch filesystem is shared
// mutable state, so re-entrant calls early-return instead of interleaving.
var ErrConversionActive = errors.New("conversion already in progress")

// EngineLoadError reports a failure to initialize the encoding engine.
// A failed load is not memoized; the next attempt retries initialization.
type EngineLoadError struct {
	Binary string
	Err    error
}

func (e *EngineLoadError) Error() string {
	return fmt.Sprintf("engine load: %s: %v", e.Binary, e.Err)
}

func (e *EngineLoadError) Unwrap() []error {
	return []error{services.ErrEngineLoad, e.Err}
}

// EncodeError reports a non-zero result from an encode command. LogLine holds
// the last error line the engine emitted, which is its only error reporting
// channel.
type EncodeError struct {
	ExitCode int
	LogLine  string
	Err      error
}

func (e *EncodeError) Error() string {
	if e.LogLine != "" {
		return fmt.Sprintf("encode failed (exit %d): %s", e.ExitCode, e.LogLine)
	}
	return fmt.Sprintf("encode failed (exit %d): %v", e.ExitCode, e.Err)
}

func (e *EncodeError) Unwrap() []error {
	return []error{services.ErrEncode, e.Err}
}
