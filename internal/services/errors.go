package services

import (
	"errors"
	"fmt"
	"strings"

	"scenecast/internal/scenes"
)

var (
	// ErrDecode marks audio or image bytes the media tooling could not decode.
	ErrDecode = errors.New("decode error")
	// ErrEngineLoad marks a failure to initialize the encoding engine.
	ErrEngineLoad = errors.New("engine load error")
	// ErrEncode marks a non-zero result from an encode command.
	ErrEncode = errors.New("encode error")

	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later status classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStatus maps a stage error to the scene status the pipeline manager
// should persist after the stage fails.
func FailureStatus(err error) scenes.Status {
	switch {
	case errors.Is(err, ErrDecode), errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration):
		return scenes.StatusReview
	default:
		return scenes.StatusFailed
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
