package core

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates that a record does not match its schema.
	ErrValidation = errors.New("validation failed")
	// ErrStorage indicates a persistence I/O failure.
	ErrStorage = errors.New("storage failure")
	// ErrNotFound indicates that a referenced project, segment, preset or
	// dictionary entry is missing.
	ErrNotFound = errors.New("not found")
)

// EngineError is a failure reported by the background engine. Payload is
// the worker's error data, kept verbatim.
type EngineError struct {
	Op      string
	Payload json.RawMessage
}

func (e *EngineError) Error() string {
	var message string

	err := json.Unmarshal(e.Payload, &message)
	if err != nil {
		message = string(e.Payload)
	}

	return fmt.Sprintf("engine %s failed: %s", e.Op, message)
}

// StorageErrorf wraps err as a storage failure.
func StorageErrorf(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, fmt.Sprintf(format, args...), err)
}

// NotFoundf returns an ErrNotFound describing what is missing.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
