package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Error codes carried by pipeline errors and surfaced by the API.
const (
	CodeInputInvalid = "INPUT_INVALID"
	CodeEngineFailed = "ENGINE_FAILED"
	CodeCancelled    = "CANCELLED"
	CodeInternal     = "INTERNAL"
)

// ErrCancelled matches every CancelledError via errors.Is.
var ErrCancelled = errors.New("recognition cancelled")

// InputError reports a missing or undecodable image. Nothing is cached.
type InputError struct {
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Err == nil {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input: %s: %v", e.Reason, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// Code returns CodeInputInvalid.
func (e *InputError) Code() string { return CodeInputInvalid }

// EngineError reports a recognition backend failure during Stage.
type EngineError struct {
	Stage Stage
	Err   error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("recognition engine failed during %s: %v", e.Stage, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// Code returns CodeEngineFailed.
func (e *EngineError) Code() string { return CodeEngineFailed }

// CancelledError reports that the request context ended during Stage.
type CancelledError struct {
	Stage Stage
	Err   error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("recognition cancelled during %s: %v", e.Stage, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrCancelled) hold for any CancelledError.
func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

// Code returns CodeCancelled.
func (e *CancelledError) Code() string { return CodeCancelled }

// ErrorCode returns the code of a pipeline error, or CodeInternal.
func ErrorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	if isContextErr(err) {
		return CodeCancelled
	}
	return CodeInternal
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// engineErr classifies an error returned by the recognizer.
func engineErr(stage Stage, err error) error {
	if isContextErr(err) {
		return &CancelledError{Stage: stage, Err: err}
	}
	return &EngineError{Stage: stage, Err: err}
}
