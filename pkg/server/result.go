package server

import (
	"errors"

	"github.com/browserflow/browserflow/pkg/driver"
	"github.com/browserflow/browserflow/pkg/recording"
	"github.com/browserflow/browserflow/pkg/scenario"
)

// FailureKind discriminates tool-call failures for callers.
type FailureKind string

// Failure kinds, per the error taxonomy: not-found and conflict and
// validation failures are the call's own failure; step execution failures
// live inside replay reports; anything else is internal.
const (
	KindNotFound   FailureKind = "not_found"
	KindConflict   FailureKind = "conflict"
	KindValidation FailureKind = "validation"
	KindStepFailed FailureKind = "step_failed"
	KindInternal   FailureKind = "internal"
)

// ToolError is the structured failure result of a tool call. Every public
// operation returns either a result payload or one of these; failures
// never crash the host process.
type ToolError struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`

	// Data carries whatever partial result accumulated before the
	// failure, e.g. the partial replay report after a stopOnError abort.
	Data interface{} `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// classify maps package errors onto the failure taxonomy.
func classify(err error) *ToolError {
	if err == nil {
		return nil
	}

	var te *ToolError
	if errors.As(err, &te) {
		return te
	}

	kind := KindInternal
	switch {
	case errors.Is(err, scenario.ErrScenarioNotFound),
		errors.Is(err, driver.ErrSessionNotFound):
		kind = KindNotFound
	case errors.Is(err, recording.ErrRecordingActive):
		kind = KindConflict
	case errors.Is(err, scenario.ErrConfirmRequired),
		errors.Is(err, recording.ErrNoActiveRecording):
		kind = KindValidation
	}

	return &ToolError{Kind: kind, Message: err.Error()}
}

func validationError(msg string) *ToolError {
	return &ToolError{Kind: KindValidation, Message: msg}
}

func notFoundError(msg string) *ToolError {
	return &ToolError{Kind: KindNotFound, Message: msg}
}
