package errors

import (
	"fmt"
	"time"
)

// OperationalError wraps errors with operational context: which operation
// failed, against which scenario, and at which step. This keeps tool-call
// failures traceable without stack traces.
type OperationalError struct {
	Operation  string                 // What operation was being performed
	ScenarioID string                 // Which scenario (if applicable)
	StepIndex  int                    // Which step, -1 when not step-scoped
	Timestamp  time.Time              // When the error occurred
	Attributes map[string]interface{} // Additional context (optional)
	Cause      error                  // Underlying error
}

// NewOperationalError creates an OperationalError wrapping an error.
//
// Returns nil if cause is nil (no error to wrap).
func NewOperationalError(operation, scenarioID string, stepIndex int, cause error) *OperationalError {
	if cause == nil {
		return nil
	}

	return &OperationalError{
		Operation:  operation,
		ScenarioID: scenarioID,
		StepIndex:  stepIndex,
		Timestamp:  time.Now(),
		Cause:      cause,
	}
}

// WithAttrs attaches additional context attributes.
func (e *OperationalError) WithAttrs(attrs map[string]interface{}) *OperationalError {
	if e == nil {
		return nil
	}
	e.Attributes = attrs
	return e
}

// Error implements the error interface.
//
// Format: "[timestamp] operation: scenario={id} step={n}: {cause}"
// Scenario and step are omitted when not set.
func (e *OperationalError) Error() string {
	if e == nil {
		return "<nil OperationalError>"
	}

	timestamp := e.Timestamp.Format(time.RFC3339)

	switch {
	case e.ScenarioID != "" && e.StepIndex >= 0:
		return fmt.Sprintf("[%s] %s: scenario=%s step=%d: %v",
			timestamp, e.Operation, e.ScenarioID, e.StepIndex, e.Cause)
	case e.ScenarioID != "":
		return fmt.Sprintf("[%s] %s: scenario=%s: %v",
			timestamp, e.Operation, e.ScenarioID, e.Cause)
	default:
		return fmt.Sprintf("[%s] %s: %v", timestamp, e.Operation, e.Cause)
	}
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
