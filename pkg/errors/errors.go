// Package errors defines the typed error taxonomy surfaced by futures and
// the scheduled-task engine. Callers are expected to discriminate with
// errors.As, the same way the assisted-migration-agent console client
// discriminates *errors.SourceGoneError / *errors.AgentUnauthorizedError.
package errors

import "fmt"

// ExecutionFailure wraps a cause thrown by a future's producer.
type ExecutionFailure struct {
	Cause error
}

func (e *ExecutionFailure) Error() string {
	return fmt.Sprintf("execution failed: %v", e.Cause)
}

func (e *ExecutionFailure) Unwrap() error { return e.Cause }

// CancellationError is returned by Get/Await when the future was cancelled
// before producing a value.
type CancellationError struct{}

func (e *CancellationError) Error() string { return "future was cancelled" }

// TimeoutError is returned by a bounded wait that elapsed before completion.
type TimeoutError struct{}

func (e *TimeoutError) Error() string { return "timed out waiting for completion" }

// InterruptedError is returned by a blocking call whose caller's context
// was cancelled while waiting.
type InterruptedError struct {
	Cause error
}

func (e *InterruptedError) Error() string { return fmt.Sprintf("interrupted: %v", e.Cause) }

func (e *InterruptedError) Unwrap() error { return e.Cause }

// IllegalStateError signals an operation invalid for the object's current
// disposition (e.g. Result() on a non-successful future).
type IllegalStateError struct {
	Msg string
}

func (e *IllegalStateError) Error() string { return "illegal state: " + e.Msg }

// IllegalArgumentError signals a construction-time argument violation
// (e.g. a non-positive period, a nil producer).
type IllegalArgumentError struct {
	Msg string
}

func (e *IllegalArgumentError) Error() string { return "illegal argument: " + e.Msg }

// RejectedError wraps a host executor's refusal to accept a submission.
type RejectedError struct {
	Cause error
}

func (e *RejectedError) Error() string { return fmt.Sprintf("submission rejected: %v", e.Cause) }

func (e *RejectedError) Unwrap() error { return e.Cause }
