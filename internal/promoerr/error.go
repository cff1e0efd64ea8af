// Package promoerr defines the error types shared between the promotion
// workflow packages.
package promoerr

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoReleaseFound is returned by release detection when neither the
// release lookup nor the tag fallback yields a usable version identifier.
var ErrNoReleaseFound = errors.New("no release or tag found at upstream")

// RetryableError wraps an error for a failed operation that can be retried.
type RetryableError struct {
	// Err is the wrapped original error
	Err error
	// After is the earliest point in time that the operation can be retried
	After time.Time
}

func NewRetryableError(originalErr error, retryAfter time.Time) *RetryableError {
	return &RetryableError{
		Err:   originalErr,
		After: retryAfter,
	}
}

func NewRetryableAnytimeError(originalErr error) *RetryableError {
	return &RetryableError{
		Err: originalErr,
	}
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

func (e *RetryableError) Error() string {
	if e.After.IsZero() {
		return fmt.Sprintf("retryable error: %s", e.Err)
	}

	return fmt.Sprintf("retryable error (after %s): %s", e.After, e.Err)
}

// MissingInputError is returned by a stage executor when a required input
// field was not produced by an earlier stage or is absent from the
// configuration. It is a caller error, the stage must not be retried.
type MissingInputError struct {
	Field string
}

func NewMissingInputError(field string) *MissingInputError {
	return &MissingInputError{Field: field}
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("required input field %q is missing or empty", e.Field)
}

// JobFailedError is returned when an asynchronous backend job reached a
// terminal non-success status. Diagnostics contains a bounded list of
// failure details extracted from the backend.
type JobFailedError struct {
	JobID       string
	Status      string
	Diagnostics []string
}

func (e *JobFailedError) Error() string {
	if len(e.Diagnostics) == 0 {
		return fmt.Sprintf("job %s reached terminal status %s", e.JobID, e.Status)
	}

	return fmt.Sprintf("job %s reached terminal status %s: %s",
		e.JobID, e.Status, strings.Join(e.Diagnostics, "; "))
}

// JobTimeoutError is returned when no terminal status was observed before
// the maximum wait time expired. The job keeps running at the backend, the
// handle is carried for operator follow-up.
type JobTimeoutError struct {
	JobID   string
	Elapsed time.Duration
}

func (e *JobTimeoutError) Error() string {
	return fmt.Sprintf("job %s did not reach a terminal status within %s", e.JobID, e.Elapsed)
}

// JobQueryError wraps a non-transient error returned by a backend status
// query.
type JobQueryError struct {
	JobID string
	Err   error
}

func (e *JobQueryError) Error() string {
	return fmt.Sprintf("querying status of job %s failed: %s", e.JobID, e.Err)
}

func (e *JobQueryError) Unwrap() error {
	return e.Err
}

// NotificationDeliveryError is returned when publishing a workflow summary
// failed. It is not routed through the failure-reporting path, no further
// notification can be sent for it.
type NotificationDeliveryError struct {
	Subject string
	Err     error
}

func (e *NotificationDeliveryError) Error() string {
	return fmt.Sprintf("publishing notification %q failed: %s", e.Subject, e.Err)
}

func (e *NotificationDeliveryError) Unwrap() error {
	return e.Err
}
