package confirmation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIncomplete is matched by every *ValidationError.
	ErrIncomplete = errors.New("confirmation: form is incomplete")
	// ErrNotOpen is returned by Submit when the confirmation modal is closed.
	ErrNotOpen = errors.New("confirmation: confirmation is not open")
	// ErrSubmitInFlight is returned by Submit while a previous submission is pending.
	ErrSubmitInFlight = errors.New("confirmation: submission already in flight")
	// ErrAlreadySubmitted is returned once the booking has been handed off.
	ErrAlreadySubmitted = errors.New("confirmation: booking already submitted")
	// ErrNoSubmitter is returned by Submit when no booking endpoint is configured.
	ErrNoSubmitter = errors.New("confirmation: no submitter configured")
	// ErrRejected is matched by every *SubmitError.
	ErrRejected = errors.New("confirmation: submission rejected")
)

// ValidationError lists the fields that block confirmation.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return fmt.Sprintf("confirmation: form is incomplete: %s", strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrIncomplete
}

// SubmitError is a non-2xx answer from the booking endpoint.
type SubmitError struct {
	StatusCode int
	Body       string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("confirmation: booking endpoint returned %d: %s", e.StatusCode, e.Body)
}

func (e *SubmitError) Is(target error) bool {
	return target == ErrRejected
}
