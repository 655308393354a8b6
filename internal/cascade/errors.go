package cascade

import "errors"

var (
	// ErrClosed is returned by every operation once the controller has stopped.
	ErrClosed = errors.New("cascade: controller closed")
	// ErrUnknownOption is returned when a value is not among the field's current options.
	ErrUnknownOption = errors.New("cascade: value is not a current option")
	// ErrFieldDisabled is returned when a disabled field is changed.
	ErrFieldDisabled = errors.New("cascade: field is disabled")
	// ErrDateOutOfRange is returned for a date earlier than today.
	ErrDateOutOfRange = errors.New("cascade: date is before today")
	// ErrSlotElapsed is returned when the chosen time passed after it was offered.
	ErrSlotElapsed = errors.New("cascade: slot has already elapsed")
	// ErrNoGateway is returned by New without an availability gateway.
	ErrNoGateway = errors.New("cascade: gateway is required")
)
