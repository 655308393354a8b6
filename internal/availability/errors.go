package availability

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork marks a fetch that failed in transport or returned a non-2xx status.
	ErrNetwork = errors.New("availability: network error")
	// ErrDecode marks a response body that could not be understood.
	ErrDecode = errors.New("availability: decode error")
	// ErrInvalidArgument is returned when a fetch is asked for an empty id.
	ErrInvalidArgument = errors.New("availability: invalid argument")
)

// Resource names used in errors, spans and metrics.
const (
	ResourceSpecialties = "specialties"
	ResourceProviders   = "providers"
	ResourceSlots       = "slots"
)

// FetchError describes a failed call to the availability backend.
type FetchError struct {
	Resource   string
	StatusCode int
	Kind       error // ErrNetwork or ErrDecode
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("availability: fetch %s: status %d: %v", e.Resource, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("availability: fetch %s: %v", e.Resource, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func networkError(resource string, status int, err error) error {
	return &FetchError{Resource: resource, StatusCode: status, Kind: ErrNetwork, Err: err}
}

func decodeError(resource string, err error) error {
	return &FetchError{Resource: resource, Kind: ErrDecode, Err: err}
}
