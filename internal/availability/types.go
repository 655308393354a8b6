// Package availability fetches the specialty, provider and slot lists that
// feed the booking form, and normalizes whatever shape the backend returns.
package availability

import (
	"context"

	"github.com/wolfman30/booking-cascade/internal/schedule"
)

// Specialty is a medical specialty from the clinic catalog.
type Specialty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Provider is a clinician belonging to exactly one specialty.
type Provider struct {
	ID          string `json:"id"`
	FullName    string `json:"fullName"`
	SpecialtyID string `json:"specialtyId"`
}

// Gateway is the black-box data source behind the form.
type Gateway interface {
	// FetchSpecialties returns the full specialty catalog.
	FetchSpecialties(ctx context.Context) ([]Specialty, error)
	// FetchProviders returns only providers whose SpecialtyID equals specialtyID.
	FetchProviders(ctx context.Context, specialtyID string) ([]Provider, error)
	// FetchSlots returns the available slot times for a provider on date,
	// sorted and without duplicates. Time-of-day filtering is not applied.
	FetchSlots(ctx context.Context, providerID string, date schedule.Date) ([]schedule.Slot, error)
}

// Invalidator is implemented by gateways that keep a catalog cache.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// ProviderMode selects how the backend scopes provider lists.
type ProviderMode string

const (
	// ProviderModeFiltered asks the backend for one specialty's providers.
	ProviderModeFiltered ProviderMode = "filtered"
	// ProviderModeCatalog downloads every provider and filters locally.
	ProviderModeCatalog ProviderMode = "catalog"
)

// SlotMode selects how per-slot availability flags are read.
type SlotMode string

const (
	// SlotModeFlagged honours the available flag; entries without a flag count as available.
	SlotModeFlagged SlotMode = "flagged"
	// SlotModeStrict requires an explicit available=true flag.
	SlotModeStrict SlotMode = "strict"
	// SlotModePrefiltered treats every returned entry as available.
	SlotModePrefiltered SlotMode = "prefiltered"
)

// FilterProviders keeps providers that belong to specialtyID.
func FilterProviders(providers []Provider, specialtyID string) []Provider {
	out := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.SpecialtyID == specialtyID {
			out = append(out, p)
		}
	}
	return out
}
