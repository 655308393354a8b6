package availability

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/booking-cascade/internal/schedule"
)

// FetchObserver receives one observation per gateway call.
type FetchObserver interface {
	ObserveFetch(resource, outcome string, elapsed time.Duration)
}

// Outcome labels reported to a FetchObserver.
const (
	OutcomeOK       = "ok"
	OutcomeNetwork  = "network_error"
	OutcomeDecode   = "decode_error"
	OutcomeCanceled = "canceled"
	OutcomeOther    = "error"
)

type instrumented struct {
	next     Gateway
	observer FetchObserver
	now      func() time.Time
}

// Instrument reports the outcome and latency of every call on next.
func Instrument(next Gateway, observer FetchObserver) Gateway {
	if observer == nil {
		return next
	}
	return &instrumented{next: next, observer: observer, now: time.Now}
}

func (g *instrumented) FetchSpecialties(ctx context.Context) ([]Specialty, error) {
	start := g.now()
	out, err := g.next.FetchSpecialties(ctx)
	g.observer.ObserveFetch(ResourceSpecialties, Outcome(err), g.now().Sub(start))
	return out, err
}

func (g *instrumented) FetchProviders(ctx context.Context, specialtyID string) ([]Provider, error) {
	start := g.now()
	out, err := g.next.FetchProviders(ctx, specialtyID)
	g.observer.ObserveFetch(ResourceProviders, Outcome(err), g.now().Sub(start))
	return out, err
}

func (g *instrumented) FetchSlots(ctx context.Context, providerID string, date schedule.Date) ([]schedule.Slot, error) {
	start := g.now()
	out, err := g.next.FetchSlots(ctx, providerID, date)
	g.observer.ObserveFetch(ResourceSlots, Outcome(err), g.now().Sub(start))
	return out, err
}

// Outcome classifies a gateway error into a metric label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	case errors.Is(err, ErrDecode):
		return OutcomeDecode
	case errors.Is(err, ErrNetwork):
		return OutcomeNetwork
	default:
		return OutcomeOther
	}
}
