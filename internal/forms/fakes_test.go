package forms

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/booking-cascade/internal/availability"
	"github.com/wolfman30/booking-cascade/internal/clock"
	"github.com/wolfman30/booking-cascade/internal/confirmation"
	"github.com/wolfman30/booking-cascade/internal/schedule"
)

var clinicNow = time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

const today = "2026-03-02"

type staticGateway struct{}

func (staticGateway) FetchSpecialties(ctx context.Context) ([]availability.Specialty, error) {
	return []availability.Specialty{
		{ID: "1", Name: "Cardiologia"},
		{ID: "2", Name: "Dermatologia"},
	}, nil
}

func (staticGateway) FetchProviders(ctx context.Context, specialtyID string) ([]availability.Provider, error) {
	all := []availability.Provider{
		{ID: "10", FullName: "Ana Torres", SpecialtyID: "1"},
		{ID: "20", FullName: "Rosa Vega", SpecialtyID: "2"},
	}
	return availability.FilterProviders(all, specialtyID), nil
}

func (staticGateway) FetchSlots(ctx context.Context, providerID string, date schedule.Date) ([]schedule.Slot, error) {
	var out []schedule.Slot
	for _, h := range []int{9, 14, 15, 16} {
		tod, err := schedule.NewTimeOfDay(h, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, schedule.Slot{Time: tod, Available: true})
	}
	return out, nil
}

type recordingSubmitter struct {
	mu          sync.Mutex
	submissions []confirmation.Submission
	err         error
}

func (s *recordingSubmitter) Submit(ctx context.Context, sub confirmation.Submission) (confirmation.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return confirmation.Receipt{}, s.err
	}
	s.submissions = append(s.submissions, sub)
	return confirmation.Receipt{StatusCode: 200, Location: "/reserva/exito"}, nil
}

func (s *recordingSubmitter) all() []confirmation.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]confirmation.Submission(nil), s.submissions...)
}

func newTestManager(submitter confirmation.Submitter) (*Manager, *clock.Manual) {
	clk := clock.NewManual(clinicNow)
	m := NewManager(ManagerConfig{
		Gateway:      staticGateway{},
		Submitter:    submitter,
		Clock:        clk,
		FetchTimeout: time.Second,
		IdleTimeout:  10 * time.Minute,
	}, nil)
	return m, clk
}
