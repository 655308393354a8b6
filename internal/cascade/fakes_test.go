package cascade

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wolfman30/booking-cascade/internal/availability"
	"github.com/wolfman30/booking-cascade/internal/clock"
	"github.com/wolfman30/booking-cascade/internal/schedule"
)

// fakeGateway serves canned data. A gate registered for a call key holds
// that call until the gate is closed.
type fakeGateway struct {
	mu           sync.Mutex
	specialties  []availability.Specialty
	providers    map[string][]availability.Provider
	slots        map[string][]schedule.Slot
	errs         map[string]error
	gates        map[string]chan struct{}
	ignoreCancel bool
	calls        []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		specialties: []availability.Specialty{
			{ID: "1", Name: "Cardiologia"},
			{ID: "2", Name: "Dermatologia"},
			{ID: "3", Name: "Pediatria"},
		},
		providers: map[string][]availability.Provider{
			"1": {
				{ID: "10", FullName: "Ana Torres", SpecialtyID: "1"},
				{ID: "11", FullName: "Luis Paz", SpecialtyID: "1"},
			},
			"2": {
				{ID: "20", FullName: "Rosa Vega", SpecialtyID: "2"},
			},
		},
		slots: map[string][]schedule.Slot{},
		errs:  map[string]error{},
		gates: map[string]chan struct{}{},
	}
}

func (g *fakeGateway) setSlots(t *testing.T, providerID, date string, times ...string) {
	t.Helper()
	out := make([]schedule.Slot, 0, len(times))
	for _, s := range times {
		tod, err := schedule.ParseTimeOfDay(s)
		require.NoError(t, err)
		out = append(out, schedule.Slot{Time: tod, Available: true})
	}
	g.mu.Lock()
	g.slots[providerID+"|"+date] = out
	g.mu.Unlock()
}

func (g *fakeGateway) setErr(key string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.errs, key)
		return
	}
	g.errs[key] = err
}

func (g *fakeGateway) hold(key string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	gate := make(chan struct{})
	g.gates[key] = gate
	return gate
}

func (g *fakeGateway) enter(ctx context.Context, key string) error {
	g.mu.Lock()
	g.calls = append(g.calls, key)
	gate := g.gates[key]
	ignore := g.ignoreCancel
	err := g.errs[key]
	g.mu.Unlock()

	if gate != nil {
		if ignore {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}

func (g *fakeGateway) callCount(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == key {
			n++
		}
	}
	return n
}

func (g *fakeGateway) FetchSpecialties(ctx context.Context) ([]availability.Specialty, error) {
	if err := g.enter(ctx, "specialties"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]availability.Specialty(nil), g.specialties...), nil
}

func (g *fakeGateway) FetchProviders(ctx context.Context, specialtyID string) ([]availability.Provider, error) {
	if err := g.enter(ctx, "providers:"+specialtyID); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]availability.Provider(nil), g.providers[specialtyID]...), nil
}

func (g *fakeGateway) FetchSlots(ctx context.Context, providerID string, date schedule.Date) ([]schedule.Slot, error) {
	key := providerID + "|" + date.String()
	if err := g.enter(ctx, "slots:"+key); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]schedule.Slot(nil), g.slots[key]...), nil
}

type staleCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (s *staleCounter) ObserveStaleDrop(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts == nil {
		s.counts = map[string]int{}
	}
	s.counts[field]++
}

func (s *staleCounter) get(field string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[field]
}

// clinicNow is 14:30 on 2 March 2026.
var clinicNow = time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

const (
	today    = "2026-03-02"
	tomorrow = "2026-03-03"
)

type harness struct {
	c     *Controller
	gw    *fakeGateway
	clock *clock.Manual
	stale *staleCounter
}

func newHarness(t *testing.T, gw *fakeGateway, opts ...func(*Options)) *harness {
	t.Helper()
	h := &harness{gw: gw, clock: clock.NewManual(clinicNow), stale: &staleCounter{}}
	o := Options{ID: "form-test", Gateway: gw, Clock: h.clock, Metrics: h.stale}
	for _, fn := range opts {
		fn(&o)
	}
	c, err := New(o)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	h.c = c
	return h
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func (h *harness) idle(t *testing.T) FormState {
	t.Helper()
	ctx := testContext(t)
	require.NoError(t, h.c.WaitIdle(ctx))
	state, err := h.c.Snapshot(ctx)
	require.NoError(t, err)
	return state
}

func (h *harness) snapshot(t *testing.T) FormState {
	t.Helper()
	state, err := h.c.Snapshot(testContext(t))
	require.NoError(t, err)
	return state
}

// selectThroughDate drives the form to a chosen specialty, provider and date.
func (h *harness) selectThroughDate(t *testing.T, specialtyID, providerID, date string) FormState {
	t.Helper()
	ctx := testContext(t)
	h.idle(t)
	require.NoError(t, h.c.SpecialtyChanged(ctx, specialtyID))
	h.idle(t)
	require.NoError(t, h.c.ProviderChanged(ctx, providerID))
	require.NoError(t, h.c.DateChanged(ctx, date))
	return h.idle(t)
}

func values(opts []Option) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.Value)
	}
	return out
}
