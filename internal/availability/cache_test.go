package availability

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/booking-cascade/internal/schedule"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

type countingGateway struct {
	specialtyCalls atomic.Int32
	providerCalls  atomic.Int32
	slotCalls      atomic.Int32
	release        chan struct{}
	providerGate   chan struct{}
	providers      []Provider
}

func (g *countingGateway) FetchSpecialties(ctx context.Context) ([]Specialty, error) {
	g.specialtyCalls.Add(1)
	if g.release != nil {
		<-g.release
	}
	return []Specialty{{ID: "1", Name: "Cardiologia"}}, nil
}

func (g *countingGateway) FetchProviders(ctx context.Context, specialtyID string) ([]Provider, error) {
	g.providerCalls.Add(1)
	if g.providerGate != nil {
		select {
		case <-g.providerGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.providers, nil
}

func (g *countingGateway) FetchSlots(ctx context.Context, providerID string, date schedule.Date) ([]schedule.Slot, error) {
	g.slotCalls.Add(1)
	return nil, nil
}

func TestCachedGateway_SpecialtiesServedFromRedis(t *testing.T) {
	client, mr := setupTestRedis(t)
	next := &countingGateway{}
	gw := NewCachedGateway(next, client, time.Minute, nil)
	ctx := context.Background()

	first, err := gw.FetchSpecialties(ctx)
	require.NoError(t, err)
	second, err := gw.FetchSpecialties(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, next.specialtyCalls.Load())
	assert.True(t, mr.Exists("catalog:specialties"))
	assert.Equal(t, time.Minute, mr.TTL("catalog:specialties"))

	mr.FastForward(2 * time.Minute)
	_, err = gw.FetchSpecialties(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, next.specialtyCalls.Load())
}

func TestCachedGateway_ProvidersFilteredBeforeCaching(t *testing.T) {
	client, mr := setupTestRedis(t)
	next := &countingGateway{providers: []Provider{
		{ID: "a", FullName: "Dr A", SpecialtyID: "1"},
		{ID: "b", FullName: "Dr B", SpecialtyID: "2"},
	}}
	gw := NewCachedGateway(next, client, time.Minute, nil)

	got, err := gw.FetchProviders(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, []Provider{{ID: "a", FullName: "Dr A", SpecialtyID: "1"}}, got)
	assert.True(t, mr.Exists("catalog:providers:1"))

	_, err = gw.FetchProviders(context.Background(), "1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, next.providerCalls.Load())
}

func TestCachedGateway_SlotsAreNeverCached(t *testing.T) {
	client, _ := setupTestRedis(t)
	next := &countingGateway{}
	gw := NewCachedGateway(next, client, time.Minute, nil)
	date := schedule.Date{Year: 2026, Month: 3, Day: 2}

	for i := 0; i < 3; i++ {
		_, err := gw.FetchSlots(context.Background(), "p", date)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, next.slotCalls.Load())
}

func TestCachedGateway_InvalidateForcesReload(t *testing.T) {
	client, mr := setupTestRedis(t)
	next := &countingGateway{}
	gw := NewCachedGateway(next, client, time.Minute, nil)
	ctx := context.Background()

	_, err := gw.FetchSpecialties(ctx)
	require.NoError(t, err)
	require.NoError(t, gw.Invalidate(ctx))
	assert.False(t, mr.Exists("catalog:specialties"))

	_, err = gw.FetchSpecialties(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, next.specialtyCalls.Load())
}

func TestCachedGateway_ConcurrentMissesCollapse(t *testing.T) {
	next := &countingGateway{release: make(chan struct{})}
	gw := NewCachedGateway(next, nil, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := gw.FetchSpecialties(context.Background())
			assert.NoError(t, err)
			assert.Len(t, got, 1)
		}()
	}
	require.Eventually(t, func() bool { return next.specialtyCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// Give the remaining callers time to join the in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(next.release)
	wg.Wait()

	assert.EqualValues(t, 1, next.specialtyCalls.Load())
}

func TestCachedGateway_CancelledCallerDoesNotFailJoinedCaller(t *testing.T) {
	want := []Provider{{ID: "a", FullName: "Dr A", SpecialtyID: "1"}}
	next := &countingGateway{providerGate: make(chan struct{}), providers: want}
	gw := NewCachedGateway(next, nil, time.Minute, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := gw.FetchProviders(ctxA, "1")
		errA <- err
	}()
	require.Eventually(t, func() bool { return next.providerCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		providers []Provider
		err       error
	}
	resB := make(chan result, 1)
	go func() {
		got, err := gw.FetchProviders(context.Background(), "1")
		resB <- result{got, err}
	}()
	// Give the second caller time to join the in-flight call.
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(next.providerGate)
	select {
	case got := <-resB:
		require.NoError(t, got.err)
		assert.Equal(t, want, got.providers)
	case <-time.After(time.Second):
		t.Fatal("joined caller never returned")
	}
	assert.EqualValues(t, 1, next.providerCalls.Load())
}

func TestCachedGateway_SharedCallIsBounded(t *testing.T) {
	next := &countingGateway{providerGate: make(chan struct{})}
	gw := NewCachedGateway(next, nil, time.Minute, nil).WithTimeout(20 * time.Millisecond)

	_, err := gw.FetchProviders(context.Background(), "1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCachedGateway_RedisDownFallsThrough(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close()
	next := &countingGateway{}
	gw := NewCachedGateway(next, client, time.Minute, nil)

	got, err := gw.FetchSpecialties(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
