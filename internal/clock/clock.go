// Package clock supplies the current instant in the clinic's time zone.
package clock

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata" // clinic zones must load in minimal images
)

// Clock reports the current instant.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock and converts it to a fixed location, so that
// "today" always means the clinic's calendar day.
type System struct {
	loc *time.Location
}

// NewSystem returns a wall clock in loc. A nil loc means UTC.
func NewSystem(loc *time.Location) *System {
	if loc == nil {
		loc = time.UTC
	}
	return &System{loc: loc}
}

// NewSystemInZone loads the named IANA zone.
func NewSystemInZone(name string) (*System, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("clock: load location %q: %w", name, err)
	}
	return NewSystem(loc), nil
}

// Now returns the current instant in the configured location.
func (s *System) Now() time.Time {
	return time.Now().In(s.loc)
}

// Location returns the zone used for calendar math.
func (s *System) Location() *time.Location {
	return s.loc
}

// Manual is a settable clock for tests and demos.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a clock frozen at now.
func NewManual(now time.Time) *Manual {
	return &Manual{now: now}
}

// Now returns the frozen instant.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
