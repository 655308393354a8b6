package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystem_UsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("clinic", -5*60*60)
	c := NewSystem(loc)

	now := c.Now()
	assert.Equal(t, loc, now.Location())
	assert.Equal(t, loc, c.Location())
	assert.WithinDuration(t, time.Now(), now, time.Second)
}

func TestSystem_NilLocationIsUTC(t *testing.T) {
	c := NewSystem(nil)
	assert.Equal(t, time.UTC, c.Now().Location())
}

func TestNewSystemInZone(t *testing.T) {
	c, err := NewSystemInZone("UTC")
	require.NoError(t, err)
	assert.Equal(t, "UTC", c.Location().String())

	_, err = NewSystemInZone("Not/AZone")
	assert.Error(t, err)
}

func TestManual_SetAndAdvance(t *testing.T) {
	start := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	c := NewManual(start)
	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), c.Now())

	later := start.AddDate(0, 0, 1)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}
