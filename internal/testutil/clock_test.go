package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClock_StartsAtEpoch(t *testing.T) {
	c := NewFakeClock(time.Time{})
	assert.Equal(t, Epoch, c.Now())

	start := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, start, NewFakeClock(start).Now())
}

func TestFakeClock_AdvanceMovesTime(t *testing.T) {
	c := NewFakeClock(time.Time{})
	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, Epoch.Add(1500*time.Millisecond), c.Now())
}

func TestFakeClock_FiresInDueOrder(t *testing.T) {
	c := NewFakeClock(time.Time{})
	var order []string

	c.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	c.AfterFunc(time.Second, func() { order = append(order, "a") })
	c.AfterFunc(2*time.Second, func() { order = append(order, "b") })

	c.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, 1, c.Pending())

	c.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Zero(t, c.Pending())
}

func TestFakeClock_TiesFireInScheduleOrder(t *testing.T) {
	c := NewFakeClock(time.Time{})
	var order []int
	for i := range 5 {
		c.AfterFunc(time.Second, func() { order = append(order, i) })
	}

	c.Advance(time.Second)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestFakeClock_NowInsideCallbackIsDueTime(t *testing.T) {
	c := NewFakeClock(time.Time{})
	var seen time.Time
	c.AfterFunc(700*time.Millisecond, func() { seen = c.Now() })

	c.Advance(5 * time.Second)
	assert.Equal(t, Epoch.Add(700*time.Millisecond), seen)
	assert.Equal(t, Epoch.Add(5*time.Second), c.Now())
}

func TestFakeClock_ChainedTimersFireWithinOneAdvance(t *testing.T) {
	c := NewFakeClock(time.Time{})
	var fired []time.Duration

	var tick func()
	tick = func() {
		fired = append(fired, c.Now().Sub(Epoch))
		c.AfterFunc(time.Second, tick)
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(3500 * time.Millisecond)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, fired)

	d, ok := c.NextDue()
	require.True(t, ok)
	assert.Equal(t, 500*time.Millisecond, d)
}

func TestFakeClock_Stop(t *testing.T) {
	c := NewFakeClock(time.Time{})
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(time.Minute)
	assert.False(t, fired)

	_, ok := c.NextDue()
	assert.False(t, ok)
}

func TestFakeClock_StopAfterFire(t *testing.T) {
	c := NewFakeClock(time.Time{})
	timer := c.AfterFunc(time.Second, func() {})
	c.Advance(time.Second)
	assert.False(t, timer.Stop())
}

func TestFakeClock_CallbackMayStopOtherTimer(t *testing.T) {
	c := NewFakeClock(time.Time{})
	fired := false
	later := c.AfterFunc(2*time.Second, func() { fired = true })
	c.AfterFunc(time.Second, func() { later.Stop() })

	c.Advance(3 * time.Second)
	assert.False(t, fired)
}
