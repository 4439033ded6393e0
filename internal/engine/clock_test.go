package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/nback/internal/testutil"
)

func TestTimerSlot_FiresWithCurrentGeneration(t *testing.T) {
	clk := testutil.NewFakeClock(time.Time{})
	var slot timerSlot

	var got []bool
	slot.arm(clk, time.Second, func(gen uint64) {
		got = append(got, slot.current(gen))
	})
	assert.True(t, slot.pending())

	clk.Advance(time.Second)
	assert.Equal(t, []bool{true}, got)
}

func TestTimerSlot_RearmInvalidatesPrevious(t *testing.T) {
	clk := testutil.NewFakeClock(time.Time{})
	var slot timerSlot

	var fired []string
	slot.arm(clk, time.Second, func(uint64) { fired = append(fired, "first") })
	slot.arm(clk, 2*time.Second, func(uint64) { fired = append(fired, "second") })

	assert.Equal(t, 1, clk.Pending(), "arm stops the outstanding timer")
	clk.Advance(3 * time.Second)
	assert.Equal(t, []string{"second"}, fired)
}

func TestTimerSlot_StopMakesLateCallbackStale(t *testing.T) {
	var slot timerSlot
	clk := testutil.NewFakeClock(time.Time{})

	var captured uint64
	slot.arm(clk, time.Second, func(gen uint64) { captured = gen })
	gen := slot.gen

	slot.stop()
	assert.False(t, slot.pending())
	assert.False(t, slot.current(gen), "a callback already in flight sees a newer generation")

	clk.Advance(time.Minute)
	assert.Zero(t, captured)
}

func TestTimerSlot_Release(t *testing.T) {
	clk := testutil.NewFakeClock(time.Time{})
	var slot timerSlot

	slot.arm(clk, time.Second, func(gen uint64) {
		if slot.current(gen) {
			slot.release()
		}
	})
	clk.Advance(time.Second)

	assert.False(t, slot.pending())
	slot.stop() // no timer left to stop
	assert.False(t, slot.pending())
}
