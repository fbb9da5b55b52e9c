package exam

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitTick(t *testing.T, ticks <-chan int) int {
	t.Helper()
	select {
	case r := <-ticks:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
		return -1
	}
}

func TestTimerCountsDownAndExpiresOnce(t *testing.T) {
	clock := newFakeClock()
	ticks := make(chan int, 10)
	expired := make(chan struct{}, 10)

	timer := StartTimer(clock, 5, func(r int) { ticks <- r }, func() { expired <- struct{}{} })
	require.Equal(t, 5, timer.Remaining())

	var seen []int
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		seen = append(seen, waitTick(t, ticks))
	}
	assert.Equal(t, []int{4, 3, 2, 1, 0}, seen)

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("expiry not triggered")
	}

	// Further time passing must not trigger expiry again.
	clock.Advance(time.Second)
	clock.Advance(time.Second)
	select {
	case <-expired:
		t.Fatal("expiry triggered twice")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 0, timer.Remaining())
}

func TestTimerRemainingFollowsDeadline(t *testing.T) {
	clock := newFakeClock()
	ticks := make(chan int, 10)
	timer := StartTimer(clock, 60, func(r int) { ticks <- r }, func() {})
	defer timer.Stop()

	// A late tick reports the deadline-based value, not a decremented counter.
	clock.Advance(2500 * time.Millisecond)
	assert.Equal(t, 58, waitTick(t, ticks))
	assert.Equal(t, clock.Now().Add(57500*time.Millisecond), timer.Deadline())
}

func TestTimerStopPreventsCallbacks(t *testing.T) {
	clock := newFakeClock()
	ticks := make(chan int, 10)
	expired := make(chan struct{}, 1)
	timer := StartTimer(clock, 2, func(r int) { ticks <- r }, func() { expired <- struct{}{} })

	clock.Advance(time.Second)
	assert.Equal(t, 1, waitTick(t, ticks))

	timer.Stop()
	timer.Stop()
	clock.Advance(5 * time.Second)

	select {
	case <-expired:
		t.Fatal("expiry after Stop")
	case r := <-ticks:
		t.Fatalf("tick after Stop: %d", r)
	case <-time.After(50 * time.Millisecond):
	}
}
