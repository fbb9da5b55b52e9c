package exam

import (
	"math"
	"sync"
	"time"
)

// Clock abstracts wall time so countdowns can be driven deterministically.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker { return systemTicker{time.NewTicker(d)} }

type systemTicker struct{ t *time.Ticker }

func (t systemTicker) C() <-chan time.Time { return t.t.C }
func (t systemTicker) Stop()               { t.t.Stop() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Timer counts down from a fixed deadline at one-second resolution.
// Remaining time is always derived from the deadline, so a late tick never
// accumulates drift.
type Timer struct {
	clock    Clock
	deadline time.Time
	onTick   func(remaining int)
	onExpire func()

	expireOnce sync.Once

	mu      sync.Mutex
	stopped bool
	stop    chan struct{}
}

// StartTimer starts a countdown of seconds. onTick (optional) receives the
// remaining whole seconds after every tick; onExpire runs exactly once when
// the countdown reaches zero.
func StartTimer(clock Clock, seconds int, onTick func(remaining int), onExpire func()) *Timer {
	if clock == nil {
		clock = SystemClock
	}
	t := &Timer{
		clock:    clock,
		deadline: clock.Now().Add(time.Duration(seconds) * time.Second),
		onTick:   onTick,
		onExpire: onExpire,
		stop:     make(chan struct{}),
	}
	go t.run(clock.NewTicker(time.Second))
	return t
}

// Deadline returns the absolute time at which the countdown reaches zero.
func (t *Timer) Deadline() time.Time {
	return t.deadline
}

// Remaining returns the whole seconds left, rounded up, never negative.
func (t *Timer) Remaining() int {
	left := t.deadline.Sub(t.clock.Now())
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

// Stop cancels the countdown. No tick or expiry callback starts after Stop
// returns. Safe to call more than once and from inside a callback.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stopped {
		t.stopped = true
		close(t.stop)
	}
}

func (t *Timer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *Timer) run(ticker Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C():
			if t.isStopped() {
				return
			}
			remaining := t.Remaining()
			if t.onTick != nil {
				t.onTick(remaining)
			}
			if remaining > 0 {
				continue
			}
			if !t.isStopped() && t.onExpire != nil {
				t.expireOnce.Do(t.onExpire)
			}
			return
		}
	}
}
