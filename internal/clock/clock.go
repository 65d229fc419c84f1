// Package clock provides the round clock: a single-slot, cancellable delayed
// action driven by a clockwork.Clock so tests can control time.
package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Handle identifies one scheduled action
type Handle struct {
	timer clockwork.Timer
	stop  chan struct{}
	once  sync.Once
}

func (h *Handle) cancel() {
	h.once.Do(func() {
		stopAndDrainTimer(h.timer)
		close(h.stop)
	})
}

// RoundClock holds at most one pending action at a time. Scheduling a new
// action cancels the previous one.
type RoundClock struct {
	clock   clockwork.Clock
	mu      sync.Mutex
	current *Handle
}

// New creates a round clock on the given time source
func New(clock clockwork.Clock) *RoundClock {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RoundClock{clock: clock}
}

// Now returns the current time of the underlying clock
func (c *RoundClock) Now() time.Time {
	return c.clock.Now()
}

// Schedule runs action after delay on its own goroutine, unless cancelled first.
// The action receives its own handle so callers can check it is still current.
func (c *RoundClock) Schedule(delay time.Duration, action func(h *Handle)) *Handle {
	h := &Handle{
		timer: c.clock.NewTimer(delay),
		stop:  make(chan struct{}),
	}

	c.replace(h)

	go func(h *Handle) {
		select {
		case <-h.timer.Chan():
			c.release(h)
			action(h)
		case <-h.stop:
		}
	}(h)

	return h
}

// Cancel stops h if it has not fired yet. Cancelling a fired or already
// cancelled handle is a no-op.
func (c *RoundClock) Cancel(h *Handle) {
	if h == nil {
		return
	}
	c.release(h)
	h.cancel()
}

// Stop cancels whatever action is pending
func (c *RoundClock) Stop() {
	c.mu.Lock()
	h := c.current
	c.current = nil
	c.mu.Unlock()

	if h != nil {
		h.cancel()
	}
}

// Pending returns the live handle, or nil when nothing is scheduled
func (c *RoundClock) Pending() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// replace installs h as the current handle and cancels the one it displaces
func (c *RoundClock) replace(h *Handle) {
	c.mu.Lock()
	prev := c.current
	c.current = h
	c.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}
}

// release clears the slot if h still occupies it
func (c *RoundClock) release(h *Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == h {
		c.current = nil
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
