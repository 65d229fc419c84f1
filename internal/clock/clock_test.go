package clock

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func waitForTimers(t *testing.T, fc *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := fc.BlockUntilContext(ctx, n); err != nil {
		t.Fatalf("waiting for %d timers: %v", n, err)
	}
}

func TestScheduleFiresAfterDelay(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rc := New(fc)
	fired := make(chan *Handle, 1)

	h := rc.Schedule(5*time.Second, func(h *Handle) { fired <- h })
	waitForTimers(t, fc, 1)

	fc.Advance(4 * time.Second)
	select {
	case <-fired:
		t.Fatal("action fired before its delay")
	case <-time.After(20 * time.Millisecond):
	}

	fc.Advance(time.Second)
	select {
	case got := <-fired:
		if got != h {
			t.Fatal("action received a different handle")
		}
	case <-time.After(time.Second):
		t.Fatal("action did not fire")
	}

	if rc.Pending() != nil {
		t.Fatal("slot should be empty after firing")
	}

	// cancelling after the fact is a no-op
	rc.Cancel(h)
}

func TestCancelPreventsAction(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rc := New(fc)
	fired := make(chan struct{}, 1)

	h := rc.Schedule(time.Second, func(*Handle) { fired <- struct{}{} })
	waitForTimers(t, fc, 1)

	rc.Cancel(h)
	rc.Cancel(h)
	fc.Advance(2 * time.Second)

	select {
	case <-fired:
		t.Fatal("cancelled action fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestScheduleReplacesPending(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rc := New(fc)
	fired := make(chan string, 2)

	rc.Schedule(time.Second, func(*Handle) { fired <- "first" })
	second := rc.Schedule(3*time.Second, func(*Handle) { fired <- "second" })
	waitForTimers(t, fc, 1)

	if rc.Pending() != second {
		t.Fatal("pending handle should be the latest one")
	}

	fc.Advance(3 * time.Second)
	select {
	case got := <-fired:
		if got != "second" {
			t.Fatalf("expected only the second action, got %s", got)
		}
	case <-time.After(time.Second):
		t.Fatal("second action did not fire")
	}

	select {
	case got := <-fired:
		t.Fatalf("unexpected extra action %s", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStopClearsSlot(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rc := New(fc)
	fired := make(chan struct{}, 1)

	rc.Schedule(time.Second, func(*Handle) { fired <- struct{}{} })
	rc.Stop()
	fc.Advance(time.Minute)

	if rc.Pending() != nil {
		t.Fatal("slot should be empty after Stop")
	}
	select {
	case <-fired:
		t.Fatal("stopped action fired")
	case <-time.After(50 * time.Millisecond):
	}
}
