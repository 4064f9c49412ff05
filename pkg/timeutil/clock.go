package timeutil

import (
	"sort"
	"sync"
	"time"
)

// Clock is the injectable time source. All session engines read time only
// through a Clock so that tests can drive the calendar deterministically.
type Clock interface {
	// Now returns the current instant in the reference zone.
	Now() time.Time

	// AfterFunc schedules f to run once after d. The returned Timer can cancel it.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop cancels the callback. It returns false if the callback already fired
	// or was already stopped.
	Stop() bool
}

// ══════════════════════════════════════════════════════════════════════════════
// SYSTEM CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// SystemClock is the wall clock.
type SystemClock struct{}

// NewSystemClock returns the wall clock.
func NewSystemClock() SystemClock {
	return SystemClock{}
}

// Now returns time.Now in the reference zone.
func (SystemClock) Now() time.Time {
	return time.Now().In(ReferenceTZ)
}

// AfterFunc wraps time.AfterFunc.
func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ══════════════════════════════════════════════════════════════════════════════
// FAKE CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// FakeClock is a manually advanced clock. Scheduled callbacks fire
// synchronously inside Advance, in deadline order, once the clock passes
// their deadline.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

// NewFakeClock creates a fake clock starting at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start.In(ReferenceTZ)}
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set jumps the clock without firing timers.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.In(ReferenceTZ)
	c.mu.Unlock()
}

// AfterFunc registers f to fire when the clock is advanced past now+d.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{clock: c, deadline: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d and fires every due timer.
// Callbacks run without the clock lock held, so they may call Now.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now

	var due, pending []*fakeTimer
	for _, t := range c.timers {
		if !t.deadline.After(now) {
			due = append(due, t)
		} else {
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, t := range due {
		if t.markFired() {
			t.fn()
		}
	}
}

// PendingTimers returns the number of scheduled, unfired, unstopped callbacks.
func (c *FakeClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.isDone() {
			n++
		}
	}
	return n
}

type fakeTimer struct {
	clock    *FakeClock
	deadline time.Time
	fn       func()

	mu   sync.Mutex
	done bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

func (t *fakeTimer) markFired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

func (t *fakeTimer) isDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}
