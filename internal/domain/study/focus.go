package study

import (
	"fmt"
	"time"

	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

// DefaultFocusDuration is the length of one focus ("pomodoro") timer.
const DefaultFocusDuration = 25 * time.Minute

// FocusTimerSession is a running focus timer. Handle cancels the scheduled
// automatic completion; the session's presence in the owner's map is what
// decides which of stop/expire wins, not the handle.
type FocusTimerSession struct {
	ID        string
	UserID    shared.UserID
	StartTime time.Time
	Deadline  time.Time
	Handle    timeutil.Timer
}

// Remaining is the time left until the deadline (never negative).
func (f *FocusTimerSession) Remaining(now time.Time) time.Duration {
	d := f.Deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// StoppedMinutes is the credit for a manual stop: whole elapsed minutes,
// at least one, never more than the full duration.
func (f *FocusTimerSession) StoppedMinutes(now time.Time) int {
	full := f.FullMinutes()
	m := timeutil.WholeMinutes(f.StartTime, now)
	if m < 1 {
		m = 1
	}
	if m > full {
		m = full
	}
	return m
}

// FullMinutes is the credit for automatic completion.
func (f *FocusTimerSession) FullMinutes() int {
	return int(f.Deadline.Sub(f.StartTime) / time.Minute)
}

// TimerRunningError is returned by a second timer start. It carries the
// remaining time of the timer that is already running.
type TimerRunningError struct {
	Remaining time.Duration
}

func (e *TimerRunningError) Error() string {
	return fmt.Sprintf("focus timer already running, %d min remaining", timeutil.CeilMinutes(e.Remaining))
}

// Is makes errors.Is(err, shared.ErrAlreadyRunning) hold.
func (e *TimerRunningError) Is(target error) bool {
	return target == shared.ErrAlreadyRunning
}

// RemainingMinutes is the remaining time rounded up.
func (e *TimerRunningError) RemainingMinutes() int {
	return timeutil.CeilMinutes(e.Remaining)
}
