package study

import (
	"time"

	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

// SessionState is the state of the manual session state machine.
type SessionState string

const (
	StateIdle   SessionState = "idle"
	StateActive SessionState = "active"
	StatePaused SessionState = "paused"
)

// ActiveSession is an open manual session. It exists only while the user is
// Active or Paused; Idle is represented by the absence of a session.
type ActiveSession struct {
	UserID             shared.UserID
	SessionStartTime   time.Time
	LegStartTime       *time.Time // nil while paused
	AccumulatedMinutes int
	Paused             bool
	Legs               int
}

// StartSession opens a new manual session with its first leg at now.
func StartSession(userID shared.UserID, now time.Time) *ActiveSession {
	leg := now
	return &ActiveSession{
		UserID:           userID,
		SessionStartTime: now,
		LegStartTime:     &leg,
		Legs:             1,
	}
}

// State reports Active or Paused.
func (s *ActiveSession) State() SessionState {
	if s.Paused {
		return StatePaused
	}
	return StateActive
}

// legMinutes is the credited length of the current leg: whole minutes, but at least one.
func (s *ActiveSession) legMinutes(now time.Time) int {
	if s.LegStartTime == nil {
		return 0
	}
	m := timeutil.WholeMinutes(*s.LegStartTime, now)
	if m < 1 {
		m = 1
	}
	return m
}

// Resume starts a new leg. Fails with ErrAlreadyActive when not paused.
func (s *ActiveSession) Resume(now time.Time) error {
	if !s.Paused {
		return shared.NewDomainError("study", "Start", shared.ErrAlreadyActive, "study session is already running")
	}
	leg := now
	s.LegStartTime = &leg
	s.Paused = false
	s.Legs++
	return nil
}

// Pause banks the current leg. Fails with ErrAlreadyPaused when paused.
func (s *ActiveSession) Pause(now time.Time) (legMinutes int, err error) {
	if s.Paused {
		return 0, shared.NewDomainError("study", "Pause", shared.ErrAlreadyPaused, "study session is already paused")
	}
	legMinutes = s.legMinutes(now)
	s.AccumulatedMinutes += legMinutes
	s.LegStartTime = nil
	s.Paused = true
	return legMinutes, nil
}

// Close computes the final total of the session: banked minutes plus the
// running leg, floored at one minute. The session must be discarded afterwards.
func (s *ActiveSession) Close(now time.Time) int {
	total := s.AccumulatedMinutes
	if !s.Paused {
		total += s.legMinutes(now)
	}
	if total < 1 {
		total = 1
	}
	return total
}

// ElapsedMinutes is the minute total the session would be credited if it were
// stopped at now, without mutating it. Used for status views.
func (s *ActiveSession) ElapsedMinutes(now time.Time) int {
	total := s.AccumulatedMinutes
	if !s.Paused && s.LegStartTime != nil {
		total += timeutil.WholeMinutes(*s.LegStartTime, now)
	}
	return total
}

// Snapshot returns a copy that is safe to hand outside the owning lock.
func (s *ActiveSession) Snapshot() ActiveSession {
	cp := *s
	if s.LegStartTime != nil {
		leg := *s.LegStartTime
		cp.LegStartTime = &leg
	}
	return cp
}
