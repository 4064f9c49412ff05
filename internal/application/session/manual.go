package session

import (
	"context"
	"time"

	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/internal/domain/study"
	"github.com/safe1124/studyhub/pkg/logger"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

// StartResult is returned by ManualTracker.Start.
type StartResult struct {
	Resumed            bool
	SessionStartTime   time.Time
	LegStartTime       time.Time
	AccumulatedMinutes int
}

// PauseResult is returned by ManualTracker.Pause.
type PauseResult struct {
	LegMinutes         int
	AccumulatedMinutes int
}

// SessionStatus is a read-only view of a user's manual session.
type SessionStatus struct {
	State              study.SessionState
	SessionStartTime   time.Time
	AccumulatedMinutes int
	ElapsedMinutes     int
	Legs               int
}

// ManualTracker drives Idle -> Active -> Paused -> Active -> ... -> Idle.
type ManualTracker struct {
	locks     userLocks
	sessions  registry[study.ActiveSession]
	completer *Completer
	events    shared.EventPublisher
	clock     timeutil.Clock
	logger    *logger.Logger
}

// NewManualTracker creates a ManualTracker.
func NewManualTracker(completer *Completer, events shared.EventPublisher, clock timeutil.Clock, log *logger.Logger) *ManualTracker {
	if events == nil {
		events = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ManualTracker{
		completer: completer,
		events:    events,
		clock:     clock,
		logger:    log.With(logger.Component("manual_session")),
	}
}

// Start opens a session when Idle or resumes it when Paused.
// Fails with ErrAlreadyActive when a leg is already running.
func (t *ManualTracker) Start(ctx context.Context, userID shared.UserID) (*StartResult, error) {
	if !userID.IsValid() {
		return nil, shared.NewDomainError("study", "Start", shared.ErrValidation, "invalid user ID")
	}

	unlock := t.locks.lock(userID)
	defer unlock()

	now := t.clock.Now()

	s, ok := t.sessions.get(userID)
	if !ok {
		s = study.StartSession(userID, now)
		t.sessions.put(userID, s)
		t.logger.Info("study session started", logger.UserID(userID.String()))
		t.publish(shared.NewStudyStartedEvent(userID.String(), string(study.SourceManual), now))
		return &StartResult{
			SessionStartTime: s.SessionStartTime,
			LegStartTime:     now,
		}, nil
	}

	if err := s.Resume(now); err != nil {
		return nil, err
	}
	t.logger.Info("study session resumed",
		logger.UserID(userID.String()),
		logger.Int("accumulated_minutes", s.AccumulatedMinutes),
	)
	t.publish(shared.NewStudyStartedEvent(userID.String(), string(study.SourceManual), now))
	return &StartResult{
		Resumed:            true,
		SessionStartTime:   s.SessionStartTime,
		LegStartTime:       now,
		AccumulatedMinutes: s.AccumulatedMinutes,
	}, nil
}

// Pause banks the running leg. Fails with ErrNotActive when Idle and
// ErrAlreadyPaused when Paused.
func (t *ManualTracker) Pause(ctx context.Context, userID shared.UserID) (*PauseResult, error) {
	unlock := t.locks.lock(userID)
	defer unlock()

	s, ok := t.sessions.get(userID)
	if !ok {
		return nil, shared.NewDomainError("study", "Pause", shared.ErrNotActive, "no study session to pause")
	}

	now := t.clock.Now()
	leg, err := s.Pause(now)
	if err != nil {
		return nil, err
	}

	t.logger.Info("study session paused",
		logger.UserID(userID.String()),
		logger.Int("leg_minutes", leg),
		logger.Int("accumulated_minutes", s.AccumulatedMinutes),
	)
	t.publish(shared.NewStudyEndedEvent(userID.String(), string(study.SourceManual), now))
	return &PauseResult{LegMinutes: leg, AccumulatedMinutes: s.AccumulatedMinutes}, nil
}

// Stop closes the session and credits it. Fails with ErrNotActive when Idle.
//
// The session is removed before the store is touched: whatever the store
// does, the user is Idle afterwards and the session is never put back.
func (t *ManualTracker) Stop(ctx context.Context, userID shared.UserID) (*CompletionResult, error) {
	unlock := t.locks.lock(userID)
	defer unlock()

	s, ok := t.sessions.get(userID)
	if !ok {
		return nil, shared.NewDomainError("study", "Stop", shared.ErrNotActive, "no study session to stop")
	}

	now := t.clock.Now()
	wasPaused := s.Paused
	total := s.Close(now)
	t.sessions.delete(userID)

	if !wasPaused {
		t.publish(shared.NewStudyEndedEvent(userID.String(), string(study.SourceManual), now))
	}

	return t.completer.Complete(ctx, Completion{
		UserID:  userID,
		Source:  study.SourceManual,
		Start:   s.SessionStartTime,
		End:     now,
		Minutes: total,
	})
}

// Status returns the user's session view. Idle users get State == StateIdle.
func (t *ManualTracker) Status(userID shared.UserID) SessionStatus {
	unlock := t.locks.lock(userID)
	defer unlock()

	s, ok := t.sessions.get(userID)
	if !ok {
		return SessionStatus{State: study.StateIdle}
	}
	snap := s.Snapshot()
	return SessionStatus{
		State:              snap.State(),
		SessionStartTime:   snap.SessionStartTime,
		AccumulatedMinutes: snap.AccumulatedMinutes,
		ElapsedMinutes:     snap.ElapsedMinutes(t.clock.Now()),
		Legs:               snap.Legs,
	}
}

// Open returns the number of open manual sessions.
func (t *ManualTracker) Open() int {
	return t.sessions.len()
}

// Discard drops every open session without crediting it. Called on shutdown;
// returns how many sessions were lost.
func (t *ManualTracker) Discard() int {
	n := 0
	t.sessions.each(func(userID shared.UserID, _ *study.ActiveSession) {
		unlock := t.locks.lock(userID)
		t.sessions.delete(userID)
		unlock()
		n++
	})
	if n > 0 {
		t.logger.Warn("discarded open study sessions without credit", logger.Int("count", n))
	}
	return n
}

func (t *ManualTracker) publish(event shared.Event) {
	if err := t.events.Publish(event); err != nil {
		t.logger.Warn("failed to publish event", logger.Err(err))
	}
}
