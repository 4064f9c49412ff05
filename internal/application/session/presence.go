package session

import (
	"context"

	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/internal/domain/study"
	"github.com/safe1124/studyhub/pkg/logger"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRESENCE
// ══════════════════════════════════════════════════════════════════════════════

// PresenceOutcome reports what a location change did.
type PresenceOutcome struct {
	Transition study.PresenceTransition

	// Opened is true when a presence session was opened by this event.
	Opened bool

	// Completion is set when leaving produced a record.
	Completion *CompletionResult
}

// PresenceTracker opens a session when a user enters a study area and closes
// it on leave. It is independent of ManualTracker: both may be open for the
// same user and both credit.
type PresenceTracker struct {
	locks      userLocks
	sessions   registry[study.PresenceSession]
	classifier study.AreaClassifier
	completer  *Completer
	events     shared.EventPublisher
	clock      timeutil.Clock
	logger     *logger.Logger
}

// NewPresenceTracker creates a PresenceTracker.
func NewPresenceTracker(
	classifier study.AreaClassifier,
	completer *Completer,
	events shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
) *PresenceTracker {
	if events == nil {
		events = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &PresenceTracker{
		classifier: classifier,
		completer:  completer,
		events:     events,
		clock:      clock,
		logger:     log.With(logger.Component("presence")),
	}
}

// HandleMove processes a location change from one area to another. Either
// side may be the zero Area (not connected anywhere).
func (t *PresenceTracker) HandleMove(ctx context.Context, userID shared.UserID, from, to study.Area) (*PresenceOutcome, error) {
	transition := t.classifier.Classify(from, to)
	out := &PresenceOutcome{Transition: transition}

	switch transition {
	case study.TransitionEnter:
		out.Opened = t.Enter(userID, to.ID)
	case study.TransitionLeave:
		res, err := t.Leave(ctx, userID)
		out.Completion = res
		if err != nil {
			return out, err
		}
	case study.TransitionMove:
		res, err := t.Leave(ctx, userID)
		out.Completion = res
		out.Opened = t.Enter(userID, to.ID)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// Enter opens a presence session. Entering while already tracked is a no-op
// and returns false.
func (t *PresenceTracker) Enter(userID shared.UserID, areaID string) bool {
	if !userID.IsValid() {
		return false
	}

	unlock := t.locks.lock(userID)
	defer unlock()

	if _, ok := t.sessions.get(userID); ok {
		return false
	}

	now := t.clock.Now()
	t.sessions.put(userID, &study.PresenceSession{
		UserID:       userID,
		AreaID:       areaID,
		LegStartTime: now,
	})

	t.logger.Info("entered study area",
		logger.UserID(userID.String()),
		logger.String("area_id", areaID),
	)
	t.publish(shared.NewStudyStartedEvent(userID.String(), string(study.SourcePresence), now))
	return true
}

// Leave closes the presence session. Sessions shorter than one whole minute
// produce no record and return (nil, nil). Leaving without an open session is
// logged and ignored.
func (t *PresenceTracker) Leave(ctx context.Context, userID shared.UserID) (*CompletionResult, error) {
	unlock := t.locks.lock(userID)
	defer unlock()

	s, ok := t.sessions.get(userID)
	if !ok {
		t.logger.Warn("left study area without an open presence session", logger.UserID(userID.String()))
		return nil, nil
	}

	now := t.clock.Now()
	minutes := s.Close(now)
	t.sessions.delete(userID)
	t.publish(shared.NewStudyEndedEvent(userID.String(), string(study.SourcePresence), now))

	if minutes < 1 {
		t.logger.Debug("presence under one minute, not recorded", logger.UserID(userID.String()))
		return nil, nil
	}

	return t.completer.Complete(ctx, Completion{
		UserID:  userID,
		Source:  study.SourcePresence,
		Start:   s.LegStartTime,
		End:     now,
		Minutes: minutes,
	})
}

// IsTracked reports whether the user has an open presence session.
func (t *PresenceTracker) IsTracked(userID shared.UserID) bool {
	_, ok := t.sessions.get(userID)
	return ok
}

// Open returns the number of open presence sessions.
func (t *PresenceTracker) Open() int {
	return t.sessions.len()
}

// Discard drops every open presence session without crediting it.
func (t *PresenceTracker) Discard() int {
	n := 0
	t.sessions.each(func(userID shared.UserID, _ *study.PresenceSession) {
		unlock := t.locks.lock(userID)
		t.sessions.delete(userID)
		unlock()
		n++
	})
	if n > 0 {
		t.logger.Warn("discarded open presence sessions without credit", logger.Int("count", n))
	}
	return n
}

func (t *PresenceTracker) publish(event shared.Event) {
	if err := t.events.Publish(event); err != nil {
		t.logger.Warn("failed to publish event", logger.Err(err))
	}
}
