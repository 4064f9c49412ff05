package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/internal/domain/study"
)

// ═══════════════════════════════════════════════════════════════════════════
// STUDYING NOW MIRROR
// Keeps the studying-now read model in step with session start/end events.
// The session engines stay authoritative; a failed update only makes the
// view stale until the next event for that user.
// ═══════════════════════════════════════════════════════════════════════════

// StudyingNowMirror applies study.started / study.ended to a tracker.
// Events for one user must arrive in publish order, so it is registered on a
// synchronous bus.
type StudyingNowMirror struct {
	tracker study.StudyingNowTracker
	logger  *slog.Logger
	timeout time.Duration
}

// NewStudyingNowMirror creates the mirror.
func NewStudyingNowMirror(tracker study.StudyingNowTracker, logger *slog.Logger) *StudyingNowMirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &StudyingNowMirror{
		tracker: tracker,
		logger:  logger.With("handler", "studying_now_mirror"),
		timeout: 3 * time.Second,
	}
}

// Register subscribes to both event types.
func (m *StudyingNowMirror) Register(bus shared.EventSubscriber) error {
	if err := bus.Subscribe(shared.EventStudyStarted, m.Handle); err != nil {
		return err
	}
	return bus.Subscribe(shared.EventStudyEnded, m.Handle)
}

// Handle implements shared.EventHandler.
func (m *StudyingNowMirror) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	userID := shared.UserID(event.AggregateID())

	var err error
	switch e := event.(type) {
	case shared.StudyStartedEvent:
		err = m.tracker.MarkStudying(ctx, userID, study.Source(e.Source))
	case shared.StudyEndedEvent:
		err = m.tracker.MarkStopped(ctx, userID, study.Source(e.Source))
	default:
		return nil
	}

	if err != nil {
		m.logger.Warn("studying-now update failed",
			"event_type", event.EventType(),
			"user_id", userID,
			"error", err,
		)
	}
	return err
}
