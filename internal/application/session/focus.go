package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/internal/domain/study"
	"github.com/safe1124/studyhub/pkg/logger"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FOCUS TIMERS
// ══════════════════════════════════════════════════════════════════════════════

// FocusStartResult is returned by FocusTimers.Start.
type FocusStartResult struct {
	TimerID   string
	StartedAt time.Time
	Deadline  time.Time
}

// FocusStatus is a read-only view of a running timer.
type FocusStatus struct {
	Running          bool
	StartedAt        time.Time
	Deadline         time.Time
	Remaining        time.Duration
	RemainingMinutes int
}

// FocusTimers runs fixed-length focus timers, at most one per user.
//
// A timer ends exactly once: either by Stop or by its scheduled expiry. Both
// paths remove the session with compare-and-delete on the session pointer;
// the path that loses finds nothing to remove and does nothing.
type FocusTimers struct {
	locks     userLocks
	sessions  registry[study.FocusTimerSession]
	duration  time.Duration
	completer *Completer
	events    shared.EventPublisher
	clock     timeutil.Clock
	logger    *logger.Logger

	// expiryTimeout bounds the store calls made from the expiry callback,
	// which has no caller context.
	expiryTimeout time.Duration
}

// NewFocusTimers creates FocusTimers. A non-positive duration means the
// standard 25 minutes.
func NewFocusTimers(
	duration time.Duration,
	completer *Completer,
	events shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
) *FocusTimers {
	if duration <= 0 {
		duration = study.DefaultFocusDuration
	}
	if events == nil {
		events = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &FocusTimers{
		duration:      duration,
		completer:     completer,
		events:        events,
		clock:         clock,
		logger:        log.With(logger.Component("focus_timer")),
		expiryTimeout: 30 * time.Second,
	}
}

// Start begins a timer. If one is already running it fails with an error
// matching shared.ErrAlreadyRunning that wraps *study.TimerRunningError.
func (f *FocusTimers) Start(ctx context.Context, userID shared.UserID) (*FocusStartResult, error) {
	if !userID.IsValid() {
		return nil, shared.NewDomainError("focus", "Start", shared.ErrValidation, "invalid user ID")
	}

	unlock := f.locks.lock(userID)
	defer unlock()

	now := f.clock.Now()

	if existing, ok := f.sessions.get(userID); ok {
		return nil, shared.WrapError("focus", "Start", shared.ErrAlreadyRunning, "focus timer already running",
			&study.TimerRunningError{Remaining: existing.Remaining(now)})
	}

	s := &study.FocusTimerSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		StartTime: now,
		Deadline:  now.Add(f.duration),
	}
	// Registered before scheduling; the callback needs the user lock, which we hold.
	f.sessions.put(userID, s)
	s.Handle = f.clock.AfterFunc(f.duration, func() { f.expire(s) })

	f.logger.Info("focus timer started",
		logger.UserID(userID.String()),
		logger.String("timer_id", s.ID),
		logger.Time("deadline", s.Deadline),
	)
	f.publish(shared.NewStudyStartedEvent(userID.String(), string(study.SourceFocus), now))

	return &FocusStartResult{TimerID: s.ID, StartedAt: s.StartTime, Deadline: s.Deadline}, nil
}

// Stop ends the timer early and credits the elapsed whole minutes (at least
// one). Fails with ErrNotRunning when no timer exists.
func (f *FocusTimers) Stop(ctx context.Context, userID shared.UserID) (*CompletionResult, error) {
	unlock := f.locks.lock(userID)
	defer unlock()

	s, ok := f.sessions.get(userID)
	if !ok || !f.sessions.compareAndDelete(userID, s) {
		return nil, shared.NewDomainError("focus", "Stop", shared.ErrNotRunning, "no focus timer running")
	}
	if s.Handle != nil {
		s.Handle.Stop()
	}

	now := f.clock.Now()
	minutes := s.StoppedMinutes(now)
	f.publish(shared.NewStudyEndedEvent(userID.String(), string(study.SourceFocus), now))

	f.logger.Info("focus timer stopped early",
		logger.UserID(userID.String()),
		logger.String("timer_id", s.ID),
		logger.Minutes(minutes),
	)

	return f.completer.Complete(ctx, Completion{
		UserID:  userID,
		Source:  study.SourceFocus,
		Start:   s.StartTime,
		End:     now,
		Minutes: minutes,
	})
}

// expire is the scheduled completion of s.
func (f *FocusTimers) expire(s *study.FocusTimerSession) {
	unlock := f.locks.lock(s.UserID)
	defer unlock()

	if !f.sessions.compareAndDelete(s.UserID, s) {
		// Stopped (or replaced) before the deadline fired.
		return
	}

	f.publish(shared.NewStudyEndedEvent(s.UserID.String(), string(study.SourceFocus), s.Deadline))

	ctx, cancel := context.WithTimeout(context.Background(), f.expiryTimeout)
	defer cancel()

	minutes := s.FullMinutes()
	res, err := f.completer.Complete(ctx, Completion{
		UserID:  s.UserID,
		Source:  study.SourceFocus,
		Start:   s.StartTime,
		End:     s.Deadline,
		Minutes: minutes,
	})
	if res == nil {
		f.logger.Error("focus timer completion was not recorded",
			logger.UserID(s.UserID.String()),
			logger.String("timer_id", s.ID),
			logger.Err(err),
		)
		return
	}

	f.publish(shared.NewFocusTimerCompletedEvent(s.UserID.String(), minutes, res.Earned, s.Deadline))
}

// Status returns the user's timer view.
func (f *FocusTimers) Status(userID shared.UserID) FocusStatus {
	s, ok := f.sessions.get(userID)
	if !ok {
		return FocusStatus{}
	}
	remaining := s.Remaining(f.clock.Now())
	return FocusStatus{
		Running:          true,
		StartedAt:        s.StartTime,
		Deadline:         s.Deadline,
		Remaining:        remaining,
		RemainingMinutes: timeutil.CeilMinutes(remaining),
	}
}

// Open returns the number of running timers.
func (f *FocusTimers) Open() int {
	return f.sessions.len()
}

// Discard cancels every running timer without crediting it.
func (f *FocusTimers) Discard() int {
	n := 0
	f.sessions.each(func(userID shared.UserID, s *study.FocusTimerSession) {
		unlock := f.locks.lock(userID)
		if f.sessions.compareAndDelete(userID, s) {
			if s.Handle != nil {
				s.Handle.Stop()
			}
			n++
		}
		unlock()
	})
	if n > 0 {
		f.logger.Warn("discarded running focus timers without credit", logger.Int("count", n))
	}
	return n
}

func (f *FocusTimers) publish(event shared.Event) {
	if err := f.events.Publish(event); err != nil {
		f.logger.Warn("failed to publish event", logger.Err(err))
	}
}
