package study

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

var t0 = timeutil.DateTime(2024, 5, 15, 10, 0, 0)

func TestActiveSessionLegsAccumulate(t *testing.T) {
	s := StartSession("u1", t0)
	assert.Equal(t, StateActive, s.State())

	leg, err := s.Pause(t0.Add(3 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, leg)
	assert.Equal(t, StatePaused, s.State())
	assert.Nil(t, s.LegStartTime)

	require.NoError(t, s.Resume(t0.Add(10*time.Minute)))
	assert.Equal(t, 2, s.Legs)

	total := s.Close(t0.Add(12 * time.Minute))
	assert.Equal(t, 5, total)
}

func TestActiveSessionShortLegsCountOneMinute(t *testing.T) {
	s := StartSession("u1", t0)

	leg, err := s.Pause(t0.Add(20 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, leg)

	require.NoError(t, s.Resume(t0.Add(time.Minute)))
	assert.Equal(t, 2, s.Close(t0.Add(time.Minute+10*time.Second)))
}

func TestActiveSessionCloseFloor(t *testing.T) {
	s := StartSession("u1", t0)
	assert.Equal(t, 1, s.Close(t0))
}

func TestActiveSessionCloseWhilePaused(t *testing.T) {
	s := StartSession("u1", t0)
	_, err := s.Pause(t0.Add(7 * time.Minute))
	require.NoError(t, err)

	// Time spent paused is not credited.
	assert.Equal(t, 7, s.Close(t0.Add(3*time.Hour)))
}

func TestActiveSessionInvalidTransitions(t *testing.T) {
	s := StartSession("u1", t0)

	err := s.Resume(t0)
	assert.ErrorIs(t, err, shared.ErrAlreadyActive)
	assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)

	_, err = s.Pause(t0.Add(time.Minute))
	require.NoError(t, err)

	_, err = s.Pause(t0.Add(2 * time.Minute))
	assert.ErrorIs(t, err, shared.ErrAlreadyPaused)
	assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
}

func TestActiveSessionSnapshotIsDetached(t *testing.T) {
	s := StartSession("u1", t0)
	snap := s.Snapshot()

	_, _ = s.Pause(t0.Add(time.Minute))

	assert.False(t, snap.Paused)
	require.NotNil(t, snap.LegStartTime)
	assert.Equal(t, t0, *snap.LegStartTime)
}

func TestPresenceCloseHasNoFloor(t *testing.T) {
	p := &PresenceSession{UserID: "u1", AreaID: "a1", LegStartTime: t0}

	assert.Equal(t, 0, p.Close(t0.Add(59*time.Second)))
	assert.Equal(t, 4, p.Close(t0.Add(4*time.Minute+30*time.Second)))
}

func TestAreaClassifier(t *testing.T) {
	c := NewAreaClassifier("study")

	study := Area{ID: "1", Name: "📚 Study Room"}
	study2 := Area{ID: "2", Name: "late-night-study"}
	lounge := Area{ID: "3", Name: "lounge"}

	assert.True(t, c.IsStudyArea(study))
	assert.False(t, c.IsStudyArea(lounge))
	assert.False(t, c.IsStudyArea(Area{}))

	assert.Equal(t, TransitionEnter, c.Classify(Area{}, study))
	assert.Equal(t, TransitionEnter, c.Classify(lounge, study))
	assert.Equal(t, TransitionLeave, c.Classify(study, Area{}))
	assert.Equal(t, TransitionMove, c.Classify(study, study2))
	assert.Equal(t, TransitionNone, c.Classify(study, study))
	assert.Equal(t, TransitionNone, c.Classify(lounge, Area{}))
}

func TestFocusTimerMinutes(t *testing.T) {
	f := &FocusTimerSession{UserID: "u1", StartTime: t0, Deadline: t0.Add(DefaultFocusDuration)}

	assert.Equal(t, 25, f.FullMinutes())
	assert.Equal(t, 1, f.StoppedMinutes(t0.Add(10*time.Second)))
	assert.Equal(t, 10, f.StoppedMinutes(t0.Add(10*time.Minute)))
	assert.Equal(t, 10, f.StoppedMinutes(t0.Add(10*time.Minute+59*time.Second)), "partial minutes are dropped")
	assert.Equal(t, 25, f.StoppedMinutes(t0.Add(40*time.Minute)))
	assert.Equal(t, 15*time.Minute, f.Remaining(t0.Add(10*time.Minute)))
	assert.Equal(t, time.Duration(0), f.Remaining(t0.Add(time.Hour)))
}

func TestTimerRunningError(t *testing.T) {
	var err error = &TimerRunningError{Remaining: 14*time.Minute + 5*time.Second}

	assert.ErrorIs(t, err, shared.ErrAlreadyRunning)

	var tre *TimerRunningError
	require.True(t, errors.As(err, &tre))
	assert.Equal(t, 15, tre.RemainingMinutes())
}

func TestNewStudyRecordDerivesKeysFromEnd(t *testing.T) {
	start := timeutil.DateTime(2024, 5, 19, 23, 50, 0)
	end := timeutil.DateTime(2024, 5, 20, 0, 10, 0)

	r, err := NewStudyRecord("u1", SourceManual, start, end, 20)
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "2024-05-20", r.DayKey)
	assert.Equal(t, "2024-W21", r.WeekKey)
	assert.Equal(t, "2024-05", r.MonthKey)
	assert.Equal(t, r.WeekKey, r.KeyFor(shared.PeriodWeek))
}

func TestNewStudyRecordValidation(t *testing.T) {
	_, err := NewStudyRecord("u1", SourceManual, t0, t0, 0)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewStudyRecord("", SourceManual, t0, t0, 1)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewStudyRecord("u1", Source("chat"), t0, t0, 1)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewStudyRecord("u1", SourceFocus, t0, t0.Add(-time.Minute), 1)
	assert.ErrorIs(t, err, shared.ErrValidation)
}
