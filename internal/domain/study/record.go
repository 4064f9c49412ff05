// Package study contains the session aggregates and the append-only record
// ledger. Session types here are plain state holders: they compute minutes and
// enforce transitions, but never touch storage or timers. Serialization per
// user is the caller's job.
package study

import (
	"time"

	"github.com/google/uuid"

	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

// Source says which state machine produced a record.
type Source string

const (
	SourceManual   Source = "manual"
	SourcePresence Source = "presence"
	SourceFocus    Source = "focus"
)

// IsValid checks the source is known.
func (s Source) IsValid() bool {
	switch s {
	case SourceManual, SourcePresence, SourceFocus:
		return true
	}
	return false
}

// StudyRecord is one immutable row of the ledger. Period keys are derived from
// EndTime: a session that crosses midnight counts toward the day it ended.
type StudyRecord struct {
	ID        string
	UserID    shared.UserID
	Source    Source
	StartTime time.Time
	EndTime   time.Time
	Minutes   int
	DayKey    string
	WeekKey   string
	MonthKey  string
}

// NewStudyRecord builds a record and derives its period keys.
// Minutes must be at least 1; zero-minute sessions are never written.
func NewStudyRecord(userID shared.UserID, source Source, start, end time.Time, minutes int) (*StudyRecord, error) {
	if !userID.IsValid() {
		return nil, shared.NewDomainError("study", "NewStudyRecord", shared.ErrValidation, "invalid user ID")
	}
	if !source.IsValid() {
		return nil, shared.NewDomainError("study", "NewStudyRecord", shared.ErrValidation, "invalid source")
	}
	if minutes < 1 {
		return nil, shared.NewDomainError("study", "NewStudyRecord", shared.ErrValidation, "record must be at least one minute")
	}
	if end.Before(start) {
		return nil, shared.NewDomainError("study", "NewStudyRecord", shared.ErrValidation, "end before start")
	}

	keys := timeutil.KeysFor(end)
	return &StudyRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Source:    source,
		StartTime: start,
		EndTime:   end,
		Minutes:   minutes,
		DayKey:    keys.Day,
		WeekKey:   keys.Week,
		MonthKey:  keys.Month,
	}, nil
}

// KeyFor returns the record's key for the given period.
func (r *StudyRecord) KeyFor(p shared.Period) string {
	switch p {
	case shared.PeriodDay:
		return r.DayKey
	case shared.PeriodWeek:
		return r.WeekKey
	case shared.PeriodMonth:
		return r.MonthKey
	}
	return ""
}

// CurrentKey returns the key of period p at instant now.
func CurrentKey(p shared.Period, now time.Time) shared.PeriodKey {
	keys := timeutil.KeysFor(now)
	switch p {
	case shared.PeriodDay:
		return shared.PeriodKey{Period: p, Key: keys.Day}
	case shared.PeriodWeek:
		return shared.PeriodKey{Period: p, Key: keys.Week}
	default:
		return shared.PeriodKey{Period: shared.PeriodMonth, Key: keys.Month}
	}
}

// UserTotal is one row of a period ranking.
type UserTotal struct {
	UserID  shared.UserID
	Minutes int
}
