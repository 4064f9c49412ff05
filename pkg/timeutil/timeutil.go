// Package timeutil provides the reference timezone and calendar helpers for Study Hub.
// Every period key (day, ISO week, month) in the system is derived here, in one
// fixed zone, so that records written by different components always bucket the
// same way.
package timeutil

import (
	"fmt"
	"time"
)

// ReferenceTZ is the single zone used for all period keys (UTC+9, no DST).
// Configurable only through SetReference, which is meant to be called once at startup.
var ReferenceTZ = time.FixedZone("Asia/Seoul", 9*60*60)

// Key formats.
const (
	FormatDay   = "2006-01-02"
	FormatMonth = "2006-01"
	FormatTime  = "15:04"
)

// SetReference replaces the reference zone. Must be called before any clock is used.
func SetReference(name string, offset time.Duration) {
	ReferenceTZ = time.FixedZone(name, int(offset.Seconds()))
}

// ToReference converts t into the reference zone.
func ToReference(t time.Time) time.Time {
	return t.In(ReferenceTZ)
}

// Date creates midnight of the given date in the reference zone.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, ReferenceTZ)
}

// DateTime creates a time in the reference zone.
func DateTime(year, month, day, hour, min, sec int) time.Time {
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, ReferenceTZ)
}

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD KEYS
// ══════════════════════════════════════════════════════════════════════════════

// DayKey returns "YYYY-MM-DD" for t in the reference zone.
func DayKey(t time.Time) string {
	return ToReference(t).Format(FormatDay)
}

// WeekKey returns the ISO week key "YYYY-Www" for t in the reference zone.
// The year is the ISO week-numbering year, which differs from the calendar
// year around New Year (2024-12-30 is in 2025-W01).
func WeekKey(t time.Time) string {
	year, week := ToReference(t).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// MonthKey returns "YYYY-MM" for t in the reference zone.
func MonthKey(t time.Time) string {
	return ToReference(t).Format(FormatMonth)
}

// PeriodKeys bundles the three bucketing keys of a single instant.
type PeriodKeys struct {
	Day   string
	Week  string
	Month string
}

// KeysFor derives all period keys of t.
func KeysFor(t time.Time) PeriodKeys {
	return PeriodKeys{
		Day:   DayKey(t),
		Week:  WeekKey(t),
		Month: MonthKey(t),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BOUNDARIES
// ══════════════════════════════════════════════════════════════════════════════

// StartOfDay returns 00:00 of t's day in the reference zone.
func StartOfDay(t time.Time) time.Time {
	r := ToReference(t)
	return time.Date(r.Year(), r.Month(), r.Day(), 0, 0, 0, 0, ReferenceTZ)
}

// StartOfWeek returns Monday 00:00 of t's ISO week.
func StartOfWeek(t time.Time) time.Time {
	r := ToReference(t)
	return StartOfDay(r.AddDate(0, 0, -(ISOWeekday(r) - 1)))
}

// StartOfMonth returns the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	r := ToReference(t)
	return time.Date(r.Year(), r.Month(), 1, 0, 0, 0, 0, ReferenceTZ)
}

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func ISOWeekday(t time.Time) int {
	wd := int(ToReference(t).Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// IsSameDay reports whether a and b fall on the same reference day.
func IsSameDay(a, b time.Time) bool {
	return DayKey(a) == DayKey(b)
}

// ══════════════════════════════════════════════════════════════════════════════
// DURATIONS
// ══════════════════════════════════════════════════════════════════════════════

// WholeMinutes returns the number of complete minutes between from and to.
// Negative spans (clock skew) yield 0.
func WholeMinutes(from, to time.Time) int {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}

// CeilMinutes rounds d up to whole minutes. Used for "time remaining" displays.
func CeilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - 1) / time.Minute)
}

// FormatMinutes formats a minute count as "Hh Mm" (or "Mm" under an hour).
func FormatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
