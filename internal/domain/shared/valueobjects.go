package shared

import (
	"strings"
	"unicode"
)

// ═══════════════════════════════════════════════════════════════════════════
// UserID Value Object
// ═══════════════════════════════════════════════════════════════════════════

// UserID identifies a community member. It is the opaque ID assigned by the
// chat platform (for example a numeric snowflake), never a display name.
type UserID string

const maxUserIDLength = 64

// IsValid checks that the ID is non-empty, bounded and has no whitespace.
func (u UserID) IsValid() bool {
	if u == "" || len(u) > maxUserIDLength {
		return false
	}
	for _, r := range string(u) {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID validates and creates a UserID.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.TrimSpace(id))
	if !uid.IsValid() {
		return "", NewDomainError("shared", "NewUserID", ErrValidation, "invalid user ID")
	}
	return uid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Period Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Period selects the bucket a StudyRecord aggregate is computed over.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// IsValid checks if the period is one of the known buckets.
func (p Period) IsValid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return true
	}
	return false
}

// ParsePeriod parses "day", "week" or "month" (also "today", "weekly", "monthly").
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "today", "daily":
		return PeriodDay, nil
	case "week", "weekly":
		return PeriodWeek, nil
	case "month", "monthly":
		return PeriodMonth, nil
	}
	return "", NewDomainError("shared", "ParsePeriod", ErrValidation, "period must be day, week or month")
}

// PeriodKey pairs a Period with the concrete key it selects, e.g. week "2024-W20".
type PeriodKey struct {
	Period Period
	Key    string
}

// ═══════════════════════════════════════════════════════════════════════════
// Ranking Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Rank is a 1-based leaderboard position. Zero means unranked.
type Rank int

// Medal returns a medal emoji for the podium.
func (r Rank) Medal() string {
	switch r {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return ""
	}
}
