package study

import (
	"strings"
	"time"

	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

// PresenceSession is an open passive session: the user is inside a study area.
type PresenceSession struct {
	UserID       shared.UserID
	AreaID       string
	LegStartTime time.Time
}

// Close returns the whole minutes spent in the area. Unlike manual sessions
// there is no one-minute floor: a result of 0 means no record is written.
func (p *PresenceSession) Close(now time.Time) int {
	return timeutil.WholeMinutes(p.LegStartTime, now)
}

// Area is a location on the chat platform (e.g. a voice channel).
type Area struct {
	ID   string
	Name string
}

// IsZero reports an absent area (the user is in no area at all).
func (a Area) IsZero() bool {
	return a.ID == ""
}

// AreaClassifier decides whether an area counts as a study area.
type AreaClassifier struct {
	keyword string
}

// NewAreaClassifier matches areas whose name contains keyword, case-insensitively.
func NewAreaClassifier(keyword string) AreaClassifier {
	return AreaClassifier{keyword: strings.ToLower(strings.TrimSpace(keyword))}
}

// IsStudyArea reports whether a is a designated study area.
func (c AreaClassifier) IsStudyArea(a Area) bool {
	if a.IsZero() || c.keyword == "" {
		return false
	}
	return strings.Contains(strings.ToLower(a.Name), c.keyword)
}

// PresenceTransition is what a location change means for presence tracking.
type PresenceTransition int

const (
	TransitionNone PresenceTransition = iota
	TransitionEnter
	TransitionLeave
	TransitionMove // leave one study area and enter another
)

// Classify maps a move from one area to another onto a presence transition.
func (c AreaClassifier) Classify(from, to Area) PresenceTransition {
	wasIn := c.IsStudyArea(from)
	isIn := c.IsStudyArea(to)

	switch {
	case !wasIn && isIn:
		return TransitionEnter
	case wasIn && !isIn:
		return TransitionLeave
	case wasIn && isIn && from.ID != to.ID:
		return TransitionMove
	}
	return TransitionNone
}
