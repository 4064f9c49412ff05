package progression

import (
	"time"

	"github.com/safe1124/studyhub/internal/domain/shared"
)

// UserProgression is the persistent progression aggregate of one user.
// CumulativeMinutes only grows. Level is derived from it and stored for
// ordering leaderboards; it is rewritten on every credit.
type UserProgression struct {
	UserID            shared.UserID
	CumulativeMinutes int
	Level             int
	TotalSessions     int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewUserProgression creates the zero-time progression of a user.
func NewUserProgression(userID shared.UserID, now time.Time) *UserProgression {
	return &UserProgression{
		UserID:    userID,
		Level:     MinLevel,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Credit adds minutes from one completed session and recomputes the level.
// It returns the level before the credit.
func (p *UserProgression) Credit(minutes int, now time.Time) (oldLevel int, err error) {
	if minutes < 0 {
		return p.Level, shared.NewDomainError("progression", "Credit", shared.ErrValidation, "minutes cannot be negative")
	}
	oldLevel = p.Level
	p.CumulativeMinutes += minutes
	p.TotalSessions++
	p.Level = LevelForMinutes(p.CumulativeMinutes)
	p.UpdatedAt = now
	return oldLevel, nil
}

// Recalculate re-derives the level from the cumulative total. It reports
// whether the stored level was stale.
func (p *UserProgression) Recalculate(now time.Time) bool {
	level := LevelForMinutes(p.CumulativeMinutes)
	if level == p.Level {
		return false
	}
	p.Level = level
	p.UpdatedAt = now
	return true
}

// MinutesToNextLevel is the remaining distance to the next level.
func (p *UserProgression) MinutesToNextLevel() int {
	return MinutesToNextLevel(p.CumulativeMinutes)
}

// Standing is the tier breakdown shown to a user. It is always computed on
// read because the weekly component moves during the week.
type Standing struct {
	Level       int
	LevelTier   Tier
	WeeklyTier  Tier
	DisplayTier Tier
}

// ComputeStanding resolves the displayed tier from a level and this week's minutes.
func ComputeStanding(level, weekMinutes int) Standing {
	lt := TierByLevel(level)
	wt := TierByWeeklyMinutes(weekMinutes)
	return Standing{
		Level:       level,
		LevelTier:   lt,
		WeeklyTier:  wt,
		DisplayTier: ResolveTier(lt, wt),
	}
}
