// Package progression converts accumulated study minutes into levels and tiers.
// Everything here is pure: no I/O, no clock. The curve is steep early (5 minutes
// per level up to level 150) and flattens out to a cap of 250 at 2415 minutes.
package progression

const (
	// MinLevel is the level of a user with no recorded time.
	MinLevel = 1

	// MaxLevel is the level cap.
	MaxLevel = 250

	// CapMinutes is the cumulative total at which MaxLevel is reached.
	CapMinutes = 2415
)

// band is one linear segment of the level curve.
type band struct {
	startMinutes int
	rate         int // minutes per level
	startLevel   int
}

// curve lists the segments in ascending order. The segment after the last one
// is the cap at CapMinutes.
var curve = []band{
	{startMinutes: 0, rate: 5, startLevel: 1},
	{startMinutes: 745, rate: 6, startLevel: 150},
	{startMinutes: 805, rate: 7, startLevel: 160},
	{startMinutes: 875, rate: 9, startLevel: 170},
	{startMinutes: 965, rate: 10, startLevel: 180},
	{startMinutes: 1165, rate: 15, startLevel: 200},
	{startMinutes: 1315, rate: 20, startLevel: 210},
	{startMinutes: 1515, rate: 30, startLevel: 220},
}

// LevelForMinutes returns the level for a cumulative minute total.
// The result is non-decreasing in minutes and always within [MinLevel, MaxLevel].
func LevelForMinutes(minutes int) int {
	if minutes < curve[0].rate {
		return MinLevel
	}
	if minutes >= CapMinutes {
		return MaxLevel
	}

	for i := len(curve) - 1; i >= 0; i-- {
		b := curve[i]
		if minutes < b.startMinutes {
			continue
		}

		ceiling := MaxLevel
		if i+1 < len(curve) {
			ceiling = curve[i+1].startLevel - 1
		}

		level := b.startLevel + (minutes-b.startMinutes)/b.rate
		if level > ceiling {
			level = ceiling
		}
		return clampLevel(level)
	}
	return MinLevel
}

// MinutesForLevel returns the smallest cumulative total that reaches level.
// Levels outside [MinLevel, MaxLevel] are clamped.
func MinutesForLevel(level int) int {
	level = clampLevel(level)
	if level == MaxLevel {
		return CapMinutes
	}
	if level == MinLevel {
		return 0
	}

	for i := len(curve) - 1; i >= 0; i-- {
		b := curve[i]
		if level >= b.startLevel {
			return b.startMinutes + (level-b.startLevel)*b.rate
		}
	}
	return 0
}

// MinutesToNextLevel returns how many more minutes are needed to level up.
// It is 0 at the cap.
func MinutesToNextLevel(minutes int) int {
	level := LevelForMinutes(minutes)
	if level >= MaxLevel {
		return 0
	}
	next := MinutesForLevel(level + 1)
	if next <= minutes {
		return 0
	}
	return next - minutes
}

func clampLevel(level int) int {
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}
