package progression

import "fmt"

// Tier is a closed enumeration of rank labels. The numeric order IS the total
// rank order: a larger value always outranks a smaller one.
type Tier int

const (
	Bronze5 Tier = iota
	Bronze4
	Bronze3
	Bronze2
	Bronze1
	Silver5
	Silver4
	Silver3
	Silver2
	Silver1
	Gold5
	Gold4
	Gold3
	Gold2
	Gold1
	Platinum5
	Platinum4
	Platinum3
	Platinum2
	Platinum1
	Diamond5
	Diamond4
	Diamond3
	Diamond2
	Diamond1
	Master5
	Master4
	Master3
	Master2
	Master1
	GrandMaster5
	GrandMaster4
	GrandMaster3
	GrandMaster2
	GrandMaster1
	Champion
	Challenger

	tierCount = int(Challenger) + 1
)

// Family is the tier name without its division.
type Family string

const (
	FamilyBronze      Family = "Bronze"
	FamilySilver      Family = "Silver"
	FamilyGold        Family = "Gold"
	FamilyPlatinum    Family = "Platinum"
	FamilyDiamond     Family = "Diamond"
	FamilyMaster      Family = "Master"
	FamilyGrandMaster Family = "Grand Master"
	FamilyChampion    Family = "Champion"
	FamilyChallenger  Family = "Challenger"
)

// IsValid reports whether t is a member of the enumeration.
func (t Tier) IsValid() bool {
	return t >= Bronze5 && t <= Challenger
}

// Rank is t's position in the total order, 0 for Bronze 5.
func (t Tier) Rank() int {
	return int(t)
}

// Family returns the tier family.
func (t Tier) Family() Family {
	switch {
	case t >= Bronze5 && t <= Bronze1:
		return FamilyBronze
	case t >= Silver5 && t <= Silver1:
		return FamilySilver
	case t >= Gold5 && t <= Gold1:
		return FamilyGold
	case t >= Platinum5 && t <= Platinum1:
		return FamilyPlatinum
	case t >= Diamond5 && t <= Diamond1:
		return FamilyDiamond
	case t >= Master5 && t <= Master1:
		return FamilyMaster
	case t >= GrandMaster5 && t <= GrandMaster1:
		return FamilyGrandMaster
	case t == Champion:
		return FamilyChampion
	case t == Challenger:
		return FamilyChallenger
	}
	panic(fmt.Sprintf("progression: unknown tier %d", int(t)))
}

// Division returns 5 (lowest) through 1 (highest), or 0 for single-division
// tiers (Champion, Challenger).
func (t Tier) Division() int {
	if t == Champion || t == Challenger {
		return 0
	}
	return 5 - int(t)%5
}

// String returns the display name, e.g. "Gold 3" or "Challenger".
func (t Tier) String() string {
	if !t.IsValid() {
		return fmt.Sprintf("Tier(%d)", int(t))
	}
	if d := t.Division(); d > 0 {
		return fmt.Sprintf("%s %d", t.Family(), d)
	}
	return string(t.Family())
}

// Emoji returns the badge shown next to the tier name.
func (t Tier) Emoji() string {
	switch t.Family() {
	case FamilyBronze:
		return "🥉"
	case FamilySilver:
		return "🥈"
	case FamilyGold:
		return "🥇"
	case FamilyPlatinum:
		return "💠"
	case FamilyDiamond:
		return "💎"
	case FamilyMaster:
		return "🔮"
	case FamilyGrandMaster:
		return "🌟"
	case FamilyChampion:
		return "🏆"
	case FamilyChallenger:
		return "👑"
	}
	return ""
}

// AllTiers returns every tier from lowest to highest.
func AllTiers() []Tier {
	tiers := make([]Tier, 0, tierCount)
	for t := Bronze5; t <= Challenger; t++ {
		tiers = append(tiers, t)
	}
	return tiers
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASSIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// TierByLevel classifies a cumulative level.
//
//	1–200    Bronze..Platinum, 10 levels per division
//	201–225  Diamond, 5 levels per division
//	226–238  Master, 3 levels per division (Master 1 is level 238 only)
//	239–244  Champion
//	245+     Challenger
func TierByLevel(level int) Tier {
	level = clampLevel(level)

	switch {
	case level >= 245:
		return Challenger
	case level >= 239:
		return Champion
	case level >= 226:
		div := (level - 226) / 3
		if div > 4 {
			div = 4
		}
		return Master5 + Tier(div)
	case level >= 201:
		return Diamond5 + Tier((level-201)/5)
	default:
		// 20 divisions of 10 levels: Bronze 5 (1–10) .. Platinum 1 (191–200)
		return Bronze5 + Tier((level-1)/10)
	}
}

// weeklyCutoff is the minimum weekly minute total for a tier.
type weeklyCutoff struct {
	minutes int
	tier    Tier
}

// weeklyLadder is in ascending order. Grand Master exists only on this ladder
// and Champion only on the level ladder.
var weeklyLadder = []weeklyCutoff{
	{0, Bronze5}, {10, Bronze4}, {20, Bronze3}, {30, Bronze2}, {40, Bronze1},
	{50, Silver5}, {70, Silver4}, {90, Silver3}, {110, Silver2}, {130, Silver1},
	{150, Gold5}, {180, Gold4}, {210, Gold3}, {240, Gold2}, {270, Gold1},
	{300, Platinum5}, {340, Platinum4}, {380, Platinum3}, {420, Platinum2}, {460, Platinum1},
	{500, Diamond5}, {550, Diamond4}, {600, Diamond3}, {650, Diamond2}, {700, Diamond1},
	{750, Master5}, {800, Master4}, {850, Master3}, {900, Master2}, {950, Master1},
	{1000, GrandMaster5}, {1040, GrandMaster4}, {1080, GrandMaster3}, {1120, GrandMaster2}, {1160, GrandMaster1},
	{1200, Challenger},
}

// TierByWeeklyMinutes classifies the minutes studied in the current ISO week.
func TierByWeeklyMinutes(weekMinutes int) Tier {
	tier := Bronze5
	for _, c := range weeklyLadder {
		if weekMinutes < c.minutes {
			break
		}
		tier = c.tier
	}
	return tier
}

// NextWeeklyCutoff returns the next weekly tier and how many minutes remain to
// reach it. ok is false at the top of the ladder.
func NextWeeklyCutoff(weekMinutes int) (next Tier, remaining int, ok bool) {
	for _, c := range weeklyLadder {
		if weekMinutes < c.minutes {
			return c.tier, c.minutes - weekMinutes, true
		}
	}
	return Challenger, 0, false
}

// ResolveTier returns the higher-ranked of the level tier and the weekly tier.
func ResolveTier(levelTier, weekTier Tier) Tier {
	if weekTier.Rank() > levelTier.Rank() {
		return weekTier
	}
	return levelTier
}
