// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
package query

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/safe1124/studyhub/internal/domain/economy"
	"github.com/safe1124/studyhub/internal/domain/progression"
	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/internal/domain/study"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STATS QUERY
// The personal dashboard: period totals, level, tiers, wallet and equipment.
// Tiers are resolved on every read because the weekly part moves.
// ══════════════════════════════════════════════════════════════════════════════

// GetStatsQuery selects the user.
type GetStatsQuery struct {
	UserID string
}

// Validate checks the query.
func (q GetStatsQuery) Validate() error {
	if !shared.UserID(q.UserID).IsValid() {
		return shared.NewDomainError("study", "GetStats", shared.ErrValidation, "user_id is required")
	}
	return nil
}

// StatsDTO is the stats view.
type StatsDTO struct {
	UserID string `json:"user_id"`

	TodayMinutes int `json:"today_minutes"`
	WeekMinutes  int `json:"week_minutes"`
	MonthMinutes int `json:"month_minutes"`
	TotalMinutes int `json:"total_minutes"`

	// WeeklyAverage is minutes per elapsed day of the week, Monday counting as day 1.
	WeeklyAverage float64 `json:"weekly_average"`

	Level              int    `json:"level"`
	MinutesToNextLevel int    `json:"minutes_to_next_level"`
	LevelTier          string `json:"level_tier"`
	WeeklyTier         string `json:"weekly_tier"`
	Tier               string `json:"tier"`
	TierEmoji          string `json:"tier_emoji"`

	Balance       int    `json:"balance"`
	EquippedColor string `json:"equipped_color,omitempty"`
	EquippedTitle string `json:"equipped_title,omitempty"`
}

// GetStatsHandler handles GetStatsQuery.
type GetStatsHandler struct {
	records   study.RecordRepository
	progress  progression.Repository
	wallets   economy.WalletRepository
	inventory economy.InventoryRepository
	clock     timeutil.Clock
}

// NewGetStatsHandler creates a GetStatsHandler.
func NewGetStatsHandler(
	records study.RecordRepository,
	progress progression.Repository,
	wallets economy.WalletRepository,
	inventory economy.InventoryRepository,
	clock timeutil.Clock,
) *GetStatsHandler {
	return &GetStatsHandler{
		records:   records,
		progress:  progress,
		wallets:   wallets,
		inventory: inventory,
		clock:     clock,
	}
}

// Handle executes the query. The independent reads run concurrently.
func (h *GetStatsHandler) Handle(ctx context.Context, q GetStatsQuery) (*StatsDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	userID := shared.UserID(q.UserID)
	now := h.clock.Now()

	var (
		day, week, month, total int
		prog                    *progression.UserProgression
		wallet                  *economy.Wallet
		items                   []*economy.InventoryItem
	)

	g, gctx := errgroup.WithContext(ctx)
	period := func(p shared.Period, dst *int) {
		g.Go(func() error {
			n, err := h.records.TotalForPeriod(gctx, userID, study.CurrentKey(p, now))
			*dst = n
			return err
		})
	}
	period(shared.PeriodDay, &day)
	period(shared.PeriodWeek, &week)
	period(shared.PeriodMonth, &month)
	g.Go(func() error {
		n, err := h.records.TotalAllTime(gctx, userID)
		total = n
		return err
	})
	g.Go(func() error {
		p, err := h.progress.Get(gctx, userID)
		if shared.IsNotFound(err) {
			p, err = progression.NewUserProgression(userID, now), nil
		}
		prog = p
		return err
	})
	g.Go(func() error {
		w, err := h.wallets.Get(gctx, userID)
		if shared.IsNotFound(err) {
			w, err = economy.EmptyWallet(userID), nil
		}
		wallet = w
		return err
	})
	g.Go(func() error {
		list, err := h.inventory.List(gctx, userID)
		items = list
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, shared.Storage("study", "GetStats", err)
	}

	standing := progression.ComputeStanding(prog.Level, week)
	inv := economy.Inventory{UserID: userID, Items: items}

	dto := &StatsDTO{
		UserID:             userID.String(),
		TodayMinutes:       day,
		WeekMinutes:        week,
		MonthMinutes:       month,
		TotalMinutes:       total,
		WeeklyAverage:      weeklyAverage(week, timeutil.ISOWeekday(now)),
		Level:              standing.Level,
		MinutesToNextLevel: prog.MinutesToNextLevel(),
		LevelTier:          standing.LevelTier.String(),
		WeeklyTier:         standing.WeeklyTier.String(),
		Tier:               standing.DisplayTier.String(),
		TierEmoji:          standing.DisplayTier.Emoji(),
		Balance:            wallet.Balance,
	}
	if c := inv.Active(economy.CategoryColor); c != nil {
		dto.EquippedColor = c.Value
	}
	if t := inv.Active(economy.CategoryTitle); t != nil {
		dto.EquippedTitle = t.Value
	}
	return dto, nil
}

// weeklyAverage rounds to one decimal.
func weeklyAverage(weekMinutes, daysElapsed int) float64 {
	if daysElapsed <= 0 {
		daysElapsed = 1
	}
	return math.Round(float64(weekMinutes)/float64(daysElapsed)*10) / 10
}
