package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe1124/studyhub/internal/domain/economy"
	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/internal/domain/study"
	"github.com/safe1124/studyhub/internal/infrastructure/persistence/memory"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

type fixture struct {
	clock    *timeutil.FakeClock
	records  *memory.Records
	progress *memory.Progressions
	economy  *memory.Economy
}

// Wednesday 15 May 2024, 09:00 reference time.
func newFixture() *fixture {
	clock := timeutil.NewFakeClock(timeutil.DateTime(2024, 5, 15, 9, 0, 0))
	return &fixture{
		clock:    clock,
		records:  memory.NewRecords(),
		progress: memory.NewProgressions(clock),
		economy:  memory.NewEconomy(clock),
	}
}

// record appends a record ending at end and credits it like a completed session.
func (f *fixture) record(t *testing.T, userID shared.UserID, end time.Time, minutes int) {
	t.Helper()
	ctx := context.Background()
	rec, err := study.NewStudyRecord(userID, study.SourceManual, end.Add(-time.Duration(minutes)*time.Minute), end, minutes)
	require.NoError(t, err)
	require.NoError(t, f.records.Append(ctx, rec))
	_, _, err = f.progress.Credit(ctx, userID, minutes)
	require.NoError(t, err)
	_, err = f.economy.Wallets().Credit(ctx, userID, minutes*economy.CurrencyPerMinute)
	require.NoError(t, err)
}

func TestGetStats(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.record(t, "u1", timeutil.DateTime(2024, 5, 15, 8, 30, 0), 30)
	f.record(t, "u1", timeutil.DateTime(2024, 5, 13, 20, 0, 0), 20)
	f.record(t, "u1", timeutil.DateTime(2024, 5, 2, 20, 0, 0), 10)
	f.record(t, "u1", timeutil.DateTime(2024, 4, 30, 20, 0, 0), 5)
	f.record(t, "u2", timeutil.DateTime(2024, 5, 15, 8, 0, 0), 40)

	inv := f.economy.Inventory()
	_, err := inv.Purchase(ctx, economy.NewInventoryItem("u1", economy.MustLookup(economy.ItemBlue), f.clock.Now()), 500)
	require.NoError(t, err)
	require.NoError(t, inv.Equip(ctx, "u1", economy.ItemBlue, economy.CategoryColor))

	h := NewGetStatsHandler(f.records, f.progress, f.economy.Wallets(), inv, f.clock)
	stats, err := h.Handle(ctx, GetStatsQuery{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, 30, stats.TodayMinutes)
	assert.Equal(t, 50, stats.WeekMinutes)
	assert.Equal(t, 60, stats.MonthMinutes)
	assert.Equal(t, 65, stats.TotalMinutes)
	assert.Equal(t, 16.7, stats.WeeklyAverage)

	assert.Equal(t, 14, stats.Level)
	assert.Equal(t, 5, stats.MinutesToNextLevel)
	assert.Equal(t, "Bronze 4", stats.LevelTier)
	assert.Equal(t, "Silver 5", stats.WeeklyTier)
	assert.Equal(t, "Silver 5", stats.Tier)

	assert.Equal(t, 6000, stats.Balance)
	assert.Equal(t, "#0000FF", stats.EquippedColor)
	assert.Empty(t, stats.EquippedTitle)
}

func TestGetStatsForNewUser(t *testing.T) {
	f := newFixture()
	h := NewGetStatsHandler(f.records, f.progress, f.economy.Wallets(), f.economy.Inventory(), f.clock)

	stats, err := h.Handle(context.Background(), GetStatsQuery{UserID: "newbie"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Level)
	assert.Equal(t, "Bronze 5", stats.Tier)
	assert.Zero(t, stats.Balance)
	assert.Equal(t, 5, stats.MinutesToNextLevel)

	_, err = h.Handle(context.Background(), GetStatsQuery{})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestGetPeriodRanking(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.record(t, "a", timeutil.DateTime(2024, 5, 15, 8, 0, 0), 30)
	f.record(t, "b", timeutil.DateTime(2024, 5, 14, 8, 0, 0), 60)
	f.record(t, "c", timeutil.DateTime(2024, 5, 3, 8, 0, 0), 90)
	f.record(t, "d", timeutil.DateTime(2024, 5, 15, 7, 0, 0), 30)

	h := NewGetPeriodRankingHandler(f.records, f.clock)

	day, err := h.Handle(ctx, GetPeriodRankingQuery{Period: "day"})
	require.NoError(t, err)
	require.Len(t, day.Entries, 2)
	assert.Equal(t, "2024-05-15", day.Key)
	// Ties fall back to user ID.
	assert.Equal(t, "a", day.Entries[0].UserID)
	assert.Equal(t, "🥇", day.Entries[0].Medal)
	assert.Empty(t, day.Entries[0].WeeklyTier)

	month, err := h.Handle(ctx, GetPeriodRankingQuery{Period: "month", Limit: 2})
	require.NoError(t, err)
	require.Len(t, month.Entries, 2)
	assert.Equal(t, "c", month.Entries[0].UserID)
	assert.Equal(t, "Bronze 5", month.Entries[0].WeeklyTier)
	assert.Equal(t, "b", month.Entries[1].UserID)
	assert.Equal(t, "Silver 5", month.Entries[1].WeeklyTier)

	_, err = h.Handle(ctx, GetPeriodRankingQuery{Period: "year"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestGetLevelLeaderboard(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	end := f.clock.Now()

	f.record(t, "a", end, 100)
	f.record(t, "b", end, 102)
	f.record(t, "c", end, 50)

	h := NewGetLevelLeaderboardHandler(f.progress)
	lb, err := h.Handle(ctx, GetLevelLeaderboardQuery{UserID: "c"})
	require.NoError(t, err)

	require.Len(t, lb.Entries, 3)
	// a and b share level 21; b has more minutes.
	assert.Equal(t, "b", lb.Entries[0].UserID)
	assert.Equal(t, 1, lb.Entries[0].Rank)
	assert.Equal(t, "a", lb.Entries[1].UserID)
	assert.Equal(t, 1, lb.Entries[1].Rank)
	assert.Equal(t, 3, lb.Entries[2].Rank)

	require.NotNil(t, lb.Me)
	assert.Equal(t, 3, lb.Me.Rank)
	assert.Equal(t, 11, lb.Me.Level)

	lb, err = h.Handle(ctx, GetLevelLeaderboardQuery{UserID: "ghost"})
	require.NoError(t, err)
	assert.Nil(t, lb.Me)
}

func TestWalletInventoryAndShop(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	w, err := NewGetWalletHandler(f.economy.Wallets()).Handle(ctx, GetWalletQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, WalletDTO{UserID: "u1"}, *w)

	f.record(t, "u1", f.clock.Now(), 20)
	_, err = f.economy.Inventory().Purchase(ctx,
		economy.NewInventoryItem("u1", economy.MustLookup(economy.ItemTitleKing), f.clock.Now()), 1000)
	require.NoError(t, err)

	w, err = NewGetWalletHandler(f.economy.Wallets()).Handle(ctx, GetWalletQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 1000, w.Balance)
	assert.Equal(t, 2000, w.TotalEarned)

	inv, err := NewGetInventoryHandler(f.economy.Inventory()).Handle(ctx, GetInventoryQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, inv.Colors)
	require.Len(t, inv.Titles, 1)
	assert.Equal(t, "title_king", inv.Titles[0].ItemID)
	assert.False(t, inv.Titles[0].IsActive)

	shop, err := NewListShopHandler(f.economy.Inventory()).Handle(ctx, ListShopQuery{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, shop, len(economy.Catalog()))
	assert.Equal(t, "red", shop[0].ItemID)
	assert.Equal(t, 500, shop[0].Price)
	owned := 0
	for _, item := range shop {
		if item.Owned {
			owned++
			assert.Equal(t, "title_king", item.ItemID)
		}
	}
	assert.Equal(t, 1, owned)
}

func TestGetStudyingNow(t *testing.T) {
	tracker := memory.NewStudyingNow()
	ctx := context.Background()
	require.NoError(t, tracker.MarkStudying(ctx, "u1", study.SourceFocus))

	dto, err := NewGetStudyingNowHandler(tracker).Handle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dto.Count)
	assert.Equal(t, []string{"focus"}, dto.Users[0].Sources)
}
