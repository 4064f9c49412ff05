package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe1124/studyhub/internal/domain/economy"
	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/internal/domain/study"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

func record(t *testing.T, user shared.UserID, end time.Time, minutes int) *study.StudyRecord {
	t.Helper()
	r, err := study.NewStudyRecord(user, study.SourceManual, end.Add(-time.Duration(minutes)*time.Minute), end, minutes)
	require.NoError(t, err)
	return r
}

func TestRecordsPeriodTotals(t *testing.T) {
	ctx := context.Background()
	store := NewRecords()

	mon := timeutil.DateTime(2024, 5, 13, 9, 0, 0)
	wed := timeutil.DateTime(2024, 5, 15, 9, 0, 0)
	nextMon := timeutil.DateTime(2024, 5, 20, 9, 0, 0)

	require.NoError(t, store.Append(ctx, record(t, "u1", mon, 10)))
	require.NoError(t, store.Append(ctx, record(t, "u1", wed, 20)))
	require.NoError(t, store.Append(ctx, record(t, "u1", nextMon, 40)))
	require.NoError(t, store.Append(ctx, record(t, "u2", wed, 5)))

	week, err := store.TotalForPeriod(ctx, "u1", study.CurrentKey(shared.PeriodWeek, wed))
	require.NoError(t, err)
	assert.Equal(t, 30, week)

	day, err := store.TotalForPeriod(ctx, "u1", study.CurrentKey(shared.PeriodDay, wed))
	require.NoError(t, err)
	assert.Equal(t, 20, day)

	month, err := store.TotalForPeriod(ctx, "u1", study.CurrentKey(shared.PeriodMonth, wed))
	require.NoError(t, err)
	assert.Equal(t, 70, month)

	all, err := store.TotalAllTime(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 70, all)
}

func TestRecordsTopForPeriod(t *testing.T) {
	ctx := context.Background()
	store := NewRecords()
	at := timeutil.DateTime(2024, 5, 15, 9, 0, 0)

	require.NoError(t, store.Append(ctx, record(t, "b", at, 30)))
	require.NoError(t, store.Append(ctx, record(t, "a", at, 30)))
	require.NoError(t, store.Append(ctx, record(t, "c", at, 50)))
	require.NoError(t, store.Append(ctx, record(t, "c", at, 1)))

	top, err := store.TopForPeriod(ctx, study.CurrentKey(shared.PeriodDay, at), 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, study.UserTotal{UserID: "c", Minutes: 51}, top[0])
	assert.Equal(t, study.UserTotal{UserID: "a", Minutes: 30}, top[1])
}

func TestRecordsTopForPeriodDefaultLimit(t *testing.T) {
	ctx := context.Background()
	store := NewRecords()
	at := timeutil.DateTime(2024, 5, 15, 9, 0, 0)

	for _, u := range []shared.UserID{"a", "b", "c", "d", "e", "f", "g"} {
		require.NoError(t, store.Append(ctx, record(t, u, at, 10)))
	}

	for _, limit := range []int{0, -1} {
		top, err := store.TopForPeriod(ctx, study.CurrentKey(shared.PeriodDay, at), limit)
		require.NoError(t, err)
		assert.Len(t, top, study.DefaultTopLimit, "limit %d", limit)
	}
}

func TestRecordsListByUserNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewRecords()
	at := timeutil.DateTime(2024, 5, 15, 9, 0, 0)

	first := record(t, "u1", at, 1)
	second := record(t, "u1", at.Add(time.Hour), 2)
	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, second))

	rows, err := store.ListByUser(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, second.ID, rows[0].ID)
}

func TestProgressionsCreditCreatesAndLevels(t *testing.T) {
	ctx := context.Background()
	clock := timeutil.NewFakeClock(timeutil.DateTime(2024, 5, 15, 9, 0, 0))
	store := NewProgressions(clock)

	_, err := store.Get(ctx, "u1")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	row, old, err := store.Credit(ctx, "u1", 744)
	require.NoError(t, err)
	assert.Equal(t, 1, old)
	assert.Equal(t, 149, row.Level)

	row, old, err = store.Credit(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, 149, old)
	assert.Equal(t, 150, row.Level)
	assert.Equal(t, 2, row.TotalSessions)

	above, err := store.CountAboveLevel(ctx, 149)
	require.NoError(t, err)
	assert.Equal(t, 1, above)
}

func TestEconomyPurchaseAndEquip(t *testing.T) {
	ctx := context.Background()
	clock := timeutil.NewFakeClock(timeutil.DateTime(2024, 5, 15, 9, 0, 0))
	store := NewEconomy(clock)
	wallets, inv := store.Wallets(), store.Inventory()

	_, err := wallets.Credit(ctx, "u1", 1200)
	require.NoError(t, err)

	red := economy.MustLookup(economy.ItemRed)
	w, err := inv.Purchase(ctx, economy.NewInventoryItem("u1", red, clock.Now()), red.Price)
	require.NoError(t, err)
	assert.Equal(t, 700, w.Balance)
	assert.Equal(t, 1200, w.TotalEarned)

	_, err = inv.Purchase(ctx, economy.NewInventoryItem("u1", red, clock.Now()), red.Price)
	assert.ErrorIs(t, err, shared.ErrAlreadyOwned)

	king := economy.MustLookup(economy.ItemTitleKing)
	_, err = inv.Purchase(ctx, economy.NewInventoryItem("u1", king, clock.Now()), king.Price)
	assert.ErrorIs(t, err, shared.ErrInsufficientFunds)

	err = inv.Equip(ctx, "u1", economy.ItemTitleKing, economy.CategoryTitle)
	assert.ErrorIs(t, err, shared.ErrNotOwned)

	require.NoError(t, inv.Equip(ctx, "u1", economy.ItemRed, economy.CategoryColor))
	items, err := inv.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsActive)
}

func TestEconomyEquipSwitchesWithinCategory(t *testing.T) {
	ctx := context.Background()
	clock := timeutil.NewFakeClock(timeutil.DateTime(2024, 5, 15, 9, 0, 0))
	store := NewEconomy(clock)
	wallets, inv := store.Wallets(), store.Inventory()

	_, err := wallets.Credit(ctx, "u1", 2000)
	require.NoError(t, err)
	for _, id := range []economy.ItemID{economy.ItemRed, economy.ItemBlue, economy.ItemTitleKing} {
		item := economy.MustLookup(id)
		_, err := inv.Purchase(ctx, economy.NewInventoryItem("u1", item, clock.Now()), item.Price)
		require.NoError(t, err)
	}

	require.NoError(t, inv.Equip(ctx, "u1", economy.ItemRed, economy.CategoryColor))
	require.NoError(t, inv.Equip(ctx, "u1", economy.ItemTitleKing, economy.CategoryTitle))
	require.NoError(t, inv.Equip(ctx, "u1", economy.ItemBlue, economy.CategoryColor))

	items, err := inv.List(ctx, "u1")
	require.NoError(t, err)
	active := map[economy.ItemID]bool{}
	for _, it := range items {
		active[it.ItemID] = it.IsActive
	}
	assert.Equal(t, map[economy.ItemID]bool{
		economy.ItemRed:       false,
		economy.ItemBlue:      true,
		economy.ItemTitleKing: true,
	}, active)
}

func TestStudyingNow(t *testing.T) {
	ctx := context.Background()
	s := NewStudyingNow()

	require.NoError(t, s.MarkStudying(ctx, "u1", study.SourceManual))
	require.NoError(t, s.MarkStudying(ctx, "u1", study.SourcePresence))
	require.NoError(t, s.MarkStudying(ctx, "u2", study.SourceFocus))
	require.NoError(t, s.MarkStopped(ctx, "u2", study.SourceFocus))

	list, err := s.ListStudying(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, shared.UserID("u1"), list[0].UserID)
	assert.Equal(t, []study.Source{study.SourceManual, study.SourcePresence}, list[0].Sources)
}
