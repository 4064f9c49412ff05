package command

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe1124/studyhub/internal/domain/economy"
	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/internal/infrastructure/persistence/memory"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturePublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

type economyFixture struct {
	clock    *timeutil.FakeClock
	store    *memory.Economy
	events   *capturePublisher
	purchase *PurchaseItemHandler
	equip    *EquipItemHandler
}

func newEconomyFixture(t *testing.T) *economyFixture {
	t.Helper()
	clock := timeutil.NewFakeClock(timeutil.DateTime(2024, 5, 15, 9, 0, 0))
	store := memory.NewEconomy(clock)
	events := &capturePublisher{}
	return &economyFixture{
		clock:    clock,
		store:    store,
		events:   events,
		purchase: NewPurchaseItemHandler(store.Wallets(), store.Inventory(), events, clock, nil),
		equip:    NewEquipItemHandler(store.Inventory(), events, clock, nil),
	}
}

func (f *economyFixture) fund(t *testing.T, userID shared.UserID, amount int) {
	t.Helper()
	_, err := f.store.Wallets().Credit(context.Background(), userID, amount)
	require.NoError(t, err)
}

func TestPurchaseItem(t *testing.T) {
	f := newEconomyFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", 1200)

	res, err := f.purchase.Handle(ctx, PurchaseItemCommand{UserID: "u1", ItemID: "red"})
	require.NoError(t, err)
	assert.Equal(t, 700, res.Balance)
	assert.Equal(t, economy.CategoryColor, res.Item.Category)

	items, err := f.store.Inventory().List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].IsActive)

	require.Len(t, f.events.events, 1)
	ev := f.events.events[0].(shared.ItemEvent)
	assert.Equal(t, shared.EventItemPurchased, ev.EventType())
	assert.Equal(t, "Role_Red", ev.Role)
}

func TestPurchaseItemErrors(t *testing.T) {
	f := newEconomyFixture(t)
	ctx := context.Background()

	_, err := f.purchase.Handle(ctx, PurchaseItemCommand{UserID: "u1", ItemID: "rainbow"})
	assert.ErrorIs(t, err, shared.ErrUnknownItem)

	// No wallet at all is a zero balance.
	_, err = f.purchase.Handle(ctx, PurchaseItemCommand{UserID: "u1", ItemID: "red"})
	assert.ErrorIs(t, err, shared.ErrInsufficientFunds)

	f.fund(t, "u1", 600)
	_, err = f.purchase.Handle(ctx, PurchaseItemCommand{UserID: "u1", ItemID: "red"})
	require.NoError(t, err)

	// Funds are checked before ownership.
	_, err = f.purchase.Handle(ctx, PurchaseItemCommand{UserID: "u1", ItemID: "red"})
	assert.ErrorIs(t, err, shared.ErrInsufficientFunds)

	f.fund(t, "u1", 1000)
	_, err = f.purchase.Handle(ctx, PurchaseItemCommand{UserID: "u1", ItemID: "red"})
	assert.ErrorIs(t, err, shared.ErrAlreadyOwned)

	w, err := f.store.Wallets().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1100, w.Balance)

	_, err = f.purchase.Handle(ctx, PurchaseItemCommand{UserID: "", ItemID: "red"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestConcurrentPurchasesDoNotOverdraw(t *testing.T) {
	f := newEconomyFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", 1000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"title_king", "title_hard"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.purchase.Handle(ctx, PurchaseItemCommand{UserID: "u1", ItemID: id})
		}(i, id)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, shared.ErrInsufficientFunds)
		}
	}
	assert.Equal(t, 1, ok)

	w, err := f.store.Wallets().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, w.Balance)
}

func TestEquipItemKeepsOneActivePerCategory(t *testing.T) {
	f := newEconomyFixture(t)
	ctx := context.Background()
	f.fund(t, "u1", 2500)

	for _, id := range []string{"title_king", "title_hard", "blue"} {
		_, err := f.purchase.Handle(ctx, PurchaseItemCommand{UserID: "u1", ItemID: id})
		require.NoError(t, err)
	}

	_, err := f.equip.Handle(ctx, EquipItemCommand{UserID: "u1", ItemID: "blue"})
	require.NoError(t, err)
	_, err = f.equip.Handle(ctx, EquipItemCommand{UserID: "u1", ItemID: "title_king"})
	require.NoError(t, err)
	_, err = f.equip.Handle(ctx, EquipItemCommand{UserID: "u1", ItemID: "title_hard"})
	require.NoError(t, err)

	items, err := f.store.Inventory().List(ctx, "u1")
	require.NoError(t, err)
	active := map[economy.ItemID]bool{}
	for _, it := range items {
		active[it.ItemID] = it.IsActive
	}
	assert.Equal(t, map[economy.ItemID]bool{
		economy.ItemTitleKing: false,
		economy.ItemTitleHard: true,
		economy.ItemBlue:      true,
	}, active)
}

func TestEquipItemErrors(t *testing.T) {
	f := newEconomyFixture(t)
	ctx := context.Background()

	_, err := f.equip.Handle(ctx, EquipItemCommand{UserID: "u1", ItemID: "green"})
	assert.ErrorIs(t, err, shared.ErrNotOwned)

	_, err = f.equip.Handle(ctx, EquipItemCommand{UserID: "u1", ItemID: "nope"})
	assert.ErrorIs(t, err, shared.ErrUnknownItem)
	assert.Empty(t, f.events.events)
}

func TestRecalculateLevels(t *testing.T) {
	clock := timeutil.NewFakeClock(timeutil.DateTime(2024, 5, 15, 9, 0, 0))
	progress := memory.NewProgressions(clock)
	ctx := context.Background()

	_, _, err := progress.Credit(ctx, "u1", 745)
	require.NoError(t, err)
	_, _, err = progress.Credit(ctx, "u2", 10)
	require.NoError(t, err)

	// Simulate a level stored under an older curve.
	require.NoError(t, progress.SetLevel(ctx, "u1", 120))

	h := NewRecalculateLevelsHandler(progress, clock, nil)

	dry, err := h.Handle(ctx, RecalculateLevelsCommand{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 2, dry.Scanned)
	require.Len(t, dry.Changed, 1)
	assert.Equal(t, LevelChange{UserID: "u1", OldLevel: 120, NewLevel: 150}, dry.Changed[0])

	row, err := progress.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 120, row.Level)

	res, err := h.Handle(ctx, RecalculateLevelsCommand{})
	require.NoError(t, err)
	assert.Len(t, res.Changed, 1)

	row, err = progress.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 150, row.Level)

	again, err := h.Handle(ctx, RecalculateLevelsCommand{})
	require.NoError(t, err)
	assert.Empty(t, again.Changed)
}
