package economy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe1124/studyhub/internal/domain/shared"
)

func TestCatalogIsComplete(t *testing.T) {
	items := Catalog()
	require.Len(t, items, 14)

	seen := map[ItemID]bool{}
	for _, it := range items {
		assert.False(t, seen[it.ID], "duplicate %s", it.ID)
		seen[it.ID] = true
		assert.True(t, it.Category.IsValid())
		assert.NotEmpty(t, it.Value)
		assert.NotEmpty(t, it.Role)
	}

	assert.Len(t, CatalogByCategory(CategoryColor), 8)
	assert.Len(t, CatalogByCategory(CategoryTitle), 6)
}

func TestCatalogPrices(t *testing.T) {
	for _, it := range CatalogByCategory(CategoryColor) {
		assert.Equal(t, 500, it.Price, it.ID)
	}
	for _, it := range CatalogByCategory(CategoryTitle) {
		assert.Equal(t, 1000, it.Price, it.ID)
	}

	purple, ok := Lookup(ItemPurple)
	require.True(t, ok)
	assert.Equal(t, "#9B59B6", purple.Value)

	_, ok = Lookup("rainbow")
	assert.False(t, ok)
}

func TestWalletCreditAndDebit(t *testing.T) {
	now := time.Now()
	w := EmptyWallet("u1")

	require.NoError(t, w.Credit(EarnedFor(5, CurrencyPerMinute), now))
	assert.Equal(t, 500, w.Balance)
	assert.Equal(t, 500, w.TotalEarned)

	require.NoError(t, w.Debit(ColorPrice, now))
	assert.Equal(t, 0, w.Balance)
	assert.Equal(t, 500, w.TotalEarned)

	err := w.Debit(1, now)
	assert.ErrorIs(t, err, shared.ErrInsufficientFunds)
	assert.Equal(t, 0, w.Balance)
}

func TestEarnedFor(t *testing.T) {
	assert.Equal(t, 2500, EarnedFor(25, 100))
	assert.Equal(t, 0, EarnedFor(0, 100))
	assert.Equal(t, 0, EarnedFor(-3, 100))
}

func TestInventoryEquipIsExclusivePerCategory(t *testing.T) {
	now := time.Now()
	inv := &Inventory{UserID: "u1", Items: []*InventoryItem{
		NewInventoryItem("u1", MustLookup(ItemTitleKing), now),
		NewInventoryItem("u1", MustLookup(ItemTitleFocus), now),
		NewInventoryItem("u1", MustLookup(ItemRed), now),
	}}

	_, err := inv.Equip(ItemRed)
	require.NoError(t, err)
	_, err = inv.Equip(ItemTitleKing)
	require.NoError(t, err)

	changed, err := inv.Equip(ItemTitleFocus)
	require.NoError(t, err)
	assert.Len(t, changed, 2)

	active := inv.Active(CategoryTitle)
	require.NotNil(t, active)
	assert.Equal(t, ItemTitleFocus, active.ItemID)

	count := 0
	for _, it := range inv.Items {
		if it.Category == CategoryTitle && it.IsActive {
			count++
		}
	}
	assert.Equal(t, 1, count)

	// Color untouched by title equip.
	assert.Equal(t, ItemRed, inv.Active(CategoryColor).ItemID)
}

func TestInventoryEquipNotOwned(t *testing.T) {
	inv := &Inventory{UserID: "u1"}

	_, err := inv.Equip(ItemBlue)
	assert.ErrorIs(t, err, shared.ErrNotOwned)
	assert.False(t, inv.Owns(ItemBlue))
}

func TestInventoryEquipTwiceIsNoChange(t *testing.T) {
	inv := &Inventory{UserID: "u1", Items: []*InventoryItem{
		NewInventoryItem("u1", MustLookup(ItemBlue), time.Now()),
	}}

	_, err := inv.Equip(ItemBlue)
	require.NoError(t, err)

	changed, err := inv.Equip(ItemBlue)
	require.NoError(t, err)
	assert.Empty(t, changed)
}
