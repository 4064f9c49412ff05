package memory

import (
	"context"
	"sync"

	"github.com/safe1124/studyhub/internal/domain/economy"
	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

// Economy holds wallets and inventories behind one lock so that a purchase
// (debit + insert) is atomic, matching the postgres transaction.
type Economy struct {
	mu        sync.Mutex
	wallets   map[shared.UserID]economy.Wallet
	inventory map[shared.UserID][]economy.InventoryItem
	clock     timeutil.Clock
}

// NewEconomy creates an empty economy store.
func NewEconomy(clock timeutil.Clock) *Economy {
	return &Economy{
		wallets:   make(map[shared.UserID]economy.Wallet),
		inventory: make(map[shared.UserID][]economy.InventoryItem),
		clock:     clock,
	}
}

// Wallets returns the WalletRepository view.
func (e *Economy) Wallets() *Wallets { return &Wallets{e: e} }

// Inventory returns the InventoryRepository view.
func (e *Economy) Inventory() *Inventory { return &Inventory{e: e} }

// ══════════════════════════════════════════════════════════════════════════════
// WALLETS
// ══════════════════════════════════════════════════════════════════════════════

// Wallets implements economy.WalletRepository.
type Wallets struct{ e *Economy }

func (w *Wallets) Get(ctx context.Context, userID shared.UserID) (*economy.Wallet, error) {
	w.e.mu.Lock()
	defer w.e.mu.Unlock()

	row, ok := w.e.wallets[userID]
	if !ok {
		return nil, shared.NewDomainError("economy", "GetWallet", shared.ErrNotFound, "wallet not found")
	}
	return &row, nil
}

func (w *Wallets) Credit(ctx context.Context, userID shared.UserID, amount int) (*economy.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.Storage("economy", "Credit", err)
	}

	w.e.mu.Lock()
	defer w.e.mu.Unlock()

	row, ok := w.e.wallets[userID]
	if !ok {
		row = *economy.EmptyWallet(userID)
	}
	if err := row.Credit(amount, w.e.clock.Now()); err != nil {
		return nil, err
	}
	w.e.wallets[userID] = row
	return &row, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// INVENTORY
// ══════════════════════════════════════════════════════════════════════════════

// Inventory implements economy.InventoryRepository.
type Inventory struct{ e *Economy }

func (inv *Inventory) List(ctx context.Context, userID shared.UserID) ([]*economy.InventoryItem, error) {
	inv.e.mu.Lock()
	defer inv.e.mu.Unlock()

	rows := inv.e.inventory[userID]
	out := make([]*economy.InventoryItem, 0, len(rows))
	for i := range rows {
		cp := rows[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (inv *Inventory) Exists(ctx context.Context, userID shared.UserID, itemID economy.ItemID) (bool, error) {
	inv.e.mu.Lock()
	defer inv.e.mu.Unlock()
	return inv.e.indexOf(userID, itemID) >= 0, nil
}

func (inv *Inventory) Purchase(ctx context.Context, item *economy.InventoryItem, price int) (*economy.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.Storage("economy", "Purchase", err)
	}

	inv.e.mu.Lock()
	defer inv.e.mu.Unlock()

	w, ok := inv.e.wallets[item.UserID]
	if !ok {
		w = *economy.EmptyWallet(item.UserID)
	}
	if err := w.Debit(price, inv.e.clock.Now()); err != nil {
		return nil, err
	}
	if inv.e.indexOf(item.UserID, item.ItemID) >= 0 {
		return nil, shared.NewDomainError("economy", "Purchase", shared.ErrAlreadyOwned, "item already owned")
	}

	inv.e.wallets[item.UserID] = w
	inv.e.inventory[item.UserID] = append(inv.e.inventory[item.UserID], *item)
	return &w, nil
}

// Equip applies economy.Inventory.Equip to the stored rows in place. The
// category argument is implied by the owned row.
func (inv *Inventory) Equip(ctx context.Context, userID shared.UserID, itemID economy.ItemID, _ economy.Category) error {
	inv.e.mu.Lock()
	defer inv.e.mu.Unlock()

	rows := inv.e.inventory[userID]
	view := economy.Inventory{UserID: userID, Items: make([]*economy.InventoryItem, len(rows))}
	for i := range rows {
		view.Items[i] = &rows[i]
	}
	_, err := view.Equip(itemID)
	return err
}

func (e *Economy) indexOf(userID shared.UserID, itemID economy.ItemID) int {
	for i, it := range e.inventory[userID] {
		if it.ItemID == itemID {
			return i
		}
	}
	return -1
}
