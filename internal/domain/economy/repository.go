package economy

import (
	"context"

	"github.com/safe1124/studyhub/internal/domain/shared"
)

// WalletRepository persists wallets.
type WalletRepository interface {
	// Get returns the wallet, or an error matching shared.ErrNotFound.
	Get(ctx context.Context, userID shared.UserID) (*Wallet, error)

	// Credit upserts the wallet: a missing wallet is created with
	// balance = totalEarned = amount; otherwise both are incremented.
	Credit(ctx context.Context, userID shared.UserID, amount int) (*Wallet, error)
}

// InventoryRepository persists inventory rows.
type InventoryRepository interface {
	// List returns every item the user owns, oldest purchase first.
	List(ctx context.Context, userID shared.UserID) ([]*InventoryItem, error)

	// Exists reports whether the user owns itemID.
	Exists(ctx context.Context, userID shared.UserID, itemID ItemID) (bool, error)

	// Purchase debits price from the wallet and inserts the item, in one
	// store-side unit. It fails with ErrInsufficientFunds when the balance is
	// below price (re-checked at write time), and ErrAlreadyOwned when the row
	// already exists.
	Purchase(ctx context.Context, item *InventoryItem, price int) (*Wallet, error)

	// Equip clears IsActive on every other item of the same category for the
	// user, then sets it on itemID. Fails with ErrNotOwned if the row is missing.
	Equip(ctx context.Context, userID shared.UserID, itemID ItemID, category Category) error
}
