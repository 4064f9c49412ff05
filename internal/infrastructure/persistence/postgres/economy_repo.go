package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/safe1124/studyhub/internal/domain/economy"
	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// WALLET REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// WalletRepository implements economy.WalletRepository for PostgreSQL.
type WalletRepository struct {
	conn  *Connection
	clock timeutil.Clock
}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(conn *Connection, clock timeutil.Clock) *WalletRepository {
	return &WalletRepository{conn: conn, clock: clock}
}

// Get returns a user's wallet.
func (r *WalletRepository) Get(ctx context.Context, userID shared.UserID) (*economy.Wallet, error) {
	w, err := scanWallet(r.conn.QueryRow(ctx,
		`SELECT user_id, balance, total_earned, updated_at FROM wallets WHERE user_id = $1`,
		userID.String(),
	))
	if err != nil {
		return nil, storageErr("economy", "GetWallet", err)
	}
	return w, nil
}

// Credit upserts the wallet in one statement.
func (r *WalletRepository) Credit(ctx context.Context, userID shared.UserID, amount int) (*economy.Wallet, error) {
	if amount < 0 {
		return nil, shared.NewDomainError("economy", "Credit", shared.ErrValidation, "credit cannot be negative")
	}

	w, err := scanWallet(r.conn.QueryRow(ctx, `
		INSERT INTO wallets (user_id, balance, total_earned, updated_at)
		VALUES ($1, $2, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			balance = wallets.balance + EXCLUDED.balance,
			total_earned = wallets.total_earned + EXCLUDED.total_earned,
			updated_at = EXCLUDED.updated_at
		RETURNING user_id, balance, total_earned, updated_at
	`, userID.String(), amount, r.clock.Now()))
	if err != nil {
		return nil, shared.Storage("economy", "Credit", err)
	}
	return w, nil
}

func scanWallet(row pgx.Row) (*economy.Wallet, error) {
	var (
		w  economy.Wallet
		id string
	)
	if err := row.Scan(&id, &w.Balance, &w.TotalEarned, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.UserID = shared.UserID(id)
	w.UpdatedAt = timeutil.ToReference(w.UpdatedAt)
	return &w, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// INVENTORY REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// InventoryRepository implements economy.InventoryRepository for PostgreSQL.
type InventoryRepository struct {
	conn  *Connection
	clock timeutil.Clock
}

// NewInventoryRepository creates a new InventoryRepository.
func NewInventoryRepository(conn *Connection, clock timeutil.Clock) *InventoryRepository {
	return &InventoryRepository{conn: conn, clock: clock}
}

// List returns a user's items, oldest purchase first.
func (r *InventoryRepository) List(ctx context.Context, userID shared.UserID) ([]*economy.InventoryItem, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT user_id, item_id, name, category, value, purchased_at, is_active
		FROM inventory_items
		WHERE user_id = $1
		ORDER BY purchased_at ASC, item_id ASC
	`, userID.String())
	if err != nil {
		return nil, shared.Storage("economy", "ListInventory", err)
	}
	defer rows.Close()

	var out []*economy.InventoryItem
	for rows.Next() {
		var (
			it                  economy.InventoryItem
			uid, item, category string
		)
		if err := rows.Scan(&uid, &item, &it.Name, &category, &it.Value, &it.PurchasedAt, &it.IsActive); err != nil {
			return nil, shared.Storage("economy", "ListInventory", err)
		}
		it.UserID = shared.UserID(uid)
		it.ItemID = economy.ItemID(item)
		it.Category = economy.Category(category)
		it.PurchasedAt = timeutil.ToReference(it.PurchasedAt)
		out = append(out, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Storage("economy", "ListInventory", err)
	}
	return out, nil
}

// Exists reports whether the user owns itemID.
func (r *InventoryRepository) Exists(ctx context.Context, userID shared.UserID, itemID economy.ItemID) (bool, error) {
	var ok bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM inventory_items WHERE user_id = $1 AND item_id = $2)`,
		userID.String(), string(itemID),
	).Scan(&ok)
	if err != nil {
		return false, shared.Storage("economy", "Exists", err)
	}
	return ok, nil
}

// Purchase debits the wallet with a balance guard and inserts the item in one
// transaction. A failed insert rolls the debit back.
func (r *InventoryRepository) Purchase(ctx context.Context, item *economy.InventoryItem, price int) (*economy.Wallet, error) {
	var wallet *economy.Wallet

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		w, err := scanWallet(tx.QueryRow(ctx, `
			UPDATE wallets
			SET balance = balance - $2, updated_at = $3
			WHERE user_id = $1 AND balance >= $2
			RETURNING user_id, balance, total_earned, updated_at
		`, item.UserID.String(), price, r.clock.Now()))
		if IsNoRows(err) {
			return shared.NewDomainError("economy", "Purchase", shared.ErrInsufficientFunds, "not enough currency")
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO inventory_items (user_id, item_id, name, category, value, purchased_at, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		`,
			item.UserID.String(),
			string(item.ItemID),
			item.Name,
			string(item.Category),
			item.Value,
			item.PurchasedAt,
		)
		if IsUniqueViolation(err) {
			return shared.NewDomainError("economy", "Purchase", shared.ErrAlreadyOwned, "item already owned")
		}
		if err != nil {
			return err
		}

		wallet = w
		return nil
	})
	if err != nil {
		return nil, shared.Storage("economy", "Purchase", err)
	}
	return wallet, nil
}

// Equip deactivates the category, then activates itemID, in one transaction.
func (r *InventoryRepository) Equip(ctx context.Context, userID shared.UserID, itemID economy.ItemID, category economy.Category) error {
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE inventory_items SET is_active = FALSE
			WHERE user_id = $1 AND category = $2 AND is_active
		`, userID.String(), string(category)); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE inventory_items SET is_active = TRUE
			WHERE user_id = $1 AND item_id = $2
		`, userID.String(), string(itemID))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.NewDomainError("economy", "Equip", shared.ErrNotOwned, "item not owned")
		}
		return nil
	})
	if err != nil {
		return shared.Storage("economy", "Equip", err)
	}
	return nil
}
