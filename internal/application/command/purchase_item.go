// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"time"

	"github.com/safe1124/studyhub/internal/domain/economy"
	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/pkg/logger"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PURCHASE ITEM COMMAND
// Buys a catalog item with study currency. The item lands in the inventory
// unequipped.
// ══════════════════════════════════════════════════════════════════════════════

// PurchaseItemCommand contains the data to buy an item.
type PurchaseItemCommand struct {
	UserID string
	ItemID string
}

// Validate validates the command.
func (c PurchaseItemCommand) Validate() error {
	if !shared.UserID(c.UserID).IsValid() {
		return shared.NewDomainError("economy", "Purchase", shared.ErrValidation, "user_id is required")
	}
	if c.ItemID == "" {
		return shared.NewDomainError("economy", "Purchase", shared.ErrValidation, "item_id is required")
	}
	return nil
}

// PurchaseItemResult contains the result of a purchase.
type PurchaseItemResult struct {
	Item        economy.Item
	Balance     int
	PurchasedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// PurchaseItemHandler handles PurchaseItemCommand.
//
// Checks run in a fixed order and the first failure wins: unknown item,
// insufficient funds, already owned. The store re-checks funds and ownership
// when it writes, so a concurrent purchase cannot overdraw or double-insert.
type PurchaseItemHandler struct {
	wallets   economy.WalletRepository
	inventory economy.InventoryRepository
	events    shared.EventPublisher
	clock     timeutil.Clock
	logger    *logger.Logger
}

// NewPurchaseItemHandler creates a PurchaseItemHandler.
func NewPurchaseItemHandler(
	wallets economy.WalletRepository,
	inventory economy.InventoryRepository,
	events shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
) *PurchaseItemHandler {
	if events == nil {
		events = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &PurchaseItemHandler{
		wallets:   wallets,
		inventory: inventory,
		events:    events,
		clock:     clock,
		logger:    log.With(logger.Component("purchase")),
	}
}

// Handle executes the purchase.
func (h *PurchaseItemHandler) Handle(ctx context.Context, cmd PurchaseItemCommand) (*PurchaseItemResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	userID := shared.UserID(cmd.UserID)

	item, ok := economy.Lookup(economy.ItemID(cmd.ItemID))
	if !ok {
		return nil, shared.NewDomainError("economy", "Purchase", shared.ErrUnknownItem, "unknown item "+cmd.ItemID)
	}

	wallet, err := h.wallets.Get(ctx, userID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, shared.Storage("economy", "Purchase", err)
		}
		wallet = economy.EmptyWallet(userID)
	}
	if !wallet.CanAfford(item.Price) {
		return nil, shared.NewDomainError("economy", "Purchase", shared.ErrInsufficientFunds, "balance below price")
	}

	owned, err := h.inventory.Exists(ctx, userID, item.ID)
	if err != nil {
		return nil, shared.Storage("economy", "Purchase", err)
	}
	if owned {
		return nil, shared.NewDomainError("economy", "Purchase", shared.ErrAlreadyOwned, "item already owned")
	}

	now := h.clock.Now()
	updated, err := h.inventory.Purchase(ctx, economy.NewInventoryItem(userID, item, now), item.Price)
	if err != nil {
		return nil, err
	}

	h.logger.Info("item purchased",
		logger.UserID(userID.String()),
		logger.ItemID(string(item.ID)),
		logger.Int("price", item.Price),
		logger.Int("balance", updated.Balance),
	)
	if err := h.events.Publish(shared.NewItemEvent(shared.EventItemPurchased, userID.String(),
		string(item.ID), string(item.Category), item.Role, now)); err != nil {
		h.logger.Warn("failed to publish event", logger.Err(err))
	}

	return &PurchaseItemResult{Item: item, Balance: updated.Balance, PurchasedAt: now}, nil
}
