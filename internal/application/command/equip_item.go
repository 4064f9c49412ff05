package command

import (
	"context"

	"github.com/safe1124/studyhub/internal/domain/economy"
	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/pkg/logger"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EQUIP ITEM COMMAND
// Makes an owned item the active one of its category.
// ══════════════════════════════════════════════════════════════════════════════

// EquipItemCommand contains the data to equip an item.
type EquipItemCommand struct {
	UserID string
	ItemID string
}

// Validate validates the command.
func (c EquipItemCommand) Validate() error {
	if !shared.UserID(c.UserID).IsValid() {
		return shared.NewDomainError("economy", "Equip", shared.ErrValidation, "user_id is required")
	}
	if c.ItemID == "" {
		return shared.NewDomainError("economy", "Equip", shared.ErrValidation, "item_id is required")
	}
	return nil
}

// EquipItemResult contains the result of equipping.
type EquipItemResult struct {
	Item economy.Item
}

// EquipItemHandler handles EquipItemCommand.
type EquipItemHandler struct {
	inventory economy.InventoryRepository
	events    shared.EventPublisher
	clock     timeutil.Clock
	logger    *logger.Logger
}

// NewEquipItemHandler creates an EquipItemHandler.
func NewEquipItemHandler(
	inventory economy.InventoryRepository,
	events shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
) *EquipItemHandler {
	if events == nil {
		events = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &EquipItemHandler{
		inventory: inventory,
		events:    events,
		clock:     clock,
		logger:    log.With(logger.Component("equip")),
	}
}

// Handle executes the equip. Other items of the category are deactivated by
// the store in the same step; equipping the active item again is a no-op.
func (h *EquipItemHandler) Handle(ctx context.Context, cmd EquipItemCommand) (*EquipItemResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	userID := shared.UserID(cmd.UserID)

	item, ok := economy.Lookup(economy.ItemID(cmd.ItemID))
	if !ok {
		return nil, shared.NewDomainError("economy", "Equip", shared.ErrUnknownItem, "unknown item "+cmd.ItemID)
	}

	if err := h.inventory.Equip(ctx, userID, item.ID, item.Category); err != nil {
		return nil, err
	}

	h.logger.Info("item equipped",
		logger.UserID(userID.String()),
		logger.ItemID(string(item.ID)),
		logger.String("category", string(item.Category)),
	)
	if err := h.events.Publish(shared.NewItemEvent(shared.EventItemEquipped, userID.String(),
		string(item.ID), string(item.Category), item.Role, h.clock.Now())); err != nil {
		h.logger.Warn("failed to publish event", logger.Err(err))
	}

	return &EquipItemResult{Item: item}, nil
}
