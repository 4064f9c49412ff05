package query

import (
	"context"
	"time"

	"github.com/safe1124/studyhub/internal/domain/economy"
	"github.com/safe1124/studyhub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// INVENTORY & SHOP QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// GetInventoryQuery selects the user.
type GetInventoryQuery struct {
	UserID string
}

// InventoryItemDTO is one owned item.
type InventoryItemDTO struct {
	ItemID      string    `json:"item_id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Value       string    `json:"value"`
	IsActive    bool      `json:"is_active"`
	PurchasedAt time.Time `json:"purchased_at"`
}

// InventoryDTO groups owned items by category.
type InventoryDTO struct {
	UserID string             `json:"user_id"`
	Colors []InventoryItemDTO `json:"colors"`
	Titles []InventoryItemDTO `json:"titles"`
}

// GetInventoryHandler handles GetInventoryQuery.
type GetInventoryHandler struct {
	inventory economy.InventoryRepository
}

// NewGetInventoryHandler creates a GetInventoryHandler.
func NewGetInventoryHandler(inventory economy.InventoryRepository) *GetInventoryHandler {
	return &GetInventoryHandler{inventory: inventory}
}

// Handle executes the query.
func (h *GetInventoryHandler) Handle(ctx context.Context, q GetInventoryQuery) (*InventoryDTO, error) {
	userID := shared.UserID(q.UserID)
	if !userID.IsValid() {
		return nil, shared.NewDomainError("economy", "GetInventory", shared.ErrValidation, "user_id is required")
	}

	items, err := h.inventory.List(ctx, userID)
	if err != nil {
		return nil, shared.Storage("economy", "GetInventory", err)
	}

	dto := &InventoryDTO{
		UserID: userID.String(),
		Colors: []InventoryItemDTO{},
		Titles: []InventoryItemDTO{},
	}
	for _, it := range items {
		row := InventoryItemDTO{
			ItemID:      string(it.ItemID),
			Name:        it.Name,
			Category:    string(it.Category),
			Value:       it.Value,
			IsActive:    it.IsActive,
			PurchasedAt: it.PurchasedAt,
		}
		switch it.Category {
		case economy.CategoryColor:
			dto.Colors = append(dto.Colors, row)
		case economy.CategoryTitle:
			dto.Titles = append(dto.Titles, row)
		}
	}
	return dto, nil
}

// ListShopQuery optionally marks what a user already owns.
type ListShopQuery struct {
	UserID string
}

// ShopItemDTO is one catalog entry.
type ShopItemDTO struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Value    string `json:"value"`
	Price    int    `json:"price"`
	Owned    bool   `json:"owned"`
}

// ListShopHandler handles ListShopQuery.
type ListShopHandler struct {
	inventory economy.InventoryRepository
}

// NewListShopHandler creates a ListShopHandler.
func NewListShopHandler(inventory economy.InventoryRepository) *ListShopHandler {
	return &ListShopHandler{inventory: inventory}
}

// Handle lists the catalog in shop order.
func (h *ListShopHandler) Handle(ctx context.Context, q ListShopQuery) ([]ShopItemDTO, error) {
	inv := economy.Inventory{}
	if q.UserID != "" {
		items, err := h.inventory.List(ctx, shared.UserID(q.UserID))
		if err != nil {
			return nil, shared.Storage("economy", "ListShop", err)
		}
		inv.Items = items
	}

	catalog := economy.Catalog()
	out := make([]ShopItemDTO, 0, len(catalog))
	for _, item := range catalog {
		out = append(out, ShopItemDTO{
			ItemID:   string(item.ID),
			Name:     item.Name,
			Category: string(item.Category),
			Value:    item.Value,
			Price:    item.Price,
			Owned:    inv.Owns(item.ID),
		})
	}
	return out, nil
}
