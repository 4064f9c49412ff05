package economy

import (
	"time"

	"github.com/safe1124/studyhub/internal/domain/shared"
)

// InventoryItem is an owned item. At most one row per (user, category) may
// have IsActive set.
type InventoryItem struct {
	UserID      shared.UserID
	ItemID      ItemID
	Name        string
	Category    Category
	Value       string
	PurchasedAt time.Time
	IsActive    bool
}

// NewInventoryItem creates the unequipped row written by a purchase.
func NewInventoryItem(userID shared.UserID, item Item, now time.Time) *InventoryItem {
	return &InventoryItem{
		UserID:      userID,
		ItemID:      item.ID,
		Name:        item.Name,
		Category:    item.Category,
		Value:       item.Value,
		PurchasedAt: now,
	}
}

// Inventory is the full set of a user's items.
type Inventory struct {
	UserID shared.UserID
	Items  []*InventoryItem
}

// Owns reports whether the inventory has a row for id.
func (inv *Inventory) Owns(id ItemID) bool {
	return inv.find(id) != nil
}

// Active returns the equipped item of a category, if any.
func (inv *Inventory) Active(c Category) *InventoryItem {
	for _, it := range inv.Items {
		if it.Category == c && it.IsActive {
			return it
		}
	}
	return nil
}

// Equip deactivates every other item of the target's category and activates
// the target. It returns the items whose flag changed.
func (inv *Inventory) Equip(id ItemID) ([]*InventoryItem, error) {
	target := inv.find(id)
	if target == nil {
		return nil, shared.NewDomainError("economy", "Equip", shared.ErrNotOwned, "item not owned")
	}

	var changed []*InventoryItem
	for _, it := range inv.Items {
		if it.Category != target.Category || it == target {
			continue
		}
		if it.IsActive {
			it.IsActive = false
			changed = append(changed, it)
		}
	}
	if !target.IsActive {
		target.IsActive = true
		changed = append(changed, target)
	}
	return changed, nil
}

func (inv *Inventory) find(id ItemID) *InventoryItem {
	for _, it := range inv.Items {
		if it.ItemID == id {
			return it
		}
	}
	return nil
}
