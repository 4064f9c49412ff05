// Package economy contains the currency wallet, the fixed cosmetic catalog,
// and the inventory exclusivity rule (one equipped item per category).
package economy

import "fmt"

// CurrencyPerMinute is the default amount credited per studied minute.
const CurrencyPerMinute = 100

// Category groups items that are mutually exclusive when equipped.
type Category string

const (
	CategoryColor Category = "color"
	CategoryTitle Category = "title"
)

// IsValid checks the category is known.
func (c Category) IsValid() bool {
	return c == CategoryColor || c == CategoryTitle
}

// Prices per category.
const (
	ColorPrice = 500
	TitlePrice = 1000
)

// ItemID is a closed enumeration of purchasable items.
type ItemID string

const (
	ItemRed    ItemID = "red"
	ItemGreen  ItemID = "green"
	ItemBlue   ItemID = "blue"
	ItemYellow ItemID = "yellow"
	ItemPurple ItemID = "purple"
	ItemOrange ItemID = "orange"
	ItemBlack  ItemID = "black"
	ItemWhite  ItemID = "white"

	ItemTitleKing     ItemID = "title_king"
	ItemTitleHard     ItemID = "title_hard"
	ItemTitleGenius   ItemID = "title_genius"
	ItemTitleChampion ItemID = "title_champion"
	ItemTitleSpeed    ItemID = "title_speed"
	ItemTitleFocus    ItemID = "title_focus"
)

// Item is one catalog entry. Value is the hex color or the title text.
// Role is the platform role granted while the item is equipped.
type Item struct {
	ID       ItemID
	Name     string
	Category Category
	Value    string
	Price    int
	Role     string
}

// catalogOrder fixes the display order of the shop.
var catalogOrder = []ItemID{
	ItemRed, ItemGreen, ItemBlue, ItemYellow, ItemPurple, ItemOrange, ItemBlack, ItemWhite,
	ItemTitleKing, ItemTitleHard, ItemTitleGenius, ItemTitleChampion, ItemTitleSpeed, ItemTitleFocus,
}

// Lookup resolves an item ID. The switch is exhaustive over the enumeration;
// adding an ItemID constant without a case here fails TestCatalogIsComplete.
func Lookup(id ItemID) (Item, bool) {
	switch id {
	case ItemRed:
		return color(id, "Red", "#FF0000", "Role_Red"), true
	case ItemGreen:
		return color(id, "Green", "#00FF00", "Role_Green"), true
	case ItemBlue:
		return color(id, "Blue", "#0000FF", "Role_Blue"), true
	case ItemYellow:
		return color(id, "Yellow", "#FFFF00", "Role_Yellow"), true
	case ItemPurple:
		return color(id, "Purple", "#9B59B6", "Role_Purple"), true
	case ItemOrange:
		return color(id, "Orange", "#FF8C00", "Role_Orange"), true
	case ItemBlack:
		return color(id, "Black", "#000000", "Role_Black"), true
	case ItemWhite:
		return color(id, "White", "#FFFFFF", "Role_White"), true

	case ItemTitleKing:
		return title(id, "🌟 勉強王", "Role_Title_King"), true
	case ItemTitleHard:
		return title(id, "🔥 努力家", "Role_Title_Hard"), true
	case ItemTitleGenius:
		return title(id, "💎 天才", "Role_Title_Genius"), true
	case ItemTitleChampion:
		return title(id, "👑 チャンピオン", "Role_Title_Champion"), true
	case ItemTitleSpeed:
		return title(id, "⚡ スピードスター", "Role_Title_Speed"), true
	case ItemTitleFocus:
		return title(id, "🎯 集中マスター", "Role_Title_Focus"), true
	}
	return Item{}, false
}

// MustLookup is Lookup for IDs known to be valid.
func MustLookup(id ItemID) Item {
	item, ok := Lookup(id)
	if !ok {
		panic(fmt.Sprintf("economy: unknown item %q", id))
	}
	return item
}

// Catalog returns every item in shop order.
func Catalog() []Item {
	items := make([]Item, 0, len(catalogOrder))
	for _, id := range catalogOrder {
		items = append(items, MustLookup(id))
	}
	return items
}

// CatalogByCategory returns the items of one category in shop order.
func CatalogByCategory(c Category) []Item {
	var items []Item
	for _, item := range Catalog() {
		if item.Category == c {
			items = append(items, item)
		}
	}
	return items
}

func color(id ItemID, name, hex, role string) Item {
	return Item{ID: id, Name: name, Category: CategoryColor, Value: hex, Price: ColorPrice, Role: role}
}

func title(id ItemID, text, role string) Item {
	return Item{ID: id, Name: text, Category: CategoryTitle, Value: text, Price: TitlePrice, Role: role}
}
