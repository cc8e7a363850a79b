package delivery

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// MenuItem is one sellable item as the restaurant's own menu system sees it
type MenuItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category,omitempty"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	InStock     bool            `json:"in_stock"`
}

// MenuSnapshot is the full menu at a point in time
type MenuSnapshot struct {
	RestaurantID string
	Items        []MenuItem
	TakenAt      time.Time
}

// ChangeField is a bit set of the item fields a change pushes
type ChangeField uint8

const (
	FieldDetails ChangeField = 1 << iota
	FieldPrice
	FieldStock

	FieldAll = FieldDetails | FieldPrice | FieldStock
)

// ItemChange is one item-level operation a driver performs on the portal
type ItemChange struct {
	Item       MenuItem
	PortalName string
	Fields     ChangeField
}

// Has reports whether the change pushes field f
func (c ItemChange) Has(f ChangeField) bool {
	return c.Fields&f != 0
}

// SyncedItem is what was last pushed to the portal for one item. Nil fields
// have never been pushed.
type SyncedItem struct {
	Name    string           `json:"name,omitempty"`
	Price   *decimal.Decimal `json:"price,omitempty"`
	InStock *bool            `json:"in_stock,omitempty"`
}

// SyncState is the last successfully synced portal state for a key, the
// baseline for incremental syncs.
type SyncState struct {
	RestaurantID string
	Platform     Platform
	Items        map[string]SyncedItem
	UpdatedAt    time.Time
}

// NewSyncState returns an empty state for a key
func NewSyncState(restaurantID string, platform Platform) *SyncState {
	return &SyncState{
		RestaurantID: restaurantID,
		Platform:     platform,
		Items:        make(map[string]SyncedItem),
	}
}

// Record marks the pushed fields of a change as synced.
func (s *SyncState) Record(change ItemChange, at time.Time) {
	if s.Items == nil {
		s.Items = make(map[string]SyncedItem)
	}
	synced := s.Items[change.Item.ID]
	if change.Has(FieldDetails) {
		synced.Name = change.Item.Name
	}
	if change.Has(FieldPrice) {
		price := change.Item.Price
		synced.Price = &price
	}
	if change.Has(FieldStock) {
		inStock := change.Item.InStock
		synced.InStock = &inStock
	}
	s.Items[change.Item.ID] = synced
	s.UpdatedAt = at
}

// FieldsFor returns which fields a sync type pushes
func FieldsFor(t SyncType) ChangeField {
	switch t {
	case SyncTypePriceUpdate:
		return FieldPrice
	case SyncTypeStockUpdate:
		return FieldStock
	case SyncTypeMenuUpdate:
		return FieldDetails | FieldPrice
	default:
		return FieldAll
	}
}

// PlanChanges turns a menu snapshot into item changes. full_sync and
// menu_update push every item; price_update and stock_update push only items
// whose price or stock differs from state. A nil state means nothing has been
// synced yet, so every item is included. Items are ordered by ID.
func PlanChanges(state *SyncState, snapshot *MenuSnapshot, t SyncType, cfg *SyncConfig) []ItemChange {
	if snapshot == nil {
		return nil
	}
	fields := FieldsFor(t)
	changes := make([]ItemChange, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		if t.IsIncremental() && state != nil && !differs(state.Items[item.ID], item, fields) {
			continue
		}
		changes = append(changes, ItemChange{
			Item:       item,
			PortalName: cfg.PortalName(item),
			Fields:     fields,
		})
	}
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Item.ID < changes[j].Item.ID
	})
	return changes
}

func differs(synced SyncedItem, item MenuItem, fields ChangeField) bool {
	if fields&FieldPrice != 0 && (synced.Price == nil || !synced.Price.Equal(item.Price)) {
		return true
	}
	if fields&FieldStock != 0 && (synced.InStock == nil || *synced.InStock != item.InStock) {
		return true
	}
	return false
}
