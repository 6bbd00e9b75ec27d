// Package cart holds the items the cashier has selected for the current customer.
package cart

import (
	"maps"
	"slices"
)

// Line is one selected item and its quantity.
type Line struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// Cart maps item IDs to quantities. No entry ever has a quantity <= 0.
// A Cart is not safe for concurrent use; the session serializes access.
type Cart struct {
	items map[string]int
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{items: make(map[string]int)}
}

// SetQuantity upserts itemID. A quantity of zero removes the entry;
// negative quantities are clamped to zero.
func (c *Cart) SetQuantity(itemID string, qty int) {
	if qty <= 0 {
		delete(c.items, itemID)
		return
	}
	c.items[itemID] = qty
}

// Quantity returns the selected quantity of itemID, zero when absent.
func (c *Cart) Quantity(itemID string) int {
	return c.items[itemID]
}

// Increment adds one unit of itemID.
func (c *Cart) Increment(itemID string) {
	c.SetQuantity(itemID, c.items[itemID]+1)
}

// Decrement removes one unit of itemID, never going below zero.
func (c *Cart) Decrement(itemID string) {
	c.SetQuantity(itemID, max(c.items[itemID]-1, 0))
}

// Clear empties the cart.
func (c *Cart) Clear() {
	clear(c.items)
}

// TotalSelectedCount returns the number of distinct items selected.
func (c *Cart) TotalSelectedCount() int {
	return len(c.items)
}

// IsEmpty reports whether nothing is selected.
func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// ItemIDs returns the selected item IDs in ascending order.
func (c *Cart) ItemIDs() []string {
	return slices.Sorted(maps.Keys(c.items))
}

// Lines returns the cart contents ordered by item ID.
func (c *Cart) Lines() []Line {
	ids := c.ItemIDs()
	lines := make([]Line, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, Line{ItemID: id, Quantity: c.items[id]})
	}
	return lines
}

// Snapshot returns a copy of the item to quantity mapping.
func (c *Cart) Snapshot() map[string]int {
	return maps.Clone(c.items)
}

// Clone returns an independent copy of the cart.
func (c *Cart) Clone() *Cart {
	return &Cart{items: maps.Clone(c.items)}
}
