package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/spf13/afero"
)

// matchThreshold is the minimum Jaro-Winkler similarity for an inventory
// query to match a stocked item.
const matchThreshold = 0.6

// Item is one stocked inventory entry.
type Item struct {
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	Aisle        int    `json:"aisle"`
	Discontinued bool   `json:"discontinued,omitempty"`
}

// Inventory answers stock queries against a fixed item catalog, tolerating
// the misspellings speech recognition produces by fuzzy-matching item names.
type Inventory struct {
	items []Item
}

var _ Tool = (*Inventory)(nil)

// NewInventory creates an Inventory over the given items.
func NewInventory(items []Item) *Inventory {
	return &Inventory{items: items}
}

// LoadInventory reads an item catalog from a JSON file.
func LoadInventory(fs afero.Fs, path string) (*Inventory, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("tools: reading inventory %s: %w", path, err)
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("tools: decoding inventory %s: %w", path, err)
	}
	return NewInventory(items), nil
}

// Name implements Tool.
func (inv *Inventory) Name() string { return "Inventory" }

// Description implements Tool.
func (inv *Inventory) Description() string {
	return "check_stock <item>: whether an item is stocked, how many, and where."
}

// Invoke implements Tool.
func (inv *Inventory) Invoke(_ context.Context, method, args string) (string, error) {
	switch method {
	case "check_stock", "find_item":
		return inv.checkStock(args), nil
	default:
		return fmt.Sprintf("Inventory has no method %q.", method), nil
	}
}

// checkStock finds the stocked item closest to the query. Transcribed speech
// rarely matches exactly, so the best fuzzy match above the similarity
// threshold wins.
func (inv *Inventory) checkStock(query string) string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return "No item was specified."
	}

	var (
		best      *Item
		bestScore float64
	)
	for i := range inv.items {
		score := matchr.JaroWinkler(query, strings.ToLower(inv.items[i].Name), true)
		if score > bestScore {
			best = &inv.items[i]
			bestScore = score
		}
	}

	if best == nil || bestScore < matchThreshold {
		return fmt.Sprintf("No item matching %q is in stock.", query)
	}
	if best.Discontinued {
		return fmt.Sprintf("%s is discontinued.", best.Name)
	}
	if best.Quantity <= 0 {
		return fmt.Sprintf("%s is out of stock.", best.Name)
	}
	return fmt.Sprintf("%d in aisle %d.", best.Quantity, best.Aisle)
}
