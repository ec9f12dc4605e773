// Package catalog holds the read-mostly player pool for an auction: the
// category order, the per-category player queues, and base values. A
// Catalog is built once at auction creation and mutated only by the engine
// as it advances the cursor; nothing outside the engine writes to it.
package catalog

import "fmt"

// Category is a player grouping (e.g. goalkeeper, defender) with a fixed
// place in the bidding order.
type Category string

// Player is a catalog entry: identity, display data, and the base value
// used as the opening bid when the player comes up for auction.
type Player struct {
	ID          string
	DisplayName string
	Category    Category
	BaseValue   int64
}

// Catalog is the ordered category sequence plus each category's player
// queue, as assembled for one auction.
type Catalog struct {
	categoryOrder []Category
	queues        map[Category][]Player
	byID          map[string]Player
}

// New builds a Catalog from a category order and the full player list.
// Players are bucketed by their Category and keep their relative order
// within each bucket. Returns an error if categoryOrder is empty or a
// player references a category absent from categoryOrder.
func New(categoryOrder []Category, players []Player) (*Catalog, error) {
	if len(categoryOrder) == 0 {
		return nil, fmt.Errorf("catalog: category order must not be empty")
	}

	known := make(map[Category]bool, len(categoryOrder))
	queues := make(map[Category][]Player, len(categoryOrder))
	for _, c := range categoryOrder {
		known[c] = true
		queues[c] = nil
	}

	byID := make(map[string]Player, len(players))
	for _, p := range players {
		if !known[p.Category] {
			return nil, fmt.Errorf("catalog: player %s has unknown category %q", p.ID, p.Category)
		}
		if _, exists := byID[p.ID]; exists {
			return nil, fmt.Errorf("catalog: duplicate player id %s", p.ID)
		}
		byID[p.ID] = p
		queues[p.Category] = append(queues[p.Category], p)
	}

	return &Catalog{
		categoryOrder: append([]Category(nil), categoryOrder...),
		queues:        queues,
		byID:          byID,
	}, nil
}

// DefaultCategoryOrder is the spec's default GK->DEF->MID->ATT sequence.
func DefaultCategoryOrder() []Category {
	return []Category{"GK", "DEF", "MID", "ATT"}
}

// CategoryOrder returns the ordered category sequence.
func (c *Catalog) CategoryOrder() []Category {
	return append([]Category(nil), c.categoryOrder...)
}

// CategoryAt returns the category at the given index in the order, and
// whether the index is in range.
func (c *Catalog) CategoryAt(index int) (Category, bool) {
	if index < 0 || index >= len(c.categoryOrder) {
		return "", false
	}
	return c.categoryOrder[index], true
}

// PlayerAt returns the player at index within a category's queue.
func (c *Catalog) PlayerAt(category Category, index int) (Player, bool) {
	q := c.queues[category]
	if index < 0 || index >= len(q) {
		return Player{}, false
	}
	return q[index], true
}

// QueueLen returns the number of players in a category's queue.
func (c *Catalog) QueueLen(category Category) int {
	return len(c.queues[category])
}

// Player looks up a player by id.
func (c *Catalog) Player(id string) (Player, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Empty reports whether every category queue is empty, i.e. there is
// nothing to auction at all (the EmptyCatalog error case).
func (c *Catalog) Empty() bool {
	for _, q := range c.queues {
		if len(q) > 0 {
			return false
		}
	}
	return true
}
