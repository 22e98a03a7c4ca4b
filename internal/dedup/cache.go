// Package dedup tracks which listing and sale IDs have already been
// alerted so each marketplace event triggers at most one alert.
package dedup

import (
	"sync"

	"metracker/internal/magiceden"
)

// Cache holds one seen-ID set per event kind. All operations take the
// same lock, so a membership check and the insert that follows it
// cannot interleave with a concurrent clear.
type Cache struct {
	mu       sync.Mutex
	listings map[string]struct{}
	sales    map[string]struct{}
}

func New() *Cache {
	return &Cache{
		listings: make(map[string]struct{}),
		sales:    make(map[string]struct{}),
	}
}

func (c *Cache) set(kind magiceden.Kind) map[string]struct{} {
	if kind == magiceden.KindSale {
		return c.sales
	}
	return c.listings
}

// Seen reports whether id was already alerted for kind.
func (c *Cache) Seen(kind magiceden.Kind, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.set(kind)[id]
	return ok
}

// Mark records id as alerted for kind. It reports whether the id was
// newly inserted, so callers racing on the same event agree on exactly
// one winner inside a single critical section.
func (c *Cache) Mark(kind magiceden.Kind, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	set := c.set(kind)
	if _, ok := set[id]; ok {
		return false
	}
	set[id] = struct{}{}
	return true
}

// Clear empties both sets, returning the prior sizes so operator
// commands can report what was dropped.
func (c *Cache) Clear() (listings, sales int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	listings = len(c.listings)
	sales = len(c.sales)
	c.listings = make(map[string]struct{})
	c.sales = make(map[string]struct{})
	return listings, sales
}

// Sizes returns the current set sizes.
func (c *Cache) Sizes() (listings, sales int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listings), len(c.sales)
}
