package geocode

import (
	"fmt"
	"sync"
)

// PlaceCache maps rounded coordinate keys to resolved place labels for the
// lifetime of the process.
type PlaceCache struct {
	mu     sync.RWMutex
	places map[string]string
}

// NewPlaceCache creates an empty place cache.
func NewPlaceCache() *PlaceCache {
	return &PlaceCache{
		places: make(map[string]string),
	}
}

// Key rounds a coordinate to five decimals, roughly one metre, so nearby
// lookups share an entry.
func Key(lat, lon float64) string {
	return fmt.Sprintf("%.5f,%.5f", lat, lon)
}

// Get retrieves a cached label by key.
func (c *PlaceCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	place, ok := c.places[key]
	return place, ok
}

// Set stores a label by key.
func (c *PlaceCache) Set(key, place string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.places[key] = place
}

// Len returns the number of cached labels.
func (c *PlaceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.places)
}

// Reset clears all cached labels.
func (c *PlaceCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.places = make(map[string]string)
}
