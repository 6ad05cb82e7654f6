package cache

import (
	"context"
	"sync"

	"github.com/adverant/nexus/ui-locator/internal/element"
)

// MemoryCache is a process-local ResultCache guarded by a single lock.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[Key][]element.UIElement
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[Key][]element.UIElement)}
}

func (c *MemoryCache) Get(_ context.Context, key Key) ([]element.UIElement, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	elements, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return element.CloneAll(elements), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key Key, elements []element.UIElement) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = element.CloneAll(elements)
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[Key][]element.UIElement)
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
