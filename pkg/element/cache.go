package element

import (
	"sync"

	"github.com/google/uuid"
)

// Cache maps opaque ids to element handles. It owns the mapping; handlers
// borrow handles for one request.
type Cache struct {
	mu       sync.RWMutex
	elements map[string]*Element
	newID    func() string
}

// NewCache creates an empty cache issuing UUID ids.
func NewCache() *Cache {
	return &Cache{
		elements: make(map[string]*Element),
		newID:    uuid.NewString,
	}
}

// Put stores e under a fresh id and returns the id.
func (c *Cache) Put(e *Element) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		id := c.newID()
		if _, taken := c.elements[id]; taken {
			continue
		}
		c.elements[id] = e
		return id
	}
}

// Get returns the element stored under id. ok is false for unknown ids and
// for every id issued before the last Clear.
func (c *Cache) Get(id string) (e *Element, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok = c.elements[id]
	return e, ok
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elements = make(map[string]*Element)
}

// Len returns the number of cached elements.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.elements)
}
