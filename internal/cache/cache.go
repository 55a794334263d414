// Package cache provides a bounded LRU cache of chunk embeddings.
//
// The cache is keyed by a stable hash of normalised text and is not
// authoritative: losing it only costs recomputation, so it never
// surfaces errors to callers.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/docuchat/ragcore/internal/core/ports/driven"
)

// DefaultCapacity is the default entry bound.
const DefaultCapacity = 500

// Ensure Cache implements the interface.
var _ driven.EmbeddingCache = (*Cache)(nil)

// entry is one cached vector keyed by text hash.
type entry struct {
	textHash   string
	vector     []float32
	lastUsedAt time.Time
}

// Cache is an in-memory LRU embedding cache.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List               // front = most recently used
	entries  map[string]*list.Element // textHash -> element
}

// New creates a cache with the given capacity. Non-positive
// capacities fall back to DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// Get returns the cached vector for text, refreshing its recency.
func (c *Cache) Get(text string) ([]float32, bool) {
	key := hashText(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	c.order.MoveToFront(elem)
	e := elem.Value.(*entry)
	e.lastUsedAt = time.Now()

	// Copy so callers cannot mutate the cached vector
	vec := make([]float32, len(e.vector))
	copy(vec, e.vector)
	return vec, true
}

// Put stores the vector for text, evicting the least recently used
// entry on overflow.
func (c *Cache) Put(text string, vector []float32) {
	if len(vector) == 0 {
		return
	}
	key := hashText(text)

	vec := make([]float32, len(vector))
	copy(vec, vector)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		e := elem.Value.(*entry)
		e.vector = vec
		e.lastUsedAt = time.Now()
		return
	}

	elem := c.order.PushFront(&entry{
		textHash:   key,
		vector:     vec,
		lastUsedAt: time.Now(),
	})
	c.entries[key] = elem

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).textHash)
	}
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Capacity returns the configured bound.
func (c *Cache) Capacity() int {
	return c.capacity
}

// hashText returns the stable key for a chunk text. Whitespace is
// collapsed so trivially reformatted text still hits.
func hashText(text string) string {
	normalised := strings.Join(strings.Fields(text), " ")
	sum := sha256.Sum256([]byte(normalised))
	return hex.EncodeToString(sum[:])
}
