package render

import (
	"fmt"
	"sync"

	"github.com/namandhakad712/Rankify-sub003/internal/model"
)

// Cache defaults
const (
	DefaultMaxEntries  = 200
	DefaultMemoryBytes = 64 << 20 // approximate pixel budget
)

// Cache is a thread-safe LRU cache of rendered diagram crops. Keys
// embed the region version, so an edited region produces misses for its
// new version without an active purge; stale versions age out under LRU
// pressure. Bounded by both entry count and an approximate byte budget.
type Cache struct {
	mutex      sync.RWMutex
	maxEntries int
	maxBytes   int64
	usedBytes  int64
	items      map[string]*cacheNode
	byRegion   map[string]map[string]*cacheNode // regionID -> keys, for Invalidate
	head       *cacheNode                       // Most recently used
	tail       *cacheNode                       // Least recently used
	hits       int64
	misses     int64
	evictions  int64
}

// cacheNode represents a node in the doubly-linked list
type cacheNode struct {
	key      string
	regionID string
	entry    *Rendered
	prev     *cacheNode
	next     *cacheNode
}

// CacheStats reports cache health
type CacheStats struct {
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	Evictions  int64   `json:"evictions"`
	Size       int     `json:"size"`
	MaxEntries int     `json:"max_entries"`
	UsedBytes  int64   `json:"used_bytes"`
	MaxBytes   int64   `json:"max_bytes"`
}

// NewCache creates a render cache with the given bounds; non-positive
// values fall back to the defaults.
func NewCache(maxEntries int, maxBytes int64) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMemoryBytes
	}

	c := &Cache{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		items:      make(map[string]*cacheNode),
		byRegion:   make(map[string]map[string]*cacheNode),
	}

	// Dummy head and tail nodes
	c.head = &cacheNode{}
	c.tail = &cacheNode{}
	c.head.next = c.tail
	c.tail.prev = c.head

	return c
}

func cacheKey(regionID string, version int, tier model.ResolutionTier) string {
	return fmt.Sprintf("%s@v%d:%s", regionID, version, tier)
}

// Get retrieves a cached crop and marks it as recently used
func (c *Cache) Get(regionID string, version int, tier model.ResolutionTier) (*Rendered, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if node, exists := c.items[cacheKey(regionID, version, tier)]; exists {
		c.moveToFront(node)
		c.hits++
		return node.entry, true
	}

	c.misses++
	return nil, false
}

// Put stores a rendered crop, evicting least-recently-used entries
// until both bounds hold
func (c *Cache) Put(regionID string, version int, tier model.ResolutionTier, entry *Rendered) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	key := cacheKey(regionID, version, tier)
	if node, exists := c.items[key]; exists {
		c.usedBytes += entry.SizeBytes() - node.entry.SizeBytes()
		node.entry = entry
		c.moveToFront(node)
		c.enforceBounds()
		return
	}

	node := &cacheNode{key: key, regionID: regionID, entry: entry}
	c.addToFront(node)
	c.items[key] = node
	if c.byRegion[regionID] == nil {
		c.byRegion[regionID] = make(map[string]*cacheNode)
	}
	c.byRegion[regionID][key] = node
	c.usedBytes += entry.SizeBytes()

	c.enforceBounds()
}

// Invalidate removes every cached tier and version for a region.
// Version-qualified keys already make stale entries unreachable; this
// exists for callers that want the memory back immediately.
func (c *Cache) Invalidate(regionID string) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	nodes := c.byRegion[regionID]
	for _, node := range nodes {
		c.removeEntry(node)
	}
	return len(nodes)
}

// Reset empties the cache. Session teardown hook.
func (c *Cache) Reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items = make(map[string]*cacheNode)
	c.byRegion = make(map[string]map[string]*cacheNode)
	c.head.next = c.tail
	c.tail.prev = c.head
	c.usedBytes = 0
	c.hits = 0
	c.misses = 0
	c.evictions = 0
}

// Len returns the current number of cached crops
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.items)
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	total := c.hits + c.misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}

	return CacheStats{
		Hits:       c.hits,
		Misses:     c.misses,
		HitRate:    hitRate,
		Evictions:  c.evictions,
		Size:       len(c.items),
		MaxEntries: c.maxEntries,
		UsedBytes:  c.usedBytes,
		MaxBytes:   c.maxBytes,
	}
}

// Contains checks for a key without updating its recency
func (c *Cache) Contains(regionID string, version int, tier model.ResolutionTier) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	_, exists := c.items[cacheKey(regionID, version, tier)]
	return exists
}

// Internal helpers; callers hold the write lock.

func (c *Cache) enforceBounds() {
	for len(c.items) > c.maxEntries || c.usedBytes > c.maxBytes {
		lru := c.tail.prev
		if lru == c.head {
			break
		}
		c.removeEntry(lru)
		c.evictions++
	}
}

func (c *Cache) removeEntry(node *cacheNode) {
	c.removeNode(node)
	delete(c.items, node.key)
	c.usedBytes -= node.entry.SizeBytes()
	if keys := c.byRegion[node.regionID]; keys != nil {
		delete(keys, node.key)
		if len(keys) == 0 {
			delete(c.byRegion, node.regionID)
		}
	}
}

func (c *Cache) moveToFront(node *cacheNode) {
	c.removeNode(node)
	c.addToFront(node)
}

func (c *Cache) addToFront(node *cacheNode) {
	node.prev = c.head
	node.next = c.head.next
	c.head.next.prev = node
	c.head.next = node
}

func (c *Cache) removeNode(node *cacheNode) {
	node.prev.next = node.next
	node.next.prev = node.prev
}
