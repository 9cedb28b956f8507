package raster

import (
	"fmt"
	"sync"
	"time"
)

const (
	defaultMemoTTL     = 3 * time.Second
	defaultMemoEntries = 4
)

// pageMemo is a tiny TTL cache for whole-page rasters. It exists for one
// access pattern: a page with several diagrams gets a burst of region
// renders, and only the first should pay for the page decode. Entries are
// large, so the cap is small and expiry is aggressive; the render cache
// is the long-lived store, this is not.
type pageMemo struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	entries map[string]memoEntry
}

type memoEntry struct {
	raster  *PageRaster
	expires time.Time
}

func newPageMemo(ttl time.Duration, maxSize int) *pageMemo {
	return &pageMemo{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]memoEntry),
	}
}

func memoKey(pageNumber int, scale float64) string {
	return fmt.Sprintf("%d@%g", pageNumber, scale)
}

func (m *pageMemo) get(pageNumber int, scale float64) *PageRaster {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[memoKey(pageNumber, scale)]
	if !ok {
		return nil
	}
	if time.Now().After(e.expires) {
		delete(m.entries, memoKey(pageNumber, scale))
		return nil
	}
	return e.raster
}

func (m *pageMemo) put(pageNumber int, scale float64, pr *PageRaster) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	// Expired entries go first; if still over the cap, evict the entry
	// closest to expiry.
	for k, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, k)
		}
	}
	for len(m.entries) >= m.maxSize {
		var oldestKey string
		var oldest time.Time
		for k, e := range m.entries {
			if oldestKey == "" || e.expires.Before(oldest) {
				oldestKey = k
				oldest = e.expires
			}
		}
		delete(m.entries, oldestKey)
	}

	m.entries[memoKey(pageNumber, scale)] = memoEntry{raster: pr, expires: now.Add(m.ttl)}
}

func (m *pageMemo) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoEntry)
}
