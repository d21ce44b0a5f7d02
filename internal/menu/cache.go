package menu

import (
	"sync"
	"time"
)

// PageCache maps (cantina, date) to a previously rendered page set. It is the
// single source of truth for "have we already fetched this". Entries live for
// the process lifetime: daily key growth is bounded and nothing persists.
//
// One coarse lock guards the whole map; contention is low and entries are few.
type PageCache struct {
	mu    sync.Mutex
	pages map[string][][]byte
}

func NewPageCache() *PageCache {
	return &PageCache{pages: make(map[string][][]byte)}
}

func cacheKey(cantinaKey string, day time.Time) string {
	return cantinaKey + ":" + day.Format("2006-01-02")
}

// Get returns an independent copy of the cached page set, if present.
// Callers cannot mutate the cached value through the returned slices.
func (c *PageCache) Get(cantinaKey string, day time.Time) ([][]byte, bool) {
	c.mu.Lock()
	cached, ok := c.pages[cacheKey(cantinaKey, day)]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	return copyPages(cached), true
}

// Put stores a copy of pages. Empty page sets are never cached: an empty
// render is a failure, and a cached failure would defeat retries.
func (c *PageCache) Put(cantinaKey string, day time.Time, pages [][]byte) {
	if len(pages) == 0 {
		return
	}
	cp := copyPages(pages)
	c.mu.Lock()
	c.pages[cacheKey(cantinaKey, day)] = cp
	c.mu.Unlock()
}

// Len reports the number of cached (cantina, date) entries.
func (c *PageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pages)
}

func copyPages(pages [][]byte) [][]byte {
	out := make([][]byte, len(pages))
	for i, p := range pages {
		b := make([]byte, len(p))
		copy(b, p)
		out[i] = b
	}
	return out
}
