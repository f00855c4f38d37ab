package refresh

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/types"
)

// projectionCache is an LRU cache of projection results. Projection is
// pure, so a result is reusable as long as the series has not grown; the
// series length is part of the key, which invalidates stale entries
// without any bookkeeping on append.
type projectionCache struct {
	capacity int
	mu       sync.Mutex
	cache    map[string]*cacheEntry
	lru      *list.List
}

// cacheEntry represents a cached projection result.
type cacheEntry struct {
	key     string
	result  types.ProjectionResult
	element *list.Element
}

// newProjectionCache creates a new projection cache.
func newProjectionCache(capacity int) *projectionCache {
	return &projectionCache{
		capacity: capacity,
		cache:    make(map[string]*cacheEntry),
		lru:      list.New(),
	}
}

// key builds the cache key from the projection inputs.
func (pc *projectionCache) key(seriesLen int, w types.Window, sel types.Selection) string {
	return fmt.Sprintf("%d|%s|%s|%v", seriesLen, w.Start, w.End, sel)
}

// get retrieves a cached projection result.
func (pc *projectionCache) get(seriesLen int, w types.Window, sel types.Selection) (types.ProjectionResult, bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	entry, exists := pc.cache[pc.key(seriesLen, w, sel)]
	if !exists {
		return types.ProjectionResult{}, false
	}

	// Most recently used
	pc.lru.MoveToFront(entry.element)

	return entry.result, true
}

// put stores a projection result in the cache.
func (pc *projectionCache) put(seriesLen int, w types.Window, sel types.Selection, result types.ProjectionResult) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	key := pc.key(seriesLen, w, sel)

	if entry, exists := pc.cache[key]; exists {
		entry.result = result
		pc.lru.MoveToFront(entry.element)
		return
	}

	entry := &cacheEntry{
		key:    key,
		result: result,
	}
	entry.element = pc.lru.PushFront(entry)
	pc.cache[key] = entry

	// Evict the least recently used entry when full
	if pc.lru.Len() > pc.capacity {
		oldest := pc.lru.Back()
		if oldest != nil {
			oldestEntry := oldest.Value.(*cacheEntry)
			pc.lru.Remove(oldestEntry.element)
			delete(pc.cache, oldestEntry.key)
		}
	}
}

// size returns the current cache size.
func (pc *projectionCache) size() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.lru.Len()
}
