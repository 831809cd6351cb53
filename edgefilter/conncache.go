package edgefilter

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

const connCacheCapacity = 50_000

// connKey packs (src_ip << 32) | src_port into a single lookup key.
func connKey(srcIP uint32, srcPort uint16) uint64 {
	return uint64(srcIP)<<32 | uint64(srcPort)
}

// connEntry records the last accepted magic and last-seen time for a
// (src_ip, src_port) pair.
type connEntry struct {
	magic      atomic.Uint32
	lastSeenNs atomic.Int64
}

// connCache is the LRU-bounded fast-path cache.
type connCache struct {
	mu    sync.Mutex
	cache *lru.Cache[uint64, *connEntry]
}

func newConnCache() *connCache {
	c, _ := lru.New[uint64, *connEntry](connCacheCapacity)
	return &connCache{cache: c}
}

// lookup returns the cached entry for key, bumping its LRU recency.
func (c *connCache) lookup(key uint64) (*connEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Get(key)
}

// upsert inserts or refreshes the cached magic for key; concurrent
// upserts are last-writer-wins.
func (c *connCache) upsert(key uint64, magic uint32, nowNs int64) {
	c.mu.Lock()
	e, ok := c.cache.Get(key)
	if !ok {
		e = &connEntry{}
		c.cache.Add(key, e)
	}
	c.mu.Unlock()
	e.magic.Store(magic)
	e.lastSeenNs.Store(nowNs)
}
