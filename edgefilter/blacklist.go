package edgefilter

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	blacklistCapacity  = 100_000
	blacklistThreshold = 100
	decayPeriod        = 60 * time.Second
)

// blacklistEntry is a per-source blacklist record. fail_count is
// exponentially decayed by elapsed 60s periods; accesses are atomic so
// concurrent receiver goroutines can bump/decay without a lock.
type blacklistEntry struct {
	failCount  atomic.Uint64
	lastFailNs atomic.Int64
}

// blacklist is a bounded, source-IPv4-keyed LRU of blacklistEntry, shared
// across all receiver threads.
type blacklist struct {
	mu    sync.Mutex
	cache *lru.Cache[uint32, *blacklistEntry]
}

func newBlacklist() *blacklist {
	c, _ := lru.New[uint32, *blacklistEntry](blacklistCapacity)
	return &blacklist{cache: c}
}

// decayAndCheck applies decay then threshold check. Returns
// true if the source is currently blocked.
func (b *blacklist) decayAndCheck(srcIP uint32, nowNs int64) bool {
	b.mu.Lock()
	e, ok := b.cache.Get(srcIP)
	b.mu.Unlock()
	if !ok {
		return false
	}

	last := e.lastFailNs.Load()
	periods := int64(0)
	if nowNs > last {
		periods = (nowNs - last) / int64(decayPeriod)
	}
	if periods > 0 {
		for {
			cur := e.failCount.Load()
			next := cur >> uint(periods)
			if e.failCount.CompareAndSwap(cur, next) {
				break
			}
		}
		e.lastFailNs.Store(nowNs)
	}
	return e.failCount.Load() >= blacklistThreshold
}

// recordFailure bumps fail_count for srcIP, creating the entry at 1 if
// absent.
func (b *blacklist) recordFailure(srcIP uint32, nowNs int64) {
	b.mu.Lock()
	e, ok := b.cache.Get(srcIP)
	if !ok {
		e = &blacklistEntry{}
		e.failCount.Store(1)
		e.lastFailNs.Store(nowNs)
		b.cache.Add(srcIP, e)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	e.failCount.Add(1)
	e.lastFailNs.Store(nowNs)
}
