package edgefilter

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	rateLimitCapacity = 100_000
	rateLimitWindow   = time.Second
	rateLimitCap      = 10_000
)

// rateEntry is a per-source rate-limit window.
type rateEntry struct {
	windowStartNs atomic.Int64
	packetCount   atomic.Uint64
}

// rateLimiter is the bounded, source-IPv4-keyed rate-limit table shared
// across receiver threads. Window resets are last-writer-wins and
// idempotent; a lost reset under concurrent access merely admits one
// extra packet.
type rateLimiter struct {
	mu    sync.Mutex
	cache *lru.Cache[uint32, *rateEntry]
}

func newRateLimiter() *rateLimiter {
	c, _ := lru.New[uint32, *rateEntry](rateLimitCapacity)
	return &rateLimiter{cache: c}
}

// allow returns false (drop) when the source has exceeded the 10,000
// packets/s cap within the current 1s window.
func (r *rateLimiter) allow(srcIP uint32, nowNs int64) bool {
	r.mu.Lock()
	e, ok := r.cache.Get(srcIP)
	if !ok {
		e = &rateEntry{}
		e.windowStartNs.Store(nowNs)
		e.packetCount.Store(1)
		r.cache.Add(srcIP, e)
		r.mu.Unlock()
		return true
	}
	r.mu.Unlock()

	start := e.windowStartNs.Load()
	if nowNs-start < int64(rateLimitWindow) {
		if e.packetCount.Load() >= rateLimitCap {
			return false
		}
		e.packetCount.Add(1)
		return true
	}
	// window expired: reset to the current packet as count 1.
	e.windowStartNs.Store(nowNs)
	e.packetCount.Store(1)
	return true
}
