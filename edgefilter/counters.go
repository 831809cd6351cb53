package edgefilter

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// counterNames gives each CounterIndex a stable column name for the CSV
// snapshot logger, in index order.
var counterNames = [counterCount]string{
	CounterPassed:              "PASSED",
	CounterDroppedBlacklist:    "DROPPED_BLACKLIST",
	CounterDroppedRateLimit:    "DROPPED_RATE_LIMIT",
	CounterDroppedInvalidMagic: "DROPPED_INVALID_MAGIC",
	CounterDroppedTooShort:     "DROPPED_TOO_SHORT",
	CounterDroppedNotUDP:       "DROPPED_NOT_UDP",
	CounterTotalProcessed:      "TOTAL_PROCESSED",
}

// Reason enumerates why a packet was dropped.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonInvalidMagic
	ReasonRateLimit
	ReasonBlacklist
	ReasonTooShort
)

// Verdict is the outcome of classify.
type Verdict int

const (
	VerdictPass Verdict = iota
	VerdictDrop
	VerdictPassNonUDP
)

// CounterIndex names the indexed counter bank.
type CounterIndex int

const (
	CounterPassed CounterIndex = iota
	CounterDroppedBlacklist
	CounterDroppedRateLimit
	CounterDroppedInvalidMagic
	CounterDroppedTooShort
	CounterDroppedNotUDP
	CounterTotalProcessed
	counterCount
)

// Counters is an indexed, per-CPU-striped counter bank summed on read:
// one monotonic uint64 per counter per CPU.
type Counters struct {
	stripes [][counterCount]atomic.Uint64
	next    atomic.Uint32 // round-robins stripe selection to spread contention
}

// NewCounters builds a counter bank with one stripe per logical CPU.
func NewCounters() *Counters {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return &Counters{stripes: make([][counterCount]atomic.Uint64, n)}
}

// Bump increments one counter in a round-robin-selected stripe.
func (c *Counters) Bump(idx CounterIndex) {
	stripe := int(c.next.Add(1)) % len(c.stripes)
	c.stripes[stripe][idx].Add(1)
}

// Read sums a counter across all stripes.
func (c *Counters) Read(idx CounterIndex) uint64 {
	var total uint64
	for i := range c.stripes {
		total += c.stripes[i][idx].Load()
	}
	return total
}

// Header returns the CSV column names for Row, in matching order.
func (c *Counters) Header() []string {
	names := make([]string, len(counterNames))
	copy(names, counterNames[:])
	return names
}

// Row returns the current summed value of every counter, in Header order.
func (c *Counters) Row() []string {
	row := make([]string, counterCount)
	for i := CounterIndex(0); i < counterCount; i++ {
		row[i] = fmt.Sprint(c.Read(i))
	}
	return row
}

// bumpForVerdict records the per-outcome counter bump for a classify result
// alongside the always-incremented TOTAL_PROCESSED counter.
func (c *Counters) bumpForVerdict(v Verdict, reason Reason) {
	c.Bump(CounterTotalProcessed)
	switch v {
	case VerdictPass:
		c.Bump(CounterPassed)
	case VerdictPassNonUDP:
		c.Bump(CounterDroppedNotUDP)
	case VerdictDrop:
		switch reason {
		case ReasonBlacklist:
			c.Bump(CounterDroppedBlacklist)
		case ReasonRateLimit:
			c.Bump(CounterDroppedRateLimit)
		case ReasonInvalidMagic:
			c.Bump(CounterDroppedInvalidMagic)
		case ReasonTooShort:
			c.Bump(CounterDroppedTooShort)
		}
	}
}
