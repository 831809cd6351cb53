// Package pacer implements the token-bucket sender with slow-start /
// congestion-avoidance / recovery congestion control. A Pacer is
// owned by a single goroutine for a single flow; pace multiple flows
// with one Pacer each.
//
// Grounded on github.com/xtaci/kcp-go/v5's congestion-window bookkeeping
// style (cwnd/ssthresh fields in sess.go) generalized to the token-bucket
// shape called for here, with its own independent xorshift PRNG per flow
// since shapers and pacers each maintain independent state.
package pacer

import (
	"time"

	"github.com/xtaci/v3edge/internal/xorshift"
)

// State is the congestion-control state machine.
type State int

const (
	SlowStart State = iota
	CongestionAvoidance
	Recovery
)

const (
	initialTokens  = 65536
	initialCwnd    = 10 * 1400
	minWaitNs      = 10_000
	quarterRTTDivisor = 4
)

// Pacer is per-flow token-bucket and congestion-control state.
type Pacer struct {
	targetBps float64
	minBps    float64
	maxBps    float64

	tokens       float64
	tokensPerNs  float64
	lastRefillNs int64

	rttUs    float64
	rttVar   float64
	rttMinUs float64
	haveRTT  bool

	bwEstimateBps float64
	bytesInFlight int64
	cwnd          int64
	ssthresh      int64
	state         State
	lastLossNs    int64

	// JitterRangeNs, when non-zero, adds uniform jitter in [0, JitterRangeNs)
	// to acquire's wait return.
	JitterRangeNs int64

	rng *xorshift.State
}

// New constructs a Pacer with the given target/min/max bitrate (bits/sec)
// and an RTT estimate (microseconds) used to size the initial burst cap.
func New(targetBps, minBps, maxBps float64, rttUsHint float64, now time.Time, seed uint64) *Pacer {
	p := &Pacer{
		targetBps:    targetBps,
		minBps:       minBps,
		maxBps:       maxBps,
		tokens:       initialTokens,
		tokensPerNs:  targetBps / 8 / 1e9,
		lastRefillNs: now.UnixNano(),
		rttUs:        rttUsHint,
		rttMinUs:     rttUsHint,
		cwnd:         initialCwnd,
		ssthresh:     1<<62 - 1, // effectively infinite
		state:        SlowStart,
		rng:          xorshift.New(seed ^ uint64(now.UnixNano())),
	}
	return p
}

func (p *Pacer) maxBurst() float64 {
	b := p.targetBps / 8 * (p.rttUs / 1e6)
	if b < 65536 {
		return 65536
	}
	return b
}

func (p *Pacer) refill(nowNs int64) {
	if nowNs <= p.lastRefillNs {
		return
	}
	elapsed := float64(nowNs - p.lastRefillNs)
	p.tokens += elapsed * p.tokensPerNs
	cap := p.maxBurst()
	if p.tokens > cap {
		p.tokens = cap
	}
	p.lastRefillNs = nowNs
}

// Acquire refills tokens and returns the number of nanoseconds the caller
// must wait before sending `bytes`. A return of 0 means send now.
func (p *Pacer) Acquire(bytes int, now time.Time) int64 {
	nowNs := now.UnixNano()
	p.refill(nowNs)

	if p.bytesInFlight+int64(bytes) > p.cwnd {
		return int64(p.rttUs * 1000 / quarterRTTDivisor)
	}

	if p.tokens >= float64(bytes) {
		return 0
	}

	need := float64(bytes) - p.tokens
	waitNs := int64(need / p.tokensPerNs)
	if waitNs < minWaitNs {
		waitNs = minWaitNs
	}
	if p.JitterRangeNs > 0 {
		waitNs += p.rng.Int63n(p.JitterRangeNs)
	}
	return waitNs
}

// Commit deducts bytes from the token bucket and accounts them as in
// flight. Within one Pacer, Commit calls must be totally ordered
// after the Acquire call they correspond to.
func (p *Pacer) Commit(bytes int) {
	p.tokens -= float64(bytes)
	if p.tokens < 0 {
		p.tokens = 0
	}
	p.bytesInFlight += int64(bytes)
}

// Ack reduces bytes in flight and grows cwnd per the current congestion
// state.
func (p *Pacer) Ack(bytes int) {
	p.bytesInFlight -= int64(bytes)
	if p.bytesInFlight < 0 {
		p.bytesInFlight = 0
	}

	switch p.state {
	case SlowStart:
		p.cwnd += int64(bytes)
		if p.cwnd >= p.ssthresh {
			p.state = CongestionAvoidance
		}
	case CongestionAvoidance:
		if p.cwnd > 0 {
			p.cwnd += 1400 * int64(bytes) / p.cwnd
		}
	case Recovery:
		if p.bytesInFlight < p.cwnd/2 {
			p.state = CongestionAvoidance
		}
	}
}

// UpdateRTT folds a new RTT sample (microseconds) into the smoothed
// estimate with TCP-style gains (1/8 mean, 1/4 mean deviation), tracks
// rtt_min, and re-derives the bandwidth estimate and target rate.
func (p *Pacer) UpdateRTT(sampleUs float64) {
	if !p.haveRTT {
		p.rttUs = sampleUs
		p.rttVar = sampleUs / 2
		p.rttMinUs = sampleUs
		p.haveRTT = true
	} else {
		delta := sampleUs - p.rttUs
		p.rttUs += delta / 8
		if delta < 0 {
			delta = -delta
		}
		p.rttVar += (delta - p.rttVar) / 4
	}
	if sampleUs < p.rttMinUs {
		p.rttMinUs = sampleUs
	}

	if p.bytesInFlight > 0 {
		instBw := float64(p.bytesInFlight) * 8 * 1e6 / sampleUs
		p.bwEstimateBps += 0.1 * (instBw - p.bwEstimateBps)
		target := clamp(p.bwEstimateBps, p.minBps, p.maxBps)
		p.targetBps = target
		p.tokensPerNs = p.targetBps / 8 / 1e9
	}
}

// ReportLoss debounces repeated loss signals within one RTT. On a fresh
// signal in SlowStart or CongestionAvoidance it sets ssthresh to cwnd/2,
// drops cwnd to ssthresh, and enters Recovery; in every state a fresh
// signal cuts the target rate by 30% (floored at minBps).
func (p *Pacer) ReportLoss(now time.Time) {
	nowNs := now.UnixNano()
	if p.lastLossNs != 0 && nowNs-p.lastLossNs < int64(p.rttUs*1000) {
		return
	}
	p.lastLossNs = nowNs

	if p.state == SlowStart || p.state == CongestionAvoidance {
		p.ssthresh = p.cwnd / 2
		p.cwnd = p.ssthresh
		p.state = Recovery
	}

	p.targetBps *= 0.7
	if p.targetBps < p.minBps {
		p.targetBps = p.minBps
	}
	p.tokensPerNs = p.targetBps / 8 / 1e9
}

func (p *Pacer) State() State         { return p.state }
func (p *Pacer) Cwnd() int64          { return p.cwnd }
func (p *Pacer) Ssthresh() int64      { return p.ssthresh }
func (p *Pacer) TargetBps() float64   { return p.targetBps }
func (p *Pacer) BytesInFlight() int64 { return p.bytesInFlight }
func (p *Pacer) RTTMinUs() float64    { return p.rttMinUs }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
