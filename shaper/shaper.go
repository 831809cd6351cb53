package shaper

import (
	"encoding/binary"
	"time"

	"github.com/xtaci/v3edge/internal/xorshift"
)

// headerOverhead is the fixed allowance subtracted from MTU to derive MSS.
const headerOverhead = 102

// trailingLenBytes reserves the 2 bytes that carry the original length for
// inbound stripping.
const trailingLenBytes = 2

// phase is the shaper's traffic-mimicry state machine.
type phase int

const (
	phaseNormal phase = iota
	phaseBurst
	phaseIdle
)

// Shaper is per-flow, owned by a single goroutine.
type Shaper struct {
	profile   Profile
	params    profileParams
	mtu       int
	mss       int
	maxPad    int

	state          phase
	burstRemaining int
	idleUntil      time.Time
	lastSendNs     int64

	rng *xorshift.State
}

// New builds a Shaper for the given profile and path MTU.
func New(p Profile, mtu int, now time.Time, seed uint64) *Shaper {
	mss := mtu - headerOverhead
	if mss < 0 {
		mss = 0
	}
	maxPad := mss / 10
	if maxPad > 100 {
		maxPad = 100
	}
	return &Shaper{
		profile:    p,
		params:     profiles[p],
		mtu:        mtu,
		mss:        mss,
		maxPad:     maxPad,
		state:      phaseNormal,
		lastSendNs: now.UnixNano(),
		rng:        xorshift.New(seed ^ uint64(now.UnixNano())),
	}
}

// MSS returns the derived maximum segment size.
func (s *Shaper) MSS() int { return s.mss }

// ProcessOutbound pads buf[:length] in place (within len(buf), up to
// maxLen) and returns the new length and the emission delay to apply
// before sending.
func (s *Shaper) ProcessOutbound(buf []byte, length, maxLen int, now time.Time) (newLen int, delayNs int64) {
	nowNs := now.UnixNano()
	s.advancePhase(now)

	newLen = s.pad(buf, length, maxLen)
	delayNs = s.emissionDelay(nowNs)
	s.lastSendNs = nowNs + delayNs
	return newLen, delayNs
}

// advancePhase runs the per-datagram state-transition checks.
func (s *Shaper) advancePhase(now time.Time) {
	switch s.state {
	case phaseIdle:
		if !now.Before(s.idleUntil) {
			s.state = phaseNormal
		}
	case phaseBurst:
		s.burstRemaining--
		if s.burstRemaining <= 0 {
			s.state = phaseNormal
		}
	case phaseNormal:
		roll := s.rngFloat()
		switch {
		case roll < s.params.burstProbability:
			s.state = phaseBurst
			s.burstRemaining = s.params.burstSize
		case roll < s.params.burstProbability+s.params.idleProbability:
			s.state = phaseIdle
			s.idleUntil = now.Add(s.params.idleDuration)
		}
	}
}

// rngFloat returns a uniform float64 in [0, 1).
func (s *Shaper) rngFloat() float64 {
	return float64(s.rng.Next()>>11) / (1 << 53)
}

// pad computes the safe padding envelope and applies it. "target length"
// below is the *total* emitted length, trailer included, clamped to
// [original+2, original+max_pad+2].
func (s *Shaper) pad(buf []byte, length, maxLen int) int {
	envelopeCapTotal := s.mss
	if maxLen < envelopeCapTotal {
		envelopeCapTotal = maxLen
	}

	// With 40% probability, skip padding if already within the typical
	// band: emit just the original bytes plus the trailer.
	if s.rngFloat() < 0.40 && length >= s.params.sizeMin && length <= s.params.sizeMax {
		return s.writeTrailer(buf, length, length)
	}

	targetTotal := s.params.sizeMin
	if s.params.sizeMax > s.params.sizeMin {
		targetTotal += s.rng.Intn(s.params.sizeMax - s.params.sizeMin + 1)
	}

	minAllowed := length + trailingLenBytes
	maxAllowed := length + s.maxPad + trailingLenBytes
	if targetTotal < minAllowed {
		targetTotal = minAllowed
	}
	if targetTotal > maxAllowed {
		targetTotal = maxAllowed
	}
	if targetTotal > envelopeCapTotal {
		targetTotal = envelopeCapTotal
	}
	if targetTotal < minAllowed {
		// buffer/MSS too small to even fit the trailer with padding;
		// fall back to no padding.
		targetTotal = minAllowed
	}

	return s.writeTrailer(buf, length, targetTotal-trailingLenBytes)
}

// writeTrailer fills the pad region with PRNG bytes and appends the
// trailing 2-byte original length, returning the total emitted length.
func (s *Shaper) writeTrailer(buf []byte, origLen, targetLen int) int {
	if targetLen > origLen {
		s.rng.Fill(buf[origLen:targetLen])
	}
	total := targetLen + trailingLenBytes
	if total > len(buf) {
		total = len(buf)
	}
	binary.BigEndian.PutUint16(buf[total-trailingLenBytes:total], uint16(origLen))
	return total
}

// emissionDelay computes the post-processing delay.
func (s *Shaper) emissionDelay(nowNs int64) int64 {
	if s.state == phaseBurst {
		return 100_000 + s.rng.Int63n(400_000) // uniform [100us, 500us]
	}

	sinceLastUs := float64(nowNs-s.lastSendNs) / 1000
	threshold := s.params.intervalUs - s.params.intervalVarianceUs/2
	if sinceLastUs < threshold {
		base := int64((threshold - sinceLastUs) * 1000)
		jitter := int64(0)
		if s.params.intervalVarianceUs > 0 {
			jitter = s.rng.Int63n(int64(s.params.intervalVarianceUs * 1000))
		}
		return base + jitter
	}
	if s.params.intervalVarianceUs > 0 {
		return s.rng.Int63n(int64(s.params.intervalVarianceUs * 500))
	}
	return 0
}

// ProcessInbound strips trailing padding, reading the last 2 bytes as the
// big-endian original length. Fail-safe: an out-of-range length returns
// the buffer unchanged.
func ProcessInbound(buf []byte) int {
	n := len(buf)
	if n < trailingLenBytes {
		return n
	}
	l := binary.BigEndian.Uint16(buf[n-trailingLenBytes:])
	if l > 0 && int(l) <= n-trailingLenBytes {
		return int(l)
	}
	return n
}
