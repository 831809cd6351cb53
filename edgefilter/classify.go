// Package edgefilter implements the fast-path packet classifier:
// magic-based gating, per-source rate limiting, a decaying blacklist, and a
// connection fast-path cache. Grounded on github.com/xtaci/kcptun's
// server-side socket handling style plus github.com/google/gopacket for
// Ethernet/IPv4/UDP header parsing; packets are assumed to begin at an
// Ethernet frame.
package edgefilter

import (
	"encoding/binary"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const headerMinLen = 40 // fixed 40-byte authenticated header

// Filter is the Edge Filter's shared state: maps are safe for concurrent
// use by multiple receiver goroutines.
type Filter struct {
	Port      uint16
	blacklist *blacklist
	rate      *rateLimiter
	conns     *connCache
	Counters  *Counters
}

// NewFilter builds a Filter listening for UDP traffic on port.
func NewFilter(port uint16) *Filter {
	return &Filter{
		Port:      port,
		blacklist: newBlacklist(),
		rate:      newRateLimiter(),
		conns:     newConnCache(),
		Counters:  NewCounters(),
	}
}

// Result is classify's return value.
type Result struct {
	Verdict Verdict
	Reason  Reason
}

// Classify parses packet (assumed to begin at an Ethernet frame), and
// applies the checks in order. validMagics holds up to three
// currently-valid 32-bit magics; absent slots must be zero and must
// never match a plausible derived magic, which is the caller's
// responsibility to ensure.
func (f *Filter) Classify(packet []byte, nowNs int64, validMagics [3]uint32) Result {
	var eth layers.Ethernet
	if err := eth.DecodeFromBytes(packet, gopacket.NilDecodeFeedback); err != nil {
		return f.finish(Result{Verdict: VerdictPassNonUDP})
	}
	if eth.EthernetType != layers.EthernetTypeIPv4 {
		return f.finish(Result{Verdict: VerdictPassNonUDP})
	}

	var ip4 layers.IPv4
	if err := ip4.DecodeFromBytes(eth.LayerPayload(), gopacket.NilDecodeFeedback); err != nil {
		return f.finish(Result{Verdict: VerdictPassNonUDP})
	}
	if ip4.Protocol != layers.IPProtocolUDP {
		return f.finish(Result{Verdict: VerdictPassNonUDP})
	}

	var udp layers.UDP
	if err := udp.DecodeFromBytes(ip4.LayerPayload(), gopacket.NilDecodeFeedback); err != nil {
		return f.finish(Result{Verdict: VerdictPassNonUDP})
	}
	if uint16(udp.DstPort) != f.Port {
		return f.finish(Result{Verdict: VerdictPassNonUDP})
	}

	srcIP := binary.BigEndian.Uint32(ip4.SrcIP.To4())
	srcPort := uint16(udp.SrcPort)
	payload := udp.LayerPayload()

	// step 1: blacklist with decay.
	if f.blacklist.decayAndCheck(srcIP, nowNs) {
		return f.finish(Result{Verdict: VerdictDrop, Reason: ReasonBlacklist})
	}

	// step 2: rate limit.
	if !f.rate.allow(srcIP, nowNs) {
		return f.finish(Result{Verdict: VerdictDrop, Reason: ReasonRateLimit})
	}

	// step 3: length gate.
	if len(payload) < headerMinLen {
		return f.finish(Result{Verdict: VerdictDrop, Reason: ReasonTooShort})
	}

	magic := binary.LittleEndian.Uint32(payload[0:4])
	key := connKey(srcIP, srcPort)

	// step 4: connection fast path.
	if e, ok := f.conns.lookup(key); ok && e.magic.Load() == magic {
		f.conns.upsert(key, magic, nowNs)
		return f.finish(Result{Verdict: VerdictPass})
	}

	// step 5: full magic match against up to three valid magics.
	for _, m := range validMagics {
		if m != 0 && m == magic {
			f.conns.upsert(key, magic, nowNs)
			return f.finish(Result{Verdict: VerdictPass})
		}
	}

	f.blacklist.recordFailure(srcIP, nowNs)
	return f.finish(Result{Verdict: VerdictDrop, Reason: ReasonInvalidMagic})
}

func (f *Filter) finish(r Result) Result {
	f.Counters.bumpForVerdict(r.Verdict, r.Reason)
	return r
}
