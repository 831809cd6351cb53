package fec

import "github.com/xtaci/v3edge/gf256"

// rsGroupCapacity is the FIFO eviction capacity for RS-mode decode caches.
const rsGroupCapacity = 64

type rsGroup struct {
	k, m   int
	size   int
	shards map[uint8][]byte
}

// Decoder is a per-receiver stateful RS decoder. It is not safe to share
// between receiver goroutines without external synchronization: the
// decoder cache is per-receiver.
type Decoder struct {
	groups   map[uint32]*rsGroup
	fifo     []uint32
	capacity int
}

// NewDecoder builds a decoder with the RS-mode FIFO cache capacity.
func NewDecoder() *Decoder {
	return &Decoder{
		groups:   make(map[uint32]*rsGroup),
		capacity: rsGroupCapacity,
	}
}

// Decode folds one received shard into its group and, once K distinct
// shards of that group are present, reconstructs the original message.
func (dec *Decoder) Decode(s Shard) DecodeResult {
	h := s.Header
	if h.K == 0 || h.M == 0 || int(h.K)+int(h.M) > 255 || len(s.Payload) > MaxShardPayload {
		return DecodeResult{Status: StatusFail, GroupID: h.GroupID}
	}

	g, ok := dec.groups[h.GroupID]
	if !ok {
		g = &rsGroup{k: int(h.K), m: int(h.M), size: len(s.Payload), shards: make(map[uint8][]byte)}
		dec.groups[h.GroupID] = g
		dec.fifo = append(dec.fifo, h.GroupID)
		dec.evictIfNeeded()
	}

	// idempotent write: duplicates and retransmissions simply overwrite.
	g.shards[h.Index] = s.Payload
	if len(s.Payload) > g.size {
		g.size = len(s.Payload)
	}

	if len(g.shards) < g.k {
		return DecodeResult{Status: StatusWait, GroupID: h.GroupID}
	}

	msg, recoverOK := reconstruct(g)
	if !recoverOK {
		// Leave the entry for eventual FIFO eviction (algorithmic
		// failures leave no partial state visible, but the cache entry
		// itself persists until evicted).
		return DecodeResult{Status: StatusFail, GroupID: h.GroupID}
	}

	delete(dec.groups, h.GroupID)
	dec.removeFromFIFO(h.GroupID)
	return DecodeResult{Status: StatusOK, GroupID: h.GroupID, Message: msg}
}

func (dec *Decoder) evictIfNeeded() {
	for len(dec.fifo) > dec.capacity {
		oldest := dec.fifo[0]
		dec.fifo = dec.fifo[1:]
		delete(dec.groups, oldest)
	}
}

func (dec *Decoder) removeFromFIFO(id uint32) {
	for i, v := range dec.fifo {
		if v == id {
			dec.fifo = append(dec.fifo[:i], dec.fifo[i+1:]...)
			return
		}
	}
}

// reconstruct recovers the K data shards and concatenates them. When every
// data shard is present they are concatenated directly, without building or
// inverting a matrix. Otherwise it picks K present shards, builds their rows
// of the encoding matrix (the identity row for a data shard, the Vandermonde
// row x = index+1 for a parity shard), inverts it, and recovers the missing
// data shards.
func reconstruct(g *rsGroup) ([]byte, bool) {
	k := g.k
	out := make([]byte, k*g.size)
	allData := true
	for d := 0; d < k; d++ {
		p, ok := g.shards[uint8(d)]
		if !ok {
			allData = false
			break
		}
		copy(out[d*g.size:], p)
	}
	if allData {
		return out, true
	}

	present := make([]uint8, 0, k)
	for idx := range g.shards {
		present = append(present, idx)
		if len(present) == k {
			break
		}
	}
	if len(present) < k {
		return nil, false
	}

	indices := make([]int, k)
	payloads := make([][]byte, k)
	for i, idx := range present {
		indices[i] = int(idx)
		payloads[i] = g.shards[idx]
	}

	vm := newVandermonde(indices, k)
	for i, idx := range indices {
		if idx < k {
			// data shards are sent verbatim: their encoding row is the identity row.
			vm.rows[i] = make([]byte, k)
			vm.rows[i][idx] = 1
		}
	}
	inv, ok := vm.invert()
	if !ok {
		return nil, false
	}

	for dataIdx := 0; dataIdx < k; dataIdx++ {
		if p, ok := g.shards[uint8(dataIdx)]; ok {
			copy(out[dataIdx*g.size:], p)
			continue
		}
		recovered := make([]byte, g.size)
		for j := 0; j < k; j++ {
			coef := inv.rows[dataIdx][j]
			if coef == 0 {
				continue
			}
			src := payloads[j]
			table := gf256.MulTable[coef][:256]
			for b, v := range src {
				recovered[b] ^= table[v]
			}
		}
		copy(out[dataIdx*g.size:], recovered)
	}
	return out, true
}
