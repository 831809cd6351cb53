package fec

import "github.com/templexxx/xorsimd"

// xorGroupCapacity is the FIFO eviction capacity for XOR-mode decode caches.
const xorGroupCapacity = 32

// xorParityIndex is the distinguished shard index XOR mode reserves for its
// single parity shard.
func xorParityIndex(k int) uint8 { return uint8(k) }

// XOREncoder implements the single-parity XOR mode (K <= 4, M = 1).
type XOREncoder struct {
	k    int
	next uint32
}

// NewXOREncoder builds an XOR-mode encoder for K <= 4 data shards.
func NewXOREncoder(k int) *XOREncoder {
	if k < 1 || k > 4 {
		k = 4
	}
	return &XOREncoder{k: k}
}

// Encode splits buf into K data shards and one XOR parity shard. Returns
// false if the shard size would exceed 255 bytes.
func (e *XOREncoder) Encode(buf []byte) (groupID uint32, shards []Shard, ok bool) {
	size, ok := shardPayloadSize(len(buf), e.k)
	if !ok || size > 255 {
		// XOR mode stores the raw byte count in a single byte.
		return 0, nil, false
	}

	groupID = e.next
	e.next++

	data := make([][]byte, e.k)
	for d := 0; d < e.k; d++ {
		shard := make([]byte, size)
		start := d * size
		if start < len(buf) {
			end := start + size
			if end > len(buf) {
				end = len(buf)
			}
			copy(shard, buf[start:end])
		}
		data[d] = shard
	}

	parity := make([]byte, size)
	xorsimd.Encode(parity, data)

	shards = make([]Shard, 0, e.k+1)
	for d := 0; d < e.k; d++ {
		shards = append(shards, Shard{
			Header:  Header{GroupID: groupID, Index: uint8(d), K: uint8(e.k), M: 1, SizeDiv: uint8(size)},
			Payload: data[d],
		})
	}
	shards = append(shards, Shard{
		Header:  Header{GroupID: groupID, Index: xorParityIndex(e.k), K: uint8(e.k), M: 1, SizeDiv: uint8(size)},
		Payload: parity,
	})
	return groupID, shards, true
}

type xorGroup struct {
	k      int
	size   int
	shards map[uint8][]byte
}

// XORDecoder is the per-receiver decode cache for XOR-mode groups.
type XORDecoder struct {
	groups   map[uint32]*xorGroup
	fifo     []uint32
	capacity int
}

// NewXORDecoder builds an XOR-mode decoder with the 32-group FIFO cache.
func NewXORDecoder() *XORDecoder {
	return &XORDecoder{groups: make(map[uint32]*xorGroup), capacity: xorGroupCapacity}
}

// Decode folds a shard into its group. Once K of the K+1 shards are
// present, the missing shard (data or parity) is recovered by XORing the
// rest; any K present shards out of the K+1 suffice.
func (dec *XORDecoder) Decode(s Shard) DecodeResult {
	h := s.Header
	k := int(h.K)
	if k < 1 || k > 4 || h.M != 1 || len(s.Payload) > MaxShardPayload {
		return DecodeResult{Status: StatusFail, GroupID: h.GroupID}
	}

	g, ok := dec.groups[h.GroupID]
	if !ok {
		g = &xorGroup{k: k, size: len(s.Payload), shards: make(map[uint8][]byte)}
		dec.groups[h.GroupID] = g
		dec.fifo = append(dec.fifo, h.GroupID)
		dec.evictIfNeeded()
	}
	g.shards[h.Index] = s.Payload
	if len(s.Payload) > g.size {
		g.size = len(s.Payload)
	}

	// total slots = k data + 1 parity
	if len(g.shards) < k {
		return DecodeResult{Status: StatusWait, GroupID: h.GroupID}
	}

	total := k + 1
	present := make([]uint8, 0, total)
	for idx := range g.shards {
		present = append(present, idx)
	}
	if len(present) < k {
		return DecodeResult{Status: StatusWait, GroupID: h.GroupID}
	}

	var missing = -1
	for idx := 0; idx < total; idx++ {
		if _, ok := g.shards[uint8(idx)]; !ok {
			missing = idx
			break
		}
	}

	out := make([]byte, k*g.size)
	if missing < 0 {
		// all k+1 present (more than K, no recovery needed)
		for d := 0; d < k; d++ {
			copy(out[d*g.size:], g.shards[uint8(d)])
		}
		delete(dec.groups, h.GroupID)
		dec.removeFromFIFO(h.GroupID)
		return DecodeResult{Status: StatusOK, GroupID: h.GroupID, Message: out}
	}

	// recover the single missing shard by XORing the remaining k.
	recovered := make([]byte, g.size)
	rest := make([][]byte, 0, k)
	for idx := 0; idx < total; idx++ {
		if idx == missing {
			continue
		}
		rest = append(rest, g.shards[uint8(idx)])
	}
	xorsimd.Encode(recovered, rest)

	for d := 0; d < k; d++ {
		if d == missing {
			copy(out[d*g.size:], recovered)
		} else {
			copy(out[d*g.size:], g.shards[uint8(d)])
		}
	}

	delete(dec.groups, h.GroupID)
	dec.removeFromFIFO(h.GroupID)
	return DecodeResult{Status: StatusOK, GroupID: h.GroupID, Message: out}
}

func (dec *XORDecoder) evictIfNeeded() {
	for len(dec.fifo) > dec.capacity {
		oldest := dec.fifo[0]
		dec.fifo = dec.fifo[1:]
		delete(dec.groups, oldest)
	}
}

func (dec *XORDecoder) removeFromFIFO(id uint32) {
	for i, v := range dec.fifo {
		if v == id {
			dec.fifo = append(dec.fifo[:i], dec.fifo[i+1:]...)
			return
		}
	}
}
