package fec

import "github.com/xtaci/v3edge/gf256"

// Encoder is a per-sender FEC encoder ("encoders are not shared between
// threads without external locking... recommend per-sender instantiation").
// It is RS-mode only; see XOREncoder for the single-parity mode.
type Encoder struct {
	k, m int
	eng  engine
	next uint32 // monotonic group id; non-atomic, single-writer by design
}

// NewEncoder builds an RS encoder for K data / M parity shards, picking the
// scalar or wide-lane engine via a one-time runtime feature probe.
func NewEncoder(k, m int) *Encoder {
	return &Encoder{k: k, m: m, eng: selectEngine()}
}

// SetLossRate adjusts M for the next group's loss-rate table.
// The caller-observed loss rate r selects M: <0.05 -> 2, <0.10 -> 3,
// <0.20 -> 4, <0.30 -> 5, else K.
func (e *Encoder) SetLossRate(r float64) {
	switch {
	case r < 0.05:
		e.m = 2
	case r < 0.10:
		e.m = 3
	case r < 0.20:
		e.m = 4
	case r < 0.30:
		e.m = 5
	default:
		e.m = e.k
	}
}

// shardPayloadSize computes ceil(len/K) rounded up to the next 16-byte
// boundary, since the wire header can only communicate RS shard size as a
// multiple of 16. ok is false when the result exceeds MaxShardPayload.
func shardPayloadSize(bufLen, k int) (size int, ok bool) {
	raw := (bufLen + k - 1) / k
	if raw == 0 {
		raw = 1
	}
	rounded := ((raw + 15) / 16) * 16
	if rounded > MaxShardPayload {
		return 0, false
	}
	return rounded, true
}

// Encode splits buf into K data shards and M parity shards. Returns false
// if the buffer does not fit within K*MaxShardPayload.
func (e *Encoder) Encode(buf []byte) (groupID uint32, shards []Shard, ok bool) {
	size, ok := shardPayloadSize(len(buf), e.k)
	if !ok {
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

	parity := make([][]byte, e.m)
	for p := 0; p < e.m; p++ {
		par := make([]byte, size)
		x := byte(e.k + p + 1)
		for d := 0; d < e.k; d++ {
			coef := gf256.Vandermonde(x, d)
			e.eng.mulAccumulate(coef, data[d], par)
		}
		parity[p] = par
	}

	shards = make([]Shard, 0, e.k+e.m)
	sizeDiv := uint8(size / 16)
	for d := 0; d < e.k; d++ {
		shards = append(shards, Shard{
			Header: Header{GroupID: groupID, Index: uint8(d), K: uint8(e.k), M: uint8(e.m), SizeDiv: sizeDiv},
			Payload: data[d],
		})
	}
	for p := 0; p < e.m; p++ {
		shards = append(shards, Shard{
			Header: Header{GroupID: groupID, Index: uint8(e.k + p), K: uint8(e.k), M: uint8(e.m), SizeDiv: sizeDiv},
			Payload: parity[p],
		})
	}
	return groupID, shards, true
}
