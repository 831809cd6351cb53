package fec

import (
	"bytes"
	"testing"
)

func makeBuf(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 256)
	}
	return b
}

// 5,000-byte buffer, K=5, M=2; drop two shards; decode from
// the remaining five recovers the original padded to the rounded shard size.
func TestRSEndToEndScenario1(t *testing.T) {
	buf := makeBuf(5000)
	enc := NewEncoder(5, 2)
	groupID, shards, ok := enc.Encode(buf)
	if !ok {
		t.Fatal("encode failed")
	}
	if len(shards) != 7 {
		t.Fatalf("expected 7 shards, got %d", len(shards))
	}
	for _, s := range shards {
		if s.Header.GroupID != groupID {
			t.Fatalf("group id mismatch")
		}
	}

	dec := NewDecoder()
	var result DecodeResult
	for i, s := range shards {
		if i == 0 || i == 3 {
			continue // drop shards 0 and 3
		}
		result = dec.Decode(s)
	}
	if result.Status != StatusOK {
		t.Fatalf("expected StatusOK, got %v", result.Status)
	}
	padded := make([]byte, len(result.Message))
	copy(padded, buf)
	if !bytes.Equal(result.Message, padded) {
		t.Fatalf("recovered message does not match original padded buffer")
	}
}

// any K distinct shards of K+M suffice; exercise a few different
// dropped subsets.
func TestRSAnyKShardsRecover(t *testing.T) {
	buf := makeBuf(3000)
	for drop := 0; drop < 5; drop++ {
		enc := NewEncoder(4, 3)
		_, shards, ok := enc.Encode(buf)
		if !ok {
			t.Fatal("encode failed")
		}
		dec := NewDecoder()
		var result DecodeResult
		for i, s := range shards {
			if i == drop || i == (drop+1)%len(shards) || i == (drop+2)%len(shards) {
				continue
			}
			result = dec.Decode(s)
		}
		if result.Status != StatusOK {
			t.Fatalf("drop set %d: expected StatusOK, got %v", drop, result.Status)
		}
	}
}

// no-loss path must not invoke the inverse matrix and must return the
// straightforward concatenation.
func TestRSNoLossFastPath(t *testing.T) {
	buf := makeBuf(800)
	enc := NewEncoder(5, 2)
	_, shards, _ := enc.Encode(buf)
	dec := NewDecoder()
	var result DecodeResult
	for _, s := range shards[:5] { // all data shards, no parity needed
		result = dec.Decode(s)
	}
	if result.Status != StatusOK {
		t.Fatalf("expected StatusOK, got %v", result.Status)
	}
}

func TestRSWaitBeforeQuorum(t *testing.T) {
	buf := makeBuf(1000)
	enc := NewEncoder(4, 2)
	_, shards, _ := enc.Encode(buf)
	dec := NewDecoder()
	for i := 0; i < 3; i++ {
		result := dec.Decode(shards[i])
		if result.Status != StatusWait {
			t.Fatalf("expected WAIT before quorum, got %v", result.Status)
		}
	}
}

func TestRSDuplicateShardsIdempotent(t *testing.T) {
	buf := makeBuf(1000)
	enc := NewEncoder(4, 2)
	_, shards, _ := enc.Encode(buf)
	dec := NewDecoder()
	dec.Decode(shards[0])
	dec.Decode(shards[0]) // duplicate
	dec.Decode(shards[1])
	result := dec.Decode(shards[1]) // duplicate
	if result.Status != StatusWait {
		t.Fatalf("duplicates should not advance past WAIT, got %v", result.Status)
	}
}

// XOR mode, K<=4, M=1; dropping any single shard and feeding the rest
// recovers all K data shards.
func TestXORSingleShardRecovery(t *testing.T) {
	buf := makeBuf(400)
	for drop := 0; drop < 5; drop++ { // 4 data + 1 parity = 5 slots
		enc := NewXOREncoder(4)
		_, shards, ok := enc.Encode(buf)
		if !ok {
			t.Fatal("encode failed")
		}
		dec := NewXORDecoder()
		var result DecodeResult
		for i, s := range shards {
			if i == drop {
				continue
			}
			result = dec.Decode(s)
		}
		if result.Status != StatusOK {
			t.Fatalf("drop index %d: expected StatusOK, got %v", drop, result.Status)
		}
	}
}

func TestSetLossRateAdjustsM(t *testing.T) {
	enc := NewEncoder(5, 2)
	cases := []struct {
		r    float64
		want int
	}{
		{0.01, 2},
		{0.07, 3},
		{0.15, 4},
		{0.25, 5},
		{0.9, 5},
	}
	for _, c := range cases {
		enc.SetLossRate(c.r)
		if enc.m != c.want {
			t.Fatalf("loss rate %v: expected M=%d, got %d", c.r, c.want, enc.m)
		}
	}
}

func TestDecodeFailOnMalformedHeader(t *testing.T) {
	dec := NewDecoder()
	bad := Shard{Header: Header{GroupID: 1, Index: 0, K: 0, M: 2}, Payload: []byte{1, 2, 3}}
	result := dec.Decode(bad)
	if result.Status != StatusFail {
		t.Fatalf("expected StatusFail for K=0, got %v", result.Status)
	}
}

// Scalar and wide-lane engines must produce bit-identical shards for
// identical inputs.
func TestEnginesProduceIdenticalShards(t *testing.T) {
	buf := makeBuf(2000)
	k, m := 5, 3

	scalarEnc := &Encoder{k: k, m: m, eng: scalarEngine{}}
	wideEnc := &Encoder{k: k, m: m, eng: wideLaneEngine{}}

	_, scalarShards, ok1 := scalarEnc.Encode(buf)
	_, wideShards, ok2 := wideEnc.Encode(buf)
	if !ok1 || !ok2 {
		t.Fatal("encode failed")
	}
	if len(scalarShards) != len(wideShards) {
		t.Fatalf("shard count mismatch")
	}
	for i := range scalarShards {
		if !bytes.Equal(scalarShards[i].Payload, wideShards[i].Payload) {
			t.Fatalf("shard %d payload mismatch between engines", i)
		}
	}
}

func TestCodecDispatch(t *testing.T) {
	c := NewCodec(ModeRS, 4, 2)
	if c.EngineName() == "" {
		t.Fatal("expected non-empty engine name")
	}
	xc := NewCodec(ModeXOR, 4, 1)
	xc.SetLossRate(0.5) // must be a no-op, not a panic
}
