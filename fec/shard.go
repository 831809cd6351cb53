// The MIT License (MIT)
//
// Copyright (c) 2015 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package fec implements the shard-based erasure codec over GF(2^8): a
// scalar Reed-Solomon reference, a wide-lane (SIMD-flavored) variant
// selected at construction by a runtime CPU-feature probe, and a
// single-parity XOR mode. Grounded on github.com/xtaci/kcp-go/v5's fec.go
// framing idiom and github.com/klauspost/reedsolomon's Vandermonde/
// Gauss-Jordan matrix construction style.
package fec

import "encoding/binary"

const (
	// MaxShardPayload is the largest payload a single shard envelope can
	// carry (1,400-byte envelope minus the 8-byte shard header).
	MaxShardPayload = 1392
	// ShardEnvelopeSize is the fixed wire size of one shard.
	ShardEnvelopeSize = 1400
	// ShardHeaderSize is the fixed shard header size.
	ShardHeaderSize = 8

	// xorParityIndexUnused is an unused placeholder; XOR mode's parity
	// shard index is K (see xorParityIndex in xor.go and Header.Index).
	xorParityIndexUnused = 0
)

// Header is the 8-byte shard envelope header:
//
//	4B group id (network byte order)
//	1B shard index
//	1B K (data-shard count) -- for XOR mode this byte holds K and the
//	                            parity shard uses index == K
//	1B M (parity-shard count; XOR mode: always 1, stored here too)
//	1B shard-size divisor: RS mode stores payload-bytes/16; XOR mode
//	                        stores the raw payload byte count (must be
//	                        <= 255, since XOR groups are small by design)
type Header struct {
	GroupID uint32
	Index   uint8
	K       uint8
	M       uint8
	SizeDiv uint8
}

// Encode writes the header into the first ShardHeaderSize bytes of dst.
func (h Header) Encode(dst []byte) {
	binary.BigEndian.PutUint32(dst[0:4], h.GroupID)
	dst[4] = h.Index
	dst[5] = h.K
	dst[6] = h.M
	dst[7] = h.SizeDiv
}

// DecodeHeader parses the 8-byte shard header.
func DecodeHeader(src []byte) Header {
	return Header{
		GroupID: binary.BigEndian.Uint32(src[0:4]),
		Index:   src[4],
		K:       src[5],
		M:       src[6],
		SizeDiv: src[7],
	}
}

// Shard is one data or parity fragment of a FEC group: an 8-byte header
// plus up to MaxShardPayload bytes of payload.
type Shard struct {
	Header  Header
	Payload []byte
}

// Bytes serializes the shard into the fixed 1,400-byte wire envelope.
// Payload shorter than the envelope capacity is zero-padded.
func (s Shard) Bytes() []byte {
	buf := make([]byte, ShardEnvelopeSize)
	s.Header.Encode(buf)
	copy(buf[ShardHeaderSize:], s.Payload)
	return buf
}

// ParseShard decodes a shard from its wire form. PayloadLen is either
// RS-mode's (SizeDiv*16) or XOR-mode's SizeDiv, matching the header's own
// declared shard-size divisor semantics.
func ParseShard(wire []byte, rsMode bool) (Shard, bool) {
	if len(wire) < ShardHeaderSize {
		return Shard{}, false
	}
	h := DecodeHeader(wire)
	var payloadLen int
	if rsMode {
		payloadLen = int(h.SizeDiv) * 16
	} else {
		payloadLen = int(h.SizeDiv)
	}
	if payloadLen > MaxShardPayload {
		return Shard{}, false
	}
	body := wire[ShardHeaderSize:]
	if payloadLen > len(body) {
		return Shard{}, false
	}
	return Shard{Header: h, Payload: body[:payloadLen]}, true
}
