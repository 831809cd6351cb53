// Package headergate implements the authenticated header parse that
// yields routing metadata for an incoming datagram. The 40-byte
// wire layout and AAD construction are defined in; this package treats
// the AEAD as an abstract collaborator (package aead).
package headergate

import (
	"encoding/binary"
)

const (
	// WireSize is the fixed 40-byte authenticated header.
	WireSize = 40

	magicOffset      = 0
	magicSize        = 4
	nonceOffset      = magicOffset + magicSize
	nonceSize        = 12
	blockOffset      = nonceOffset + nonceSize
	blockSize        = 16
	tagOffset        = blockOffset + blockSize
	tagSize          = 16
	earlyLenOffset   = tagOffset + tagSize
	earlyLenSize     = 2
	paddingOffset    = earlyLenOffset + earlyLenSize
	paddingSize      = 2

	plaintextSessionOffset = 0
	plaintextSessionSize   = 8
	plaintextIntentOffset  = plaintextSessionOffset + plaintextSessionSize
	plaintextIntentSize    = 2
	plaintextStreamOffset  = plaintextIntentOffset + plaintextIntentSize
	plaintextStreamSize    = 2
	plaintextFlagsOffset   = plaintextStreamOffset + plaintextStreamSize
	plaintextFlagsSize     = 2
	plaintextEarlyOffset   = plaintextFlagsOffset + plaintextFlagsSize
)

// FlagAllowZeroRTT is bit 0 of the flags field.
const FlagAllowZeroRTT = 1 << 0

// WireHeader is the parsed-but-not-yet-authenticated 40-byte header.
type WireHeader struct {
	Magic    uint32
	Nonce    [nonceSize]byte
	Block    [blockSize]byte
	Tag      [tagSize]byte
	EarlyLen uint16
	Padding  uint16
}

// ParseWire decodes the fixed 40-byte wire layout. The caller must
// already have ensured len(data) >= WireSize (the Edge Filter's length
// gate,, guarantees this upstream).
func ParseWire(data []byte) (WireHeader, bool) {
	if len(data) < WireSize {
		return WireHeader{}, false
	}
	var h WireHeader
	h.Magic = binary.LittleEndian.Uint32(data[magicOffset:])
	copy(h.Nonce[:], data[nonceOffset:nonceOffset+nonceSize])
	copy(h.Block[:], data[blockOffset:blockOffset+blockSize])
	copy(h.Tag[:], data[tagOffset:tagOffset+tagSize])
	h.EarlyLen = binary.BigEndian.Uint16(data[earlyLenOffset:])
	h.Padding = binary.BigEndian.Uint16(data[paddingOffset:])
	return h, true
}

// aad builds the 6-byte associated data: (early_len, padding,
// low-16-bits-of-magic).
func (h WireHeader) aad() []byte {
	buf := make([]byte, 6)
	binary.BigEndian.PutUint16(buf[0:2], h.EarlyLen)
	binary.BigEndian.PutUint16(buf[2:4], h.Padding)
	binary.BigEndian.PutUint16(buf[4:6], uint16(h.Magic))
	return buf
}

// Metadata is the routing metadata recovered from a successfully
// authenticated header.
type Metadata struct {
	Session  uint64
	Intent   uint16
	Stream   uint16
	Flags    uint16
	EarlyLen uint16
}

// AllowZeroRTT reports whether flag bit 0 permits 0-RTT data.
func (m Metadata) AllowZeroRTT() bool { return m.Flags&FlagAllowZeroRTT != 0 }

// aeadOpener is the subset of package aead's AEAD interface this package
// needs, kept narrow to avoid an import cycle concern and to make the
// dependency obvious at the call site.
type aeadOpener interface {
	Open(nonce, aad, ciphertext, tag []byte) ([]byte, error)
}

// aeadSealer is the sealing counterpart, used by Build on the sending side.
type aeadSealer interface {
	Seal(nonce, aad, plaintext []byte) (ciphertext, tag []byte)
}

// Build assembles a fresh 40-byte authenticated header for an outbound
// datagram, the inverse of Authenticate.
func Build(a aeadSealer, magic uint32, nonce [nonceSize]byte, md Metadata, padding uint16) []byte {
	plaintext := make([]byte, blockSize)
	binary.BigEndian.PutUint64(plaintext[plaintextSessionOffset:], md.Session)
	binary.BigEndian.PutUint16(plaintext[plaintextIntentOffset:], md.Intent)
	binary.BigEndian.PutUint16(plaintext[plaintextStreamOffset:], md.Stream)
	binary.BigEndian.PutUint16(plaintext[plaintextFlagsOffset:], md.Flags)
	binary.BigEndian.PutUint16(plaintext[plaintextEarlyOffset:], md.EarlyLen)

	h := WireHeader{Magic: magic, Nonce: nonce, EarlyLen: md.EarlyLen, Padding: padding}
	ciphertext, tag := a.Seal(nonce[:], h.aad(), plaintext)

	wire := make([]byte, WireSize)
	binary.LittleEndian.PutUint32(wire[magicOffset:], magic)
	copy(wire[nonceOffset:], nonce[:])
	copy(wire[blockOffset:], ciphertext)
	copy(wire[tagOffset:], tag)
	binary.BigEndian.PutUint16(wire[earlyLenOffset:], md.EarlyLen)
	binary.BigEndian.PutUint16(wire[paddingOffset:], padding)
	return wire
}

// Authenticate implements verify the magic against the up-to-three
// valid magics, AEAD-decrypt the metadata block, and validate the
// early-data length echo. Returns ok=false (FAIL) on any mismatch.
func Authenticate(headerBytes []byte, validMagics [3]uint32, a aeadOpener) (Metadata, bool) {
	h, ok := ParseWire(headerBytes)
	if !ok {
		return Metadata{}, false
	}

	matched := false
	for _, m := range validMagics {
		if m != 0 && m == h.Magic {
			matched = true
			break
		}
	}
	if !matched {
		return Metadata{}, false
	}

	plaintext, err := a.Open(h.Nonce[:], h.aad(), h.Block[:], h.Tag[:])
	if err != nil || len(plaintext) != blockSize {
		return Metadata{}, false
	}

	md := Metadata{
		Session:  binary.BigEndian.Uint64(plaintext[plaintextSessionOffset:]),
		Intent:   binary.BigEndian.Uint16(plaintext[plaintextIntentOffset:]),
		Stream:   binary.BigEndian.Uint16(plaintext[plaintextStreamOffset:]),
		Flags:    binary.BigEndian.Uint16(plaintext[plaintextFlagsOffset:]),
		EarlyLen: binary.BigEndian.Uint16(plaintext[plaintextEarlyOffset:]),
	}
	if md.EarlyLen != h.EarlyLen {
		return Metadata{}, false
	}
	return md, true
}
