package headergate

import (
	"encoding/binary"
	"testing"

	"github.com/xtaci/v3edge/aead"
)

func buildWire(t *testing.T, a aead.AEAD, magic uint32, session uint64, intent, stream, flags, earlyLen uint16, nonce [12]byte, padding uint16) []byte {
	t.Helper()
	md := Metadata{Session: session, Intent: intent, Stream: stream, Flags: flags, EarlyLen: earlyLen}
	return Build(a, magic, nonce, md, padding)
}

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestAuthenticateValidHeader(t *testing.T) {
	a, err := aead.NewChaCha20Poly1305(testKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var nonce [12]byte
	for i := range nonce {
		nonce[i] = byte(i + 1)
	}
	wire := buildWire(t, a, 0xdeadbeef, 42, 1, 2, FlagAllowZeroRTT, 128, nonce, 0)

	md, ok := Authenticate(wire, [3]uint32{0xdeadbeef, 0, 0}, a)
	if !ok {
		t.Fatalf("expected authentication to succeed")
	}
	if md.Session != 42 || md.Intent != 1 || md.Stream != 2 || md.EarlyLen != 128 {
		t.Fatalf("unexpected metadata: %+v", md)
	}
	if !md.AllowZeroRTT() {
		t.Fatalf("expected zero-RTT flag set")
	}
}

func TestAuthenticateRejectsUnknownMagic(t *testing.T) {
	a, _ := aead.NewChaCha20Poly1305(testKey())
	var nonce [12]byte
	wire := buildWire(t, a, 0x11111111, 1, 0, 0, 0, 0, nonce, 0)

	if _, ok := Authenticate(wire, [3]uint32{0x22222222, 0x33333333, 0x44444444}, a); ok {
		t.Fatalf("expected authentication to fail on unknown magic")
	}
}

func TestAuthenticateRejectsTamperedTag(t *testing.T) {
	a, _ := aead.NewChaCha20Poly1305(testKey())
	var nonce [12]byte
	wire := buildWire(t, a, 0xabc, 1, 0, 0, 0, 0, nonce, 0)
	wire[tagOffset] ^= 0xff

	if _, ok := Authenticate(wire, [3]uint32{0xabc, 0, 0}, a); ok {
		t.Fatalf("expected authentication to fail on tampered tag")
	}
}

func TestAuthenticateRejectsShortHeader(t *testing.T) {
	if _, ok := Authenticate(make([]byte, WireSize-1), [3]uint32{1, 2, 3}, nil); ok {
		t.Fatalf("expected failure on short header")
	}
}

func TestAuthenticateRejectsEarlyLenMismatch(t *testing.T) {
	a, _ := aead.NewChaCha20Poly1305(testKey())
	var nonce [12]byte
	wire := buildWire(t, a, 0x55, 1, 0, 0, 0, 0, nonce, 0)
	// Corrupt the wire-level early_len field so it no longer matches the
	// AAD that was used to seal the block (and the plaintext echo).
	binary.BigEndian.PutUint16(wire[earlyLenOffset:], 999)

	if _, ok := Authenticate(wire, [3]uint32{0x55, 0, 0}, a); ok {
		t.Fatalf("expected failure on early_len mismatch")
	}
}
