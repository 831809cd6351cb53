package aead

import (
	"bytes"
	"testing"
)

func TestChaCha20Poly1305SealOpenRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	a, err := NewChaCha20Poly1305(key)
	if err != nil {
		t.Fatalf("NewChaCha20Poly1305: %v", err)
	}
	nonce := bytes.Repeat([]byte{0x01}, NonceSize)
	aad := []byte("header-aad")
	plaintext := bytes.Repeat([]byte{0x07}, 16)

	ciphertext, tag := a.Seal(nonce, aad, plaintext)
	if len(ciphertext) != 16 {
		t.Fatalf("expected 16-byte ciphertext, got %d", len(ciphertext))
	}
	if len(tag) != TagSize {
		t.Fatalf("expected %d-byte tag, got %d", TagSize, len(tag))
	}

	got, err := a.Open(nonce, aad, ciphertext, tag)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %x, want %x", got, plaintext)
	}
}

func TestChaCha20Poly1305OpenFailsOnTamperedTag(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	a, _ := NewChaCha20Poly1305(key)
	nonce := bytes.Repeat([]byte{0x01}, NonceSize)
	aad := []byte("header-aad")
	plaintext := bytes.Repeat([]byte{0x07}, 16)

	ciphertext, tag := a.Seal(nonce, aad, plaintext)
	tag[0] ^= 0xff

	if _, err := a.Open(nonce, aad, ciphertext, tag); err != ErrAuthFailed {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestChaCha20Poly1305OpenFailsOnTamperedAAD(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	a, _ := NewChaCha20Poly1305(key)
	nonce := bytes.Repeat([]byte{0x01}, NonceSize)
	plaintext := bytes.Repeat([]byte{0x07}, 16)

	ciphertext, tag := a.Seal(nonce, []byte("aad-one"), plaintext)
	if _, err := a.Open(nonce, []byte("aad-two"), ciphertext, tag); err != ErrAuthFailed {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestNewChaCha20Poly1305RejectsBadKeySize(t *testing.T) {
	if _, err := NewChaCha20Poly1305(make([]byte, 16)); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestBlake2sKeyedHashDeterministicAndKeySensitive(t *testing.T) {
	h := NewBlake2sKeyedHash()
	key1 := bytes.Repeat([]byte{0x11}, 32)
	key2 := bytes.Repeat([]byte{0x22}, 32)
	data := []byte("some magic derivation input")

	sum1a := h.Sum(key1, data)
	sum1b := h.Sum(key1, data)
	if !bytes.Equal(sum1a, sum1b) {
		t.Fatal("expected deterministic digest for identical key and data")
	}
	if len(sum1a) < 4 {
		t.Fatalf("expected at least 4-byte digest, got %d", len(sum1a))
	}

	sum2 := h.Sum(key2, data)
	if bytes.Equal(sum1a, sum2) {
		t.Fatal("expected different digests under different keys")
	}
}
