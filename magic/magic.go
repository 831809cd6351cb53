// Package magic derives the rotating 32-bit magic values the Edge Filter
// and Header Gate use as a cheap pre-crypto gate. This is host-side
// derivation logic, kept here because it is pure and shared by both the
// sending and receiving ends of a flow.
package magic

import (
	"encoding/binary"

	"github.com/xtaci/v3edge/aead"
)

// WindowSeconds is the magic's rotation period: one wall-clock minute.
const WindowSeconds = 60

// Derive computes the 32-bit magic for a given minute-aligned timestamp:
// keyed_hash(master_key || floor(wall_time_seconds/60)) truncated to its
// low 32 bits. The result is never allowed to be zero, since zero is
// a reserved "absent slot" marker; a zero hash is folded to a fixed
// non-zero constant.
func Derive(h aead.KeyedHash, masterKey []byte, wallTimeSeconds int64) uint32 {
	minute := wallTimeSeconds / WindowSeconds
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(minute))
	digest := h.Sum(masterKey, buf)
	v := binary.LittleEndian.Uint32(digest[:4])
	if v == 0 {
		v = 0x5a5a5a5a
	}
	return v
}

// Valid returns the up-to-three magics valid at wallTimeSeconds: the
// current minute, one minute earlier, one minute later, tolerating
// clock skew up to +-60s.
func Valid(h aead.KeyedHash, masterKey []byte, wallTimeSeconds int64) [3]uint32 {
	return [3]uint32{
		Derive(h, masterKey, wallTimeSeconds),
		Derive(h, masterKey, wallTimeSeconds-WindowSeconds),
		Derive(h, masterKey, wallTimeSeconds+WindowSeconds),
	}
}
