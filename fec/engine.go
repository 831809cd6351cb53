package fec

import (
	"github.com/klauspost/cpuid/v2"
	"github.com/templexxx/xorsimd"

	"github.com/xtaci/v3edge/gf256"
)

// engine performs the per-byte GF(2^8) multiply-accumulate that both the
// scalar and wide-lane codecs reduce to. Per design notes, both
// implementations must produce bit-identical shards for identical inputs.
type engine interface {
	// mulAccumulate does dst[i] ^= gf256.Mul(coef, src[i]) for all i.
	mulAccumulate(coef byte, src, dst []byte)
	name() string
}

type scalarEngine struct{}

func (scalarEngine) name() string { return "scalar" }

func (scalarEngine) mulAccumulate(coef byte, src, dst []byte) {
	if coef == 0 {
		return
	}
	if coef == 1 {
		for i, b := range src {
			dst[i] ^= b
		}
		return
	}
	table := gf256.MulTable[coef][:256]
	for i, b := range src {
		dst[i] ^= table[b]
	}
}

// wideLaneEngine accelerates the coefficient==1 accumulation (data column 0
// of every RS parity row, since Vandermonde(x, 0) = 1) with
// github.com/templexxx/xorsimd's multi-lane XOR. General coefficients
// still route through the scalar table lookup: vectorizing an arbitrary
// GF(2^8) multiply needs hand-written SIMD (the kind
// github.com/mmcloughlin/avo generates for klauspost/reedsolomon), which is
// out of scope here, see DESIGN.md.
type wideLaneEngine struct{}

func (wideLaneEngine) name() string { return "wide-lane" }

func (wideLaneEngine) mulAccumulate(coef byte, src, dst []byte) {
	if coef == 0 {
		return
	}
	if coef == 1 {
		xorsimd.Bytes(dst, dst, src)
		return
	}
	table := gf256.MulTable[coef][:256]
	for i, b := range src {
		dst[i] ^= table[b]
	}
}

// selectEngine probes runtime CPU features and picks the wide-lane engine
// when the machine actually benefits from xorsimd's vector path, else the
// portable scalar engine. The probe runs once at construction, never
// per-packet.
func selectEngine() engine {
	if cpuid.CPU.Supports(cpuid.SSE2) || cpuid.CPU.Supports(cpuid.AVX2) || cpuid.CPU.Supports(cpuid.AVX512F) {
		return wideLaneEngine{}
	}
	return scalarEngine{}
}
