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

// Package gf256 implements arithmetic over the Rijndael-style finite field
// GF(2^8) with primitive polynomial 0x11d, generator 2. Tables are built
// once at package init and are immutable afterwards; every FEC codec in
// package fec shares the same tables.
package gf256

const (
	// Prime is the primitive polynomial used to build the field.
	Prime = 0x11d
	// Generator is the field generator.
	Generator = 2
)

var (
	expTable [510]byte
	logTable [256]byte
	// MulTable[a][b] = a*b in GF(2^8). 64 KiB, built once.
	MulTable [256][256]byte
)

func init() {
	// Build exp/log tables by walking powers of the generator.
	x := 1
	for i := 0; i < 255; i++ {
		expTable[i] = byte(x)
		logTable[x] = byte(i)
		x <<= 1
		if x&0x100 != 0 {
			x ^= Prime
		}
	}
	// Extend exp table so log[a]+log[b] never needs a modular reduction.
	for i := 255; i < 510; i++ {
		expTable[i] = expTable[i-255]
	}

	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			MulTable[a][b] = mulSlow(byte(a), byte(b))
		}
	}
}

func mulSlow(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return expTable[int(logTable[a])+int(logTable[b])]
}

// Mul multiplies two field elements via table lookup.
func Mul(a, b byte) byte {
	return MulTable[a][b]
}

// Exp returns generator^n for n in [0, 510).
func Exp(n int) byte {
	return expTable[n]
}

// Log returns the discrete log of a non-zero field element.
func Log(a byte) byte {
	return logTable[a]
}

// Inv returns the multiplicative inverse of a non-zero field element.
// Panics on x == 0, matching the field's lack of a zero inverse; callers
// must never invoke Inv(0).
func Inv(x byte) byte {
	if x == 0 {
		panic("gf256: no inverse for zero")
	}
	return expTable[255-int(logTable[x])]
}

// Vandermonde returns x^col for the Vandermonde-matrix construction used
// by the FEC codec's parity rows: Vandermonde(x, 0) = 1, Vandermonde(x, j)
// = Vandermonde(x, j-1) * x.
func Vandermonde(x byte, col int) byte {
	v := byte(1)
	for i := 0; i < col; i++ {
		v = Mul(v, x)
	}
	return v
}
