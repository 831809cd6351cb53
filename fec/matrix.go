package fec

import "github.com/xtaci/v3edge/gf256"

// square is a K x K matrix over GF(2^8), row-major.
type square struct {
	n    int
	rows [][]byte
}

func newIdentity(n int) square {
	m := square{n: n, rows: make([][]byte, n)}
	for i := range m.rows {
		m.rows[i] = make([]byte, n)
		m.rows[i][i] = 1
	}
	return m
}

func newVandermonde(indices []int, n int) square {
	m := square{n: n, rows: make([][]byte, n)}
	for i, idx := range indices {
		row := make([]byte, n)
		x := byte(idx + 1)
		for j := 0; j < n; j++ {
			row[j] = gf256.Vandermonde(x, j)
		}
		m.rows[i] = row
	}
	return m
}

// invert performs Gauss-Jordan elimination in place, returning the inverse.
// Pivoting: pick the first non-zero row below the diagonal as
// the pivot, tie-break by current row order. Returns ok=false if no pivot
// can be found for some column (singular matrix -> StatusFail).
func (m square) invert() (square, bool) {
	n := m.n
	a := make([][]byte, n)
	for i := range a {
		a[i] = append([]byte(nil), m.rows[i]...)
	}
	inv := newIdentity(n)

	for col := 0; col < n; col++ {
		pivot := -1
		for r := col; r < n; r++ {
			if a[r][col] != 0 {
				pivot = r
				break
			}
		}
		if pivot < 0 {
			return square{}, false
		}
		if pivot != col {
			a[pivot], a[col] = a[col], a[pivot]
			inv.rows[pivot], inv.rows[col] = inv.rows[col], inv.rows[pivot]
		}

		invPivot := gf256.Inv(a[col][col])
		scaleRow(a[col], invPivot)
		scaleRow(inv.rows[col], invPivot)

		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := a[r][col]
			if factor == 0 {
				continue
			}
			xorRow(a[r], a[col], factor)
			xorRow(inv.rows[r], inv.rows[col], factor)
		}
	}
	return inv, true
}

func scaleRow(row []byte, factor byte) {
	for i, v := range row {
		row[i] = gf256.Mul(v, factor)
	}
}

// xorRow does dst ^= factor*src across the row.
func xorRow(dst, src []byte, factor byte) {
	for i, v := range src {
		dst[i] ^= gf256.Mul(factor, v)
	}
}
