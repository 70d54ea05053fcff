// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package hilbert maps N-dimensional integer coordinates to and from a
// single Hilbert-curve index, for the splitter's global-order-plus-Hilbert
// dimension choice (spec component E). The bit-transpose algorithm is
// Skilling's (AIP Conf. Proc. 707, 2004), the standard arbitrary-dimension
// generalization of the 2-D Hilbert curve.
package hilbert

import "github.com/grailbio/tdbpartition/tdberr"

// MaxTotalBits is the largest total bit width (bits per axis times the
// number of axes) this package supports, so that an index always fits in a
// uint64.
const MaxTotalBits = 63

// AxesToIndex converts an N-dimensional coordinate (one non-negative
// integer per axis, each using at most bits significant bits) into its
// position along the Hilbert curve of order bits over N dimensions.
func AxesToIndex(axes []uint64, bits uint) (uint64, error) {
	if err := checkBits(len(axes), bits); err != nil {
		return 0, err
	}
	x := append([]uint64{}, axes...)
	axesToTranspose(x, bits)
	return packTranspose(x, bits), nil
}

// IndexToAxes is the inverse of AxesToIndex.
func IndexToAxes(index uint64, n int, bits uint) ([]uint64, error) {
	if err := checkBits(n, bits); err != nil {
		return nil, err
	}
	x := unpackTranspose(index, n, bits)
	transposeToAxes(x, bits)
	return x, nil
}

func checkBits(n int, bits uint) error {
	if n <= 0 {
		return tdberr.E(tdberr.InvalidLayout, "hilbert", "dimension count must be positive")
	}
	if bits == 0 || uint(n)*bits > MaxTotalBits {
		return tdberr.E(tdberr.InvalidLayout, "hilbert", "total Hilbert bit width exceeds 63 bits")
	}
	return nil
}

// packTranspose reads the transposed representation column-major from the
// most significant bit down, producing the single interleaved index.
func packTranspose(x []uint64, bits uint) uint64 {
	n := len(x)
	var idx uint64
	for b := int(bits) - 1; b >= 0; b-- {
		for i := 0; i < n; i++ {
			idx <<= 1
			idx |= (x[i] >> uint(b)) & 1
		}
	}
	return idx
}

func unpackTranspose(index uint64, n int, bits uint) []uint64 {
	x := make([]uint64, n)
	for b := 0; b < int(bits); b++ {
		for i := n - 1; i >= 0; i-- {
			x[i] |= (index & 1) << uint(b)
			index >>= 1
		}
	}
	return x
}

// axesToTranspose converts ordinary axis coordinates in x into Skilling's
// transposed representation, in place.
func axesToTranspose(x []uint64, bits uint) {
	n := len(x)
	m := uint64(1) << (bits - 1)
	for q := m; q > 1; q >>= 1 {
		p := q - 1
		for i := 0; i < n; i++ {
			if x[i]&q != 0 {
				x[0] ^= p
			} else {
				t := (x[0] ^ x[i]) & p
				x[0] ^= t
				x[i] ^= t
			}
		}
	}
	for i := 1; i < n; i++ {
		x[i] ^= x[i-1]
	}
	var t uint64
	for q := m; q > 1; q >>= 1 {
		if x[n-1]&q != 0 {
			t ^= q - 1
		}
	}
	for i := 0; i < n; i++ {
		x[i] ^= t
	}
}

// transposeToAxes is the inverse of axesToTranspose.
func transposeToAxes(x []uint64, bits uint) {
	n := len(x)
	nBit := uint64(2) << (bits - 1)
	t := x[n-1] >> 1
	for i := n - 1; i > 0; i-- {
		x[i] ^= x[i-1]
	}
	x[0] ^= t
	for q := uint64(2); q != nBit; q <<= 1 {
		p := q - 1
		for i := n - 1; i >= 0; i-- {
			if x[i]&q != 0 {
				x[0] ^= p
			} else {
				t := (x[0] ^ x[i]) & p
				x[0] ^= t
				x[i] ^= t
			}
		}
	}
}
