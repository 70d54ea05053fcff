// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package tilecoord defines an N-dimensional tile-coordinate type and the
// comparison helpers the calibration and tile-overlap logic dispatch on.
// The method set mirrors a fixed-width coordinate's Compare/LT/LE/GE/GT/EQ
// convention, generalized from a fixed field count to one component per
// dimension.
package tilecoord

// Coord is a tile coordinate: one integer component per dimension, ordered
// most-significant-dimension first. len(Coord) must equal the domain's
// dimensionality everywhere it is used.
type Coord []int64

// sortableComponent maps an open-ended sentinel (math.MaxInt64, used to mean
// "no upper tile boundary yet") to itself; present for symmetry with the
// teacher's sentinel handling and to keep comparisons total even when a
// caller builds a Coord by hand with a sentinel component.
func sortableComponent(v int64) int64 { return v }

// Compare returns a negative, zero, or positive int as c is less than, equal
// to, or greater than c1, comparing dimensions in order (dimension 0 most
// significant).
func (c Coord) Compare(c1 Coord) int {
	n := len(c)
	if len(c1) < n {
		n = len(c1)
	}
	for i := 0; i < n; i++ {
		a, b := sortableComponent(c[i]), sortableComponent(c1[i])
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	return len(c) - len(c1)
}

// LT returns true iff c < c1.
func (c Coord) LT(c1 Coord) bool { return c.Compare(c1) < 0 }

// LE returns true iff c <= c1.
func (c Coord) LE(c1 Coord) bool { return c.Compare(c1) <= 0 }

// GE returns true iff c >= c1.
func (c Coord) GE(c1 Coord) bool { return c.Compare(c1) >= 0 }

// GT returns true iff c > c1.
func (c Coord) GT(c1 Coord) bool { return c.Compare(c1) > 0 }

// EQ returns true iff c == c1, component-wise.
func (c Coord) EQ(c1 Coord) bool {
	if len(c) != len(c1) {
		return false
	}
	for i := range c {
		if c[i] != c1[i] {
			return false
		}
	}
	return true
}

// Min returns the smaller of c and c1.
func (c Coord) Min(c1 Coord) Coord {
	if c.LE(c1) {
		return c
	}
	return c1
}

// Max returns the larger of c and c1.
func (c Coord) Max(c1 Coord) Coord {
	if c.GE(c1) {
		return c
	}
	return c1
}

// Clone returns a deep copy of c.
func (c Coord) Clone() Coord {
	out := make(Coord, len(c))
	copy(out, c)
	return out
}

// Box is a closed axis-aligned ND box [Lo, Hi], used both for a tile's MBR
// and for the calibrated interval returned by GetExpandedCoordinates.
type Box struct {
	Lo, Hi Coord
}

// Contains reports whether c lies within the closed box.
func (b Box) Contains(c Coord) bool {
	return b.Lo.LE(c) && c.LE(b.Hi)
}

// Intersects reports whether b and b1 share any coordinate.
func (b Box) Intersects(b1 Box) bool {
	return b.Lo.LE(b1.Hi) && b1.Lo.LE(b.Hi)
}

// CellCount returns the number of integer coordinates contained in b,
// assuming unit cell spacing along every dimension.
func (b Box) CellCount() int64 {
	total := int64(1)
	for i := range b.Lo {
		span := b.Hi[i] - b.Lo[i] + 1
		if span <= 0 {
			return 0
		}
		total *= span
	}
	return total
}
