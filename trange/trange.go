// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package trange implements the Typed Range component (spec component A):
// a closed interval [lo, hi] over one dimension's datatype, or a pair of
// byte-string bounds for variable-length dimensions. It supports
// containment, intersection, and splitting, with all arithmetic dispatched
// once on the Datatype tag rather than templated per type (see the design
// notes on dynamic typing over dimension datatypes).
package trange

import (
	"bytes"
	"math"

	"github.com/grailbio/tdbpartition/tdberr"
	"github.com/grailbio/tdbpartition/tdbtype"
)

// Range is a closed interval [Lo, Hi] (LoBytes/HiBytes for ASCII
// dimensions). Numeric bounds are widened to int64/uint64/float64
// according to Type; exactly one of the three numeric pairs is meaningful
// for a given Type, following the tagged-sum design called for when
// generalizing away from per-type templates.
type Range struct {
	Type tdbtype.Datatype

	LoInt, HiInt     int64
	LoUint, HiUint   uint64
	LoFloat, HiFloat float64
	LoBytes, HiBytes []byte
}

// NewInt builds a Range over a signed integer dimension.
func NewInt(typ tdbtype.Datatype, lo, hi int64) (Range, error) {
	if lo > hi {
		return Range{}, tdberr.E(tdberr.InvalidRange, "trange.NewInt", "lo > hi")
	}
	return Range{Type: typ, LoInt: lo, HiInt: hi}, nil
}

// NewUint builds a Range over an unsigned integer dimension.
func NewUint(typ tdbtype.Datatype, lo, hi uint64) (Range, error) {
	if lo > hi {
		return Range{}, tdberr.E(tdberr.InvalidRange, "trange.NewUint", "lo > hi")
	}
	return Range{Type: typ, LoUint: lo, HiUint: hi}, nil
}

// NewFloat builds a Range over a float dimension.
func NewFloat(typ tdbtype.Datatype, lo, hi float64) (Range, error) {
	if lo > hi {
		return Range{}, tdberr.E(tdberr.InvalidRange, "trange.NewFloat", "lo > hi")
	}
	return Range{Type: typ, LoFloat: lo, HiFloat: hi}, nil
}

// NewBytes builds a Range over a variable-length ASCII/UTF-8 dimension.
func NewBytes(lo, hi []byte) (Range, error) {
	if bytes.Compare(lo, hi) > 0 {
		return Range{}, tdberr.E(tdberr.InvalidRange, "trange.NewBytes", "lo > hi")
	}
	return Range{Type: tdbtype.ASCII, LoBytes: lo, HiBytes: hi}, nil
}

// LoAsFloat returns the lower bound widened to float64, for numeric types.
// For variable-length (byte-string) ranges it returns float64(LoInt),
// which is 0 for ranges built by NewBytes.
func (r Range) LoAsFloat() float64 { return r.loFloat() }

// HiAsFloat returns the upper bound widened to float64, for numeric types.
// For variable-length (byte-string) ranges it returns float64(HiInt),
// which is 0 for ranges built by NewBytes.
func (r Range) HiAsFloat() float64 { return r.hiFloat() }

// WithBounds returns a copy of r with its numeric bounds replaced by lo and
// hi (narrowed back to r's underlying representation). It is used by
// callers, such as the Subarray clamp/crop logic, that compute new bounds
// in float64 and need to write them back into the tagged representation.
func (r Range) WithBounds(lo, hi float64) Range {
	out := r
	setLo(&out, lo)
	setHi(&out, hi)
	return out
}

func (r Range) loFloat() float64 {
	switch {
	case r.Type.IsFloat():
		return r.LoFloat
	case r.Type == tdbtype.Uint8 || r.Type == tdbtype.Uint16 || r.Type == tdbtype.Uint32 || r.Type == tdbtype.Uint64:
		return float64(r.LoUint)
	default:
		return float64(r.LoInt)
	}
}

func (r Range) hiFloat() float64 {
	switch {
	case r.Type.IsFloat():
		return r.HiFloat
	case r.Type == tdbtype.Uint8 || r.Type == tdbtype.Uint16 || r.Type == tdbtype.Uint32 || r.Type == tdbtype.Uint64:
		return float64(r.HiUint)
	default:
		return float64(r.HiInt)
	}
}

// IsUnary reports whether the range covers exactly one representable point
// (a single coordinate for integers; LoBytes==HiBytes for strings). Floats
// are never unary by this definition -- an arbitrarily close but distinct
// (lo, hi) pair is still two points until Split declares it Unsplittable.
func (r Range) IsUnary() bool {
	if r.Type.IsVarLen() {
		return bytes.Equal(r.LoBytes, r.HiBytes)
	}
	if r.Type.IsFloat() {
		return r.LoFloat == r.HiFloat
	}
	return r.loFloat() == r.hiFloat()
}

// Contains reports whether other lies entirely within r.
func (r Range) Contains(other Range) bool {
	if r.Type.IsVarLen() {
		return bytes.Compare(r.LoBytes, other.LoBytes) <= 0 && bytes.Compare(other.HiBytes, r.HiBytes) <= 0
	}
	return r.loFloat() <= other.loFloat() && other.hiFloat() <= r.hiFloat()
}

// Intersects reports whether r and other share at least one point.
func (r Range) Intersects(other Range) bool {
	if r.Type.IsVarLen() {
		return bytes.Compare(r.LoBytes, other.HiBytes) <= 0 && bytes.Compare(other.LoBytes, r.HiBytes) <= 0
	}
	return r.loFloat() <= other.hiFloat() && other.loFloat() <= r.hiFloat()
}

// Adjacent reports whether r and other overlap or are disjoint but touch --
// i.e. they can be merged (coalesced) into a single range without changing the set of
// covered points.
func (r Range) Adjacent(other Range) bool {
	if r.Intersects(other) {
		return true
	}
	if r.Type.IsVarLen() {
		if bytes.Compare(r.HiBytes, other.LoBytes) < 0 {
			return bytes.Equal(tdbtype.NextByteString(r.HiBytes), other.LoBytes)
		}
		return bytes.Equal(tdbtype.NextByteString(other.HiBytes), r.LoBytes)
	}
	if r.hiFloat() < other.loFloat() {
		return r.Type.NextValue(r.hiFloat()) == other.loFloat()
	}
	return r.Type.NextValue(other.hiFloat()) == r.loFloat()
}

// Coalesce merges r and an adjacent-or-overlapping other into their union.
// The caller must have already verified Adjacent(other).
func (r Range) Coalesce(other Range) Range {
	out := r
	if r.Type.IsVarLen() {
		if bytes.Compare(other.LoBytes, r.LoBytes) < 0 {
			out.LoBytes = other.LoBytes
		}
		if bytes.Compare(other.HiBytes, r.HiBytes) > 0 {
			out.HiBytes = other.HiBytes
		}
		return out
	}
	if other.loFloat() < r.loFloat() {
		setLo(&out, other.loFloat())
	}
	if other.hiFloat() > r.hiFloat() {
		setHi(&out, other.hiFloat())
	}
	return out
}

func setLo(r *Range, v float64) {
	switch {
	case r.Type.IsFloat():
		r.LoFloat = v
	case r.Type == tdbtype.Uint8 || r.Type == tdbtype.Uint16 || r.Type == tdbtype.Uint32 || r.Type == tdbtype.Uint64:
		r.LoUint = uint64(v)
	default:
		r.LoInt = int64(v)
	}
}

func setHi(r *Range, v float64) {
	switch {
	case r.Type.IsFloat():
		r.HiFloat = v
	case r.Type == tdbtype.Uint8 || r.Type == tdbtype.Uint16 || r.Type == tdbtype.Uint32 || r.Type == tdbtype.Uint64:
		r.HiUint = uint64(v)
	default:
		r.HiInt = int64(v)
	}
}

// Width returns the number of representable values in r, for integer
// dimensions. It is meaningless for float/var-length dimensions.
func (r Range) Width() uint64 {
	return uint64(r.hiFloat()-r.loFloat()) + 1
}

// Split divides r into (left, right) at a dimension-appropriate midpoint.
// normalOrder is true iff left precedes right in the order a caller should
// visit them; per spec §4.E, Hilbert cell order can reverse the geometric
// lo/hi order for a given split, in which case callers pushing the pieces
// onto a LIFO must push them in reverse so popping still yields them in
// traversal order. Split returns a tdberr Unsplittable-kind error when r
// cannot be divided further
// (unary integer range, float range at adjacent representable values, or a
// string range with no strictly-between shorter byte sequence).
func (r Range) Split() (left, right Range, normalOrder bool, err error) {
	switch {
	case r.Type.IsVarLen():
		return r.splitBytes()
	case r.Type.IsFloat():
		return r.splitFloat()
	default:
		return r.splitInt()
	}
}

func (r Range) splitInt() (left, right Range, normalOrder bool, err error) {
	if r.IsUnary() {
		return Range{}, Range{}, false, tdberr.E(tdberr.Unsplittable, "trange.Range.Split", "unary integer range")
	}
	mid := r.Type.Midpoint(r.loFloat(), r.hiFloat())
	left, right = r, r
	setHi(&left, mid)
	setLo(&right, mid+1)
	return left, right, true, nil
}

func (r Range) splitFloat() (left, right Range, normalOrder bool, err error) {
	if math.Nextafter(r.LoFloat, math.Inf(1)) >= r.HiFloat {
		return Range{}, Range{}, false, tdberr.E(tdberr.Unsplittable, "trange.Range.Split", "float bounds are equal or adjacent representable values")
	}
	mid := r.Type.Midpoint(r.LoFloat, r.HiFloat)
	nextMid := math.Nextafter(mid, math.Inf(1))
	if nextMid > r.HiFloat {
		return Range{}, Range{}, false, tdberr.E(tdberr.Unsplittable, "trange.Range.Split", "float range has no room for a right half")
	}
	left = Range{Type: r.Type, LoFloat: r.LoFloat, HiFloat: mid}
	right = Range{Type: r.Type, LoFloat: nextMid, HiFloat: r.HiFloat}
	return left, right, true, nil
}

// splitBytes finds the shortest byte sequence s with LoBytes < s <= HiBytes
// and splits into left=[LoBytes, s with a trailing 0x7f] and
// right=[s, HiBytes]. s is built by taking the common prefix of LoBytes and
// HiBytes and appending the byte immediately after LoBytes's next byte at
// that position; if no such s exists within the precision of the two
// strings, the range is declared Unsplittable (see the design doc's note on
// the 0x7f/Hilbert ambiguity, which this package sidesteps by applying the
// rule uniformly regardless of cell order).
//
// s == HiBytes is also declared Unsplittable rather than given a narrower
// left half: that happens exactly when lo and hi are adjacent at their last
// differing byte (e.g. "ay"/"az" or "cc"/"ccd"), the precision floor for
// this representation, matching spec Scenario 6 ("cc".."ccd" has no shorter
// string between them).
//
// The split is likewise Unsplittable when the left half's upper bound
// s+0x7f would reach or pass HiBytes (e.g. "aa".."ab\x7f"), since that left
// half would be no narrower than r itself and re-splitting it would never
// end.
func (r Range) splitBytes() (left, right Range, normalOrder bool, err error) {
	s, ok := shortestBetween(r.LoBytes, r.HiBytes)
	if !ok || bytes.Equal(s, r.HiBytes) {
		return Range{}, Range{}, false, tdberr.E(tdberr.Unsplittable, "trange.Range.Split", "no distinct byte string between lo and hi")
	}
	leftHi := tdbtype.NextByteString(s)
	if bytes.Compare(leftHi, r.HiBytes) >= 0 {
		return Range{}, Range{}, false, tdberr.E(tdberr.Unsplittable, "trange.Range.Split", "left half would not be narrower than the range")
	}
	left = Range{Type: tdbtype.ASCII, LoBytes: r.LoBytes, HiBytes: leftHi}
	right = Range{Type: tdbtype.ASCII, LoBytes: s, HiBytes: r.HiBytes}
	return left, right, true, nil
}

// shortestBetween returns the shortest byte string s with lo < s <= hi, or
// ok=false if none exists (lo and hi are adjacent representable strings, or
// lo==hi).
func shortestBetween(lo, hi []byte) (s []byte, ok bool) {
	if bytes.Equal(lo, hi) {
		return nil, false
	}
	// Walk the common prefix.
	n := len(lo)
	if len(hi) < n {
		n = len(hi)
	}
	i := 0
	for i < n && lo[i] == hi[i] {
		i++
	}
	// After the shared prefix, either lo runs out (lo is a strict prefix of
	// hi) or the bytes diverge at i.
	if i == len(lo) {
		// lo is a proper prefix of hi. The shortest string strictly greater
		// than lo and at most hi is lo with one byte appended, provided
		// that's <= hi.
		if i < len(hi) {
			candidate := append(append([]byte{}, lo...), hi[i])
			if bytes.Compare(candidate, hi) <= 0 {
				return candidate, true
			}
		}
		return nil, false
	}
	if lo[i]+1 < hi[i] || (lo[i]+1 == hi[i]) {
		candidate := append(append([]byte{}, lo[:i]...), lo[i]+1)
		if bytes.Compare(candidate, hi) <= 0 && bytes.Compare(lo, candidate) < 0 {
			return candidate, true
		}
	}
	return nil, false
}
