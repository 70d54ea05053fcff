// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package tdbtype defines the closed set of scalar datatypes a dimension can
// carry, and the per-type arithmetic (ordering, "next representable value",
// midpoint) that the rest of the subarray/partitioner core dispatches on
// once, at the boundary of a Subarray or Range.
package tdbtype

import "math"

// Datatype tags a dimension's scalar type.
type Datatype int

const (
	Int8 Datatype = iota
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	// ASCII is a variable-length ASCII/UTF-8 byte string. Ranges over an
	// ASCII dimension carry two byte buffers instead of a scalar lo/hi.
	ASCII
)

func (d Datatype) String() string {
	switch d {
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case ASCII:
		return "ascii"
	default:
		return "unknown"
	}
}

// IsInt reports whether d is one of the integer tags (signed or unsigned).
func (d Datatype) IsInt() bool {
	return d >= Int8 && d <= Uint64
}

// IsFloat reports whether d is one of the IEEE float tags.
func (d Datatype) IsFloat() bool {
	return d == Float32 || d == Float64
}

// IsVarLen reports whether d's ranges carry byte buffers rather than a
// scalar pair.
func (d Datatype) IsVarLen() bool {
	return d == ASCII
}

// Min returns the scalar value at d's domain minimum. Panics for var-length
// types, which have no fixed domain.
func (d Datatype) Min() float64 {
	switch d {
	case Int8:
		return math.MinInt8
	case Int16:
		return math.MinInt16
	case Int32:
		return math.MinInt32
	case Int64:
		return math.MinInt64
	case Uint8, Uint16, Uint32, Uint64:
		return 0
	case Float32:
		return -math.MaxFloat32
	case Float64:
		return -math.MaxFloat64
	default:
		panic("tdbtype: Min has no fixed domain for " + d.String())
	}
}

// Max returns the scalar value at d's domain maximum. Panics for var-length
// types.
func (d Datatype) Max() float64 {
	switch d {
	case Int8:
		return math.MaxInt8
	case Int16:
		return math.MaxInt16
	case Int32:
		return math.MaxInt32
	case Int64:
		return math.MaxInt64
	case Uint8:
		return math.MaxUint8
	case Uint16:
		return math.MaxUint16
	case Uint32:
		return math.MaxUint32
	case Uint64:
		return math.MaxUint64
	case Float32:
		return math.MaxFloat32
	case Float64:
		return math.MaxFloat64
	default:
		panic("tdbtype: Max has no fixed domain for " + d.String())
	}
}

// NextValue returns the smallest representable value strictly greater than
// v under d's representation: v+1 for integers, math.Nextafter(v, +Inf) for
// floats. Panics for var-length types -- use NextByteString instead.
func (d Datatype) NextValue(v float64) float64 {
	switch {
	case d.IsInt():
		return v + 1
	case d.IsFloat():
		return math.Nextafter(v, math.Inf(1))
	default:
		panic("tdbtype: NextValue undefined for " + d.String())
	}
}

// Midpoint returns the midpoint of [lo, hi] computed the way d's arithmetic
// requires: lo + (hi-lo)/2, to avoid overflow on wide unsigned ranges.
func (d Datatype) Midpoint(lo, hi float64) float64 {
	if d.IsInt() {
		return lo + math.Floor((hi-lo)/2)
	}
	return lo + (hi-lo)/2
}

// NextByteString returns s with a single 0x7F byte appended. 0x7F is the
// highest ASCII byte below the first multi-byte UTF-8 lead byte, used to
// close a string range's left half with a value that sorts strictly after
// every string having s as a proper prefix, while remaining strictly below
// any string that is lexicographically greater than s.
func NextByteString(s []byte) []byte {
	out := make([]byte, len(s)+1)
	copy(out, s)
	out[len(s)] = 0x7f
	return out
}
