// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package tdberr defines the single error representation used across the
// subarray/partitioner core. It follows the Kind+wrap shape of
// github.com/grailbio/base/errors, with a Kind enum specific to this
// subsystem (see the error kinds in the design doc).
package tdberr

import "fmt"

// Kind classifies an Error. Most kinds are surfaced to the caller as an
// ordinary error; Unsplittable is carried here only for uniform
// representation in logs and tests -- per the partitioner's contract it is
// reported through an out-parameter, never returned as an error.
type Kind int

const (
	// Other is an unclassified error.
	Other Kind = iota
	// InvalidRange: type mismatch, lo > hi, or domain overflow on AddRange.
	InvalidRange
	// InvalidLayout: unordered tile order requested, or global order
	// requested over a sparse array without tile extents.
	InvalidLayout
	// Unsplittable: a range could not be subdivided further. Not a fault;
	// trange.Range.Split returns it, and the partitioner Iterator turns it
	// into Partition.Unsplittable rather than returning it from Next.
	Unsplittable
	// BudgetNotSet: a budget was queried before being configured.
	BudgetNotSet
	// Metadata: propagated unchanged from the metadata oracle.
	Metadata
)

func (k Kind) String() string {
	switch k {
	case InvalidRange:
		return "invalid range"
	case InvalidLayout:
		return "invalid layout"
	case Unsplittable:
		return "unsplittable"
	case BudgetNotSet:
		return "budget not set"
	case Metadata:
		return "metadata error"
	default:
		return "error"
	}
}

// Error is the result type returned by every fallible operation in this
// module. Op names the operation that failed (e.g. "Subarray.AddRange");
// Err, if non-nil, is the underlying cause (e.g. a Metadata error
// propagated from the oracle).
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error from its arguments. Recognized argument types:
//
//	Kind:   the error's classification
//	string: Op on first occurrence, Msg on subsequent occurrences
//	error:  the wrapped cause
//
// Mirrors the call convention of github.com/grailbio/base/errors.E, e.g.
// E(InvalidRange, "Subarray.AddRange", "lo > hi", err).
func E(args ...interface{}) *Error {
	e := &Error{}
	for _, arg := range args {
		switch v := arg.(type) {
		case Kind:
			e.Kind = v
		case string:
			if e.Op == "" {
				e.Op = v
			} else if e.Msg == "" {
				e.Msg = v
			} else {
				e.Msg = e.Msg + ": " + v
			}
		case error:
			e.Err = v
		}
	}
	return e
}

// Is reports whether err is an *Error of the given Kind.
func Is(kind Kind, err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == kind
}
