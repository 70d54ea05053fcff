// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package partitioner implements the Partitioner State Machine and
// Splitter (spec components D and E): it turns a Subarray plus a
// tile-overlap estimator into a sequence of budget-bounded partitions.
package partitioner

import "github.com/grailbio/tdbpartition/subarray"

// Partition is one unit of work the Iterator yields. SplitMultiRange
// records which LIFO produced it, so SplitCurrent knows where to re-push
// it if a caller discovers the estimate was over-optimistic.
type Partition struct {
	Subarray        *subarray.Subarray
	SplitMultiRange bool

	// Unsplittable is set when this partition was emitted over its result
	// or memory budget because every dimension's single range has reached
	// its representation's precision floor (unary int, adjacent float,
	// shortestBetween's floor for strings) -- there is no finer box left
	// to try, so the budget check is overridden rather than looped on
	// forever. With Config.SkipUnaryPartitioningBudgetCheck set, such a box
	// is emitted with Unsplittable left false.
	Unsplittable bool

	// startFlat/endFlat are the flat ND-range bounds this partition was
	// calibrated from, set only for SplitMultiRange partitions -- that's
	// all SplitCurrent needs to re-push the interval onto the multi-range
	// LIFO for a fresh median split.
	startFlat, endFlat uint64
}

// State names the partitioner's current phase, mirroring the state names
// in the design this package implements.
type State int

const (
	StateInitial State = iota
	StateMultiExpanding
	StateSplittingMulti
	StateSplittingSingle
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "INITIAL"
	case StateMultiExpanding:
		return "MULTI_EXPANDING"
	case StateSplittingMulti:
		return "SPLITTING_MULTI"
	case StateSplittingSingle:
		return "SPLITTING_SINGLE"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// multiItem is a pending flat ND-range interval awaiting calibration and a
// fit check, either because SPLITTING_MULTI's median split produced it or
// because SplitCurrent re-pushed an over-optimistic multi-range partition.
type multiItem struct {
	startFlat, endFlat uint64
}

func buildFromCoords(orig *subarray.Subarray, startCoords, endCoords []uint64) (*subarray.Subarray, error) {
	out, err := subarray.New(orig.Domain(), orig.Layout())
	if err != nil {
		return nil, err
	}
	for k := range startCoords {
		for idx := startCoords[k]; idx <= endCoords[k]; idx++ {
			r, err := orig.GetRange(k, idx)
			if err != nil {
				return nil, err
			}
			if err := out.AddRange(k, r, true); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// copyDimRanges copies every range box has on dimension dim into out's
// dimension dim.
func copyDimRanges(out, box *subarray.Subarray, dim int) error {
	n := box.RangeNumPerDim(dim)
	if n == 0 {
		n = 1
	}
	for idx := uint64(0); idx < n; idx++ {
		r, err := box.GetRange(dim, idx)
		if err != nil {
			return err
		}
		if err := out.AddRange(dim, r, true); err != nil {
			return err
		}
	}
	return nil
}
