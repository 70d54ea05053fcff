// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package partitioner

import (
	"github.com/grailbio/base/log"
	"github.com/grailbio/tdbpartition/estimate"
	"github.com/grailbio/tdbpartition/subarray"
	"github.com/grailbio/tdbpartition/tdbconfig"
	"github.com/grailbio/tdbpartition/tdberr"
	"github.com/grailbio/tdbpartition/trange"
)

// Iterator walks a Subarray's flattened ND ranges and yields
// budget-bounded Partitions, one at a time. It holds two LIFOs:
// multiLIFO for calibrated-but-oversized multi-range intervals awaiting a
// median split, singleLIFO for single-range-per-dimension boxes awaiting a
// dimension split. Both can be non-empty at once (an interval bisected
// down to one flat index moves to singleLIFO while its siblings wait in
// multiLIFO); singleLIFO is drained before multiLIFO resumes. A fresh
// Iterator's forward sweep over the subarray never touches multiLIFO at
// all -- MULTI_EXPANDING's growth search already operates on calibrated
// candidates directly, so multiLIFO is populated only by SplitCurrent
// re-pushing a partition a caller found was estimated too optimistically.
type Iterator struct {
	orig    *subarray.Subarray
	est     *estimate.Estimator
	budgets *tdbconfig.Budgets
	attrs   []string

	state State
	start uint64
	total uint64

	singleLIFO []*subarray.Subarray
	multiLIFO  []multiItem

	current     Partition
	haveCurrent bool

	stats Stats
}

// Stats counts calibration and estimation work done by an Iterator over
// its lifetime, mirroring the header's stats::Stats* threaded through
// nearly every SubarrayPartitioner method -- a diagnostic counter set,
// not a metrics pipeline, so it is a plain accessor rather than anything
// wired to the logging/metrics stack.
type Stats struct {
	// CallsToComputeEstimatedResultSize counts fits() calls that asked the
	// estimator for a result-size estimate (i.e. SkipEstSizePartitioning
	// was not set).
	CallsToComputeEstimatedResultSize uint64
	// CallsToComputeCurrentTileOverlap counts fits() calls overall: every
	// one requires a memory estimate, which in turn requires the
	// estimator to resolve the candidate box's tile overlap.
	CallsToComputeCurrentTileOverlap uint64
	// CalibrationRetries counts calibration attempts beyond the first for
	// a given forward-sweep step: MULTI_EXPANDING's failed exponential
	// probes and binary-search narrowing steps, plus every SplitCurrent
	// call (a caller re-requesting calibration of a partition already
	// accepted once).
	CalibrationRetries uint64
}

// Stats returns a snapshot of the iterator's calibration/estimation
// counters.
func (it *Iterator) Stats() Stats { return it.stats }

// NewIterator creates an Iterator over orig, estimating result and memory
// occupancy for attrs via est and gating against budgets.
func NewIterator(orig *subarray.Subarray, est *estimate.Estimator, budgets *tdbconfig.Budgets, attrs []string) (*Iterator, error) {
	if err := orig.ComputeRangeOffsets(); err != nil {
		return nil, err
	}
	return &Iterator{
		orig:    orig,
		est:     est,
		budgets: budgets,
		attrs:   attrs,
		state:   StateInitial,
		total:   orig.RangeNum(),
	}, nil
}

// State returns the iterator's current phase, mainly useful for logging
// and tests.
func (it *Iterator) State() State { return it.state }

// Done reports whether the iterator has no more partitions to yield. It
// stays false as long as a Current partition is waiting to be read, even
// once the internal state machine has already advanced to its terminal
// phase on the call that produced it.
func (it *Iterator) Done() bool { return !it.haveCurrent && it.state == StateDone }

// Current returns the most recently produced partition. It is only valid
// after a Next call returns with Done() still false.
func (it *Iterator) Current() Partition { return it.current }

// Next advances the iterator and makes the next partition available via
// Current. Callers must check Done after calling Next.
func (it *Iterator) Next() error {
	it.haveCurrent = false
	for !it.haveCurrent && it.state != StateDone {
		switch it.state {
		case StateInitial:
			if it.start >= it.total {
				it.state = StateDone
				continue
			}
			it.state = StateMultiExpanding
		case StateMultiExpanding:
			if err := it.stepMultiExpanding(); err != nil {
				return err
			}
		case StateSplittingMulti:
			if err := it.stepSplittingMulti(); err != nil {
				return err
			}
		case StateSplittingSingle:
			if err := it.stepSplittingSingle(); err != nil {
				return err
			}
		default:
			it.state = StateDone
		}
	}
	return nil
}

// SplitCurrent splits the most recently yielded partition and pushes the
// pieces onto a LIFO -- a multi-range partition is bisected by flat index
// onto multiLIFO, a single-range or single-index one is split along a
// dimension onto singleLIFO -- so the next Next calls produce a finer
// decomposition of it instead of moving forward. Callers use this when a
// downstream consumer discovers the size estimate that accepted the
// partition was too optimistic.
func (it *Iterator) SplitCurrent() error {
	if !it.haveCurrent {
		return tdberr.E(tdberr.InvalidRange, "partitioner.Iterator.SplitCurrent", "no current partition")
	}
	it.stats.CalibrationRetries++
	cur := it.current
	it.haveCurrent = false

	if cur.SplitMultiRange && cur.startFlat != cur.endFlat {
		log.Debug.Printf("partitioner: re-splitting multi-range partition [%d,%d]", cur.startFlat, cur.endFlat)
		mid := cur.startFlat + (cur.endFlat-cur.startFlat)/2
		it.multiLIFO = append(it.multiLIFO, multiItem{mid + 1, cur.endFlat}, multiItem{cur.startFlat, mid})
		it.state = StateSplittingMulti
		return nil
	}

	box := cur.Subarray
	if cur.SplitMultiRange {
		// A degenerate (single flat index) multi-range partition has
		// nowhere left to bisect; fall through to dimension splitting the
		// same way a single-range partition would.
		var err error
		box, err = it.calibrate(cur.startFlat, cur.endFlat)
		if err != nil {
			return err
		}
	}
	return it.forceSplitSingle(box)
}

// forceSplitSingle splits box along its chosen dimension without first
// checking whether box already fits its budget -- SplitCurrent's caller
// has already determined the accepted estimate was too optimistic, so the
// usual "does it already fit" shortcut is skipped for this one split.
func (it *Iterator) forceSplitSingle(box *subarray.Subarray) error {
	unary, err := isUnsplittable(box)
	if err != nil {
		return err
	}
	if unary {
		log.Debug.Printf("partitioner: SplitCurrent requested on an unsplittable box, re-emitting unchanged")
		it.singleLIFO = append(it.singleLIFO, box)
		it.state = StateSplittingSingle
		return nil
	}
	_, left, right, normalOrder, err := splitDim(box)
	if err != nil {
		return err
	}
	if normalOrder {
		it.singleLIFO = append(it.singleLIFO, right, left)
	} else {
		it.singleLIFO = append(it.singleLIFO, left, right)
	}
	it.state = StateSplittingSingle
	return nil
}

// stepMultiExpanding runs the binary/exponential growth search: it grows
// the candidate end flat index geometrically from it.start until a
// candidate no longer fits the budget, then narrows the boundary with a
// binary search, so the accepted interval is the largest prefix of
// [it.start, it.total-1] whose calibrated box fits.
func (it *Iterator) stepMultiExpanding() error {
	singleBox, ok, err := it.calibrateAndCheck(it.start, it.start)
	if err != nil {
		return err
	}
	if !ok {
		// Even the lone flat index at it.start overflows its own budget;
		// defer to dimension-by-dimension splitting instead of growing
		// further.
		box, err := it.calibrate(it.start, it.start)
		if err != nil {
			return err
		}
		it.singleLIFO = append(it.singleLIFO, box)
		it.start++
		it.state = StateSplittingSingle
		return nil
	}

	lastFit, lastEnd := singleBox, it.start
	step := uint64(1)
	failEnd := it.total // no failure observed yet
	for lastEnd < it.total-1 {
		candidateEnd := it.start + step
		if candidateEnd > it.total-1 {
			candidateEnd = it.total - 1
		}
		box, ok, err := it.calibrateAndCheck(it.start, candidateEnd)
		if err != nil {
			return err
		}
		if !ok {
			it.stats.CalibrationRetries++
			failEnd = candidateEnd
			break
		}
		lastFit, lastEnd = box, candidateEnd
		if candidateEnd == it.total-1 {
			break
		}
		step *= 2
	}

	if failEnd < it.total {
		lo, hi := lastEnd, failEnd
		for lo+1 < hi {
			it.stats.CalibrationRetries++
			mid := lo + (hi-lo)/2
			box, ok, err := it.calibrateAndCheck(it.start, mid)
			if err != nil {
				return err
			}
			if ok {
				lo, lastFit = mid, box
			} else {
				hi = mid
			}
		}
		lastEnd = lo
	}

	it.current = Partition{Subarray: lastFit, SplitMultiRange: true, startFlat: it.start, endFlat: lastEnd}
	it.haveCurrent = true
	it.start = lastEnd + 1
	if it.start >= it.total {
		it.state = StateDone
	} else {
		it.state = StateMultiExpanding
	}
	return nil
}

// stepSplittingMulti pops one pending flat-index interval and either
// hands it to singleLIFO (if it has degenerated to a single index), emits
// it (if it now fits), or bisects it at the median flat index and pushes
// both halves back.
func (it *Iterator) stepSplittingMulti() error {
	if len(it.multiLIFO) == 0 {
		if it.start >= it.total {
			it.state = StateDone
		} else {
			it.state = StateMultiExpanding
		}
		return nil
	}
	item := it.multiLIFO[len(it.multiLIFO)-1]
	it.multiLIFO = it.multiLIFO[:len(it.multiLIFO)-1]

	if item.startFlat == item.endFlat {
		box, err := it.calibrate(item.startFlat, item.endFlat)
		if err != nil {
			return err
		}
		it.singleLIFO = append(it.singleLIFO, box)
		it.state = StateSplittingSingle
		return nil
	}

	box, ok, err := it.calibrateAndCheck(item.startFlat, item.endFlat)
	if err != nil {
		return err
	}
	if ok {
		it.current = Partition{Subarray: box, SplitMultiRange: true, startFlat: item.startFlat, endFlat: item.endFlat}
		it.haveCurrent = true
		return nil
	}

	mid := item.startFlat + (item.endFlat-item.startFlat)/2
	it.multiLIFO = append(it.multiLIFO, multiItem{mid + 1, item.endFlat}, multiItem{item.startFlat, mid})
	return nil
}

// stepSplittingSingle pops one single-range-per-dimension box; if it
// fits, emits it; if every dimension is unary (box is unsplittable), it
// is emitted regardless, flagged Unsplittable (an iteration signal here,
// not an error) unless Config.SkipUnaryPartitioningBudgetCheck is set, in
// which case it is emitted as an ordinary partition; otherwise the box is
// split along its chosen dimension and both halves are pushed back. Once
// singleLIFO is empty, any intervals still pending on multiLIFO are
// resumed before the forward sweep continues.
func (it *Iterator) stepSplittingSingle() error {
	if len(it.singleLIFO) == 0 {
		if len(it.multiLIFO) > 0 {
			it.state = StateSplittingMulti
		} else if it.start >= it.total {
			it.state = StateDone
		} else {
			it.state = StateMultiExpanding
		}
		return nil
	}
	box := it.singleLIFO[len(it.singleLIFO)-1]
	it.singleLIFO = it.singleLIFO[:len(it.singleLIFO)-1]

	ok, err := it.fits(box)
	if err != nil {
		return err
	}
	if ok {
		it.current = Partition{Subarray: box, SplitMultiRange: false}
		it.haveCurrent = true
		return nil
	}

	unary, err := isUnsplittable(box)
	if err != nil {
		return err
	}
	if unary {
		skipCheck := it.budgets.Config().SkipUnaryPartitioningBudgetCheck
		if !skipCheck {
			log.Debug.Printf("partitioner: emitting unary partition over its result-size budget")
		}
		it.current = Partition{Subarray: box, SplitMultiRange: false, Unsplittable: !skipCheck}
		it.haveCurrent = true
		return nil
	}

	_, left, right, normalOrder, err := splitDim(box)
	if err != nil {
		return err
	}
	if normalOrder {
		it.singleLIFO = append(it.singleLIFO, right, left)
	} else {
		it.singleLIFO = append(it.singleLIFO, left, right)
	}
	return nil
}

// calibrate widens the flat-index interval [a, b] to the minimal cross
// product Subarray under it.orig's layout.
func (it *Iterator) calibrate(a, b uint64) (*subarray.Subarray, error) {
	startCoords, endCoords, err := it.orig.GetExpandedCoordinates(a, b)
	if err != nil {
		return nil, err
	}
	return buildFromCoords(it.orig, startCoords, endCoords)
}

func (it *Iterator) calibrateAndCheck(a, b uint64) (*subarray.Subarray, bool, error) {
	box, err := it.calibrate(a, b)
	if err != nil {
		return nil, false, err
	}
	ok, err := it.fits(box)
	if err != nil {
		return nil, false, err
	}
	return box, ok, nil
}

// fits reports whether box's estimated result size and memory footprint
// lie within the configured budgets for every requested attribute.
func (it *Iterator) fits(box *subarray.Subarray) (bool, error) {
	it.stats.CallsToComputeCurrentTileOverlap++
	ndRange, err := boundingNDRange(box)
	if err != nil {
		return false, err
	}
	cfg := it.budgets.Config()
	if !cfg.SkipEstSizePartitioning {
		it.stats.CallsToComputeEstimatedResultSize++
		sizes, err := it.est.EstimateResultSizes(ndRange, it.attrs)
		if err != nil {
			return false, err
		}
		for _, attr := range it.attrs {
			budget, err := it.budgets.GetResultBudget(attr)
			if err != nil {
				return false, err
			}
			est := sizes[attr]
			if est.Fixed > budget.Fixed {
				return false, nil
			}
			if budget.VarSet() && est.Var > budget.Var {
				return false, nil
			}
			if budget.ValiditySet() && est.Validity > budget.Validity {
				return false, nil
			}
		}
	}

	mem, err := it.est.MemoryBudgetEstimate(ndRange, it.attrs)
	if err != nil {
		return false, err
	}
	memBudget := it.budgets.GetMemoryBudget()
	for _, attr := range it.attrs {
		m := mem[attr]
		if m.Fixed > memBudget.Fixed || m.Var > memBudget.Var {
			return false, nil
		}
	}
	return true, nil
}

// boundingNDRange widens box to one trange.Range per dimension (its
// per-dimension min lo / max hi), the shape EstimateResultSizes and
// MemoryBudgetEstimate expect; string dimensions are passed through as
// their first range, since overlap along them isn't computed
// geometrically (see oracle.NDRangeToBox).
func boundingNDRange(box *subarray.Subarray) ([]trange.Range, error) {
	n := box.Domain().NDim()
	out := make([]trange.Range, n)
	for k := 0; k < n; k++ {
		cnt := box.RangeNumPerDim(k)
		if cnt == 0 {
			cnt = 1
		}
		first, err := box.GetRange(k, 0)
		if err != nil {
			return nil, err
		}
		if first.Type.IsVarLen() {
			out[k] = first
			continue
		}
		lo, hi := first.LoAsFloat(), first.HiAsFloat()
		for idx := uint64(1); idx < cnt; idx++ {
			r, err := box.GetRange(k, idx)
			if err != nil {
				return nil, err
			}
			if r.LoAsFloat() < lo {
				lo = r.LoAsFloat()
			}
			if r.HiAsFloat() > hi {
				hi = r.HiAsFloat()
			}
		}
		out[k] = first.WithBounds(lo, hi)
	}
	return out, nil
}
