// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package partitioner

import (
	"github.com/grailbio/tdbpartition/hilbert"
	"github.com/grailbio/tdbpartition/subarray"
	"github.com/grailbio/tdbpartition/tdberr"
	"github.com/grailbio/tdbpartition/trange"
	"github.com/pkg/errors"
)

// splitDim picks which dimension of box (a subarray with exactly one
// range per dimension) to split, and splits it. It probes
// domain.TileOrderDims() in order and takes the first dimension whose
// single range is not Unsplittable -- trange.Range.Split already embodies
// the per-type "is there room for a right half" predicate (unary check
// for ints, adjacent-representable check for floats, shortestBetween for
// strings), so a dimension-choice rule built on top of it doesn't need to
// recompute that predicate itself.
//
// For row/column-major cell order the dimension order is exactly
// TileOrderDims(). For Hilbert cell order, dimensions are instead ranked
// by how far apart their lo and hi map on the Hilbert curve (holding
// every other dimension fixed at its lo coordinate) -- an approximation
// of "does this axis span many curve segments", not a full per-axis
// decomposition of the curve.
// normalOrder reports whether left/right are in the same order as the
// dimension's geometric lo/hi (row/column-major always is; Hilbert cell
// order can reverse it, per spec §4.E, when the curve visits the
// geometric right half before the left half). Callers that push left/right
// onto a LIFO must push them in reverse when normalOrder is false, so
// popping still yields pieces in curve-traversal order.
func splitDim(box *subarray.Subarray) (dim int, left, right *subarray.Subarray, normalOrder bool, err error) {
	domain := box.Domain()
	order := domain.TileOrderDims()
	if domain.CellOrder == subarray.CellHilbert {
		order, err = hilbertOrder(box, order)
		if err != nil {
			return 0, nil, nil, false, err
		}
	}

	for _, d := range order {
		r, err := box.GetRange(d, 0)
		if err != nil {
			return 0, nil, nil, false, err
		}
		lr, rr, normal, err := r.Split()
		if tdberr.Is(tdberr.Unsplittable, err) {
			continue
		}
		if err != nil {
			return 0, nil, nil, false, err
		}
		if domain.CellOrder == subarray.CellHilbert {
			normal, err = hilbertSplitNormalOrder(box, d, lr, rr)
			if err != nil {
				return 0, nil, nil, false, err
			}
		}
		leftBox, err := replaceDim(box, d, lr)
		if err != nil {
			return 0, nil, nil, false, err
		}
		rightBox, err := replaceDim(box, d, rr)
		if err != nil {
			return 0, nil, nil, false, err
		}
		return d, leftBox, rightBox, normal, nil
	}
	return 0, nil, nil, false, tdberr.E(tdberr.Unsplittable, "partitioner.splitDim", "every dimension is unary")
}

// hilbertSplitNormalOrder reports whether lr (the lo-er half of dimension d)
// precedes rr on the Hilbert curve, holding every other dimension fixed at
// its lo coordinate. Unlike row/column-major order, the curve can visit the
// geometric right half first, in which case the caller must push (lr, rr)
// rather than (rr, lr) onto its traversal LIFO.
func hilbertSplitNormalOrder(box *subarray.Subarray, d int, lr, rr trange.Range) (bool, error) {
	n := box.Domain().NDim()
	bits := uint(63 / n)
	if bits == 0 {
		bits = 1
	}
	axes := make([]uint64, n)
	for k := 0; k < n; k++ {
		r, err := box.GetRange(k, 0)
		if err != nil {
			return false, err
		}
		axes[k] = asHilbertAxis(r.LoAsFloat(), bits)
	}
	axes[d] = asHilbertAxis(lr.LoAsFloat(), bits)
	leftIdx, err := hilbert.AxesToIndex(axes, bits)
	if err != nil {
		return false, errors.Wrapf(err, "partitioner: hilbert index of dimension %d's left half", d)
	}
	axes[d] = asHilbertAxis(rr.LoAsFloat(), bits)
	rightIdx, err := hilbert.AxesToIndex(axes, bits)
	if err != nil {
		return false, errors.Wrapf(err, "partitioner: hilbert index of dimension %d's right half", d)
	}
	return leftIdx <= rightIdx, nil
}

// replaceDim builds a copy of box with dimension dim's single range
// replaced by r.
func replaceDim(box *subarray.Subarray, dim int, r trange.Range) (*subarray.Subarray, error) {
	out, err := subarray.New(box.Domain(), box.Layout())
	if err != nil {
		return nil, err
	}
	n := box.Domain().NDim()
	for k := 0; k < n; k++ {
		if k == dim {
			if err := out.AddRange(k, r, true); err != nil {
				return nil, err
			}
			continue
		}
		if err := copyDimRanges(out, box, k); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// isUnsplittable reports whether every dimension of box holds a single
// unsplittable range, i.e. box cannot be divided further.
func isUnsplittable(box *subarray.Subarray) (bool, error) {
	n := box.Domain().NDim()
	for k := 0; k < n; k++ {
		r, err := box.GetRange(k, 0)
		if err != nil {
			return false, err
		}
		if _, _, _, err := r.Split(); !tdberr.Is(tdberr.Unsplittable, err) {
			if err != nil {
				return false, err
			}
			return false, nil
		}
	}
	return true, nil
}

// hilbertOrder ranks candidates by the Hilbert-curve distance between a
// dimension's lo and hi bound, holding every other dimension fixed at its
// lo coordinate, widest first.
func hilbertOrder(box *subarray.Subarray, candidates []int) ([]int, error) {
	n := box.Domain().NDim()
	bits := uint(63 / n)
	if bits == 0 {
		bits = 1
	}

	base := make([]uint64, n)
	spans := make([]uint64, n)
	ranges := make([]trange.Range, n)
	for k := 0; k < n; k++ {
		r, err := box.GetRange(k, 0)
		if err != nil {
			return nil, err
		}
		ranges[k] = r
		base[k] = asHilbertAxis(r.LoAsFloat(), bits)
	}
	lo, err := hilbert.AxesToIndex(base, bits)
	if err != nil {
		return nil, errors.Wrapf(err, "partitioner: hilbert index of base coordinate (bits=%d)", bits)
	}
	for _, d := range candidates {
		axes := append([]uint64{}, base...)
		axes[d] = asHilbertAxis(ranges[d].HiAsFloat(), bits)
		hi, err := hilbert.AxesToIndex(axes, bits)
		if err != nil {
			return nil, errors.Wrapf(err, "partitioner: hilbert index of dimension %d's hi bound", d)
		}
		if hi > lo {
			spans[d] = hi - lo
		} else {
			spans[d] = lo - hi
		}
	}

	out := append([]int{}, candidates...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && spans[out[j-1]] < spans[out[j]]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out, nil
}

func asHilbertAxis(v float64, bits uint) uint64 {
	max := (uint64(1) << bits) - 1
	if v < 0 {
		return 0
	}
	u := uint64(v)
	if u > max {
		return max
	}
	return u
}
