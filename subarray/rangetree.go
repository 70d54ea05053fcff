// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package subarray

import (
	"github.com/biogo/store/llrb"
	"github.com/grailbio/tdbpartition/trange"
)

// rangeLoKey orders a dimension's ranges by lower bound, breaking ties by
// sortedByLo index so ranges sharing a lo still occupy distinct tree nodes.
// Modeled on encoding/bampair's key type, the llrb.Comparable the partition
// read path floor-queries to find the shard covering a record's position.
type rangeLoKey struct {
	lo  float64
	idx int
}

func (k rangeLoKey) Compare(c llrb.Comparable) int {
	k2 := c.(rangeLoKey)
	switch {
	case k.lo < k2.lo:
		return -1
	case k.lo > k2.lo:
		return 1
	default:
		return k.idx - k2.idx
	}
}

// ensureRangeTrees lazily builds, for every non-var-len dimension, a
// lo-sorted copy of effectiveRanges(k) plus an llrb.Tree over rangeLoKey
// entries pointing into it. CropToTile uses the tree to floor-seek past
// ranges that end before the tile starts instead of walking every range on
// the dimension.
func (s *Subarray) ensureRangeTrees() {
	if s.treesValid {
		return
	}
	n := s.domain.NDim()
	s.sortedByLo = make([][]trange.Range, n)
	s.rangeTrees = make([]*llrb.Tree, n)
	for k := 0; k < n; k++ {
		if s.domain.Dimensions[k].Type.IsVarLen() {
			continue // string dimensions have no usable numeric lo order.
		}
		sorted := append([]trange.Range{}, s.effectiveRanges(k)...)
		sortRangesByLo(sorted)
		s.sortedByLo[k] = sorted

		tree := &llrb.Tree{}
		for idx, r := range sorted {
			tree.Insert(rangeLoKey{lo: r.LoAsFloat(), idx: idx})
		}
		s.rangeTrees[k] = tree
	}
	s.treesValid = true
}

// floorRangeIndex returns the first index into s.sortedByLo[dim] that can
// possibly hold a range overlapping target: it floor-seeks to the
// rightmost range whose lo is <= target, then walks left past any earlier,
// wider range whose hi still reaches target -- ranges on a dimension are
// ordinarily disjoint (TileDB merges a dimension's ranges on add), so this
// walk is usually zero-length, but it keeps the skip correct even when a
// caller has added overlapping ranges out of lo order. Callers must call
// ensureRangeTrees first.
func (s *Subarray) floorRangeIndex(dim int, target float64) int {
	tree := s.rangeTrees[dim]
	if tree == nil || tree.Len() == 0 {
		return 0
	}
	start := 0
	if c := tree.Floor(rangeLoKey{lo: target}); c != nil {
		start = c.(rangeLoKey).idx
	}
	sorted := s.sortedByLo[dim]
	for start > 0 && sorted[start-1].HiAsFloat() >= target {
		start--
	}
	return start
}

// sortRangesByLo insertion-sorts rs by LoAsFloat, matching this package's
// existing sortInt64 helper rather than reaching for sort.Slice over so
// small and hot a list.
func sortRangesByLo(rs []trange.Range) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j-1].LoAsFloat() > rs[j].LoAsFloat(); j-- {
			rs[j-1], rs[j] = rs[j], rs[j-1]
		}
	}
}
