// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package subarray implements the Subarray component (spec component B): an
// ordered collection of per-dimension ranges plus a traversal layout, whose
// cross product yields the ND ranges the partitioner iterates over.
package subarray

import (
	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/log"
	"github.com/grailbio/tdbpartition/tdberr"
	"github.com/grailbio/tdbpartition/tilecoord"
	"github.com/grailbio/tdbpartition/trange"
)

// Subarray is a multiset of per-dimension ranges under a traversal layout.
// It is value-like: mutation methods (AddRange, SetAttributeRanges,
// ComputeRangeOffsets) act on this instance only.
type Subarray struct {
	domain *Domain
	layout Layout

	// ranges[k] holds dimension k's ranges, coalesced unless opts for that
	// dimension disabled it. An empty slice means "whole domain" (§4.B).
	ranges [][]trange.Range
	// coalesceDisabled[k] suppresses merge-on-append for dimension k.
	coalesceDisabled []bool

	// attrRanges stores non-dimension ranges attached via
	// SetAttributeRanges. The core round-trips these opaquely; no semantics
	// are imposed on them here.
	attrRanges map[string][]trange.Range

	// offsets[k] is the stride for dimension k, valid only when
	// offsetsValid is true.
	offsets      []uint64
	offsetsValid bool

	// sortedByLo[k]/rangeTrees[k] cache a lo-sorted view of dimension k's
	// ranges plus an llrb.Tree floor-index into it, built lazily by
	// ensureRangeTrees and invalidated alongside offsetsValid. See
	// rangetree.go.
	sortedByLo [][]trange.Range
	rangeTrees []*llrb.Tree
	treesValid bool
}

// New creates an empty Subarray (equivalent to "the whole domain") over
// domain with the given layout.
func New(domain *Domain, layout Layout) (*Subarray, error) {
	if layout == LayoutUnordered && domain.TileOrder != TileRowMajor && domain.TileOrder != TileColumnMajor {
		return nil, tdberr.E(tdberr.InvalidLayout, "subarray.New", "tile order must be row- or column-major")
	}
	if layout == LayoutGlobalOrder {
		for _, dim := range domain.Dimensions {
			if !dim.HasTileExtent() && !dim.Type.IsVarLen() {
				return nil, tdberr.E(tdberr.InvalidLayout, "subarray.New",
					"global order requires tile extents on every non-string dimension")
			}
		}
	}
	n := domain.NDim()
	return &Subarray{
		domain:           domain,
		layout:           layout,
		ranges:           make([][]trange.Range, n),
		coalesceDisabled: make([]bool, n),
		attrRanges:       make(map[string][]trange.Range),
	}, nil
}

// Domain returns the subarray's domain.
func (s *Subarray) Domain() *Domain { return s.domain }

// Layout returns the subarray's traversal layout.
func (s *Subarray) Layout() Layout { return s.layout }

// clampToDomain clips r to dim's domain, or returns an error if r doesn't
// overlap the domain at all.
func clampToDomain(dim Dimension, r trange.Range) (trange.Range, error) {
	if !dim.Domain.Intersects(r) {
		return trange.Range{}, tdberr.E(tdberr.InvalidRange, "subarray.AddRange", "range lies outside dimension domain")
	}
	if dim.Type.IsVarLen() {
		return r, nil // string domains are treated as unbounded in practice.
	}
	lo, hi := r.LoAsFloat(), r.HiAsFloat()
	dlo, dhi := dim.Domain.LoAsFloat(), dim.Domain.HiAsFloat()
	if lo < dlo {
		lo = dlo
	}
	if hi > dhi {
		hi = dhi
	}
	return r.WithBounds(lo, hi), nil
}

// AddRange appends r (after clamping to the dimension's domain) to
// dimension dim. If coalesceHint is true and r is adjacent to or
// overlapping the last range on dim, the two are merged in place; this is
// automatically suppressed for non-integral or unsplittable dimensions,
// where merges can silently hide distinct user-requested points.
func (s *Subarray) AddRange(dim int, r trange.Range, coalesceHint bool) error {
	if dim < 0 || dim >= len(s.ranges) {
		return tdberr.E(tdberr.InvalidRange, "subarray.AddRange", "dimension index out of bounds")
	}
	d := s.domain.Dimensions[dim]
	if r.Type != d.Type {
		return tdberr.E(tdberr.InvalidRange, "subarray.AddRange", "range datatype does not match dimension datatype")
	}
	clamped, err := clampToDomain(d, r)
	if err != nil {
		return err
	}
	suppress := s.coalesceDisabled[dim] || !d.Type.IsInt() || d.Type.IsVarLen()
	effectiveHint := coalesceHint && !suppress
	rs := s.ranges[dim]
	if effectiveHint && len(rs) > 0 && rs[len(rs)-1].Adjacent(clamped) {
		rs[len(rs)-1] = rs[len(rs)-1].Coalesce(clamped)
	} else {
		s.ranges[dim] = append(rs, clamped)
	}
	s.offsetsValid = false
	s.treesValid = false
	return nil
}

// DisableCoalesce suppresses merge-on-append for dimension dim going
// forward; existing ranges are unaffected.
func (s *Subarray) DisableCoalesce(dim int) { s.coalesceDisabled[dim] = true }

// SetAttributeRanges attaches ranges for a non-dimension name (used later
// by query condition pushdown in the query executor, out of scope here).
// The core stores them opaquely and round-trips them unchanged.
func (s *Subarray) SetAttributeRanges(name string, ranges []trange.Range) {
	s.attrRanges[name] = ranges
}

// AttributeRanges returns the ranges previously attached to name via
// SetAttributeRanges, or nil.
func (s *Subarray) AttributeRanges(name string) []trange.Range {
	return s.attrRanges[name]
}

// effectiveRanges returns dimension dim's ranges, substituting the whole
// domain when none were added (§4.B's "empty means whole domain" rule).
func (s *Subarray) effectiveRanges(dim int) []trange.Range {
	if len(s.ranges[dim]) == 0 {
		return []trange.Range{s.domain.Dimensions[dim].Domain}
	}
	return s.ranges[dim]
}

// RangeNumPerDim returns the raw number of ranges added to dimension dim
// (zero if none were ever added, even though the flattened iteration still
// yields the whole domain as a single range for that dimension).
func (s *Subarray) RangeNumPerDim(dim int) uint64 {
	return uint64(len(s.ranges[dim]))
}

// effectiveCountPerDim returns the number of ranges the flattened iteration
// uses for dimension dim (RangeNumPerDim, or 1 if empty).
func (s *Subarray) effectiveCountPerDim(dim int) uint64 {
	return uint64(len(s.effectiveRanges(dim)))
}

// RangeNum returns the total number of flattened ND ranges: the product of
// effectiveCountPerDim across all dimensions. An entirely empty subarray
// reports exactly one ND range (the whole domain).
func (s *Subarray) RangeNum() uint64 {
	total := uint64(1)
	for k := range s.ranges {
		total *= s.effectiveCountPerDim(k)
	}
	return total
}

// GetRange returns the idx'th range on dimension dim.
func (s *Subarray) GetRange(dim int, idx uint64) (trange.Range, error) {
	rs := s.effectiveRanges(dim)
	if idx >= uint64(len(rs)) {
		return trange.Range{}, tdberr.E(tdberr.InvalidRange, "subarray.GetRange", "range index out of bounds")
	}
	return rs[idx], nil
}

// significanceOrder returns dimension indices from most- to
// least-significant under the subarray's layout: the product of the
// counts of dimensions after a given one in this order is that dimension's
// stride.
func (s *Subarray) significanceOrder() []int {
	n := s.domain.NDim()
	order := make([]int, n)
	switch s.layout {
	case LayoutColumnMajor:
		for i := 0; i < n; i++ {
			order[i] = n - 1 - i
		}
	case LayoutGlobalOrder:
		// Global order follows tile order across tiles, then cell order
		// within a tile. Per-dimension range lists are already stored in
		// ascending domain order, so -- as long as each range maps to a
		// single tile index along its dimension, which holds once the
		// splitter/estimator have calibrated to tile boundaries -- the
		// tile-order permutation alone determines significance; intra-tile
		// cell order only matters for the scan order *within* a tile,
		// which this layer does not need to resolve (§4.B).
		if s.domain.TileOrder == TileColumnMajor {
			for i := 0; i < n; i++ {
				order[i] = n - 1 - i
			}
		} else {
			for i := 0; i < n; i++ {
				order[i] = i
			}
		}
	default: // LayoutRowMajor, LayoutUnordered
		for i := 0; i < n; i++ {
			order[i] = i
		}
	}
	return order
}

// ComputeRangeOffsets builds the strides used by RangeIdx and
// GetExpandedCoordinates. A dimension with zero ranges is legal (whole
// domain) and counts as one range; the only failure is a domain with no
// dimensions.
func (s *Subarray) ComputeRangeOffsets() error {
	n := s.domain.NDim()
	if n == 0 {
		return tdberr.E(tdberr.InvalidLayout, "subarray.ComputeRangeOffsets", "domain has no dimensions")
	}
	order := s.significanceOrder()
	offsets := make([]uint64, n)
	stride := uint64(1)
	for i := n - 1; i >= 0; i-- {
		dim := order[i]
		offsets[dim] = stride
		stride *= s.effectiveCountPerDim(dim)
	}
	s.offsets = offsets
	s.offsetsValid = true
	log.Debug.Printf("subarray: computed range offsets %v for layout %v", offsets, s.layout)
	return nil
}

func (s *Subarray) ensureOffsets() error {
	if s.offsetsValid {
		return nil
	}
	return s.ComputeRangeOffsets()
}

// decode splits a flat ND-range index into per-dimension range indices.
func (s *Subarray) decode(flat uint64) []uint64 {
	n := s.domain.NDim()
	coords := make([]uint64, n)
	for k := 0; k < n; k++ {
		cnt := s.effectiveCountPerDim(k)
		coords[k] = (flat / s.offsets[k]) % cnt
	}
	return coords
}

// encode combines per-dimension range indices into a flat ND-range index.
func (s *Subarray) encode(coords []uint64) uint64 {
	var flat uint64
	for k, idx := range coords {
		flat += idx * s.offsets[k]
	}
	return flat
}

// RangeIdx returns the flat index of the ND range selected by coords
// (one range index per dimension).
func (s *Subarray) RangeIdx(coords []uint64) (uint64, error) {
	if err := s.ensureOffsets(); err != nil {
		return 0, err
	}
	if len(coords) != s.domain.NDim() {
		return 0, tdberr.E(tdberr.InvalidRange, "subarray.RangeIdx", "coords length does not match dimensionality")
	}
	return s.encode(coords), nil
}

// GetExpandedCoordinates widens the flat-index interval [startFlat,
// endFlat] to the minimum ND box [startCoords, endCoords] that, under the
// current layout, contains every range whose flat index lies in
// [startFlat, endFlat]. This is the calibration step the partitioner uses
// to ensure every emitted partition is itself a valid cross-product
// Subarray rather than an arbitrary flat-index slice.
func (s *Subarray) GetExpandedCoordinates(startFlat, endFlat uint64) (startCoords, endCoords []uint64, err error) {
	if err := s.ensureOffsets(); err != nil {
		return nil, nil, err
	}
	if startFlat > endFlat {
		return nil, nil, tdberr.E(tdberr.InvalidRange, "subarray.GetExpandedCoordinates", "startFlat > endFlat")
	}
	a := s.decode(startFlat)
	b := s.decode(endFlat)
	order := s.significanceOrder()

	startCoords = make([]uint64, len(a))
	endCoords = make([]uint64, len(a))
	diverged := false
	for _, dim := range order {
		switch {
		case diverged:
			startCoords[dim] = 0
			endCoords[dim] = s.effectiveCountPerDim(dim) - 1
		case a[dim] != b[dim]:
			startCoords[dim] = a[dim]
			endCoords[dim] = b[dim]
			diverged = true
		default:
			startCoords[dim] = a[dim]
			endCoords[dim] = a[dim]
		}
	}
	return startCoords, endCoords, nil
}

// CellNum returns the total number of cells addressed by the cross product
// of every range currently on the subarray. By distributivity of the cross
// product over per-dimension sums, this equals the product, across
// dimensions, of the sum of that dimension's range widths.
func (s *Subarray) CellNum() uint64 {
	total := uint64(1)
	for k := range s.ranges {
		var dimTotal uint64
		for _, r := range s.effectiveRanges(k) {
			dimTotal += r.Width()
		}
		total *= dimTotal
	}
	return total
}

// TileCoords computes the ordered list of tile coordinates overlapping the
// subarray, for a dense array whose dimensions all carry a tile extent.
// The result is sorted in the domain's tile order.
func (s *Subarray) TileCoords() ([]tilecoord.Coord, error) {
	n := s.domain.NDim()
	perDim := make([][]int64, n)
	for k := 0; k < n; k++ {
		dim := s.domain.Dimensions[k]
		if !dim.HasTileExtent() {
			return nil, tdberr.E(tdberr.InvalidLayout, "subarray.TileCoords", "dimension has no tile extent")
		}
		extent := *dim.TileExtent
		dlo := dim.Domain.LoAsFloat()
		seen := map[int64]bool{}
		var tiles []int64
		for _, r := range s.effectiveRanges(k) {
			tLo := int64((r.LoAsFloat() - dlo) / extent)
			tHi := int64((r.HiAsFloat() - dlo) / extent)
			for t := tLo; t <= tHi; t++ {
				if !seen[t] {
					seen[t] = true
					tiles = append(tiles, t)
				}
			}
		}
		sortInt64(tiles)
		perDim[k] = tiles
	}
	order := s.domain.TileOrderDims()
	var out []tilecoord.Coord
	cur := make([]int64, n)
	var rec func(i int)
	rec = func(i int) {
		if i == len(order) {
			out = append(out, tilecoord.Coord(append([]int64{}, cur...)))
			return
		}
		dim := order[i]
		for _, t := range perDim[dim] {
			cur[dim] = t
			rec(i + 1)
		}
	}
	if n > 0 {
		rec(0)
	}
	return out, nil
}

func sortInt64(s []int64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// CropToTile returns a subarray clipped to the ND box of the named tile,
// preserving per-dimension range structure. Used by dense readers to
// iterate one tile's worth of cells at a time.
//
// For non-var-len dimensions, the per-dimension scan floor-seeks into a
// lo-sorted llrb.Tree (ensureRangeTrees) to skip ranges that end before
// the tile starts, and stops as soon as a range's lo passes the tile's hi
// bound -- a wide query with many ranges on a dimension no longer pays for
// every range on every tile it is cropped against.
func (s *Subarray) CropToTile(tile tilecoord.Coord) (*Subarray, error) {
	n := s.domain.NDim()
	if len(tile) != n {
		return nil, tdberr.E(tdberr.InvalidRange, "subarray.CropToTile", "tile coordinate dimensionality mismatch")
	}
	out, err := New(s.domain, s.layout)
	if err != nil {
		return nil, err
	}
	s.ensureRangeTrees()
	for k := 0; k < n; k++ {
		dim := s.domain.Dimensions[k]
		if !dim.HasTileExtent() {
			return nil, tdberr.E(tdberr.InvalidLayout, "subarray.CropToTile", "dimension has no tile extent")
		}
		extent := *dim.TileExtent
		dlo := dim.Domain.LoAsFloat()
		tileLo := dlo + float64(tile[k])*extent
		tileHi := tileLo + extent - 1

		ranges := s.effectiveRanges(k)
		sorted := !dim.Type.IsVarLen()
		start := 0
		if sorted {
			ranges = s.sortedByLo[k]
			start = s.floorRangeIndex(k, tileLo)
		}
		for _, r := range ranges[start:] {
			lo, hi := r.LoAsFloat(), r.HiAsFloat()
			if sorted && lo > tileHi {
				break // ranges are lo-sorted from here on; nothing further can overlap.
			}
			if lo < tileLo {
				lo = tileLo
			}
			if hi > tileHi {
				hi = tileHi
			}
			if lo > hi {
				continue
			}
			clipped := r.WithBounds(lo, hi)
			if err := out.AddRange(k, clipped, true); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// TileCellNum returns the number of cells inside the named tile that also
// lie within the subarray. Equivalent to CropToTile(tile).CellNum().
func (s *Subarray) TileCellNum(tile tilecoord.Coord) (uint64, error) {
	cropped, err := s.CropToTile(tile)
	if err != nil {
		return 0, err
	}
	return cropped.CellNum(), nil
}
