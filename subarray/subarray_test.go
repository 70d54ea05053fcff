// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package subarray_test

import (
	"testing"

	"github.com/grailbio/tdbpartition/subarray"
	"github.com/grailbio/tdbpartition/tdbtype"
	"github.com/grailbio/tdbpartition/tilecoord"
	"github.com/grailbio/tdbpartition/trange"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func extent(v float64) *float64 { return &v }

func twoDimDomain(t *testing.T) *subarray.Domain {
	d0, err := trange.NewInt(tdbtype.Int32, 0, 9)
	assert.NoError(t, err)
	d1, err := trange.NewInt(tdbtype.Int32, 0, 9)
	assert.NoError(t, err)
	return &subarray.Domain{
		Dimensions: []subarray.Dimension{
			{Name: "x", Type: tdbtype.Int32, Domain: d0, TileExtent: extent(2)},
			{Name: "y", Type: tdbtype.Int32, Domain: d1, TileExtent: extent(2)},
		},
		CellOrder: subarray.CellRowMajor,
		TileOrder: subarray.TileRowMajor,
	}
}

func mustRange(t *testing.T, lo, hi int64) trange.Range {
	r, err := trange.NewInt(tdbtype.Int32, lo, hi)
	assert.NoError(t, err)
	return r
}

func TestEmptySubarrayIsWholeDomain(t *testing.T) {
	dom := twoDimDomain(t)
	sa, err := subarray.New(dom, subarray.LayoutRowMajor)
	assert.NoError(t, err)
	expect.EQ(t, sa.RangeNum(), uint64(1))
	expect.EQ(t, sa.RangeNumPerDim(0), uint64(0))
	r, err := sa.GetRange(0, 0)
	assert.NoError(t, err)
	expect.EQ(t, r.LoInt, int64(0))
	expect.EQ(t, r.HiInt, int64(9))
}

func TestRangeNumIsCrossProduct(t *testing.T) {
	dom := twoDimDomain(t)
	sa, err := subarray.New(dom, subarray.LayoutRowMajor)
	assert.NoError(t, err)
	assert.NoError(t, sa.AddRange(0, mustRange(t, 0, 1), true))
	assert.NoError(t, sa.AddRange(0, mustRange(t, 4, 4), false))
	assert.NoError(t, sa.AddRange(1, mustRange(t, 0, 0), true))
	assert.NoError(t, sa.AddRange(1, mustRange(t, 2, 2), false))
	assert.NoError(t, sa.AddRange(1, mustRange(t, 3, 3), false))
	// dim0 has 2 ranges (0..1 and 4..4, not adjacent so not coalesced), dim1
	// has 3 ranges ((0..0),(2..2),(3..3) -- 2 and 3 are adjacent but added
	// with coalesceHint=false).
	expect.EQ(t, sa.RangeNumPerDim(0), uint64(2))
	expect.EQ(t, sa.RangeNumPerDim(1), uint64(3))
	expect.EQ(t, sa.RangeNum(), uint64(6))
}

func TestCoalesceOnAdd(t *testing.T) {
	dom := twoDimDomain(t)
	sa, err := subarray.New(dom, subarray.LayoutRowMajor)
	assert.NoError(t, err)
	assert.NoError(t, sa.AddRange(0, mustRange(t, 0, 2), true))
	assert.NoError(t, sa.AddRange(0, mustRange(t, 3, 5), true))
	expect.EQ(t, sa.RangeNumPerDim(0), uint64(1))
	r, err := sa.GetRange(0, 0)
	assert.NoError(t, err)
	expect.EQ(t, r.LoInt, int64(0))
	expect.EQ(t, r.HiInt, int64(5))
}

func TestRangeIdxRoundTrip(t *testing.T) {
	dom := twoDimDomain(t)
	sa, err := subarray.New(dom, subarray.LayoutRowMajor)
	assert.NoError(t, err)
	assert.NoError(t, sa.AddRange(0, mustRange(t, 0, 1), false))
	assert.NoError(t, sa.AddRange(0, mustRange(t, 4, 4), false))
	assert.NoError(t, sa.AddRange(1, mustRange(t, 0, 0), false))
	assert.NoError(t, sa.AddRange(1, mustRange(t, 2, 2), false))
	assert.NoError(t, sa.AddRange(1, mustRange(t, 3, 3), false))
	assert.NoError(t, sa.ComputeRangeOffsets())

	for dim0 := uint64(0); dim0 < 2; dim0++ {
		for dim1 := uint64(0); dim1 < 3; dim1++ {
			flat, err := sa.RangeIdx([]uint64{dim0, dim1})
			assert.NoError(t, err)
			startCoords, endCoords, err := sa.GetExpandedCoordinates(flat, flat)
			assert.NoError(t, err)
			expect.EQ(t, startCoords[0], dim0)
			expect.EQ(t, startCoords[1], dim1)
			expect.EQ(t, endCoords[0], dim0)
			expect.EQ(t, endCoords[1], dim1)
		}
	}
}

// Row-major calibration widens a flat range spanning a dim0 boundary to the
// full set of dim1 ranges for every dim0 value it touches, since dim1 is
// least significant.
func TestGetExpandedCoordinatesRowMajor(t *testing.T) {
	dom := twoDimDomain(t)
	sa, err := subarray.New(dom, subarray.LayoutRowMajor)
	assert.NoError(t, err)
	for i := int64(0); i < 3; i++ {
		assert.NoError(t, sa.AddRange(0, mustRange(t, i, i), false))
	}
	for i := int64(0); i < 4; i++ {
		assert.NoError(t, sa.AddRange(1, mustRange(t, i, i), false))
	}
	assert.NoError(t, sa.ComputeRangeOffsets())

	// Flat indices [2, 9] span dim0 in {0,1,2} and dim1 in {0..3}.
	start, end, err := sa.GetExpandedCoordinates(2, 9)
	assert.NoError(t, err)
	expect.EQ(t, start[0], uint64(0))
	expect.EQ(t, start[1], uint64(0))
	expect.EQ(t, end[0], uint64(2))
	expect.EQ(t, end[1], uint64(3))
}

// Calibration is idempotent: re-running GetExpandedCoordinates over the flat
// range spanned by a previous calibration's own output reproduces the same
// box.
func TestGetExpandedCoordinatesIdempotent(t *testing.T) {
	dom := twoDimDomain(t)
	sa, err := subarray.New(dom, subarray.LayoutRowMajor)
	assert.NoError(t, err)
	for i := int64(0); i < 3; i++ {
		assert.NoError(t, sa.AddRange(0, mustRange(t, i, i), false))
	}
	for i := int64(0); i < 4; i++ {
		assert.NoError(t, sa.AddRange(1, mustRange(t, i, i), false))
	}
	assert.NoError(t, sa.ComputeRangeOffsets())

	start, end, err := sa.GetExpandedCoordinates(2, 9)
	assert.NoError(t, err)
	startFlat, err := sa.RangeIdx(start)
	assert.NoError(t, err)
	endFlat, err := sa.RangeIdx(end)
	assert.NoError(t, err)

	start2, end2, err := sa.GetExpandedCoordinates(startFlat, endFlat)
	assert.NoError(t, err)
	expect.EQ(t, start2[0], start[0])
	expect.EQ(t, start2[1], start[1])
	expect.EQ(t, end2[0], end[0])
	expect.EQ(t, end2[1], end[1])
}

func TestCellNumIsSumOfProducts(t *testing.T) {
	dom := twoDimDomain(t)
	sa, err := subarray.New(dom, subarray.LayoutRowMajor)
	assert.NoError(t, err)
	assert.NoError(t, sa.AddRange(0, mustRange(t, 0, 1), false)) // width 2
	assert.NoError(t, sa.AddRange(1, mustRange(t, 0, 2), false)) // width 3
	// One dimension has a single range of width 2, the other of width 3:
	// total cells = 2*3 = 6.
	expect.EQ(t, sa.CellNum(), uint64(6))
}

func TestTileCoordsAndCropToTile(t *testing.T) {
	dom := twoDimDomain(t)
	sa, err := subarray.New(dom, subarray.LayoutRowMajor)
	assert.NoError(t, err)
	assert.NoError(t, sa.AddRange(0, mustRange(t, 1, 3), false))
	assert.NoError(t, sa.AddRange(1, mustRange(t, 0, 1), false))

	tiles, err := sa.TileCoords()
	assert.NoError(t, err)
	// Tile extent 2 on both dims: dim0 range 1..3 touches tiles 0 and 1,
	// dim1 range 0..1 touches tile 0 only.
	assert.True(t, len(tiles) == 2, "expected 2 tiles, got %d", len(tiles))

	cropped, err := sa.CropToTile(tilecoord.Coord{0, 0})
	assert.NoError(t, err)
	// Tile 0 on dim0 covers [0,1]; intersected with range [1,3] gives [1,1].
	// Tile 0 on dim1 covers [0,1], fully inside range [0,1].
	n, err := sa.TileCellNum(tilecoord.Coord{0, 0})
	assert.NoError(t, err)
	expect.EQ(t, n, uint64(1*2))
	expect.EQ(t, cropped.CellNum(), n)
}

// TestCropToTileMultiRangeSkipsFarRanges exercises the floor-seek path in
// CropToTile against a dimension with several disjoint ranges, one of
// which lies entirely outside the cropped tile and must be skipped
// without contributing a (clamped-to-empty) range to the result.
func TestCropToTileMultiRangeSkipsFarRanges(t *testing.T) {
	dom := twoDimDomain(t)
	sa, err := subarray.New(dom, subarray.LayoutRowMajor)
	assert.NoError(t, err)
	// dim0: three disjoint single-cell ranges; only {1} overlaps tile 0
	// ([0,1]).
	assert.NoError(t, sa.AddRange(0, mustRange(t, 1, 1), false))
	assert.NoError(t, sa.AddRange(0, mustRange(t, 5, 5), false))
	assert.NoError(t, sa.AddRange(0, mustRange(t, 9, 9), false))
	assert.NoError(t, sa.AddRange(1, mustRange(t, 0, 1), false))

	cropped, err := sa.CropToTile(tilecoord.Coord{0, 0})
	assert.NoError(t, err)
	expect.EQ(t, cropped.RangeNumPerDim(0), uint64(1))
	r, err := cropped.GetRange(0, 0)
	assert.NoError(t, err)
	expect.EQ(t, r.LoInt, int64(1))
	expect.EQ(t, r.HiInt, int64(1))
	expect.EQ(t, cropped.CellNum(), uint64(1*2))
}

func TestAddRangeClampsToDomain(t *testing.T) {
	dom := twoDimDomain(t)
	sa, err := subarray.New(dom, subarray.LayoutRowMajor)
	assert.NoError(t, err)
	assert.NoError(t, sa.AddRange(0, mustRange(t, -5, 100), false))
	r, err := sa.GetRange(0, 0)
	assert.NoError(t, err)
	expect.EQ(t, r.LoInt, int64(0))
	expect.EQ(t, r.HiInt, int64(9))
}

func TestAddRangeRejectsOutOfDomain(t *testing.T) {
	dom := twoDimDomain(t)
	sa, err := subarray.New(dom, subarray.LayoutRowMajor)
	assert.NoError(t, err)
	err = sa.AddRange(0, mustRange(t, 20, 30), false)
	assert.NotNil(t, err, "range entirely outside the domain must be rejected")
}

func TestAttributeRangesRoundTrip(t *testing.T) {
	dom := twoDimDomain(t)
	sa, err := subarray.New(dom, subarray.LayoutRowMajor)
	assert.NoError(t, err)
	want := []trange.Range{mustRange(t, 1, 2)}
	sa.SetAttributeRanges("score", want)
	got := sa.AttributeRanges("score")
	expect.EQ(t, len(got), 1)
	expect.EQ(t, got[0].LoInt, int64(1))
}
