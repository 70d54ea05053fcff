// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package subarray

import (
	"github.com/grailbio/tdbpartition/tdbtype"
	"github.com/grailbio/tdbpartition/trange"
)

// CellOrder is the intra-tile (or, for sparse arrays, whole-array) cell
// traversal order.
type CellOrder int

const (
	CellRowMajor CellOrder = iota
	CellColumnMajor
	CellHilbert
	CellUnordered
)

// TileOrder is the traversal order across tiles.
type TileOrder int

const (
	TileRowMajor TileOrder = iota
	TileColumnMajor
)

// Layout is the traversal order a Subarray presents its flattened ND ranges
// in.
type Layout int

const (
	LayoutRowMajor Layout = iota
	LayoutColumnMajor
	LayoutGlobalOrder
	LayoutUnordered
)

// Dimension is one axis of the array's domain.
type Dimension struct {
	Name string
	Type tdbtype.Datatype
	// Domain is the dimension's full valid range.
	Domain trange.Range
	// TileExtent is the tile width along this dimension. Absent (nil) is
	// only valid for sparse-only string dimensions.
	TileExtent *float64
}

// HasTileExtent reports whether d carries a tile extent.
func (d Dimension) HasTileExtent() bool { return d.TileExtent != nil }

// Domain is an ordered list of dimensions plus the traversal orders and
// duplicate-handling bit that apply across the whole array.
type Domain struct {
	Dimensions []Dimension
	CellOrder  CellOrder
	TileOrder  TileOrder
	// AllowsDups is meaningful for sparse arrays only.
	AllowsDups bool
}

// NDim returns the number of dimensions in the domain.
func (d *Domain) NDim() int { return len(d.Dimensions) }

// DimIndex returns the index of the dimension named name, or -1.
func (d *Domain) DimIndex(name string) int {
	for i, dim := range d.Dimensions {
		if dim.Name == name {
			return i
		}
	}
	return -1
}

// TileOrderDims returns every dimension index ordered by the domain's tile
// order (most significant first), the iteration order the splitter uses
// when choosing which dimension to split.
func (d *Domain) TileOrderDims() []int {
	n := d.NDim()
	order := make([]int, n)
	if d.TileOrder == TileColumnMajor {
		for i := 0; i < n; i++ {
			order[i] = n - 1 - i
		}
	} else {
		for i := 0; i < n; i++ {
			order[i] = i
		}
	}
	return order
}
