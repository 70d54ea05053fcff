// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package oracle

import (
	"fmt"

	"github.com/grailbio/tdbpartition/subarray"
	"github.com/grailbio/tdbpartition/tdberr"
	"github.com/grailbio/tdbpartition/tilecoord"
	"github.com/grailbio/tdbpartition/trange"
)

// tileMeta is one tile's recorded metadata, shared by the in-memory fake
// oracle and the values a file-backed snapshot deserializes into.
type tileMeta struct {
	Box           tilecoord.Box     `json:"box"`
	CellNum       uint64            `json:"cell_num"`
	Sizes         map[string]uint64 `json:"sizes"`
	VarSizes      map[string]uint64 `json:"var_sizes"`
	ValiditySizes map[string]uint64 `json:"validity_sizes"`
}

// memoryOracle implements MetadataOracle entirely from data already
// resident in memory; FakeOracle and FileOracle both wrap one, the latter
// after populating it from a decoded snapshot.
type memoryOracle struct {
	domain     *subarray.Domain
	allowsDups bool
	capacity   uint64
	tiles      map[string]tileMeta
	order      []tilecoord.Coord // tiles, insertion order preserved for determinism
}

func tileKey(t tilecoord.Coord) string { return fmt.Sprint([]int64(t)) }

func newMemoryOracle(domain *subarray.Domain, allowsDups bool, capacity uint64) *memoryOracle {
	return &memoryOracle{
		domain:     domain,
		allowsDups: allowsDups,
		capacity:   capacity,
		tiles:      make(map[string]tileMeta),
	}
}

// addTile registers a tile's metadata. box describes the tile's ND cell
// extent in domain coordinates, used for overlap computation against
// queried ranges.
func (m *memoryOracle) addTile(coord tilecoord.Coord, meta tileMeta) {
	key := tileKey(coord)
	if _, ok := m.tiles[key]; !ok {
		m.order = append(m.order, coord)
	}
	m.tiles[key] = meta
}

func (m *memoryOracle) lookup(tile tilecoord.Coord) (tileMeta, error) {
	meta, ok := m.tiles[tileKey(tile)]
	if !ok {
		return tileMeta{}, tdberr.E(tdberr.Metadata, "oracle.lookup", "unknown tile coordinate")
	}
	return meta, nil
}

// NDRangeToBox widens an ND range (one trange.Range per dimension) into
// the integer tilecoord.Box covering the same cells, for box-intersection
// arithmetic against tile MBRs. String dimensions contribute a degenerate
// [0,0] box entry, since overlap along those dimensions isn't computed
// geometrically.
func NDRangeToBox(ndRange []trange.Range) tilecoord.Box {
	lo := make(tilecoord.Coord, len(ndRange))
	hi := make(tilecoord.Coord, len(ndRange))
	for i, r := range ndRange {
		if r.Type.IsVarLen() {
			// String dimensions have no numeric box; map them to the
			// degenerate [0,0] entry, so along them a query intersects
			// only tile boxes whose component covers 0.
			lo[i], hi[i] = 0, 0
			continue
		}
		lo[i] = int64(r.LoAsFloat())
		hi[i] = int64(r.HiAsFloat())
	}
	return tilecoord.Box{Lo: lo, Hi: hi}
}

func (m *memoryOracle) RTreeOverlap(ndRange []trange.Range) ([]TileOverlap, error) {
	box := NDRangeToBox(ndRange)
	var out []TileOverlap
	for _, coord := range m.order {
		meta := m.tiles[tileKey(coord)]
		if !meta.Box.Intersects(box) {
			continue
		}
		coverage := CoveragePartial
		if containsBox(box, meta.Box) {
			coverage = CoverageFull
		}
		out = append(out, TileOverlap{Tile: coord, Coverage: coverage})
	}
	return out, nil
}

func containsBox(outer, inner tilecoord.Box) bool {
	for i := range outer.Lo {
		if inner.Lo[i] < outer.Lo[i] || inner.Hi[i] > outer.Hi[i] {
			return false
		}
	}
	return true
}

func (m *memoryOracle) RelevantTileIDs(ndRange []trange.Range) ([]tilecoord.Coord, error) {
	// The in-memory oracle has no spatial index cheaper than a full scan,
	// so it reports no prefilter; RTreeOverlap above already does a linear
	// scan anyway.
	return nil, nil
}

func (m *memoryOracle) TileBox(tile tilecoord.Coord) (tilecoord.Box, error) {
	meta, err := m.lookup(tile)
	if err != nil {
		return tilecoord.Box{}, err
	}
	return meta.Box, nil
}

func (m *memoryOracle) TileCellNum(tile tilecoord.Coord) (uint64, error) {
	meta, err := m.lookup(tile)
	if err != nil {
		return 0, err
	}
	return meta.CellNum, nil
}

func (m *memoryOracle) TileSize(tile tilecoord.Coord, attr string) (uint64, error) {
	meta, err := m.lookup(tile)
	if err != nil {
		return 0, err
	}
	return meta.Sizes[attr], nil
}

func (m *memoryOracle) TileVarSize(tile tilecoord.Coord, attr string) (uint64, error) {
	meta, err := m.lookup(tile)
	if err != nil {
		return 0, err
	}
	return meta.VarSizes[attr], nil
}

func (m *memoryOracle) TileValiditySize(tile tilecoord.Coord, attr string) (uint64, error) {
	meta, err := m.lookup(tile)
	if err != nil {
		return 0, err
	}
	return meta.ValiditySizes[attr], nil
}

func (m *memoryOracle) Domain() *subarray.Domain { return m.domain }
func (m *memoryOracle) AllowsDups() bool         { return m.allowsDups }
func (m *memoryOracle) Capacity() uint64         { return m.capacity }
