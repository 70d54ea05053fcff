// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package oracle defines the Metadata Oracle collaborator: a read-only
// facade over fragment metadata that the tile-overlap estimator consumes.
// It is the single point through which the partitioner depends on on-disk
// state, and is always injected so the partitioner is testable without a
// real array.
package oracle

import (
	"github.com/grailbio/tdbpartition/subarray"
	"github.com/grailbio/tdbpartition/tilecoord"
	"github.com/grailbio/tdbpartition/trange"
)

// Coverage describes how much of a tile an ND range overlaps.
type Coverage int

const (
	// CoverageFull means the tile's entire cell extent lies within the
	// queried ND range.
	CoverageFull Coverage = iota
	// CoveragePartial means only some of the tile's cells lie within the
	// queried ND range.
	CoveragePartial
)

// TileOverlap is one entry of an RTreeOverlap result.
type TileOverlap struct {
	Tile     tilecoord.Coord
	Coverage Coverage
}

// MetadataOracle is the read-only facade over fragment metadata the
// estimator and partitioner depend on. Implementations must be safe for
// concurrent use by multiple goroutines, since the estimator fans out
// queries across a thread pool.
type MetadataOracle interface {
	// RTreeOverlap returns every tile whose MBR intersects ndRange (one
	// range per dimension), along with its coverage classification.
	RTreeOverlap(ndRange []trange.Range) ([]TileOverlap, error)

	// RelevantTileIDs narrows the candidate tile set before a full
	// RTreeOverlap computation, for oracles backed by a spatial index that
	// can cheaply reject whole subtrees. Implementations that have no
	// cheaper prefilter than RTreeOverlap itself may return nil, nil to
	// signal "no prefilter available"; callers fall back to RTreeOverlap.
	RelevantTileIDs(ndRange []trange.Range) ([]tilecoord.Coord, error)

	// TileBox returns tile's ND cell extent, used to compute the exact
	// intersection ratio for a partially-covered tile.
	TileBox(tile tilecoord.Coord) (tilecoord.Box, error)
	TileCellNum(tile tilecoord.Coord) (uint64, error)
	TileSize(tile tilecoord.Coord, attr string) (uint64, error)
	TileVarSize(tile tilecoord.Coord, attr string) (uint64, error)
	TileValiditySize(tile tilecoord.Coord, attr string) (uint64, error)

	Domain() *subarray.Domain
	AllowsDups() bool
	// Capacity is the sparse-fragment tile capacity (cells per tile),
	// meaningless for dense arrays.
	Capacity() uint64
}
