// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package estimate implements the Tile-Overlap Estimator (spec component
// C): it turns an ND range plus a metadata oracle into per-attribute
// result-size and memory estimates, memoizing by (ND range, attribute) in
// a sharded, read-mostly cache.
package estimate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/grailbio/base/sync/multierror"
	"github.com/grailbio/tdbpartition/oracle"
	"github.com/grailbio/tdbpartition/threadpool"
	"github.com/grailbio/tdbpartition/tilecoord"
	"github.com/grailbio/tdbpartition/trange"
)

// ResultEstimate is a single attribute's estimated result-buffer
// occupancy for an ND range.
type ResultEstimate struct {
	Fixed    uint64
	Var      uint64
	Validity uint64
}

// MemoryEstimate bounds the resident working set for an attribute across
// every tile loaded (full or partial) to serve an ND range.
type MemoryEstimate struct {
	Fixed uint64
	Var   uint64
}

const numShards = 16

// shard is one bucket of the sharded cache, following the same
// per-bucket sync.Mutex scheme as a read-mostly concurrent map.
type shard struct {
	mu    sync.Mutex
	cache map[string]map[string]ResultEstimate // ndRangeKey -> attr -> estimate
}

// Estimator computes result-size and memory estimates against an
// injected MetadataOracle, fanning the per-attribute size summation for
// one ND range out across an injected thread pool.
type Estimator struct {
	oracle oracle.MetadataOracle
	pool   threadpool.Pool
	shards [numShards]shard
}

// New creates an Estimator reading from o and using pool for fan-out.
func New(o oracle.MetadataOracle, pool threadpool.Pool) *Estimator {
	e := &Estimator{oracle: o, pool: pool}
	for i := range e.shards {
		e.shards[i].cache = make(map[string]map[string]ResultEstimate)
	}
	return e
}

// Invalidate clears every cached estimate. Callers must invoke this
// whenever the subarray the ND ranges are drawn from mutates -- a cached
// estimate keyed by a given ND range is only valid for the subarray
// generation it was computed against.
func (e *Estimator) Invalidate() {
	for i := range e.shards {
		e.shards[i].mu.Lock()
		e.shards[i].cache = make(map[string]map[string]ResultEstimate)
		e.shards[i].mu.Unlock()
	}
}

func rangeKey(r trange.Range) string {
	if r.Type.IsVarLen() {
		return fmt.Sprintf("s:%x:%x", r.LoBytes, r.HiBytes)
	}
	return fmt.Sprintf("n:%v:%v", r.LoAsFloat(), r.HiAsFloat())
}

func ndRangeKey(ndRange []trange.Range) string {
	parts := make([]string, len(ndRange))
	for i, r := range ndRange {
		parts[i] = rangeKey(r)
	}
	return strings.Join(parts, "|")
}

func (e *Estimator) shardFor(key string) *shard {
	var h uint32
	for i := 0; i < len(key); i++ {
		h = h*31 + uint32(key[i])
	}
	return &e.shards[h%numShards]
}

// EstimateTileOverlap returns every tile overlapping ndRange along with
// its coverage classification. It first consults the oracle's
// RelevantTileIDs prefilter; oracles with no cheaper prefilter than a
// full RTreeOverlap scan return nil and this falls back to that scan
// directly.
func (e *Estimator) EstimateTileOverlap(ndRange []trange.Range) ([]oracle.TileOverlap, error) {
	if ids, err := e.oracle.RelevantTileIDs(ndRange); err != nil {
		return nil, err
	} else if ids != nil && len(ids) == 0 {
		return nil, nil
	}
	return e.oracle.RTreeOverlap(ndRange)
}

// EstimateResultSizes returns, for every attribute in attrs, the
// estimated fixed/var/validity result-buffer occupancy for ndRange:
//
//	est_fixed(a)    = sum(tile_size(t,a)     * coverage(t))
//	est_var(a)      = sum(tile_var_size(t,a) * coverage(t))
//	est_validity(a) = sum(tile_validity_size(t,a) * coverage(t))
//
// where coverage(t) is 1 for a fully-covered tile and
// intersection_cells/tile_cell_num(t) for a partially-covered one.
// Results are memoized per (ndRange, attr); call Invalidate after
// mutating the subarray ndRange was drawn from.
func (e *Estimator) EstimateResultSizes(ndRange []trange.Range, attrs []string) (map[string]ResultEstimate, error) {
	key := ndRangeKey(ndRange)
	s := e.shardFor(key)

	out := make(map[string]ResultEstimate, len(attrs))
	var missing []string
	s.mu.Lock()
	cached := s.cache[key]
	for _, a := range attrs {
		if est, ok := cached[a]; ok {
			out[a] = est
		} else {
			missing = append(missing, a)
		}
	}
	s.mu.Unlock()
	if len(missing) == 0 {
		return out, nil
	}

	overlaps, err := e.EstimateTileOverlap(ndRange)
	if err != nil {
		return nil, err
	}

	queryBox := oracle.NDRangeToBox(ndRange)
	computed := make(map[string]ResultEstimate, len(missing))
	var mu sync.Mutex
	errs := multierror.NewMultiError(1)
	tasks := make([]threadpool.Task, len(missing))
	for i, attr := range missing {
		attr := attr
		tasks[i] = func() error {
			est, err := e.sumOverlaps(overlaps, queryBox, attr)
			if err != nil {
				return err
			}
			mu.Lock()
			computed[attr] = est
			mu.Unlock()
			return nil
		}
	}
	errs.Add(e.pool.Run(tasks))
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.cache[key] == nil {
		s.cache[key] = make(map[string]ResultEstimate)
	}
	for attr, est := range computed {
		s.cache[key][attr] = est
		out[attr] = est
	}
	s.mu.Unlock()
	return out, nil
}

func (e *Estimator) sumOverlaps(overlaps []oracle.TileOverlap, queryBox tilecoord.Box, attr string) (ResultEstimate, error) {
	var est ResultEstimate
	for _, ov := range overlaps {
		coverage, err := e.coverageRatio(ov, queryBox)
		if err != nil {
			return ResultEstimate{}, err
		}
		fixed, err := e.oracle.TileSize(ov.Tile, attr)
		if err != nil {
			return ResultEstimate{}, err
		}
		varSize, err := e.oracle.TileVarSize(ov.Tile, attr)
		if err != nil {
			return ResultEstimate{}, err
		}
		validity, err := e.oracle.TileValiditySize(ov.Tile, attr)
		if err != nil {
			return ResultEstimate{}, err
		}
		est.Fixed += scale(fixed, coverage)
		est.Var += scale(varSize, coverage)
		est.Validity += scale(validity, coverage)
	}
	return est, nil
}

// coverageRatio returns 1.0 for a fully-covered tile, and
// intersection_cells/tile_cell_num(t) for a partially-covered one,
// computed from range arithmetic on the tile's MBR against queryBox.
func (e *Estimator) coverageRatio(ov oracle.TileOverlap, queryBox tilecoord.Box) (float64, error) {
	if ov.Coverage == oracle.CoverageFull {
		return 1.0, nil
	}
	box, err := e.oracle.TileBox(ov.Tile)
	if err != nil {
		return 0, err
	}
	total, err := e.oracle.TileCellNum(ov.Tile)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	inter := intersectionCellCount(box, queryBox)
	return float64(inter) / float64(total), nil
}

// intersectionCellCount returns the number of cells in the box formed by
// intersecting a and b, or 0 if they do not overlap.
func intersectionCellCount(a, b tilecoord.Box) int64 {
	n := len(a.Lo)
	lo := make(tilecoord.Coord, n)
	hi := make(tilecoord.Coord, n)
	for i := 0; i < n; i++ {
		lo[i] = a.Lo[i]
		if b.Lo[i] > lo[i] {
			lo[i] = b.Lo[i]
		}
		hi[i] = a.Hi[i]
		if b.Hi[i] < hi[i] {
			hi[i] = b.Hi[i]
		}
	}
	box := tilecoord.Box{Lo: lo, Hi: hi}
	return box.CellCount()
}

func scale(v uint64, ratio float64) uint64 {
	return uint64(float64(v) * ratio)
}

// MemoryBudgetEstimate returns, for every attribute in attrs, the maximum
// per-tile fixed/var size across every tile loaded (full or partial) to
// serve ndRange -- a safe upper bound on the reader's resident working
// set, per spec §4.C's memory-budget estimation rule.
func (e *Estimator) MemoryBudgetEstimate(ndRange []trange.Range, attrs []string) (map[string]MemoryEstimate, error) {
	overlaps, err := e.EstimateTileOverlap(ndRange)
	if err != nil {
		return nil, err
	}
	out := make(map[string]MemoryEstimate, len(attrs))
	for _, attr := range attrs {
		var max MemoryEstimate
		for _, ov := range overlaps {
			fixed, err := e.oracle.TileSize(ov.Tile, attr)
			if err != nil {
				return nil, err
			}
			varSize, err := e.oracle.TileVarSize(ov.Tile, attr)
			if err != nil {
				return nil, err
			}
			if fixed > max.Fixed {
				max.Fixed = fixed
			}
			if varSize > max.Var {
				max.Var = varSize
			}
		}
		out[attr] = max
	}
	return out, nil
}
