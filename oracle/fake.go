// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package oracle

import (
	"github.com/grailbio/tdbpartition/subarray"
	"github.com/grailbio/tdbpartition/tilecoord"
)

// FakeOracle is an in-memory MetadataOracle test double: callers register
// each tile's box and per-attribute sizes directly, with no on-disk state
// involved. It is the injected collaborator partitioner tests are built
// against.
type FakeOracle struct {
	*memoryOracle
}

// NewFakeOracle creates an empty FakeOracle over domain.
func NewFakeOracle(domain *subarray.Domain, allowsDups bool, capacity uint64) *FakeOracle {
	return &FakeOracle{memoryOracle: newMemoryOracle(domain, allowsDups, capacity)}
}

// AddTile registers tile's box (its ND cell extent), cell count, and
// per-attribute fixed/var/validity sizes.
func (f *FakeOracle) AddTile(coord tilecoord.Coord, box tilecoord.Box, cellNum uint64, sizes, varSizes, validitySizes map[string]uint64) {
	f.memoryOracle.addTile(coord, tileMeta{
		Box:           box,
		CellNum:       cellNum,
		Sizes:         sizes,
		VarSizes:      varSizes,
		ValiditySizes: validitySizes,
	})
}
