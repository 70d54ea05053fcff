// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package oracle

import (
	"context"
	"encoding/json"
	"io/ioutil"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/tdbpartition/subarray"
	"github.com/grailbio/tdbpartition/tdberr"
	"github.com/grailbio/tdbpartition/tilecoord"
	"github.com/pkg/errors"
)

// fileSnapshot is the on-disk JSON shape a FileOracle loads. It exists
// independently of memoryOracle's internal map representation so the file
// format does not change shape if the in-memory index does.
type fileSnapshot struct {
	AllowsDups bool   `json:"allows_dups"`
	Capacity   uint64 `json:"capacity"`
	Tiles      []struct {
		Coord         tilecoord.Coord   `json:"coord"`
		Box           tilecoord.Box     `json:"box"`
		CellNum       uint64            `json:"cell_num"`
		Sizes         map[string]uint64 `json:"sizes"`
		VarSizes      map[string]uint64 `json:"var_sizes"`
		ValiditySizes map[string]uint64 `json:"validity_sizes"`
	} `json:"tiles"`
}

// FileOracle is a MetadataOracle backed by a JSON tile-metadata snapshot
// read once at construction through github.com/grailbio/base/file, so it
// works uniformly over local paths and the VFS schemes that package
// supports.
type FileOracle struct {
	*memoryOracle
}

// LoadFileOracle reads and parses the snapshot at path, matching domain
// against the snapshot's tile metadata.
func LoadFileOracle(ctx context.Context, path string, domain *subarray.Domain) (*FileOracle, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, tdberr.E(tdberr.Metadata, "oracle.LoadFileOracle", path, err)
	}
	defer func() {
		if cerr := f.Close(ctx); cerr != nil {
			log.Error.Printf("oracle: closing %v: %v", path, cerr)
		}
	}()
	data, err := ioutil.ReadAll(f.Reader(ctx))
	if err != nil {
		return nil, tdberr.E(tdberr.Metadata, "oracle.LoadFileOracle", path, err)
	}
	var snap fileSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, tdberr.E(tdberr.Metadata, "oracle.LoadFileOracle", path, errors.Wrap(err, "parsing tile snapshot"))
	}

	m := newMemoryOracle(domain, snap.AllowsDups, snap.Capacity)
	for _, t := range snap.Tiles {
		m.addTile(t.Coord, tileMeta{
			Box:           t.Box,
			CellNum:       t.CellNum,
			Sizes:         t.Sizes,
			VarSizes:      t.VarSizes,
			ValiditySizes: t.ValiditySizes,
		})
	}
	return &FileOracle{memoryOracle: m}, nil
}
