// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package oracle_test

import (
	"context"
	"io/ioutil"
	"os"
	"testing"

	"github.com/grailbio/tdbpartition/oracle"
	"github.com/grailbio/tdbpartition/subarray"
	"github.com/grailbio/tdbpartition/tdbtype"
	"github.com/grailbio/tdbpartition/tilecoord"
	"github.com/grailbio/tdbpartition/trange"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func testDomain(t *testing.T) *subarray.Domain {
	d, err := trange.NewInt(tdbtype.Int32, 0, 9)
	assert.NoError(t, err)
	return &subarray.Domain{Dimensions: []subarray.Dimension{{Name: "x", Type: tdbtype.Int32, Domain: d}}}
}

func TestFakeOracleRTreeOverlap(t *testing.T) {
	dom := testDomain(t)
	fo := oracle.NewFakeOracle(dom, false, 0)
	fo.AddTile(tilecoord.Coord{0}, tilecoord.Box{Lo: tilecoord.Coord{0}, Hi: tilecoord.Coord{1}}, 2,
		map[string]uint64{"a": 8}, nil, nil)
	fo.AddTile(tilecoord.Coord{1}, tilecoord.Box{Lo: tilecoord.Coord{2}, Hi: tilecoord.Coord{3}}, 2,
		map[string]uint64{"a": 8}, nil, nil)

	r, err := trange.NewInt(tdbtype.Int32, 1, 2)
	assert.NoError(t, err)
	overlaps, err := fo.RTreeOverlap([]trange.Range{r})
	assert.NoError(t, err)
	expect.EQ(t, len(overlaps), 2)
	for _, ov := range overlaps {
		expect.EQ(t, ov.Coverage, oracle.CoveragePartial)
	}
}

func TestFakeOracleFullCoverage(t *testing.T) {
	dom := testDomain(t)
	fo := oracle.NewFakeOracle(dom, false, 0)
	fo.AddTile(tilecoord.Coord{0}, tilecoord.Box{Lo: tilecoord.Coord{0}, Hi: tilecoord.Coord{1}}, 2,
		map[string]uint64{"a": 8}, nil, nil)

	r, err := trange.NewInt(tdbtype.Int32, 0, 5)
	assert.NoError(t, err)
	overlaps, err := fo.RTreeOverlap([]trange.Range{r})
	assert.NoError(t, err)
	expect.EQ(t, len(overlaps), 1)
	expect.EQ(t, overlaps[0].Coverage, oracle.CoverageFull)
}

func TestFakeOracleTileAccessors(t *testing.T) {
	dom := testDomain(t)
	fo := oracle.NewFakeOracle(dom, true, 100)
	fo.AddTile(tilecoord.Coord{0}, tilecoord.Box{Lo: tilecoord.Coord{0}, Hi: tilecoord.Coord{1}}, 2,
		map[string]uint64{"a": 16}, map[string]uint64{"a": 4}, map[string]uint64{"a": 1})

	n, err := fo.TileCellNum(tilecoord.Coord{0})
	assert.NoError(t, err)
	expect.EQ(t, n, uint64(2))

	size, err := fo.TileSize(tilecoord.Coord{0}, "a")
	assert.NoError(t, err)
	expect.EQ(t, size, uint64(16))

	_, err = fo.TileCellNum(tilecoord.Coord{99})
	assert.NotNil(t, err, "unknown tile must error")

	expect.EQ(t, fo.AllowsDups(), true)
	expect.EQ(t, fo.Capacity(), uint64(100))
}

func TestFileOracleRoundTrip(t *testing.T) {
	snapshot := `{
		"allows_dups": false,
		"capacity": 0,
		"tiles": [
			{"coord": [0], "box": {"Lo": [0], "Hi": [1]}, "cell_num": 2, "sizes": {"a": 8}}
		]
	}`
	tmp, err := ioutil.TempFile("", "oracle_snapshot_*.json")
	assert.NoError(t, err)
	defer os.Remove(tmp.Name())
	_, err = tmp.WriteString(snapshot)
	assert.NoError(t, err)
	assert.NoError(t, tmp.Close())

	dom := testDomain(t)
	fileOracle, err := oracle.LoadFileOracle(context.Background(), tmp.Name(), dom)
	assert.NoError(t, err)
	size, err := fileOracle.TileSize(tilecoord.Coord{0}, "a")
	assert.NoError(t, err)
	expect.EQ(t, size, uint64(8))
}
