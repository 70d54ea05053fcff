// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package hilbert_test

import (
	"testing"

	"github.com/grailbio/tdbpartition/hilbert"
	"github.com/grailbio/tdbpartition/tdberr"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestRoundTrip2D(t *testing.T) {
	const bits = 3
	for x := uint64(0); x < 1<<bits; x++ {
		for y := uint64(0); y < 1<<bits; y++ {
			idx, err := hilbert.AxesToIndex([]uint64{x, y}, bits)
			assert.NoError(t, err)
			back, err := hilbert.IndexToAxes(idx, 2, bits)
			assert.NoError(t, err)
			expect.EQ(t, back[0], x)
			expect.EQ(t, back[1], y)
		}
	}
}

func TestRoundTrip3D(t *testing.T) {
	const bits = 4
	for x := uint64(0); x < 1<<bits; x += 3 {
		for y := uint64(0); y < 1<<bits; y += 3 {
			for z := uint64(0); z < 1<<bits; z += 3 {
				idx, err := hilbert.AxesToIndex([]uint64{x, y, z}, bits)
				assert.NoError(t, err)
				back, err := hilbert.IndexToAxes(idx, 3, bits)
				assert.NoError(t, err)
				expect.EQ(t, back[0], x)
				expect.EQ(t, back[1], y)
				expect.EQ(t, back[2], z)
			}
		}
	}
}

func TestIndexIsBijectionOverGrid(t *testing.T) {
	const bits = 3
	seen := map[uint64]bool{}
	for x := uint64(0); x < 1<<bits; x++ {
		for y := uint64(0); y < 1<<bits; y++ {
			idx, err := hilbert.AxesToIndex([]uint64{x, y}, bits)
			assert.NoError(t, err)
			assert.True(t, idx < 1<<(2*bits), "index must fit in the expected bit width")
			assert.False(t, seen[idx], "Hilbert index collision at (%d,%d) -> %d", x, y, idx)
			seen[idx] = true
		}
	}
	expect.EQ(t, len(seen), 1<<(2*bits))
}

func TestRejectsOverflowingBitWidth(t *testing.T) {
	_, err := hilbert.AxesToIndex([]uint64{1, 2, 3, 4, 5}, 13) // 5*13 = 65 > 63
	assert.True(t, tdberr.Is(tdberr.InvalidLayout, err), "bit widths over 63 total must be rejected")
}
