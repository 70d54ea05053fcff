package tilecoord_test

import (
	"testing"

	"github.com/grailbio/tdbpartition/tilecoord"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestCompare(t *testing.T) {
	a := tilecoord.Coord{1, 2}
	b := tilecoord.Coord{1, 3}
	c := tilecoord.Coord{1, 2}
	assert.True(t, a.LT(b), "a<b")
	assert.True(t, b.GT(a), "b>a")
	assert.True(t, a.EQ(c), "a==c")
	expect.EQ(t, a.Compare(c), 0)
}

func TestMinMax(t *testing.T) {
	a := tilecoord.Coord{0, 5}
	b := tilecoord.Coord{0, 9}
	expect.EQ(t, a.Min(b).EQ(a), true)
	expect.EQ(t, a.Max(b).EQ(b), true)
}

func TestBoxCellCount(t *testing.T) {
	box := tilecoord.Box{Lo: tilecoord.Coord{1, 1}, Hi: tilecoord.Coord{4, 4}}
	expect.EQ(t, box.CellCount(), int64(16))

	empty := tilecoord.Box{Lo: tilecoord.Coord{4, 1}, Hi: tilecoord.Coord{1, 4}}
	expect.EQ(t, empty.CellCount(), int64(0))
}

func TestBoxIntersects(t *testing.T) {
	a := tilecoord.Box{Lo: tilecoord.Coord{0, 0}, Hi: tilecoord.Coord{2, 2}}
	b := tilecoord.Box{Lo: tilecoord.Coord{2, 2}, Hi: tilecoord.Coord{4, 4}}
	c := tilecoord.Box{Lo: tilecoord.Coord{3, 3}, Hi: tilecoord.Coord{4, 4}}
	assert.True(t, a.Intersects(b), "a and b share (2,2)")
	assert.False(t, a.Intersects(c), "a and c are disjoint")
}
