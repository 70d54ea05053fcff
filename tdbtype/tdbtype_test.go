package tdbtype_test

import (
	"math"
	"testing"

	"github.com/grailbio/tdbpartition/tdbtype"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestNextValueInt(t *testing.T) {
	expect.EQ(t, tdbtype.Int32.NextValue(4), float64(5))
	expect.EQ(t, tdbtype.Uint8.NextValue(0), float64(1))
}

func TestNextValueFloat(t *testing.T) {
	got := tdbtype.Float64.NextValue(4.0)
	expect.EQ(t, got, math.Nextafter(4.0, math.Inf(1)))
	assert.True(t, got > 4.0, "nextafter must increase the value")
}

func TestMidpointInt(t *testing.T) {
	tests := []struct {
		lo, hi, want float64
	}{
		{2, 5, 3},
		{0, 1, 0},
		{0, 0, 0},
		{-5, 5, 0},
	}
	for _, test := range tests {
		expect.EQ(t, tdbtype.Int32.Midpoint(test.lo, test.hi), test.want, test)
	}
}

func TestNextByteString(t *testing.T) {
	expect.EQ(t, string(tdbtype.NextByteString([]byte("cc"))), "cc\x7f")
}

func TestDatatypeClassification(t *testing.T) {
	assert.True(t, tdbtype.Int64.IsInt(), "int64 is integral")
	assert.False(t, tdbtype.Int64.IsFloat(), "int64 is not float")
	assert.True(t, tdbtype.Float32.IsFloat(), "float32 is float")
	assert.True(t, tdbtype.ASCII.IsVarLen(), "ascii is var-length")
	assert.False(t, tdbtype.Int8.IsVarLen(), "int8 is not var-length")
}
