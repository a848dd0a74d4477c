package tensor

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRowsCastsAndRejectsRagged(t *testing.T) {
	x, err := FromRows([][]float64{{1, 0}, {3, 2}}, Bool)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {1, 1}}, x.Values())

	_, err = FromRows([][]float64{{1}, {1, 2}}, Uint8)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShape))
}

func TestDTypeCast(t *testing.T) {
	assert.Equal(t, 1.0, Bool.Cast(7))
	assert.Equal(t, 4.0, Uint8.Cast(260))
	assert.Equal(t, -2.0, Int32.Cast(-2.7))
	assert.Equal(t, 2.5, Float64.Cast(2.5))

	dt, err := ParseDType(" UINT8 ")
	require.NoError(t, err)
	assert.Equal(t, Uint8, dt)
	_, err = ParseDType("complex")
	assert.Error(t, err)
}

func TestConcat(t *testing.T) {
	a := FromBools(true, false)
	b := MustFromRows([][]float64{{1, 2}, {3, 4}}, Bool)
	got, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Cols())
	assert.Equal(t, Bool, got.DType())
	assert.Equal(t, [][]float64{{1, 1, 1}, {0, 1, 1}}, got.Values())

	_, err = Concat(a, FromBools(true))
	assert.True(t, errors.Is(err, ErrShape))
}

func TestGatherAndRepeat(t *testing.T) {
	x := Column(Uint8, 10, 20, 30)
	g, err := x.Gather([]int{2, 0, 2})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{30}, {10}, {30}}, g.Values())

	_, err = x.Gather([]int{3})
	assert.Error(t, err)

	r, err := x.Repeat([]int{2, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{10}, {10}, {30}}, r.Values())
}

func TestSegmentCounts(t *testing.T) {
	counts, err := SegmentCounts([]int{0, 0, 0, 1, 3, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2}, counts)

	_, err = SegmentCounts([]int{0, 1, 0})
	assert.True(t, errors.Is(err, ErrShape))

	counts, err = SegmentCounts(nil)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestSegmentReduce(t *testing.T) {
	x := Column(Int64, 1, 2, 4, 1, 1)
	sum, err := x.SegmentReduce([]int{0, 0, 1, 1, 1}, Int64, 0, func(a, v float64) float64 { return a + v })
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{3}, {6}}, sum.Values())
}

func TestScatterReduceUsesEmptyForSilentRows(t *testing.T) {
	m := FromBools(true, false, false)
	max := func(a, v float64) float64 {
		if v > a {
			return v
		}
		return a
	}
	out, err := m.ScatterReduce([]int{2, 0, 2}, 4, Bool, 0, 0, max)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, true, false}, out.Bools(0))

	_, err = m.ScatterReduce([]int{0, 1, 9}, 4, Bool, 0, 0, max)
	assert.Error(t, err)
}

func TestEqualIgnoresDType(t *testing.T) {
	a := Column(Uint8, 1, 0)
	b := FromBools(true, false)
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(FromBools(true, true)))
	assert.False(t, a.Equal(MustFromRows([][]float64{{1, 0}}, Uint8)))
}

func TestProtoRoundTrip(t *testing.T) {
	x := MustFromRows([][]float64{{1, 2.5}, {-3, 0}}, Float64)
	got, err := UnmarshalProto(x.MarshalProto())
	require.NoError(t, err)
	if diff := cmp.Diff(x.Values(), got.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Float64, got.DType())

	empty, err := UnmarshalProto(Full(0, []float64{1}, Bool).MarshalProto())
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Rows())
	assert.Equal(t, 1, empty.Cols())

	_, err = UnmarshalProto([]byte{0x08})
	assert.Error(t, err)
}

func TestMarshalJSON(t *testing.T) {
	b, err := json.Marshal(FromBools(true, false))
	require.NoError(t, err)
	assert.JSONEq(t, `[[true],[false]]`, string(b))

	b, err = json.Marshal(MustFromRows([][]float64{{1, 2}}, Uint8))
	require.NoError(t, err)
	assert.Equal(t, `[[1,2]]`, string(b))

	b, err = json.Marshal(Column(Float64, 0.5))
	require.NoError(t, err)
	assert.Equal(t, `[[0.5]]`, string(b))
}
