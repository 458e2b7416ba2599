package frame

import (
	"testing"

	"github.com/Meesho/BharatMLStack/policy-sweep/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameDense(t *testing.T) {
	f := New(3)
	require.NoError(t, f.AddNumeric("price", schema.WidthFloat32, []float64{1.5, 2.5, 3.5}))
	require.NoError(t, f.AddNumeric("dow", schema.WidthInt8, []float64{0, 6, 3}))
	require.NoError(t, f.AddNumeric("year", schema.WidthInt16, []float64{2017, 2017, 2016}))
	require.NoError(t, f.AddCategorical("family", []int32{1, 0, 2}, []string{"A", "B", "__UNK__"}))

	assert.Equal(t, 3, f.Rows())
	assert.Equal(t, []string{"price", "dow", "year", "family"}, f.Names())

	dense := f.Dense(0, 3, nil)
	assert.Equal(t, []float64{
		1.5, 0, 2017, 1,
		2.5, 6, 2017, 0,
		3.5, 3, 2016, 2,
	}, dense)

	chunk := f.Dense(1, 2, dense)
	assert.Equal(t, []float64{2.5, 6, 2017, 0}, chunk)
}

func TestFrameCategory(t *testing.T) {
	f := New(2)
	require.NoError(t, f.AddCategorical("store_nbr", []int32{0, 1}, []string{"44", "__UNK__"}))

	col, ok := f.Lookup("store_nbr")
	require.True(t, ok)
	assert.Equal(t, "44", col.Category(0))
	assert.Equal(t, "__UNK__", col.Category(1))
	assert.Equal(t, int32(1), col.Code(1))
	assert.Equal(t, 2, col.Len())
}

func TestFrameFloat16(t *testing.T) {
	f := New(1)
	require.NoError(t, f.AddNumeric("lag1", schema.WidthFloat16, []float64{0.5}))
	assert.Equal(t, 0.5, f.Column(0).Float64(0))
}

func TestFrameRejectsBadColumns(t *testing.T) {
	f := New(2)
	assert.Error(t, f.AddNumeric("a", schema.WidthFloat32, []float64{1}))
	require.NoError(t, f.AddNumeric("a", schema.WidthFloat32, []float64{1, 2}))
	assert.Error(t, f.AddNumeric("a", schema.WidthFloat32, []float64{1, 2}))
	assert.Error(t, f.AddCategorical("b", []int32{0, 2}, []string{"x", "__UNK__"}))
	assert.Equal(t, 1, f.NumColumns())
}
