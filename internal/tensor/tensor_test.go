package tensor

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestNewShape(t *testing.T) {
	s, err := NewShape(2, 3)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 3, 1, 1}, s)
	assert.Equal(t, 6, s.Elements())
	assert.Equal(t, "[2 3 1 1]", s.String())

	_, err = NewShape(2, 0)
	assert.Error(t, err)

	_, err = NewShape(1, 2, 3, 4, 5)
	assert.Error(t, err)

	assert.Panics(t, func() { MustShape(-1) })
}

func TestShapeSetIsCopy(t *testing.T) {
	s := MustShape(4, 5, 6)
	s2 := s.Set(0, 1)
	assert.Equal(t, Shape{4, 5, 6, 1}, s)
	assert.Equal(t, Shape{1, 5, 6, 1}, s2)
}

func TestShapeOffsetIndexRoundtrip(t *testing.T) {
	s := MustShape(3, 4, 2, 2)
	// Axis 1 is the fastest varying, then axis 0, then 2, then 3.
	assert.Equal(t, 1, s.Offset([MaxAxes]int{0, 1, 0, 0}))
	assert.Equal(t, 4, s.Offset([MaxAxes]int{1, 0, 0, 0}))
	assert.Equal(t, 12, s.Offset([MaxAxes]int{0, 0, 1, 0}))
	assert.Equal(t, 24, s.Offset([MaxAxes]int{0, 0, 0, 1}))

	for i := 0; i < s.Elements(); i++ {
		assert.Equal(t, i, s.Offset(s.Index(i)))
	}
}

func TestRawTensorZeroCopy(t *testing.T) {
	raw := must.M1(NewRaw(MustShape(3, 2), Float32, CPU))
	data := raw.AsFloat32()
	require.Len(t, data, 6)

	data[0] = 42
	assert.Equal(t, float32(42), raw.AsFloat32()[0])
	assert.Panics(t, func() { raw.AsInt32() })
}

func TestViewAliasesStorage(t *testing.T) {
	owner := must.M1(FromSlice([]float32{0, 1, 2, 3, 4, 5, 6, 7}, MustShape(2, 2, 2), CPU))

	view, err := owner.View(MustShape(2, 2), 4)
	require.NoError(t, err)
	assert.True(t, view.SharesStorage(owner))
	assert.Equal(t, []float32{4, 5, 6, 7}, view.AsFloat32())

	// Writes through the owner are visible through the view and back.
	owner.AsFloat32()[5] = 50
	assert.Equal(t, float32(50), view.AsFloat32()[1])
	view.AsFloat32()[0] = 40
	assert.Equal(t, float32(40), owner.AsFloat32()[4])

	assert.False(t, owner.IsUnique())

	// Releasing the owner keeps the memory alive for the view.
	owner.Release()
	assert.Equal(t, float32(40), view.AsFloat32()[0])
	view.Release()
	assert.Panics(t, func() { view.AsFloat32() })
}

func TestViewOutOfBounds(t *testing.T) {
	owner := must.M1(Zeros(MustShape(2, 2), CPU))
	_, err := owner.View(MustShape(2, 2), 1)
	assert.Error(t, err)
	_, err = owner.View(MustShape(1), -1)
	assert.Error(t, err)
}

func TestReleaseTwice(t *testing.T) {
	owner := must.M1(Zeros(MustShape(2, 2), CPU))
	view := must.M1(owner.View(MustShape(4), 0))
	view.Release()
	view.Release()
	assert.True(t, owner.IsUnique())
	assert.Equal(t, 4, len(owner.AsFloat32()))
}

func TestFromSliceErrors(t *testing.T) {
	_, err := FromSlice([]float64{1, 2, 3}, MustShape(2, 2), CPU)
	assert.Error(t, err)

	x := must.M1(FromSlice([]float64{1.5, -2}, MustShape(2), CPU))
	assert.Equal(t, []float32{1.5, -2}, x.AsFloat32())
}

func TestFloat16Storage(t *testing.T) {
	values := []float16.Float16{float16.Fromfloat32(0.5), float16.Fromfloat32(-2), float16.Fromfloat32(3)}
	half := must.M1(FromFloat16(values, MustShape(3), CPU))
	assert.Equal(t, 6, half.ByteSize())
	assert.Equal(t, []float32{0.5, -2, 3}, half.ToFloat32())
}

func TestFromIndices(t *testing.T) {
	idx := must.M1(FromIndices([]int{0, 0, 2}, CPU))
	assert.Equal(t, Shape{3, 1, 1, 1}, idx.Shape())
	assert.Equal(t, []int32{0, 0, 2}, idx.AsInt32())

	_, err := FromIndices(nil, CPU)
	assert.Error(t, err)
}
