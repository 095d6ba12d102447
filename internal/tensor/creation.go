package tensor

import (
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

// Zeros creates a float32 tensor filled with zeros.
func Zeros(shape Shape, device Device) (*RawTensor, error) {
	return NewRaw(shape, Float32, device)
}

// Full creates a float32 tensor filled with value.
func Full(shape Shape, value float32, device Device) (*RawTensor, error) {
	t, err := NewRaw(shape, Float32, device)
	if err != nil {
		return nil, err
	}
	data := t.AsFloat32()
	for i := range data {
		data[i] = value
	}
	return t, nil
}

// FromSlice creates a float32 tensor from a Go slice of any float type.
// The values are copied.
//
// Example:
//
//	t, err := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.MustShape(2, 3), tensor.CPU)
func FromSlice[T constraints.Float](data []T, shape Shape, device Device) (*RawTensor, error) {
	if shape.Elements() != len(data) {
		return nil, errors.Errorf("shape %s requires %d elements, but got %d", shape, shape.Elements(), len(data))
	}
	t, err := NewRaw(shape, Float32, device)
	if err != nil {
		return nil, err
	}
	out := t.AsFloat32()
	for i, v := range data {
		out[i] = float32(v)
	}
	return t, nil
}

// FromFloat16 creates a float16 tensor holding a copy of data.
func FromFloat16(data []float16.Float16, shape Shape, device Device) (*RawTensor, error) {
	if shape.Elements() != len(data) {
		return nil, errors.Errorf("shape %s requires %d elements, but got %d", shape, shape.Elements(), len(data))
	}
	t, err := NewRaw(shape, Float16, device)
	if err != nil {
		return nil, err
	}
	copy(t.AsFloat16(), data)
	return t, nil
}

// FromIndices creates an int32 tensor of shape [len(indices) 1 1 1].
func FromIndices(indices []int, device Device) (*RawTensor, error) {
	shape, err := NewShape(len(indices))
	if err != nil {
		return nil, errors.WithMessage(err, "empty index list")
	}
	t, err := NewRaw(shape, Int32, device)
	if err != nil {
		return nil, err
	}
	out := t.AsInt32()
	for i, idx := range indices {
		out[i] = int32(idx) //nolint:gosec // G115: row indices are bounded by the row count
	}
	return t, nil
}

// ToFloat32 returns a copy of the tensor's values as float32.
func (r *RawTensor) ToFloat32() []float32 {
	out := make([]float32, r.NumElements())
	switch r.dtype {
	case Float32:
		copy(out, r.AsFloat32())
	case Float16:
		for i, v := range r.AsFloat16() {
			out[i] = v.Float32()
		}
	case Int32:
		for i, v := range r.AsInt32() {
			out[i] = float32(v)
		}
	}
	return out
}
