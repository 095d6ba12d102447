// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor exposes the storage types shared by graph nodes and
// backends.
//
// Every tensor has a four-axis Shape: rows, columns and two stacking axes.
// Missing axes default to 1, so tensor.MustShape(2, 3) is [2 3 1 1].
//
// Example:
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.MustShape(2, 3), tensor.CPU)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(x.Shape(), x.AsFloat32())
package tensor

import (
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

// RawTensor is a reference-counted buffer with a shape, a data type and an
// element offset. Views share the buffer of the tensor they were cut from.
type RawTensor = tensor.RawTensor

// Shape is the four-axis shape of a tensor.
type Shape = tensor.Shape

// DataType is the element type of a tensor.
type DataType = tensor.DataType

// Device is the kind of device a tensor lives on.
type Device = tensor.Device

// Supported data types.
const (
	Float32 = tensor.Float32
	Float16 = tensor.Float16
	Int32   = tensor.Int32
)

// Supported devices.
const (
	CPU = tensor.CPU
	GPU = tensor.GPU
)

// MaxAxes is the fixed rank of every Shape.
const MaxAxes = tensor.MaxAxes

// NewShape normalizes dims into a Shape, padding missing axes with 1.
func NewShape(dims ...int) (Shape, error) {
	return tensor.NewShape(dims...)
}

// MustShape is like NewShape but panics on invalid dimensions.
func MustShape(dims ...int) Shape {
	return tensor.MustShape(dims...)
}

// Zeros creates a zero-filled float32 tensor.
func Zeros(shape Shape, device Device) (*RawTensor, error) {
	return tensor.Zeros(shape, device)
}

// Full creates a float32 tensor filled with value.
func Full(shape Shape, value float32, device Device) (*RawTensor, error) {
	return tensor.Full(shape, value, device)
}

// FromSlice creates a float32 tensor holding a copy of data.
func FromSlice[T constraints.Float](data []T, shape Shape, device Device) (*RawTensor, error) {
	return tensor.FromSlice(data, shape, device)
}

// FromFloat16 creates a float16 tensor holding a copy of data.
func FromFloat16(data []float16.Float16, shape Shape, device Device) (*RawTensor, error) {
	return tensor.FromFloat16(data, shape, device)
}

// FromIndices creates an int32 index tensor of shape [len(indices) 1 1 1].
func FromIndices(indices []int, device Device) (*RawTensor, error) {
	return tensor.FromIndices(indices, device)
}
