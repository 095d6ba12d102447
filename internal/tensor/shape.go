package tensor

import (
	"fmt"

	"github.com/pkg/errors"
)

// MaxAxes is the fixed rank of every Shape.
const MaxAxes = 4

// Shape represents the dimensions of a tensor.
//
// A Shape always has four axes. Axis 0 counts rows, axis 1 counts columns,
// axes 2 and 3 stack matrices (time steps, beams). In memory axis 1 varies
// fastest, then axis 0, then axis 2, then axis 3.
type Shape [MaxAxes]int

// NewShape normalizes dims into a Shape, padding missing axes with 1.
func NewShape(dims ...int) (Shape, error) {
	if len(dims) > MaxAxes {
		return Shape{}, errors.Errorf("shape %v has %d axes, at most %d supported", dims, len(dims), MaxAxes)
	}
	s := Shape{1, 1, 1, 1}
	copy(s[:], dims)
	if err := s.Validate(); err != nil {
		return Shape{}, err
	}
	return s, nil
}

// MustShape is like NewShape but panics on invalid dimensions.
func MustShape(dims ...int) Shape {
	s, err := NewShape(dims...)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return errors.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Elements returns the total number of elements.
func (s Shape) Elements() int {
	return s[0] * s[1] * s[2] * s[3]
}

// Set returns a copy of the shape with axis set to dim.
func (s Shape) Set(axis, dim int) Shape {
	s[axis] = dim
	return s
}

// Rows returns the size of axis 0.
func (s Shape) Rows() int { return s[0] }

// Cols returns the size of axis 1.
func (s Shape) Cols() int { return s[1] }

// Matrices returns how many rows×cols matrices the shape stacks (axes 2 and 3).
func (s Shape) Matrices() int { return s[2] * s[3] }

// Strides returns the memory stride of each axis.
func (s Shape) Strides() [MaxAxes]int {
	return [MaxAxes]int{s[1], 1, s[0] * s[1], s[0] * s[1] * s[2]}
}

// Offset returns the flat position of the element at idx.
func (s Shape) Offset(idx [MaxAxes]int) int {
	st := s.Strides()
	return idx[0]*st[0] + idx[1]*st[1] + idx[2]*st[2] + idx[3]*st[3]
}

// Index is the inverse of Offset.
func (s Shape) Index(flat int) [MaxAxes]int {
	var idx [MaxAxes]int
	idx[1] = flat % s[1]
	flat /= s[1]
	idx[0] = flat % s[0]
	flat /= s[0]
	idx[2] = flat % s[2]
	idx[3] = flat / s[2]
	return idx
}

// String returns the shape as "[d0 d1 d2 d3]".
func (s Shape) String() string {
	return fmt.Sprintf("[%d %d %d %d]", s[0], s[1], s[2], s[3])
}
