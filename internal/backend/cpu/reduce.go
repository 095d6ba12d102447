package cpu

import (
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/pkg/errors"
)

// broadcastShape returns the iteration space of out and in, which must agree
// on every axis or be 1 on one side.
func broadcastShape(kernel string, out, in tensor.Shape) tensor.Shape {
	var full tensor.Shape
	for axis := range full {
		o, i := out[axis], in[axis]
		switch {
		case o == i, i == 1:
			full[axis] = o
		case o == 1:
			full[axis] = i
		default:
			panic(errors.Errorf("%s: shapes %s and %s not compatible on axis %d", kernel, out, in, axis))
		}
	}
	return full
}

// Add computes out += scale * in, broadcasting in or summing into out.
func (cpu *Backend) Add(scale float32, out, in *tensor.RawTensor) {
	o, x := out.AsFloat32(), in.AsFloat32()
	if out.Shape() == in.Shape() {
		for i, v := range x {
			o[i] += scale * v
		}
		return
	}

	full := broadcastShape("add", out.Shape(), in.Shape())
	outStrides := collapsedStrides(out.Shape())
	inStrides := collapsedStrides(in.Shape())
	for flat := 0; flat < full.Elements(); flat++ {
		idx := full.Index(flat)
		var oi, ii int
		for axis, pos := range idx {
			oi += pos * outStrides[axis]
			ii += pos * inStrides[axis]
		}
		o[oi] += scale * x[ii]
	}
}

// Reduce computes out = scale * in summed over the axes where out is 1.
func (cpu *Backend) Reduce(scale float32, out, in *tensor.RawTensor) {
	cpu.Fill(out, 0)
	cpu.Add(scale, out, in)
}

// collapsedStrides returns the strides of s with broadcast axes (size 1)
// contributing nothing to the offset.
func collapsedStrides(s tensor.Shape) [tensor.MaxAxes]int {
	st := s.Strides()
	for axis, dim := range s {
		if dim == 1 {
			st[axis] = 0
		}
	}
	return st
}
