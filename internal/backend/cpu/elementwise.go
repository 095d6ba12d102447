package cpu

import (
	"math"

	"github.com/born-ml/exprgraph/internal/backend"
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Fill sets every element of t to value.
func (cpu *Backend) Fill(t *tensor.RawTensor, value float32) {
	data := t.AsFloat32()
	for i := range data {
		data[i] = value
	}
}

// Copy copies src into dst.
func (cpu *Backend) Copy(dst, src *tensor.RawTensor) {
	checkSameElements("copy", dst, src)
	copy(dst.AsFloat32(), src.AsFloat32())
}

// Cast converts between float32 and float16 storage.
func (cpu *Backend) Cast(dst, src *tensor.RawTensor) {
	checkSameElements("cast", dst, src)
	switch {
	case dst.DType() == src.DType():
		copy(dst.Data(), src.Data())
	case dst.DType() == tensor.Float32 && src.DType() == tensor.Float16:
		out := dst.AsFloat32()
		for i, v := range src.AsFloat16() {
			out[i] = v.Float32()
		}
	case dst.DType() == tensor.Float16 && src.DType() == tensor.Float32:
		out := dst.AsFloat16()
		for i, v := range src.AsFloat32() {
			out[i] = float16.Fromfloat32(v)
		}
	default:
		panic(errors.Errorf("cast: unsupported conversion %s -> %s", src.DType(), dst.DType()))
	}
}

// sigmoid is the logistic function, evaluated without overflowing exp.
func sigmoid(x float32) float32 {
	if x >= 0 {
		return float32(1 / (1 + math.Exp(-float64(x))))
	}
	e := math.Exp(float64(x))
	return float32(e / (1 + e))
}

// Unary computes out = op(in).
func (cpu *Backend) Unary(op backend.UnaryOp, out, in *tensor.RawTensor) {
	checkSameElements("unary "+op.String(), out, in)
	y, x := out.AsFloat32(), in.AsFloat32()
	switch op {
	case backend.Identity:
		copy(y, x)
	case backend.Sigmoid:
		for i, v := range x {
			y[i] = sigmoid(v)
		}
	case backend.Tanh:
		for i, v := range x {
			y[i] = float32(math.Tanh(float64(v)))
		}
	case backend.ReLU:
		for i, v := range x {
			y[i] = max(v, 0)
		}
	case backend.Log:
		for i, v := range x {
			y[i] = float32(math.Log(float64(v)))
		}
	case backend.Exp:
		for i, v := range x {
			y[i] = float32(math.Exp(float64(v)))
		}
	case backend.Neg:
		for i, v := range x {
			y[i] = -v
		}
	default:
		panic(errors.Errorf("unary: unknown op %d", op))
	}
}

// UnaryGrad computes grad += adj * op'(in).
func (cpu *Backend) UnaryGrad(op backend.UnaryOp, grad, adj, val, in *tensor.RawTensor) {
	checkSameElements("unary grad "+op.String(), grad, adj)
	g, dy := grad.AsFloat32(), adj.AsFloat32()
	switch op {
	case backend.Identity:
		for i := range g {
			g[i] += dy[i]
		}
	case backend.Sigmoid:
		y := val.AsFloat32()
		for i := range g {
			g[i] += dy[i] * y[i] * (1 - y[i])
		}
	case backend.Tanh:
		y := val.AsFloat32()
		for i := range g {
			g[i] += dy[i] * (1 - y[i]*y[i])
		}
	case backend.ReLU:
		x := in.AsFloat32()
		for i := range g {
			if x[i] > 0 {
				g[i] += dy[i]
			}
		}
	case backend.Log:
		x := in.AsFloat32()
		for i := range g {
			g[i] += dy[i] / x[i]
		}
	case backend.Exp:
		y := val.AsFloat32()
		for i := range g {
			g[i] += dy[i] * y[i]
		}
	case backend.Neg:
		for i := range g {
			g[i] -= dy[i]
		}
	default:
		panic(errors.Errorf("unary grad: unknown op %d", op))
	}
}

// ClipValues clamps every element of t into [-clip, clip].
func (cpu *Backend) ClipValues(t *tensor.RawTensor, clip float32) {
	data := t.AsFloat32()
	for i, v := range data {
		data[i] = min(max(v, -clip), clip)
	}
}
