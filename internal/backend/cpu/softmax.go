package cpu

import (
	"math"

	"github.com/born-ml/exprgraph/internal/parallel"
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/pkg/errors"
)

// Softmax computes softmax over axis 1, zeroing columns where mask is 0.
//
//	softmax(x)_i = exp(x_i - max(x)) / Σ_j exp(x_j - max(x))
//
// The max-shifting keeps exp from overflowing. Only unmasked columns take
// part in the max and the sum; a fully masked row is all zeros.
func (cpu *Backend) Softmax(out, in, mask *tensor.RawTensor) {
	checkSameElements("softmax", out, in)
	cols := in.Shape().Cols()
	rows := in.NumElements() / cols
	x, y := in.AsFloat32(), out.AsFloat32()

	var m []float32
	maskRows := 0
	if mask != nil {
		if mask.Shape().Cols() != cols || rows%(mask.NumElements()/cols) != 0 {
			panic(errors.Errorf("softmax: mask %s does not fit input %s", mask.Shape(), in.Shape()))
		}
		m = mask.AsFloat32()
		maskRows = mask.NumElements() / cols
	}

	parallel.Range(rows, cols, cpu.parallel, func(lo, hi int) {
		for r := lo; r < hi; r++ {
			xr, yr := x[r*cols:(r+1)*cols], y[r*cols:(r+1)*cols]
			var mr []float32
			if m != nil {
				mr = m[(r%maskRows)*cols : (r%maskRows+1)*cols]
			}
			softmaxRow(yr, xr, mr)
		}
	})
}

func softmaxRow(y, x, mask []float32) {
	maxVal := float32(math.Inf(-1))
	for j, v := range x {
		if mask == nil || mask[j] != 0 {
			maxVal = max(maxVal, v)
		}
	}
	var sum float32
	for j, v := range x {
		if mask != nil && mask[j] == 0 {
			y[j] = 0
			continue
		}
		y[j] = float32(math.Exp(float64(v - maxVal)))
		sum += y[j]
	}
	if sum == 0 {
		return
	}
	for j := range y {
		y[j] /= sum
	}
}

// SoftmaxGrad computes, for every row,
//
//	∂L/∂x_j += p_j * (∂L/∂p_j - Σ_i ∂L/∂p_i * p_i)
//
// where p is the softmax output. A masked column has p_j == 0 and so
// receives no gradient.
func (cpu *Backend) SoftmaxGrad(grad, adj, val *tensor.RawTensor) {
	checkSameElements("softmax grad", grad, val)
	cols := val.Shape().Cols()
	rows := val.NumElements() / cols
	g, dy, p := grad.AsFloat32(), adj.AsFloat32(), val.AsFloat32()

	parallel.Range(rows, cols, cpu.parallel, func(lo, hi int) {
		for r := lo; r < hi; r++ {
			base := r * cols
			var dot float32
			for j := 0; j < cols; j++ {
				dot += dy[base+j] * p[base+j]
			}
			for j := 0; j < cols; j++ {
				g[base+j] += p[base+j] * (dy[base+j] - dot)
			}
		}
	})
}

// LogSoftmax computes log_softmax(x)_i = x_i - max(x) - log(Σ_j exp(x_j - max(x))).
func (cpu *Backend) LogSoftmax(out, in *tensor.RawTensor) {
	checkSameElements("logsoftmax", out, in)
	cols := in.Shape().Cols()
	rows := in.NumElements() / cols
	x, y := in.AsFloat32(), out.AsFloat32()

	parallel.Range(rows, cols, cpu.parallel, func(lo, hi int) {
		for r := lo; r < hi; r++ {
			xr, yr := x[r*cols:(r+1)*cols], y[r*cols:(r+1)*cols]
			maxVal := xr[0]
			for _, v := range xr[1:] {
				maxVal = max(maxVal, v)
			}
			var sum float64
			for _, v := range xr {
				sum += math.Exp(float64(v - maxVal))
			}
			lse := maxVal + float32(math.Log(sum))
			for j, v := range xr {
				yr[j] = v - lse
			}
		}
	})
}

// LogSoftmaxGrad computes ∂L/∂x_j += ∂L/∂y_j - exp(y_j) * Σ_i ∂L/∂y_i per row.
func (cpu *Backend) LogSoftmaxGrad(grad, adj, val *tensor.RawTensor) {
	checkSameElements("logsoftmax grad", grad, val)
	cols := val.Shape().Cols()
	rows := val.NumElements() / cols
	g, dy, y := grad.AsFloat32(), adj.AsFloat32(), val.AsFloat32()

	parallel.Range(rows, cols, cpu.parallel, func(lo, hi int) {
		for r := lo; r < hi; r++ {
			base := r * cols
			var sum float32
			for j := 0; j < cols; j++ {
				sum += dy[base+j]
			}
			for j := 0; j < cols; j++ {
				g[base+j] += dy[base+j] - float32(math.Exp(float64(y[base+j])))*sum
			}
		}
	})
}
