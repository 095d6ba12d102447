package cpu

import (
	"github.com/born-ml/exprgraph/internal/parallel"
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/pkg/errors"
)

// Transpose computes out = inᵀ + beta*out for every stacked matrix.
// beta is 0 on the forward pass and 1 when accumulating gradients.
func (cpu *Backend) Transpose(out, in *tensor.RawTensor, beta float32) {
	is, os := in.Shape(), out.Shape()
	if os != is.Set(0, is.Cols()).Set(1, is.Rows()) {
		panic(errors.Errorf("transpose: output %s is not the transpose of %s", os, is))
	}
	rows, cols := is.Rows(), is.Cols()
	size := rows * cols
	x, y := in.AsFloat32(), out.AsFloat32()

	parallel.Range(is.Matrices(), size, cpu.parallel, func(lo, hi int) {
		for m := lo; m < hi; m++ {
			base := m * size
			for i := 0; i < rows; i++ {
				for j := 0; j < cols; j++ {
					dst := base + j*rows + i
					if beta == 0 {
						y[dst] = x[base+i*cols+j]
					} else {
						y[dst] = x[base+i*cols+j] + beta*y[dst]
					}
				}
			}
		}
	})
}
