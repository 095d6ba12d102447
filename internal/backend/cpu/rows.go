package cpu

import (
	"github.com/born-ml/exprgraph/internal/parallel"
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/pkg/errors"
)

// checkRows validates that out has one row per index and every index
// selects an existing row of src.
func checkRows(kernel string, out, src, indices *tensor.RawTensor) []int32 {
	idx := indices.AsInt32()
	os, ss := out.Shape(), src.Shape()
	if os.Rows() != len(idx) || os.Cols() != ss.Cols() || os.Matrices() != ss.Matrices() {
		panic(errors.Errorf("%s: %d indices cannot map %s onto %s", kernel, len(idx), ss, os))
	}
	for _, i := range idx {
		if i < 0 || int(i) >= ss.Rows() {
			panic(errors.Errorf("%s: row index %d out of range for %s", kernel, i, ss))
		}
	}
	return idx
}

// CopyRows gathers the rows of in selected by indices into out.
func (cpu *Backend) CopyRows(out, in, indices *tensor.RawTensor) {
	idx := checkRows("copy rows", out, in, indices)
	cols := in.Shape().Cols()
	inMatrix := in.Shape().Rows() * cols
	outMatrix := len(idx) * cols
	x, y := in.AsFloat32(), out.AsFloat32()

	parallel.Range(out.Shape().Matrices()*len(idx), cols, cpu.parallel, func(lo, hi int) {
		for k := lo; k < hi; k++ {
			m, j := k/len(idx), k%len(idx)
			src := m*inMatrix + int(idx[j])*cols
			dst := m*outMatrix + j*cols
			copy(y[dst:dst+cols], x[src:src+cols])
		}
	})
}

// PasteRows adds every row of adj into the row of grad it was copied from.
// Indices repeated in the list accumulate, so rows are visited in order
// within a matrix.
func (cpu *Backend) PasteRows(grad, adj, indices *tensor.RawTensor) {
	idx := checkRows("paste rows", adj, grad, indices)
	cols := grad.Shape().Cols()
	gradMatrix := grad.Shape().Rows() * cols
	adjMatrix := len(idx) * cols
	g, dy := grad.AsFloat32(), adj.AsFloat32()

	parallel.Range(grad.Shape().Matrices(), adjMatrix, cpu.parallel, func(lo, hi int) {
		for m := lo; m < hi; m++ {
			for j, row := range idx {
				dst := m*gradMatrix + int(row)*cols
				src := m*adjMatrix + j*cols
				for c := 0; c < cols; c++ {
					g[dst+c] += dy[src+c]
				}
			}
		}
	})
}
