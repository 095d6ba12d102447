package backend

import "github.com/born-ml/exprgraph/internal/tensor"

// UnaryOp names an elementwise function with a known derivative.
type UnaryOp int

// Elementwise functions understood by Kernels.Unary and Kernels.UnaryGrad.
const (
	Identity UnaryOp = iota
	Sigmoid
	Tanh
	ReLU
	Log
	Exp
	Neg
)

// String returns the lower-case name of the function.
func (op UnaryOp) String() string {
	switch op {
	case Identity:
		return "identity"
	case Sigmoid:
		return "sigmoid"
	case Tanh:
		return "tanh"
	case ReLU:
		return "relu"
	case Log:
		return "log"
	case Exp:
		return "exp"
	case Neg:
		return "neg"
	default:
		return "unknown"
	}
}

// DropoutState is the opaque per-node dropout resource (mask buffer and
// random state) created by Kernels.DropoutPrepare.
type DropoutState interface {
	// Probability returns the drop probability.
	Probability() float32
}

// Kernels is the device-dispatched kernel library used by graph nodes.
//
// All tensors are float32 unless stated otherwise. Kernels whose name ends in
// Grad, and Add, PasteRows and DropoutBackward, accumulate into their first
// argument; every other kernel overwrites it. Kernels panic on malformed
// arguments.
type Kernels interface {
	// Fill sets every element of t to value.
	Fill(t *tensor.RawTensor, value float32)

	// Copy copies src into dst. Both must have the same number of elements.
	Copy(dst, src *tensor.RawTensor)

	// Cast converts src into dst, between float32 and float16.
	Cast(dst, src *tensor.RawTensor)

	// Unary computes out = op(in).
	Unary(op UnaryOp, out, in *tensor.RawTensor)

	// UnaryGrad computes grad += adj * op'(in), where val = op(in) is the
	// forward value. Implementations use whichever of val and in is cheaper.
	UnaryGrad(op UnaryOp, grad, adj, val, in *tensor.RawTensor)

	// Add computes out += scale * in. Each axis of out and in must be equal
	// or 1 on one side: in is broadcast where it is 1 and summed where out
	// is 1.
	Add(scale float32, out, in *tensor.RawTensor)

	// Reduce computes out = scale * in summed over the axes where out is 1.
	Reduce(scale float32, out, in *tensor.RawTensor)

	// Softmax computes a numerically stable softmax over axis 1.
	// When mask is not nil, columns where mask is 0 are exactly 0 in out.
	// The mask rows repeat when it has fewer rows than in.
	Softmax(out, in, mask *tensor.RawTensor)

	// SoftmaxGrad computes grad += val ⊙ (adj − valᵀadj) per row.
	SoftmaxGrad(grad, adj, val *tensor.RawTensor)

	// LogSoftmax computes a numerically stable log-softmax over axis 1.
	LogSoftmax(out, in *tensor.RawTensor)

	// LogSoftmaxGrad computes grad += adj − exp(val)·Σadj per row.
	LogSoftmaxGrad(grad, adj, val *tensor.RawTensor)

	// CopyRows gathers rows (axis 0) of in selected by the int32 indices
	// into out, for every matrix stacked along axes 2 and 3.
	CopyRows(out, in, indices *tensor.RawTensor)

	// PasteRows scatters adj back into the selected rows of grad, summing
	// rows selected more than once.
	PasteRows(grad, adj, indices *tensor.RawTensor)

	// Transpose computes out = inᵀ + beta*out, swapping axes 0 and 1.
	Transpose(out, in *tensor.RawTensor, beta float32)

	// ClipValues clamps every element of t into [-clip, clip].
	ClipValues(t *tensor.RawTensor, clip float32)

	// DropoutPrepare allocates dropout state for tensors of the given shape.
	DropoutPrepare(shape tensor.Shape, p float32, seed uint64) (DropoutState, error)

	// DropoutForward draws a new mask and computes out = in ⊙ mask.
	DropoutForward(state DropoutState, out, in *tensor.RawTensor)

	// DropoutBackward computes grad += adj ⊙ mask with the last mask drawn.
	DropoutBackward(state DropoutState, grad, adj *tensor.RawTensor)

	// DropoutDestroy releases the state. Destroying twice is a no-op.
	DropoutDestroy(state DropoutState)
}
