package ops

import "github.com/born-ml/cvae/internal/tensor"

// CatOp represents a concatenation operation along a dimension.
//
// Backward splits the output gradient at the input boundaries; each input
// receives the slice corresponding to its contribution.
//
//	inputs: [a(2×2), b(2×1)] along dim=1
//	gradOutput (2×3) -> grad_a = gradOutput[:, 0:2], grad_b = gradOutput[:, 2:3]
type CatOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	dim    int
}

// NewCatOp creates a new cat operation.
func NewCatOp(inputs []*tensor.RawTensor, output *tensor.RawTensor, dim int) *CatOp {
	return &CatOp{
		inputs: append([]*tensor.RawTensor(nil), inputs...),
		output: output,
		dim:    tensor.NormalizeDim(dim, len(output.Shape())),
	}
}

// Inputs returns the input tensors.
func (op *CatOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor.
func (op *CatOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes gradients for the input tensors.
func (op *CatOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grads := make([]*tensor.RawTensor, len(op.inputs))
	offset := 0
	for i, in := range op.inputs {
		size := in.Shape()[op.dim]
		grads[i] = sliceAlong(outputGrad, op.dim, offset, size)
		offset += size
	}
	return grads
}
