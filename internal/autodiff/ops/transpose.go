package ops

import "github.com/born-ml/cvae/internal/tensor"

// TransposeOp represents a dimension permutation.
//
// Backward applies the inverse permutation to the output gradient. An empty
// axes list means "swap the last two dimensions", which is its own inverse.
type TransposeOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	axes   []int
}

// NewTransposeOp creates a new TransposeOp.
func NewTransposeOp(input, output *tensor.RawTensor, axes []int) *TransposeOp {
	return &TransposeOp{
		input:  input,
		output: output,
		axes:   append([]int(nil), axes...),
	}
}

// Backward permutes the gradient back to the input layout.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	if len(op.axes) == 0 {
		return []*tensor.RawTensor{backend.Transpose(outputGrad)}
	}

	inverse := make([]int, len(op.axes))
	for i, ax := range op.axes {
		inverse[ax] = i
	}
	return []*tensor.RawTensor{backend.Transpose(outputGrad, inverse...)}
}

// Inputs returns the input tensor.
func (op *TransposeOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the transposed tensor.
func (op *TransposeOp) Output() *tensor.RawTensor {
	return op.output
}
