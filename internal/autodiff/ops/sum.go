package ops

import "github.com/born-ml/cvae/internal/tensor"

// SumOp represents a full reduction to a scalar.
// Backward broadcasts the scalar gradient to the input shape.
type SumOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSumOp creates a new SumOp.
func NewSumOp(input, output *tensor.RawTensor) *SumOp {
	return &SumOp{
		input:  input,
		output: output,
	}
}

// Backward expands the scalar gradient.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Expand(outputGrad, op.input.Shape())}
}

// Inputs returns the input tensor.
func (op *SumOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the scalar sum.
func (op *SumOp) Output() *tensor.RawTensor {
	return op.output
}
