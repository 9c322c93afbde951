package ops

import "github.com/born-ml/cvae/internal/tensor"

// ReshapeOp represents a reshape. The gradient is reshaped back.
type ReshapeOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(input, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{
		input:  input,
		output: output,
	}
}

// Backward reshapes the gradient to the input shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.input.Shape())}
}

// Inputs returns the input tensor.
func (op *ReshapeOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the reshaped tensor.
func (op *ReshapeOp) Output() *tensor.RawTensor {
	return op.output
}
