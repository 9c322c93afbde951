package ops

import "github.com/born-ml/cvae/internal/tensor"

// MulScalarOp represents output = x * s for a constant s.
type MulScalarOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	scalar float32
}

// NewMulScalarOp creates a new MulScalarOp.
func NewMulScalarOp(input, output *tensor.RawTensor, scalar float32) *MulScalarOp {
	return &MulScalarOp{
		input:  input,
		output: output,
		scalar: scalar,
	}
}

// Backward computes grad_input = outputGrad * s.
func (op *MulScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(outputGrad, op.scalar)}
}

// Inputs returns the input tensor.
func (op *MulScalarOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *MulScalarOp) Output() *tensor.RawTensor {
	return op.output
}

// AddScalarOp represents output = x + s for a constant s.
// The gradient passes through unchanged.
type AddScalarOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewAddScalarOp creates a new AddScalarOp.
func NewAddScalarOp(input, output *tensor.RawTensor) *AddScalarOp {
	return &AddScalarOp{
		input:  input,
		output: output,
	}
}

// Backward returns outputGrad.
func (op *AddScalarOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad}
}

// Inputs returns the input tensor.
func (op *AddScalarOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *AddScalarOp) Output() *tensor.RawTensor {
	return op.output
}
