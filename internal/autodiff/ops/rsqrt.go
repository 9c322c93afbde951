package ops

import "github.com/born-ml/cvae/internal/tensor"

// RsqrtOp represents y = 1/sqrt(x).
//
// Backward pass:
//   - dy/dx = -0.5 * x^(-3/2) = -0.5 * y³
type RsqrtOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewRsqrtOp creates a new RsqrtOp.
func NewRsqrtOp(input, output *tensor.RawTensor) *RsqrtOp {
	return &RsqrtOp{
		input:  input,
		output: output,
	}
}

// Backward computes input gradient for rsqrt.
func (op *RsqrtOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	y := op.output
	y3 := backend.Mul(backend.Mul(y, y), y)
	return []*tensor.RawTensor{backend.Mul(outputGrad, backend.MulScalar(y3, -0.5))}
}

// Inputs returns the input tensor [x].
func (op *RsqrtOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *RsqrtOp) Output() *tensor.RawTensor {
	return op.output
}
