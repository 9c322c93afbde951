package ops

import "github.com/born-ml/cvae/internal/tensor"

// SubOp represents element-wise subtraction: output = a - b.
//
// Backward pass:
//   - grad_a = outputGrad
//   - grad_b = -outputGrad
type SubOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewSubOp creates a new SubOp.
func NewSubOp(a, b, output *tensor.RawTensor) *SubOp {
	return &SubOp{
		inputs: []*tensor.RawTensor{a, b},
		output: output,
	}
}

// Backward computes input gradients for subtraction.
func (op *SubOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, a.Shape(), backend),
		reduceBroadcast(backend.MulScalar(outputGrad, -1), b.Shape(), backend),
	}
}

// Inputs returns the input tensors [a, b].
func (op *SubOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor a - b.
func (op *SubOp) Output() *tensor.RawTensor {
	return op.output
}
