package ops

import "github.com/born-ml/cvae/internal/tensor"

// DivOp represents element-wise division: output = a / b.
//
// Backward pass:
//   - grad_a = outputGrad / b
//   - grad_b = -outputGrad * a / b² = -outputGrad * output / b
type DivOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewDivOp creates a new DivOp.
func NewDivOp(a, b, output *tensor.RawTensor) *DivOp {
	return &DivOp{
		inputs: []*tensor.RawTensor{a, b},
		output: output,
	}
}

// Backward computes input gradients for division.
func (op *DivOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]

	gradA := backend.Div(outputGrad, b)
	gradB := backend.MulScalar(backend.Div(backend.Mul(outputGrad, op.output), b), -1)

	return []*tensor.RawTensor{
		reduceBroadcast(gradA, a.Shape(), backend),
		reduceBroadcast(gradB, b.Shape(), backend),
	}
}

// Inputs returns the input tensors [a, b].
func (op *DivOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor a / b.
func (op *DivOp) Output() *tensor.RawTensor {
	return op.output
}
