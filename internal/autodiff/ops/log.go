package ops

import "github.com/born-ml/cvae/internal/tensor"

// LogOp represents the natural logarithm: y = log(x).
//
// Backward pass: grad_input = grad_output / x.
type LogOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewLogOp creates a new LogOp.
func NewLogOp(input, output *tensor.RawTensor) *LogOp {
	return &LogOp{
		input:  input,
		output: output,
	}
}

// Backward computes input gradient for log.
func (op *LogOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Div(outputGrad, op.input)}
}

// Inputs returns the input tensor [x].
func (op *LogOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor log(x).
func (op *LogOp) Output() *tensor.RawTensor {
	return op.output
}
