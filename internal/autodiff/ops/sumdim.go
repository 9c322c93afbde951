package ops

import "github.com/born-ml/cvae/internal/tensor"

// SumDimOp represents a reduction along one dimension, either a sum or a
// mean (scale = 1/size).
//
// Backward: restore the reduced dimension (if keepDim was false), broadcast
// to the input shape and apply the scale.
type SumDimOp struct {
	input   *tensor.RawTensor
	output  *tensor.RawTensor
	dim     int
	keepDim bool
	scale   float32
}

// NewSumDimOp creates an op for SumDim.
func NewSumDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	return &SumDimOp{
		input:   input,
		output:  output,
		dim:     tensor.NormalizeDim(dim, len(input.Shape())),
		keepDim: keepDim,
		scale:   1,
	}
}

// NewMeanDimOp creates an op for MeanDim.
func NewMeanDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	op := NewSumDimOp(input, output, dim, keepDim)
	op.scale = 1 / float32(input.Shape()[op.dim])
	return op
}

// Backward broadcasts the gradient back over the reduced dimension.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad := outputGrad
	if !op.keepDim {
		kept := op.input.Shape().Clone()
		kept[op.dim] = 1
		grad = backend.Reshape(grad, kept)
	}
	grad = backend.Expand(grad, op.input.Shape())
	if op.scale != 1 {
		grad = backend.MulScalar(grad, op.scale)
	}
	return []*tensor.RawTensor{grad}
}

// Inputs returns the input tensor.
func (op *SumDimOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the reduced tensor.
func (op *SumDimOp) Output() *tensor.RawTensor {
	return op.output
}
