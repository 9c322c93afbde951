package ops

import (
	"github.com/born-ml/cvae/internal/tensor"
)

// Conv2DOp records a 2D convolution operation for autodiff.
//
// Forward: output = Conv2D(input, kernel, stride, padding)
//
// Backward (gradients):
//   - d_input:  transposed convolution of d_output with kernel
//   - d_kernel: correlation of input with d_output
//
// References:
//   - "A guide to convolution arithmetic for deep learning" (Dumoulin & Visin, 2016)
type Conv2DOp struct {
	input   *tensor.RawTensor
	kernel  *tensor.RawTensor
	output  *tensor.RawTensor
	stride  int
	padding int
}

// NewConv2DOp creates a new Conv2D operation.
func NewConv2DOp(input, kernel, output *tensor.RawTensor, stride, padding int) *Conv2DOp {
	return &Conv2DOp{
		input:   input,
		kernel:  kernel,
		output:  output,
		stride:  stride,
		padding: padding,
	}
}

// Inputs returns the input tensors.
func (op *Conv2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

// Output returns the output tensor.
func (op *Conv2DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes gradients for Conv2D by delegating to the backend.
//
// Given outputGrad ∂L/∂output [N, C_out, H_out, W_out], returns
// ∂L/∂input [N, C_in, H, W] and ∂L/∂kernel [C_out, C_in, K_h, K_w].
func (op *Conv2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.Conv2DInputBackward(op.input, op.kernel, outputGrad, op.stride, op.padding)
	kernelGrad := backend.Conv2DKernelBackward(op.input, op.kernel, outputGrad, op.stride, op.padding)

	return []*tensor.RawTensor{inputGrad, kernelGrad}
}
