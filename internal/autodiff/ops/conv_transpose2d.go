package ops

import "github.com/born-ml/cvae/internal/tensor"

// ConvTranspose2DOp records a transposed convolution.
//
// A transposed convolution y = T(x, k) is the adjoint of the convolution
// c = Conv2D(·, k), so its gradients are expressed with Conv2D primitives:
//   - d_input  = Conv2D(d_output, k)
//   - d_kernel = Conv2DKernelBackward(input=d_output, grad=x)
type ConvTranspose2DOp struct {
	input   *tensor.RawTensor // [N, C_in, H, W]
	kernel  *tensor.RawTensor // [C_in, C_out, K_h, K_w]
	output  *tensor.RawTensor // [N, C_out, H_out, W_out]
	stride  int
	padding int
}

// NewConvTranspose2DOp creates a new ConvTranspose2DOp.
func NewConvTranspose2DOp(input, kernel, output *tensor.RawTensor, stride, padding int) *ConvTranspose2DOp {
	return &ConvTranspose2DOp{
		input:   input,
		kernel:  kernel,
		output:  output,
		stride:  stride,
		padding: padding,
	}
}

// Inputs returns the input tensors.
func (op *ConvTranspose2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

// Output returns the output tensor.
func (op *ConvTranspose2DOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes gradients for ConvTranspose2D.
func (op *ConvTranspose2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.Conv2D(outputGrad, op.kernel, op.stride, op.padding)
	kernelGrad := backend.Conv2DKernelBackward(outputGrad, op.kernel, op.input, op.stride, op.padding)

	return []*tensor.RawTensor{inputGrad, kernelGrad}
}
