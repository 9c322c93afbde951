package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Implementations:
//   - cpu.CPUBackend: pure Go kernels
//   - autodiff.AutodiffBackend: decorator that records operations on a tape
type Backend interface {
	// Element-wise binary operations (NumPy-style broadcasting)
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// MatMul multiplies 2D matrices: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// Convolutional operations (NCHW layout)
	//
	// Conv2D kernel: [C_out, C_in, K_h, K_w].
	// ConvTranspose2D kernel: [C_in, C_out, K_h, K_w]; output size is
	// (H-1)*stride - 2*padding + K_h.
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	ConvTranspose2D(input, kernel *RawTensor, stride, padding int) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Expand(x *RawTensor, shape Shape) *RawTensor // broadcast to shape
	Cat(tensors []*RawTensor, dim int) *RawTensor

	// Scalar operations (element-wise with scalar)
	MulScalar(x *RawTensor, scalar float32) *RawTensor
	AddScalar(x *RawTensor, scalar float32) *RawTensor

	// Math operations (element-wise)
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Rsqrt(x *RawTensor) *RawTensor // 1/sqrt(x)

	// Activation functions
	ReLU(x *RawTensor) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor

	// Reduction operations
	Sum(x *RawTensor) *RawTensor // total sum (scalar result)
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
