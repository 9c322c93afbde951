// Package autodiff implements automatic differentiation using the decorator pattern.
//
// AutodiffBackend wraps any Backend implementation and adds gradient
// tracking through a GradientTape.
//
// Architecture:
//   - Decorator pattern: AutodiffBackend[B] wraps any Backend implementation
//   - GradientTape: Records operations during forward pass
//   - Operation interface: Each op implements its backward pass
//   - Reverse-mode AD: Computes gradients efficiently using chain rule
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x := tensor.MustFromSlice([]float32{2.0}, tensor.Shape{1}, backend)
//	y := x.Mul(x).Sum() // y = x²
//	grads := autodiff.Backward(y, backend)
//	fmt.Println(grads[x.Raw()].Data()) // dy/dx = 2x = [4]
package autodiff

import (
	"github.com/born-ml/cvae/internal/autodiff/ops"
	"github.com/born-ml/cvae/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
// It implements the tensor.Backend interface and records operations in a GradientTape.
type AutodiffBackend[B tensor.Backend] struct {
	inner B             // Wrapped backend
	tape  *GradientTape // Records operations for backpropagation
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// record appends op to the tape when recording.
func (b *AutodiffBackend[B]) record(op func() ops.Operation) {
	if b.tape.IsRecording() {
		b.tape.Record(op())
	}
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(a, c)
	b.record(func() ops.Operation { return ops.NewAddOp(a, c, result) })
	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sub(a, c)
	b.record(func() ops.Operation { return ops.NewSubOp(a, c, result) })
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(a, c)
	b.record(func() ops.Operation { return ops.NewMulOp(a, c, result) })
	return result
}

// Div performs element-wise division and records the operation.
func (b *AutodiffBackend[B]) Div(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Div(a, c)
	b.record(func() ops.Operation { return ops.NewDivOp(a, c, result) })
	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.MatMul(a, c)
	b.record(func() ops.Operation { return ops.NewMatMulOp(a, c, result) })
	return result
}

// Reshape reshapes a tensor and records the operation.
//
// Reshape must be recorded even though the CPU backend returns a view:
// the view is a distinct RawTensor, and without ReshapeOp its gradient
// would never reach the original (e.g. a bias reshaped to [1, C, 1, 1]).
func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(t, newShape)
	b.record(func() ops.Operation { return ops.NewReshapeOp(t, result) })
	return result
}

// Transpose transposes a tensor and records the operation.
func (b *AutodiffBackend[B]) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	result := b.inner.Transpose(t, axes...)
	b.record(func() ops.Operation { return ops.NewTransposeOp(t, result, axes) })
	return result
}

// Expand broadcasts a tensor and records the operation.
func (b *AutodiffBackend[B]) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Expand(x, shape)
	b.record(func() ops.Operation { return ops.NewExpandOp(x, result) })
	return result
}

// Cat concatenates tensors and records the operation.
func (b *AutodiffBackend[B]) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	result := b.inner.Cat(tensors, dim)
	b.record(func() ops.Operation { return ops.NewCatOp(tensors, result, dim) })
	return result
}

// MulScalar multiplies by a scalar and records the operation.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	result := b.inner.MulScalar(x, scalar)
	b.record(func() ops.Operation { return ops.NewMulScalarOp(x, result, scalar) })
	return result
}

// AddScalar adds a scalar and records the operation.
func (b *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	result := b.inner.AddScalar(x, scalar)
	b.record(func() ops.Operation { return ops.NewAddScalarOp(x, result) })
	return result
}

// Exp computes e^x and records the operation.
func (b *AutodiffBackend[B]) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Exp(x)
	b.record(func() ops.Operation { return ops.NewExpOp(x, result) })
	return result
}

// Log computes ln(x) and records the operation.
func (b *AutodiffBackend[B]) Log(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Log(x)
	b.record(func() ops.Operation { return ops.NewLogOp(x, result) })
	return result
}

// Rsqrt computes 1/sqrt(x) and records the operation.
func (b *AutodiffBackend[B]) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Rsqrt(x)
	b.record(func() ops.Operation { return ops.NewRsqrtOp(x, result) })
	return result
}

// ReLU applies max(0, x) and records the operation.
func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.ReLU(x)
	b.record(func() ops.Operation { return ops.NewReLUOp(x, result) })
	return result
}

// Sigmoid applies σ(x) and records the operation.
func (b *AutodiffBackend[B]) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sigmoid(x)
	b.record(func() ops.Operation { return ops.NewSigmoidOp(x, result) })
	return result
}

// Sum reduces to a scalar and records the operation.
func (b *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sum(x)
	b.record(func() ops.Operation { return ops.NewSumOp(x, result) })
	return result
}

// SumDim sums along a dimension and records the operation.
func (b *AutodiffBackend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	result := b.inner.SumDim(x, dim, keepDim)
	b.record(func() ops.Operation { return ops.NewSumDimOp(x, result, dim, keepDim) })
	return result
}

// MeanDim averages along a dimension and records the operation.
func (b *AutodiffBackend[B]) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	result := b.inner.MeanDim(x, dim, keepDim)
	b.record(func() ops.Operation { return ops.NewMeanDimOp(x, result, dim, keepDim) })
	return result
}

// Conv2D performs 2D convolution and records the operation.
func (b *AutodiffBackend[B]) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	result := b.inner.Conv2D(input, kernel, stride, padding)
	b.record(func() ops.Operation { return ops.NewConv2DOp(input, kernel, result, stride, padding) })
	return result
}

// ConvTranspose2D performs a transposed convolution and records the operation.
func (b *AutodiffBackend[B]) ConvTranspose2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	result := b.inner.ConvTranspose2D(input, kernel, stride, padding)
	b.record(func() ops.Operation { return ops.NewConvTranspose2DOp(input, kernel, result, stride, padding) })
	return result
}

// Conv2DInputBackward delegates to the inner backend (never recorded).
func (b *AutodiffBackend[B]) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv2DInputBackward(input, kernel, grad, stride, padding)
}

// Conv2DKernelBackward delegates to the inner backend (never recorded).
func (b *AutodiffBackend[B]) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv2DKernelBackward(input, kernel, grad, stride, padding)
}
