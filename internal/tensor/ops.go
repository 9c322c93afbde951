package tensor

import "fmt"

// Add performs element-wise addition with broadcasting.
func (t *Tensor[B]) Add(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Add(t.raw, other.raw), t.backend)
}

// Sub performs element-wise subtraction with broadcasting.
func (t *Tensor[B]) Sub(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Sub(t.raw, other.raw), t.backend)
}

// Mul performs element-wise multiplication with broadcasting.
func (t *Tensor[B]) Mul(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Mul(t.raw, other.raw), t.backend)
}

// Div performs element-wise division with broadcasting.
func (t *Tensor[B]) Div(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.Div(t.raw, other.raw), t.backend)
}

// MatMul performs matrix multiplication of two 2D tensors.
func (t *Tensor[B]) MatMul(other *Tensor[B]) *Tensor[B] {
	return New(t.backend.MatMul(t.raw, other.raw), t.backend)
}

// MulScalar multiplies every element by s.
func (t *Tensor[B]) MulScalar(s float32) *Tensor[B] {
	return New(t.backend.MulScalar(t.raw, s), t.backend)
}

// AddScalar adds s to every element.
func (t *Tensor[B]) AddScalar(s float32) *Tensor[B] {
	return New(t.backend.AddScalar(t.raw, s), t.backend)
}

// Neg returns -t.
func (t *Tensor[B]) Neg() *Tensor[B] {
	return t.MulScalar(-1)
}

// Exp computes e^x element-wise.
func (t *Tensor[B]) Exp() *Tensor[B] {
	return New(t.backend.Exp(t.raw), t.backend)
}

// Log computes the natural logarithm element-wise.
func (t *Tensor[B]) Log() *Tensor[B] {
	return New(t.backend.Log(t.raw), t.backend)
}

// Rsqrt computes 1/sqrt(x) element-wise.
func (t *Tensor[B]) Rsqrt() *Tensor[B] {
	return New(t.backend.Rsqrt(t.raw), t.backend)
}

// ReLU computes max(0, x) element-wise.
func (t *Tensor[B]) ReLU() *Tensor[B] {
	return New(t.backend.ReLU(t.raw), t.backend)
}

// Sigmoid computes 1/(1+e^-x) element-wise.
func (t *Tensor[B]) Sigmoid() *Tensor[B] {
	return New(t.backend.Sigmoid(t.raw), t.backend)
}

// Reshape returns a tensor with the same data and a new shape.
// One dimension may be -1 and is inferred.
func (t *Tensor[B]) Reshape(dims ...int) *Tensor[B] {
	shape := inferShape(dims, t.NumElements())
	return New(t.backend.Reshape(t.raw, shape), t.backend)
}

// Transpose permutes dimensions. With no axes it swaps the last two.
func (t *Tensor[B]) Transpose(axes ...int) *Tensor[B] {
	return New(t.backend.Transpose(t.raw, axes...), t.backend)
}

// Expand broadcasts the tensor to shape.
func (t *Tensor[B]) Expand(shape Shape) *Tensor[B] {
	return New(t.backend.Expand(t.raw, shape), t.backend)
}

// Sum reduces all elements to a scalar.
func (t *Tensor[B]) Sum() *Tensor[B] {
	return New(t.backend.Sum(t.raw), t.backend)
}

// Mean reduces all elements to their scalar mean.
func (t *Tensor[B]) Mean() *Tensor[B] {
	return t.Sum().MulScalar(1 / float32(t.NumElements()))
}

// SumDim sums along dim.
func (t *Tensor[B]) SumDim(dim int, keepDim bool) *Tensor[B] {
	return New(t.backend.SumDim(t.raw, dim, keepDim), t.backend)
}

// MeanDim averages along dim.
func (t *Tensor[B]) MeanDim(dim int, keepDim bool) *Tensor[B] {
	return New(t.backend.MeanDim(t.raw, dim, keepDim), t.backend)
}

// Conv2D convolves an NCHW input with a [C_out, C_in, K_h, K_w] kernel.
func (t *Tensor[B]) Conv2D(kernel *Tensor[B], stride, padding int) *Tensor[B] {
	return New(t.backend.Conv2D(t.raw, kernel.raw, stride, padding), t.backend)
}

// ConvTranspose2D applies a transposed convolution with a [C_in, C_out, K_h, K_w] kernel.
func (t *Tensor[B]) ConvTranspose2D(kernel *Tensor[B], stride, padding int) *Tensor[B] {
	return New(t.backend.ConvTranspose2D(t.raw, kernel.raw, stride, padding), t.backend)
}

// Cat concatenates tensors along dim. All tensors must share a backend.
func Cat[B Backend](tensors []*Tensor[B], dim int) *Tensor[B] {
	if len(tensors) == 0 {
		panic("cat: no tensors")
	}
	raws := make([]*RawTensor, len(tensors))
	for i, t := range tensors {
		raws[i] = t.raw
	}
	b := tensors[0].backend
	return New(b.Cat(raws, dim), b)
}

// inferShape resolves a single -1 dimension.
func inferShape(dims []int, numElements int) Shape {
	shape := make(Shape, len(dims))
	infer := -1
	known := 1
	for i, d := range dims {
		if d == -1 {
			if infer >= 0 {
				panic("reshape: only one dimension can be -1")
			}
			infer = i
			continue
		}
		shape[i] = d
		known *= d
	}
	if infer >= 0 {
		if known == 0 || numElements%known != 0 {
			panic(fmt.Sprintf("reshape: cannot infer dimension for %d elements from %v", numElements, dims))
		}
		shape[infer] = numElements / known
	}
	if shape.NumElements() != numElements {
		panic(fmt.Sprintf("reshape: shape %v incompatible with %d elements", shape, numElements))
	}
	return shape
}
