package cpu

import (
	"fmt"

	"github.com/born-ml/cvae/internal/tensor"
)

// Reshape returns a tensor over the same buffer with a new shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result, err := t.View(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return result
}

// Transpose permutes dimensions according to axes.
// With no axes the last two dimensions are swapped.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		if ndim < 2 {
			panic(fmt.Sprintf("transpose: need at least 2 dimensions, got %v", shape))
		}
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = i
		}
		axes[ndim-2], axes[ndim-1] = axes[ndim-1], axes[ndim-2]
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: got %d axes for %dD tensor", len(axes), ndim))
	}

	seen := make([]bool, ndim)
	outShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		if ax < 0 || ax >= ndim || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid permutation %v", axes))
		}
		seen[ax] = true
		outShape[i] = shape[ax]
	}

	result, err := tensor.NewRaw(outShape, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("transpose: failed to create result tensor: %v", err))
	}

	// Input stride for each output dimension
	inStrides := shape.ComputeStrides()
	permStrides := make([]int, ndim)
	for i, ax := range axes {
		permStrides[i] = inStrides[ax]
	}

	src, dst := t.Data(), result.Data()
	coord := make([]int, ndim)
	srcIdx := 0
	for i := range dst {
		dst[i] = src[srcIdx]
		// Odometer increment over output coordinates
		for d := ndim - 1; d >= 0; d-- {
			coord[d]++
			srcIdx += permStrides[d]
			if coord[d] < outShape[d] {
				break
			}
			srcIdx -= coord[d] * permStrides[d]
			coord[d] = 0
		}
	}

	return result
}

// Expand broadcasts x to shape.
func (cpu *CPUBackend) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	outShape, _, err := tensor.BroadcastShapes(x.Shape(), shape)
	if err != nil || !outShape.Equal(shape) {
		panic(fmt.Sprintf("expand: cannot broadcast %v to %v", x.Shape(), shape))
	}

	result, err := tensor.NewRaw(shape, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("expand: failed to create result tensor: %v", err))
	}

	srcStrides := broadcastStrides(x.Shape(), shape)
	outStrides := shape.ComputeStrides()
	src, dst := x.Data(), result.Data()
	for i := range dst {
		srcIdx, rem := 0, i
		for d := range shape {
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			srcIdx += coord * srcStrides[d]
		}
		dst[i] = src[srcIdx]
	}
	return result
}

// Cat concatenates tensors along dim. All other dimensions must match.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: no tensors")
	}
	first := tensors[0].Shape()
	dim = tensor.NormalizeDim(dim, len(first))

	outShape := first.Clone()
	outShape[dim] = 0
	for _, t := range tensors {
		s := t.Shape()
		if len(s) != len(first) {
			panic(fmt.Sprintf("cat: rank mismatch %v vs %v", first, s))
		}
		for d := range s {
			if d != dim && s[d] != first[d] {
				panic(fmt.Sprintf("cat: shape mismatch %v vs %v at dim %d", first, s, d))
			}
		}
		outShape[dim] += s[dim]
	}

	result, err := tensor.NewRaw(outShape, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("cat: failed to create result tensor: %v", err))
	}

	outer := 1
	for d := 0; d < dim; d++ {
		outer *= first[d]
	}
	inner := 1
	for d := dim + 1; d < len(first); d++ {
		inner *= first[d]
	}

	dst := result.Data()
	rowLen := outShape[dim] * inner
	offset := 0
	for _, t := range tensors {
		chunk := t.Shape()[dim] * inner
		src := t.Data()
		for o := 0; o < outer; o++ {
			copy(dst[o*rowLen+offset:o*rowLen+offset+chunk], src[o*chunk:(o+1)*chunk])
		}
		offset += chunk
	}

	return result
}
