package ops

import (
	"fmt"

	"github.com/born-ml/cvae/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		return grad
	}

	// NumPy broadcasting aligns shapes from the right: sum away leading dims.
	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}

	for i, dim := range targetShape {
		if dim == 1 && result.Shape()[i] != 1 {
			result = backend.SumDim(result, i, true)
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}

// sliceAlong copies [start, start+size) of dim out of t.
func sliceAlong(t *tensor.RawTensor, dim, start, size int) *tensor.RawTensor {
	shape := t.Shape()
	outShape := shape.Clone()
	outShape[dim] = size

	result, err := tensor.NewRaw(outShape, t.Device())
	if err != nil {
		panic(fmt.Sprintf("slice: failed to create result: %v", err))
	}

	outer := 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	inner := 1
	for d := dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}

	src, dst := t.Data(), result.Data()
	rowLen := shape[dim] * inner
	chunk := size * inner
	for o := 0; o < outer; o++ {
		copy(dst[o*chunk:(o+1)*chunk], src[o*rowLen+start*inner:o*rowLen+start*inner+chunk])
	}
	return result
}
