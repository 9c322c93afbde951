package cpu

import (
	"fmt"

	"github.com/born-ml/cvae/internal/tensor"
)

// Sum reduces all elements to a scalar (shape []).
// Accumulates in float64.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(tensor.Shape{}, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sum: failed to create result tensor: %v", err))
	}
	var sum float64
	for _, v := range x.Data() {
		sum += float64(v)
	}
	result.Data()[0] = float32(sum)
	return result
}

// SumDim sums along dim.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("sumdim", x, dim, keepDim, 1)
}

// MeanDim averages along dim.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	dim = tensor.NormalizeDim(dim, len(shape))
	return cpu.reduceDim("meandim", x, dim, keepDim, 1/float64(shape[dim]))
}

// reduceDim sums along dim and multiplies by scale.
func (cpu *CPUBackend) reduceDim(name string, x *tensor.RawTensor, dim int, keepDim bool, scale float64) *tensor.RawTensor {
	shape := x.Shape()
	dim = tensor.NormalizeDim(dim, len(shape))

	outShape := make(tensor.Shape, 0, len(shape))
	for d, s := range shape {
		switch {
		case d != dim:
			outShape = append(outShape, s)
		case keepDim:
			outShape = append(outShape, 1)
		}
	}

	result, err := tensor.NewRaw(outShape, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	outer := 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	inner := 1
	for d := dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}
	size := shape[dim]

	src, dst := x.Data(), result.Data()
	acc := make([]float64, inner)
	for o := 0; o < outer; o++ {
		for i := range acc {
			acc[i] = 0
		}
		base := o * size * inner
		for k := 0; k < size; k++ {
			row := src[base+k*inner : base+(k+1)*inner]
			for i, v := range row {
				acc[i] += float64(v)
			}
		}
		for i, v := range acc {
			dst[o*inner+i] = float32(v * scale)
		}
	}

	return result
}
