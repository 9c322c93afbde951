package cpu

import (
	"fmt"

	"github.com/born-ml/cvae/internal/parallel"
	"github.com/born-ml/cvae/internal/tensor"
)

// MatMul performs 2D matrix multiplication: [M, K] @ [K, N] -> [M, N].
//
// Rows of the result are computed in parallel; the inner loop runs in
// i-k-j order so both operands are read sequentially.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D tensors, got %v and %v", aShape, bShape))
	}
	M, K := aShape[0], aShape[1]
	if bShape[0] != K {
		panic(fmt.Sprintf("matmul: inner dimensions mismatch: %v @ %v", aShape, bShape))
	}
	N := bShape[1]

	result, err := tensor.NewRaw(tensor.Shape{M, N}, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("matmul: failed to create result tensor: %v", err))
	}

	matmulFloat32(result.Data(), a.Data(), b.Data(), M, K, N, cpu.parallel)
	return result
}

// matmulFloat32 accumulates out[M,N] = a[M,K] @ b[K,N]. out must be zeroed.
func matmulFloat32(out, a, b []float32, M, K, N int, cfg parallel.Config) {
	parallel.For(M, func(i int) {
		outRow := out[i*N : (i+1)*N]
		aRow := a[i*K : (i+1)*K]
		for k, av := range aRow {
			if av == 0 {
				continue
			}
			bRow := b[k*N : (k+1)*N]
			for j, bv := range bRow {
				outRow[j] += av * bv
			}
		}
	}, cfg)
}
