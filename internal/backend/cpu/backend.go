// Package cpu implements the pure Go CPU backend.
package cpu

import (
	"fmt"

	"github.com/born-ml/cvae/internal/parallel"
	"github.com/born-ml/cvae/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
//
// Every operation allocates its result; inputs are never modified, which
// keeps tensors recorded on an autodiff tape valid for the backward pass.
type CPUBackend struct {
	device   tensor.Device
	parallel parallel.Config
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device:   tensor.CPU,
		parallel: parallel.CoarseConfig(),
	}
}

// WithParallel returns a copy of the backend using cfg for kernel parallelism.
func (cpu *CPUBackend) WithParallel(cfg parallel.Config) *CPUBackend {
	clone := *cpu
	clone.parallel = cfg
	return &clone
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("div", a, b, func(x, y float32) float32 { return x / y })
}

// binary applies f over the broadcast of a and b.
func (cpu *CPUBackend) binary(name string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result, err := tensor.NewRaw(outShape, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	out := result.Data()
	aData, bData := a.Data(), b.Data()

	// Fast path: same shape
	if !needsBroadcast {
		for i := range out {
			out[i] = f(aData[i], bData[i])
		}
		return result
	}

	aStrides := broadcastStrides(a.Shape(), outShape)
	bStrides := broadcastStrides(b.Shape(), outShape)
	outStrides := outShape.ComputeStrides()

	for i := range out {
		aIdx, bIdx, rem := 0, 0, i
		for d := range outShape {
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			aIdx += coord * aStrides[d]
			bIdx += coord * bStrides[d]
		}
		out[i] = f(aData[aIdx], bData[bIdx])
	}

	return result
}

// broadcastStrides returns strides of shape aligned to outShape, with 0 for
// broadcast dimensions.
func broadcastStrides(shape, outShape tensor.Shape) []int {
	strides := make([]int, len(outShape))
	src := shape.ComputeStrides()
	offset := len(outShape) - len(shape)
	for d := range shape {
		if shape[d] != 1 {
			strides[d+offset] = src[d]
		}
	}
	return strides
}
