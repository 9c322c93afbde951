package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/cvae/internal/tensor"
)

// unary applies f element-wise into a new tensor.
func (cpu *CPUBackend) unary(name string, x *tensor.RawTensor, f func(v float32) float32) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}
	out := result.Data()
	for i, v := range x.Data() {
		out[i] = f(v)
	}
	return result
}

// MulScalar multiplies every element by scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	return cpu.unary("mulscalar", x, func(v float32) float32 { return v * scalar })
}

// AddScalar adds scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	return cpu.unary("addscalar", x, func(v float32) float32 { return v + scalar })
}

// Exp computes e^x.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("exp", x, func(v float32) float32 {
		return float32(math.Exp(float64(v)))
	})
}

// Log computes the natural logarithm.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("log", x, func(v float32) float32 {
		return float32(math.Log(float64(v)))
	})
}

// Rsqrt computes 1/sqrt(x).
func (cpu *CPUBackend) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("rsqrt", x, func(v float32) float32 {
		return float32(1 / math.Sqrt(float64(v)))
	})
}

// ReLU computes max(0, x).
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("relu", x, func(v float32) float32 {
		if v > 0 {
			return v
		}
		return 0
	})
}

// Sigmoid computes 1/(1+e^-x) without overflow for large |x|.
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("sigmoid", x, func(v float32) float32 {
		if v >= 0 {
			return float32(1 / (1 + math.Exp(-float64(v))))
		}
		e := math.Exp(float64(v))
		return float32(e / (1 + e))
	})
}
