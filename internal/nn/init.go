package nn

import (
	"math"
	"math/rand/v2"

	"github.com/born-ml/cvae/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Values are drawn from U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))).
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[B] {
	bound := float32(math.Sqrt(6.0 / float64(fanIn+fanOut)))
	return tensor.Uniform(shape, -bound, bound, rng, backend)
}

// Zeros creates a tensor filled with zeros.
//
// This is commonly used for bias initialization.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[B] {
	return tensor.Zeros(shape, backend)
}

// Ones creates a tensor filled with ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[B] {
	return tensor.Ones(shape, backend)
}
