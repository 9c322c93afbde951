package tensor

import (
	"fmt"
	"math/rand/v2"
)

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice[B Backend](data []float32, shape Shape, b B) (*Tensor[B], error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	raw, err := NewRaw(shape, b.Device())
	if err != nil {
		return nil, err
	}
	copy(raw.Data(), data)

	return New(raw, b), nil
}

// MustFromSlice is FromSlice that panics on error.
func MustFromSlice[B Backend](data []float32, shape Shape, b B) *Tensor[B] {
	t, err := FromSlice(data, shape, b)
	if err != nil {
		panic(fmt.Sprintf("FromSlice: %v", err))
	}
	return t
}

// Zeros creates a tensor filled with zeros.
func Zeros[B Backend](shape Shape, b B) *Tensor[B] {
	return New(MustNewRaw(shape, b.Device()), b)
}

// Ones creates a tensor filled with ones.
func Ones[B Backend](shape Shape, b B) *Tensor[B] {
	return Full(shape, 1, b)
}

// Full creates a tensor filled with value.
func Full[B Backend](shape Shape, value float32, b B) *Tensor[B] {
	raw := MustNewRaw(shape, b.Device())
	raw.Fill(value)
	return New(raw, b)
}

// Randn creates a tensor with elements drawn from N(0, 1).
//
// The generator is explicit so that runs are reproducible from a seed.
func Randn[B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[B] {
	raw := MustNewRaw(shape, b.Device())
	data := raw.Data()
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	return New(raw, b)
}

// Uniform creates a tensor with elements drawn from U(low, high).
func Uniform[B Backend](shape Shape, low, high float32, rng *rand.Rand, b B) *Tensor[B] {
	raw := MustNewRaw(shape, b.Device())
	data := raw.Data()
	span := high - low
	for i := range data {
		data[i] = low + span*rng.Float32()
	}
	return New(raw, b)
}
