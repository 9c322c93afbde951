// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand/v2"

	"github.com/born-ml/cvae/internal/tensor"
)

// Backend executes tensor operations.
type Backend = tensor.Backend

// Tensor is a float32 tensor bound to a backend.
type Tensor[B Backend] = tensor.Tensor[B]

// RawTensor is backend-independent tensor storage.
type RawTensor = tensor.RawTensor

// Shape lists tensor dimensions.
type Shape = tensor.Shape

// Device identifies where storage lives.
type Device = tensor.Device

// DataType identifies a serialized element encoding.
type DataType = tensor.DataType

// Devices and data types.
const (
	CPU     = tensor.CPU
	Float32 = tensor.Float32
	Float16 = tensor.Float16
)

// New wraps raw storage for backend b.
func New[B Backend](raw *RawTensor, b B) *Tensor[B] {
	return tensor.New(raw, b)
}

// FromSlice creates a tensor from data laid out in row-major order.
func FromSlice[B Backend](data []float32, shape Shape, b B) (*Tensor[B], error) {
	return tensor.FromSlice(data, shape, b)
}

// MustFromSlice is FromSlice that panics on error.
func MustFromSlice[B Backend](data []float32, shape Shape, b B) *Tensor[B] {
	return tensor.MustFromSlice(data, shape, b)
}

// Zeros creates a zero-filled tensor.
func Zeros[B Backend](shape Shape, b B) *Tensor[B] {
	return tensor.Zeros(shape, b)
}

// Ones creates a one-filled tensor.
func Ones[B Backend](shape Shape, b B) *Tensor[B] {
	return tensor.Ones(shape, b)
}

// Randn draws a standard-normal tensor from rng.
func Randn[B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[B] {
	return tensor.Randn(shape, rng, b)
}

// Cat concatenates tensors along dim.
func Cat[B Backend](tensors []*Tensor[B], dim int) *Tensor[B] {
	return tensor.Cat(tensors, dim)
}
