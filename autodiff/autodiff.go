// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff adds reverse-mode differentiation to any backend.
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x := tensor.MustFromSlice([]float32{2}, tensor.Shape{1}, backend)
//	grads := autodiff.Backward(x.Mul(x).Sum(), backend)
//	fmt.Println(grads[x.Raw()].Data()) // [4]
package autodiff

import (
	"github.com/born-ml/cvae/internal/autodiff"
	"github.com/born-ml/cvae/internal/tensor"
)

// Backend records the operations of a wrapped backend on a GradientTape.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New wraps backend.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations while recording is on.
type GradientTape = autodiff.GradientTape

// BackwardCapable is a backend that owns a gradient tape.
type BackwardCapable = autodiff.BackwardCapable

// Backward back-propagates from t and returns gradients keyed by input storage.
func Backward[B BackwardCapable](t *tensor.Tensor[B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}
