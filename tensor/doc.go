// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor exposes the float32 tensors the cvae model computes with.
//
// A Tensor[B] pairs a RawTensor (contiguous row-major float32 storage) with
// the Backend that executes its operations. Wrapping a backend with
// autodiff records every operation for back-propagation.
//
//	backend := cpu.New()
//	x := tensor.MustFromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
//	y := x.MatMul(x).Sigmoid()
//	fmt.Println(y.Data())
package tensor
