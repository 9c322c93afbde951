// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend.
//
// Convolutions use im2col followed by a matrix multiply. Per-sample loops
// run on a bounded worker pool sized to the number of CPUs.
//
//	backend := cpu.New()
//	x := tensor.Zeros(tensor.Shape{2, 3}, backend)
package cpu
