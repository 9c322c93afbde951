// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the Adam optimizer.
//
//	opt := optim.NewAdam(params, optim.AdamConfig{LR: 1e-5}, backend)
//	grads := autodiff.Backward(loss, backend)
//	opt.Step(grads)
//	opt.ZeroGrad()
package optim
