// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/cvae/internal/nn"
	"github.com/born-ml/cvae/internal/optim"
	"github.com/born-ml/cvae/internal/tensor"
)

// Optimizer updates parameters from a gradient map.
type Optimizer = optim.Optimizer

// Adam is Adam with bias correction.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig configures Adam; zero fields take the defaults.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer over params.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	return optim.NewAdam(params, config, backend)
}
