// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layers the cvae encoder and decoder are built from.
//
// Layers: Linear, Conv2D, ConvTranspose2D and BatchNorm, plus ReLU and
// Sigmoid. Layers are registered by name in a ParameterGroup, which owns
// their parameters and serializes them under "<group>/<layer>.<param>".
//
//	rng := rand.New(rand.NewPCG(1, 2))
//	g := nn.NewParameterGroup[*cpu.Backend]("encoder")
//	dense := nn.Register(g, "dense", nn.NewLinear(784, 32, rng, backend))
//	bn := nn.Register(g, "dense_bn", nn.NewBatchNorm(32, backend))
//	y := bn.Forward(dense.Forward(x)).ReLU()
//
// Checkpoints store groups in the .born format:
//
//	ckpt := &nn.Checkpoint{Step: 100, Loss: 98.5}
//	err := ckpt.Save("100_model.born", g)
package nn
