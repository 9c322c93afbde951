// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cvae is the public API of the conditional variational autoencoder.
//
// # Training
//
//	rng := rand.New(rand.NewPCG(1, 2))
//	backend := autodiff.New(cpu.New())
//	model := cvae.NewModel(cvae.ModelConfig{LatentDim: 2}, rng, backend)
//	trainer := cvae.NewTrainer(model, 1e-3)
//
//	ds, _ := cvae.Synthetic(rng, 512, 128)
//	batch, _ := ds.Train.NextBatch(64)
//	loss, err := trainer.Step(batch, cvae.SampleNoise(rng, 64, 2, backend))
//
// # Generation
//
//	model, _, err := cvae.LoadModel("expr/cVAE_MNIST/20250101/430_model.born", rng, cpu.New())
//	model.SetTraining(false)
//	images := model.Generate(z, labels) // [N, 28, 28, 1]
package cvae
