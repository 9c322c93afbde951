// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cvae

import (
	"math/rand/v2"

	"github.com/born-ml/cvae/internal/autodiff"
	"github.com/born-ml/cvae/internal/cvae"
	"github.com/born-ml/cvae/internal/data"
	"github.com/born-ml/cvae/internal/nn"
	"github.com/born-ml/cvae/internal/tensor"
)

// Model

// ModelConfig selects the network name and latent size.
type ModelConfig = cvae.ModelConfig

// Model owns the encoder and decoder.
type Model[B tensor.Backend] = cvae.Model[B]

// Posterior holds the encoder's mean and log-variance.
type Posterior[B tensor.Backend] = cvae.Posterior[B]

// NewModel builds a freshly initialized model.
func NewModel[B tensor.Backend](config ModelConfig, rng *rand.Rand, backend B) *Model[B] {
	return cvae.NewModel(config, rng, backend)
}

// LoadModel rebuilds a model from a checkpoint.
func LoadModel[B tensor.Backend](path string, rng *rand.Rand, backend B) (*Model[B], *nn.Checkpoint, error) {
	return cvae.LoadModel(path, rng, backend)
}

// SampleNoise draws standard-normal latent noise [n, latentDim].
func SampleNoise[B tensor.Backend](rng *rand.Rand, n, latentDim int, backend B) *tensor.Tensor[B] {
	return cvae.SampleNoise(rng, n, latentDim, backend)
}

// Training

// Loss holds batch-mean loss values.
type Loss = cvae.Loss

// Trainer optimizes a model with Adam.
type Trainer[B autodiff.BackwardCapable] = cvae.Trainer[B]

// NewTrainer creates a trainer; a zero learningRate selects 1e-5.
func NewTrainer[B autodiff.BackwardCapable](model *Model[B], learningRate float32) *Trainer[B] {
	return cvae.NewTrainer(model, learningRate)
}

// Data

// Batch is a minibatch of images [n,28,28,1] and one-hot labels [n,10].
type Batch = data.Batch

// Datasets holds the training and test splits.
type Datasets = data.Datasets

// LoadMNIST reads the MNIST IDX files (optionally gzipped) from dir.
func LoadMNIST(dir string, rng *rand.Rand) (*Datasets, error) {
	return data.LoadMNIST(dir, rng)
}

// Synthetic generates labelled seven-segment digits.
func Synthetic(rng *rand.Rand, trainN, testN int) (*Datasets, error) {
	return data.Synthetic(rng, trainN, testN)
}

// OneHot encodes classes as [len(classes), 10].
func OneHot(classes []int) *tensor.RawTensor {
	return data.OneHot(classes)
}
