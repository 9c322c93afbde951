// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand/v2"

	"github.com/born-ml/cvae/internal/nn"
	"github.com/born-ml/cvae/internal/tensor"
)

// Module is a layer with a forward pass and trainable parameters.
type Module[B tensor.Backend] = nn.Module[B]

// StateDicter exports and restores named tensors.
type StateDicter = nn.StateDicter

// Layer is a Module that can be serialized.
type Layer[B tensor.Backend] = nn.Layer[B]

// Parameter is a trainable tensor with its gradient.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Linear is a fully connected layer y = x·Wᵀ + b.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a Xavier-initialized linear layer.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, rng, backend)
}

// Conv2D is a square-kernel 2D convolution over NCHW input.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a Xavier-initialized convolution.
func NewConv2D[B tensor.Backend](inChannels, outChannels, kernelSize, stride, padding int, rng *rand.Rand, backend B) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelSize, stride, padding, rng, backend)
}

// ConvTranspose2D is a square-kernel transposed convolution over NCHW input.
type ConvTranspose2D[B tensor.Backend] = nn.ConvTranspose2D[B]

// NewConvTranspose2D creates a Xavier-initialized transposed convolution.
func NewConvTranspose2D[B tensor.Backend](inChannels, outChannels, kernelSize, stride, padding int, rng *rand.Rand, backend B) *ConvTranspose2D[B] {
	return nn.NewConvTranspose2D(inChannels, outChannels, kernelSize, stride, padding, rng, backend)
}

// BatchNorm normalizes features (2D input) or channels (4D NCHW input).
type BatchNorm[B tensor.Backend] = nn.BatchNorm[B]

// NewBatchNorm creates a batch normalization layer in training mode.
func NewBatchNorm[B tensor.Backend](numFeatures int, backend B) *BatchNorm[B] {
	return nn.NewBatchNorm(numFeatures, backend)
}

// ReLU is max(0, x).
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a ReLU activation.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// Sigmoid is 1/(1+e^-x).
type Sigmoid[B tensor.Backend] = nn.Sigmoid[B]

// NewSigmoid creates a sigmoid activation.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return nn.NewSigmoid[B]()
}

// ParameterGroup is a named, ordered collection of layers.
type ParameterGroup[B tensor.Backend] = nn.ParameterGroup[B]

// NewParameterGroup creates an empty group.
func NewParameterGroup[B tensor.Backend](name string) *ParameterGroup[B] {
	return nn.NewParameterGroup[B](name)
}

// Register adds layer to g under name and returns it.
func Register[B tensor.Backend, L Layer[B]](g *ParameterGroup[B], name string, layer L) L {
	return nn.Register(g, name, layer)
}

// Checkpoint is the metadata of a saved model.
type Checkpoint = nn.Checkpoint

// LoadCheckpoint restores modules from a .born checkpoint.
func LoadCheckpoint(path string, modules ...StateDicter) (*Checkpoint, error) {
	return nn.LoadCheckpoint(path, modules...)
}
