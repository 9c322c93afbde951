// Package nn implements the neural network layers of the cVAE.
//
// This package provides:
//   - Module and Layer interfaces: Forward pass plus named state
//   - Parameter: Trainable tensors looked up by the optimizer
//   - Linear, Conv2D, ConvTranspose2D: Affine layers with Xavier init
//   - BatchNorm: Batch normalization with running statistics
//   - ReLU, Sigmoid: Parameter-free activations
//   - ParameterGroup: A named, disjoint set of layers (encoder or decoder)
//   - Checkpoint: Save/load of groups in .born format
//
// Layers are generic over the backend so that the same code runs on a plain
// CPU backend for inference and on an autodiff-wrapped backend for training.
package nn

import (
	"fmt"

	"github.com/born-ml/cvae/internal/tensor"
)

// Module is the base interface for all neural network components.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[B]) *tensor.Tensor[B]

	// Parameters returns all trainable parameters of this module.
	// Returns nil for modules without trainable parameters.
	Parameters() []*Parameter[B]
}

// StateDicter is implemented by anything whose state can be saved and restored.
//
// Keys are local to the implementation (e.g. "weight", "running_var");
// containers prefix them with their own names.
type StateDicter interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// Layer is a module with persistent state that can live in a ParameterGroup.
type Layer[B tensor.Backend] interface {
	Module[B]
	StateDicter
}

// Trainable is implemented by layers whose forward pass differs between
// training and inference (BatchNorm).
type Trainable interface {
	SetTraining(training bool)
}

// loadInto copies stateDict[key] into dst after checking its shape.
func loadInto(dst *tensor.RawTensor, stateDict map[string]*tensor.RawTensor, key string) error {
	src, ok := stateDict[key]
	if !ok {
		return fmt.Errorf("missing %s in state dict", key)
	}
	if !src.Shape().Equal(dst.Shape()) {
		return fmt.Errorf("%s shape mismatch: expected %v, got %v", key, dst.Shape(), src.Shape())
	}
	copy(dst.Data(), src.Data())
	return nil
}
