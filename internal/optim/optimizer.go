// Package optim implements optimization algorithms for training the cVAE.
//
// Example usage:
//
//	optimizer := optim.NewAdam(params, optim.AdamConfig{LR: 1e-5}, backend)
//
//	backend.Tape().StartRecording()
//	loss := model.Loss(batch, eps)
//	grads := autodiff.Backward(loss, backend)
//
//	optimizer.Step(grads)
//	optimizer.ZeroGrad()
package optim

import (
	"github.com/born-ml/cvae/internal/nn"
	"github.com/born-ml/cvae/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to all parameters.
	//
	// Takes a gradient map from Backward() and updates parameters in-place.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// getGradient safely retrieves gradient for a parameter.
//
// Returns nil if no gradient is found (parameter wasn't part of computation graph).
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}
