package nn

import (
	"github.com/born-ml/cvae/internal/tensor"
)

// ReLU is a Rectified Linear Unit activation module.
//
// Applies the element-wise function: f(x) = max(0, x)
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a new ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU activation: f(x) = max(0, x).
func (r *ReLU[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	return input.ReLU()
}

// Parameters returns nil (ReLU has no trainable parameters).
func (r *ReLU[B]) Parameters() []*Parameter[B] {
	return nil
}

// Sigmoid is a sigmoid activation module.
//
// Applies the element-wise function: σ(x) = 1 / (1 + exp(-x)).
// The decoder uses it to map logits to Bernoulli means in (0, 1).
type Sigmoid[B tensor.Backend] struct{}

// NewSigmoid creates a new Sigmoid activation module.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return &Sigmoid[B]{}
}

// Forward applies Sigmoid activation.
func (s *Sigmoid[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	return input.Sigmoid()
}

// Parameters returns nil (Sigmoid has no trainable parameters).
func (s *Sigmoid[B]) Parameters() []*Parameter[B] {
	return nil
}
