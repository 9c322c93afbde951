package nn

import (
	"github.com/born-ml/cvae/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// The optimizer finds a parameter's gradient by the identity of its raw
// tensor, so the tensor is never replaced; updates are written in place.
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[B]
	grad   *tensor.Tensor[B] // Set after a backward pass, nil otherwise
}

// NewParameter creates a new trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[B] {
	return p.tensor
}

// Grad returns the gradient tensor, or nil before a backward pass.
func (p *Parameter[B]) Grad() *tensor.Tensor[B] {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[B]) {
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}

// NumElements returns the number of scalars in the parameter.
func (p *Parameter[B]) NumElements() int {
	return p.tensor.NumElements()
}
