package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/cvae/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//
// Weights are initialized using Xavier/Glorot initialization.
// Biases are initialized to zeros.
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[B] // [out_features, in_features]
	bias        *Parameter[B] // [out_features]
}

// NewLinear creates a new Linear layer drawing its weights from rng.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("linear: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}
	weightShape := tensor.Shape{outFeatures, inFeatures}
	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", Xavier(inFeatures, outFeatures, weightShape, rng, backend)),
		bias:        NewParameter("bias", Zeros(tensor.Shape{outFeatures}, backend)),
	}
}

// Forward computes y = x @ W.T + b.
//
// Input shape: [batch_size, in_features]
// Output shape: [batch_size, out_features].
func (l *Linear[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, inputShape[1]))
	}

	// [batch, in] @ [in, out] = [batch, out]
	output := input.MatMul(l.weight.Tensor().Transpose())

	// Bias [out] broadcasts over the batch as [1, out].
	return output.Add(l.bias.Tensor().Reshape(1, l.outFeatures))
}

// Parameters returns [weight, bias].
func (l *Linear[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}

// StateDict returns a map of parameter names to raw tensors.
func (l *Linear[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": l.weight.Tensor().Raw(),
		"bias":   l.bias.Tensor().Raw(),
	}
}

// LoadStateDict loads parameters from a state dictionary.
func (l *Linear[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadInto(l.weight.Tensor().Raw(), stateDict, "weight"); err != nil {
		return err
	}
	return loadInto(l.bias.Tensor().Raw(), stateDict, "bias")
}

// String returns a string representation of the layer.
func (l *Linear[B]) String() string {
	return fmt.Sprintf("Linear(in_features=%d, out_features=%d)", l.inFeatures, l.outFeatures)
}
