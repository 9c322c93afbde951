package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/cvae/internal/tensor"
)

// Conv2D is a 2D convolutional layer.
//
// Performs convolution: output = Conv2D(input, weight) + bias
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels, kernel, kernel]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - kernel) / stride + 1
//	out_w = (width + 2*padding - kernel) / stride + 1
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	weight *Parameter[B]
	bias   *Parameter[B]
}

// NewConv2D creates a new 2D convolutional layer with Xavier initialization.
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, stride, padding int,
	rng *rand.Rand,
	backend B,
) *Conv2D[B] {
	validateConvArgs("conv2d", inChannels, outChannels, kernelSize, stride, padding)

	// fan_in = in_channels * k * k, fan_out = out_channels * k * k
	area := kernelSize * kernelSize
	weightShape := tensor.Shape{outChannels, inChannels, kernelSize, kernelSize}
	weight := Xavier(inChannels*area, outChannels*area, weightShape, rng, backend)

	return &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		weight:      NewParameter("weight", weight),
		bias:        NewParameter("bias", Zeros(tensor.Shape{outChannels}, backend)),
	}
}

// Forward performs the forward pass.
//
// Input: [batch, in_channels, height, width]
// Output: [batch, out_channels, out_h, out_w].
func (c *Conv2D[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	output := input.Conv2D(c.weight.Tensor(), c.stride, c.padding)

	// Reshape through the Tensor API so the bias gradient is recorded.
	return output.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
}

// Parameters returns [weight, bias].
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{c.weight, c.bias}
}

// Weight returns the weight parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// Bias returns the bias parameter.
func (c *Conv2D[B]) Bias() *Parameter[B] {
	return c.bias
}

// StateDict returns a map of parameter names to raw tensors.
func (c *Conv2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": c.weight.Tensor().Raw(),
		"bias":   c.bias.Tensor().Raw(),
	}
}

// LoadStateDict loads parameters from a state dictionary.
func (c *Conv2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadInto(c.weight.Tensor().Raw(), stateDict, "weight"); err != nil {
		return err
	}
	return loadInto(c.bias.Tensor().Raw(), stateDict, "bias")
}

// OutputSize returns the spatial output size for an input of size in.
func (c *Conv2D[B]) OutputSize(in int) int {
	return (in+2*c.padding-c.kernelSize)/c.stride + 1
}

// String returns a string representation of the layer.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=%d, stride=%d, padding=%d)",
		c.inChannels, c.outChannels, c.kernelSize, c.stride, c.padding)
}

func validateConvArgs(op string, inChannels, outChannels, kernelSize, stride, padding int) {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("%s: invalid channels in=%d, out=%d", op, inChannels, outChannels))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("%s: invalid kernel size %d", op, kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("%s: invalid stride %d", op, stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("%s: invalid padding %d", op, padding))
	}
}
