package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/cvae/internal/tensor"
)

// ConvTranspose2D is a 2D transposed ("deconvolution") layer.
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [in_channels, out_channels, kernel, kernel]
// Output shape: [batch, out_channels, (height-1)*stride - 2*padding + kernel, ...]
//
// The decoder uses it with padding 0 to grow 4 -> 11 -> 25 -> 28.
type ConvTranspose2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	weight *Parameter[B]
	bias   *Parameter[B]
}

// NewConvTranspose2D creates a transposed convolution with Xavier initialization.
func NewConvTranspose2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, stride, padding int,
	rng *rand.Rand,
	backend B,
) *ConvTranspose2D[B] {
	validateConvArgs("conv_transpose2d", inChannels, outChannels, kernelSize, stride, padding)

	area := kernelSize * kernelSize
	weightShape := tensor.Shape{inChannels, outChannels, kernelSize, kernelSize}
	weight := Xavier(inChannels*area, outChannels*area, weightShape, rng, backend)

	return &ConvTranspose2D[B]{
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
func (c *ConvTranspose2D[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv_transpose2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv_transpose2d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	output := input.ConvTranspose2D(c.weight.Tensor(), c.stride, c.padding)
	return output.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
}

// Parameters returns [weight, bias].
func (c *ConvTranspose2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{c.weight, c.bias}
}

// Weight returns the weight parameter.
func (c *ConvTranspose2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// StateDict returns a map of parameter names to raw tensors.
func (c *ConvTranspose2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": c.weight.Tensor().Raw(),
		"bias":   c.bias.Tensor().Raw(),
	}
}

// LoadStateDict loads parameters from a state dictionary.
func (c *ConvTranspose2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadInto(c.weight.Tensor().Raw(), stateDict, "weight"); err != nil {
		return err
	}
	return loadInto(c.bias.Tensor().Raw(), stateDict, "bias")
}

// OutputSize returns the spatial output size for an input of size in.
func (c *ConvTranspose2D[B]) OutputSize(in int) int {
	return (in-1)*c.stride - 2*c.padding + c.kernelSize
}

// String returns a string representation of the layer.
func (c *ConvTranspose2D[B]) String() string {
	return fmt.Sprintf("ConvTranspose2D(in_channels=%d, out_channels=%d, kernel_size=%d, stride=%d, padding=%d)",
		c.inChannels, c.outChannels, c.kernelSize, c.stride, c.padding)
}
