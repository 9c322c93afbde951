package nn_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/born-ml/cvae/internal/autodiff"
	"github.com/born-ml/cvae/internal/backend/cpu"
	"github.com/born-ml/cvae/internal/nn"
	"github.com/born-ml/cvae/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() Backend {
	return autodiff.New(cpu.New())
}

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func TestParameter(t *testing.T) {
	backend := newBackend()
	data := tensor.MustFromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	param := nn.NewParameter("test_param", data)

	assert.Equal(t, "test_param", param.Name())
	assert.Same(t, data, param.Tensor())
	assert.Nil(t, param.Grad())
	assert.Equal(t, 3, param.NumElements())

	grad := tensor.MustFromSlice([]float32{0.1, 0.2, 0.3}, tensor.Shape{3}, backend)
	param.SetGrad(grad)
	assert.Same(t, grad, param.Grad())

	param.ZeroGrad()
	assert.Nil(t, param.Grad())
}

func TestXavierBounds(t *testing.T) {
	w := nn.Xavier(10, 5, tensor.Shape{5, 10}, newRNG(1), cpu.New())
	bound := float32(math.Sqrt(6.0 / 15.0))
	for _, v := range w.Data() {
		assert.LessOrEqual(t, v, bound)
		assert.GreaterOrEqual(t, v, -bound)
	}

	// Same seed, same weights.
	again := nn.Xavier(10, 5, tensor.Shape{5, 10}, newRNG(1), cpu.New())
	assert.Equal(t, w.Data(), again.Data())
}

func TestLinear(t *testing.T) {
	backend := newBackend()
	layer := nn.NewLinear(3, 2, newRNG(2), backend)

	assert.Equal(t, 3, layer.InFeatures())
	assert.Equal(t, 2, layer.OutFeatures())
	assert.Equal(t, tensor.Shape{2, 3}, layer.Weight().Tensor().Shape())
	assert.Equal(t, tensor.Shape{2}, layer.Bias().Tensor().Shape())
	assert.Len(t, layer.Parameters(), 2)

	copy(layer.Weight().Tensor().Data(), []float32{1, 0, 0, 0, 1, 1})
	copy(layer.Bias().Tensor().Data(), []float32{0.5, -1})

	x := tensor.MustFromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	y := layer.Forward(x)
	assert.Equal(t, tensor.Shape{2, 2}, y.Shape())
	assert.Equal(t, []float32{1.5, 4, 4.5, 10}, y.Data())

	assert.Panics(t, func() { layer.Forward(tensor.Zeros(tensor.Shape{2, 4}, backend)) })
	assert.Panics(t, func() { layer.Forward(tensor.Zeros(tensor.Shape{3}, backend)) })
}

func TestLinearGradientsReachParameters(t *testing.T) {
	backend := newBackend()
	layer := nn.NewLinear(4, 3, newRNG(3), backend)
	backend.Tape().StartRecording()

	x := tensor.Randn(tensor.Shape{5, 4}, newRNG(4), backend)
	grads := autodiff.Backward(layer.Forward(x).Sum(), backend)

	for _, p := range layer.Parameters() {
		g, ok := grads[p.Tensor().Raw()]
		require.True(t, ok, p.Name())
		assert.Equal(t, p.Tensor().Shape(), g.Shape())
	}
	// d(sum)/d(bias) is the batch size for every output.
	assert.Equal(t, []float32{5, 5, 5}, grads[layer.Bias().Tensor().Raw()].Data())
}

func TestConvLayersShapes(t *testing.T) {
	backend := cpu.New()
	rng := newRNG(5)

	conv := nn.NewConv2D(11, 8, 4, 2, 1, rng, backend)
	y := conv.Forward(tensor.Zeros(tensor.Shape{2, 11, 28, 28}, backend))
	assert.Equal(t, tensor.Shape{2, 8, 14, 14}, y.Shape())
	assert.Equal(t, 14, conv.OutputSize(28))
	assert.Equal(t, 7, conv.OutputSize(14))

	deconv := nn.NewConvTranspose2D(4, 3, 5, 2, 0, rng, backend)
	assert.Equal(t, tensor.Shape{4, 3, 5, 5}, deconv.Weight().Tensor().Shape())
	out := deconv.Forward(tensor.Zeros(tensor.Shape{2, 4, 4, 4}, backend))
	assert.Equal(t, tensor.Shape{2, 3, 11, 11}, out.Shape())
	assert.Equal(t, 25, deconv.OutputSize(11))

	assert.Panics(t, func() { conv.Forward(tensor.Zeros(tensor.Shape{2, 3, 28, 28}, backend)) })
	assert.Panics(t, func() { nn.NewConv2D(1, 1, 0, 1, 0, rng, backend) })
	assert.Panics(t, func() { nn.NewConvTranspose2D(1, 1, 3, 0, 0, rng, backend) })
}

func TestConvBiasBroadcastsPerChannel(t *testing.T) {
	backend := cpu.New()
	conv := nn.NewConv2D(1, 2, 1, 1, 0, newRNG(6), backend)
	conv.Weight().Tensor().Raw().Fill(0)
	copy(conv.Bias().Tensor().Data(), []float32{1, -1})

	y := conv.Forward(tensor.Ones(tensor.Shape{1, 1, 2, 2}, backend))
	assert.Equal(t, []float32{1, 1, 1, 1, -1, -1, -1, -1}, y.Data())
}

func TestActivations(t *testing.T) {
	backend := cpu.New()
	x := tensor.MustFromSlice([]float32{-1, 0, 2}, tensor.Shape{3}, backend)

	assert.Equal(t, []float32{0, 0, 2}, nn.NewReLU[*cpu.CPUBackend]().Forward(x).Data())
	s := nn.NewSigmoid[*cpu.CPUBackend]().Forward(x).Data()
	assert.InDelta(t, 0.5, s[1], 1e-6)
	assert.Nil(t, nn.NewSigmoid[*cpu.CPUBackend]().Parameters())
}
