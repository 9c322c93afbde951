package nn_test

import (
	"math"
	"testing"

	"github.com/born-ml/cvae/internal/autodiff"
	"github.com/born-ml/cvae/internal/backend/cpu"
	"github.com/born-ml/cvae/internal/nn"
	"github.com/born-ml/cvae/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchNormTrainingNormalizes(t *testing.T) {
	backend := cpu.New()
	bn := nn.NewBatchNorm(2, backend)

	// Feature 0: {1, 3}, feature 1: {10, 30}
	x := tensor.MustFromSlice([]float32{1, 10, 3, 30}, tensor.Shape{2, 2}, backend)
	y := bn.Forward(x).Data()

	for c := 0; c < 2; c++ {
		assert.InDelta(t, -1.0, y[c], 1e-3)
		assert.InDelta(t, 1.0, y[2+c], 1e-3)
	}

	// momentum 0.1, unbiased variance over n=2: {2, 200}
	assert.InDeltaSlice(t, []float32{0.2, 2}, bn.RunningMean().Data(), 1e-6)
	assert.InDeltaSlice(t, []float32{0.9 + 0.1*2, 0.9 + 0.1*200}, bn.RunningVar().Data(), 1e-4)
}

func TestBatchNorm4DStatisticsPerChannel(t *testing.T) {
	backend := cpu.New()
	bn := nn.NewBatchNorm(3, backend)

	x := tensor.Randn(tensor.Shape{4, 3, 5, 5}, newRNG(7), backend)
	y := bn.Forward(x)
	require.Equal(t, x.Shape(), y.Shape())

	data := y.Data()
	for c := 0; c < 3; c++ {
		var sum, sq float64
		n := 0
		for i := 0; i < 4; i++ {
			for p := 0; p < 25; p++ {
				v := float64(data[(i*3+c)*25+p])
				sum += v
				sq += v * v
				n++
			}
		}
		mean := sum / float64(n)
		assert.InDelta(t, 0, mean, 1e-4, "channel %d mean", c)
		assert.InDelta(t, 1, sq/float64(n)-mean*mean, 1e-2, "channel %d variance", c)
	}
}

func TestBatchNormEvalUsesRunningStats(t *testing.T) {
	backend := cpu.New()
	bn := nn.NewBatchNorm(1, backend)
	bn.RunningMean().Data()[0] = 2
	bn.RunningVar().Data()[0] = 4
	bn.SetTraining(false)
	assert.False(t, bn.Training())

	x := tensor.MustFromSlice([]float32{2, 6}, tensor.Shape{2, 1}, backend)
	y := bn.Forward(x).Data()
	assert.InDelta(t, 0, y[0], 1e-5)
	assert.InDelta(t, 2, y[1], 1e-4)

	// Eval never touches the buffers.
	assert.Equal(t, float32(2), bn.RunningMean().Data()[0])
	assert.Equal(t, float32(4), bn.RunningVar().Data()[0])
}

func TestBatchNormRejectsBadInput(t *testing.T) {
	backend := cpu.New()
	bn := nn.NewBatchNorm(2, backend)
	assert.Panics(t, func() { bn.Forward(tensor.Zeros(tensor.Shape{2, 2, 2}, backend)) })
	assert.Panics(t, func() { bn.Forward(tensor.Zeros(tensor.Shape{2, 3}, backend)) })
}

// Gradients through batch statistics against finite differences.
func TestBatchNormGradients(t *testing.T) {
	shape := tensor.Shape{3, 2, 2, 2}
	values := tensor.Randn(shape, newRNG(8), cpu.New()).Data()
	weights := tensor.Randn(shape, newRNG(9), cpu.New()).Data()

	loss := func(b Backend, bn *nn.BatchNorm[Backend], in []float32) (*tensor.Tensor[Backend], *tensor.Tensor[Backend]) {
		x := tensor.MustFromSlice(in, shape, b)
		w := tensor.MustFromSlice(weights, shape, b)
		return x, bn.Forward(x).Mul(w).Sum()
	}

	backend := newBackend()
	bn := nn.NewBatchNorm(2, backend)
	copy(bn.Parameters()[0].Tensor().Data(), []float32{1.5, 0.5})
	backend.Tape().StartRecording()
	x, out := loss(backend, bn, values)
	grads := autodiff.Backward(out, backend)
	gx := grads[x.Raw()].Data()
	gGamma := grads[bn.Parameters()[0].Tensor().Raw()]
	require.NotNil(t, gGamma)

	evalBackend := newBackend()
	evalBN := nn.NewBatchNorm(2, evalBackend)
	copy(evalBN.Parameters()[0].Tensor().Data(), []float32{1.5, 0.5})
	eval := func() float64 {
		_, l := loss(evalBackend, evalBN, values)
		return float64(l.Item())
	}

	const eps = 1e-2
	for i := range values {
		orig := values[i]
		values[i] = orig + eps
		plus := eval()
		values[i] = orig - eps
		minus := eval()
		values[i] = orig

		numerical := (plus - minus) / (2 * eps)
		assert.InDelta(t, numerical, float64(gx[i]), 3e-2*math.Max(1, math.Abs(numerical)), "element %d", i)
	}
}
