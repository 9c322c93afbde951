package cvae

import (
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/born-ml/cvae/internal/autodiff"
	"github.com/born-ml/cvae/internal/backend/cpu"
	"github.com/born-ml/cvae/internal/data"
	"github.com/born-ml/cvae/internal/nn"
	"github.com/born-ml/cvae/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func labelsFor(backend *cpu.CPUBackend, classes ...int) *tensor.Tensor[*cpu.CPUBackend] {
	return tensor.New(data.OneHot(classes), backend)
}

func TestConcatLabels(t *testing.T) {
	backend := cpu.New()
	x := tensor.Full(tensor.Shape{2, 3, 3, 1}, 0.5, backend)
	out := ConcatLabels(x, labelsFor(backend, 2, 7))

	require.Equal(t, tensor.Shape{2, 3, 3, 11}, out.Shape())
	for n, class := range []int{2, 7} {
		for h := 0; h < 3; h++ {
			for w := 0; w < 3; w++ {
				assert.Equal(t, float32(0.5), out.At(n, h, w, 0))
				for k := 0; k < NumClasses; k++ {
					want := float32(0)
					if k == class {
						want = 1
					}
					assert.Equal(t, want, out.At(n, h, w, 1+k))
				}
			}
		}
	}

	flat := tensor.Zeros(tensor.Shape{2, 5}, backend)
	assert.Same(t, flat, ConcatLabels(flat, labelsFor(backend, 0, 1)))

	assert.Panics(t, func() { ConcatLabels(x, labelsFor(backend, 1)) })
}

func TestEncoderOutputShape(t *testing.T) {
	backend := cpu.New()
	for _, latent := range []int{1, 2, 5} {
		enc := NewEncoder("net_vaeE", latent, newRNG(1), backend)
		post := enc.Forward(tensor.Zeros(tensor.Shape{3, 28, 28, 1}, backend), labelsFor(backend, 0, 1, 2))
		assert.Equal(t, tensor.Shape{3, latent}, post.Mu.Shape())
		assert.Equal(t, tensor.Shape{3, latent}, post.LogVar.Shape())
		assert.Equal(t, latent, enc.LatentDim())
	}

	enc := NewEncoder("net_vaeE", 2, newRNG(1), backend)
	assert.Panics(t, func() {
		enc.Forward(tensor.Zeros(tensor.Shape{1, 14, 14, 1}, backend), labelsFor(backend, 0))
	})
}

func TestDecoderOutputShapeAndRange(t *testing.T) {
	backend := cpu.New()
	dec := NewDecoder("net_vaeD", 2, newRNG(2), backend)

	z := tensor.Randn(tensor.Shape{4, 2}, newRNG(3), backend).MulScalar(10)
	out := dec.Forward(z, labelsFor(backend, 0, 3, 6, 9))
	require.Equal(t, tensor.Shape{4, 28, 28, 1}, out.Shape())
	for _, v := range out.Data() {
		require.False(t, math.IsNaN(float64(v)))
		assert.True(t, v >= 0 && v <= 1)
	}

	assert.Panics(t, func() { dec.Forward(tensor.Zeros(tensor.Shape{4, 3}, backend), labelsFor(backend, 0, 0, 0, 0)) })
}

func TestReparameterizeZeroNoiseIsMean(t *testing.T) {
	backend := cpu.New()
	post := Posterior[*cpu.CPUBackend]{
		Mu:     tensor.MustFromSlice([]float32{0.3, -1.7, 2.5, 1e-3}, tensor.Shape{2, 2}, backend),
		LogVar: tensor.MustFromSlice([]float32{4, -3, 0, 10}, tensor.Shape{2, 2}, backend),
	}
	z := Reparameterize(post, tensor.Zeros(tensor.Shape{2, 2}, backend))
	assert.Equal(t, post.Mu.Data(), z.Data())

	ones := Reparameterize(post, tensor.Ones(tensor.Shape{2, 2}, backend))
	assert.InDelta(t, 0.3+math.Exp(2), ones.Data()[0], 1e-4)

	assert.Panics(t, func() { Reparameterize(post, tensor.Zeros(tensor.Shape{2, 3}, backend)) })
}

func TestSampleNoiseIsSeeded(t *testing.T) {
	backend := cpu.New()
	a := SampleNoise(newRNG(5), 3, 2, backend)
	b := SampleNoise(newRNG(5), 3, 2, backend)
	assert.Equal(t, tensor.Shape{3, 2}, a.Shape())
	assert.Equal(t, a.Data(), b.Data())
}

func TestKLDivergence(t *testing.T) {
	backend := cpu.New()
	zero := Posterior[*cpu.CPUBackend]{
		Mu:     tensor.Zeros(tensor.Shape{3, 2}, backend),
		LogVar: tensor.Zeros(tensor.Shape{3, 2}, backend),
	}
	kl := KLDivergence(zero)
	assert.Equal(t, tensor.Shape{3}, kl.Shape())
	assert.Equal(t, []float32{0, 0, 0}, kl.Data())

	post := Posterior[*cpu.CPUBackend]{
		Mu:     tensor.MustFromSlice([]float32{1, 2}, tensor.Shape{1, 2}, backend),
		LogVar: tensor.MustFromSlice([]float32{0, 1}, tensor.Shape{1, 2}, backend),
	}
	// 0.5 * ((1 + 1 - 1 - 0) + (e + 4 - 1 - 1))
	assert.InDelta(t, 0.5*(1+math.E+2), KLDivergence(post).Item(), 1e-5)
}

func TestReconstructionLossFiniteAtSaturation(t *testing.T) {
	backend := cpu.New()
	x := tensor.MustFromSlice([]float32{0, 1, 0, 1}, tensor.Shape{2, 2}, backend)
	for _, rec := range [][]float32{{0, 1, 0, 1}, {1, 0, 1, 0}, {1e-7, 1 - 1e-7, 0.5, 0.5}} {
		loss := ReconstructionLoss(x, tensor.MustFromSlice(rec, tensor.Shape{2, 2}, backend))
		require.Equal(t, tensor.Shape{2}, loss.Shape())
		for _, v := range loss.Data() {
			assert.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0), "rec %v", rec)
			assert.GreaterOrEqual(t, v, float32(-1e-3))
		}
	}

	// Perfect reconstruction is ~0, the worst is ~-log(eps) per pixel.
	perfect := ReconstructionLoss(x, x).Data()
	assert.InDelta(t, 0, perfect[0], 1e-3)
	worst := ReconstructionLoss(x, tensor.MustFromSlice([]float32{1, 0, 1, 0}, tensor.Shape{2, 2}, backend)).Data()
	assert.InDelta(t, -2*math.Log(LogEpsilon), worst[0], 1e-2)
}

func TestELBOLossIsBatchMean(t *testing.T) {
	backend := cpu.New()
	x := tensor.MustFromSlice([]float32{0, 1, 1, 1}, tensor.Shape{2, 2}, backend)
	xRec := tensor.Full(tensor.Shape{2, 2}, 0.5, backend)
	post := Posterior[*cpu.CPUBackend]{
		Mu:     tensor.MustFromSlice([]float32{1, 0}, tensor.Shape{2, 1}, backend),
		LogVar: tensor.Zeros(tensor.Shape{2, 1}, backend),
	}
	loss := ELBOLoss(x, xRec, post).Values()

	rec := -2 * math.Log(0.5+LogEpsilon)
	assert.InDelta(t, rec, loss.Reconstruction, 1e-4)
	assert.InDelta(t, 0.25, loss.KL, 1e-6)
	assert.InDelta(t, rec+0.25, loss.Total, 1e-4)
}

func TestLossGradients(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	post := Posterior[Backend]{
		Mu:     tensor.MustFromSlice([]float32{0.5, -1}, tensor.Shape{1, 2}, backend),
		LogVar: tensor.MustFromSlice([]float32{0.2, -0.4}, tensor.Shape{1, 2}, backend),
	}
	grads := autodiff.Backward(KLDivergence(post).Sum(), backend)
	assert.InDeltaSlice(t, []float32{0.5, -1}, grads[post.Mu.Raw()].Data(), 1e-6)
	assert.InDeltaSlice(t, []float32{
		float32(0.5 * (math.Exp(0.2) - 1)),
		float32(0.5 * (math.Exp(-0.4) - 1)),
	}, grads[post.LogVar.Raw()].Data(), 1e-6)

	backend.Tape().Clear()
	x := tensor.MustFromSlice([]float32{1, 0}, tensor.Shape{1, 2}, backend)
	xRec := tensor.MustFromSlice([]float32{0.8, 0.3}, tensor.Shape{1, 2}, backend)
	grads = autodiff.Backward(ReconstructionLoss(x, xRec).Sum(), backend)
	assert.InDeltaSlice(t, []float32{
		float32(-1 / (0.8 + LogEpsilon)),
		float32(1 / (1 - 0.3 + LogEpsilon)),
	}, grads[xRec.Raw()].Data(), 1e-4)
}

func TestModelGroupsAreDisjointAndNamed(t *testing.T) {
	model := NewModel(ModelConfig{}, newRNG(1), cpu.New())
	assert.Equal(t, DefaultNetworkType, model.Config().NetworkType)
	assert.Equal(t, DefaultLatentDim, model.Config().LatentDim)

	groups := model.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, "cVAE_MNIST_vaeE", groups[0].Name())
	assert.Equal(t, "cVAE_MNIST_vaeD", groups[1].Name())

	seen := make(map[*nn.Parameter[*cpu.CPUBackend]]bool)
	for _, p := range groups[0].Parameters() {
		seen[p] = true
	}
	for _, p := range groups[1].Parameters() {
		assert.False(t, seen[p], "parameter shared between encoder and decoder")
	}
	assert.Len(t, model.Parameters(), len(groups[0].Parameters())+len(groups[1].Parameters()))

	sd := groups[0].StateDict()
	assert.Contains(t, sd, "cVAE_MNIST_vaeE/dense_mean.weight")
	assert.Contains(t, sd, "cVAE_MNIST_vaeE/conv1_bn.running_mean")
	assert.Equal(t, tensor.Shape{2, 6272}, sd["cVAE_MNIST_vaeE/dense_var.weight"].Shape())
}

// Reconstruct and Generate share the decoder: with ε = 0 and z = μ they agree.
func TestReconstructMatchesGenerateAtMean(t *testing.T) {
	backend := cpu.New()
	model := NewModel(ModelConfig{LatentDim: 3}, newRNG(2), backend)
	model.SetTraining(false)

	images := tensor.Uniform(tensor.Shape{2, 28, 28, 1}, 0, 1, newRNG(3), backend)
	labels := labelsFor(backend, 4, 5)
	rec, post := model.Reconstruct(images, labels, tensor.Zeros(tensor.Shape{2, 3}, backend))
	gen := model.Generate(post.Mu, labels)
	assert.Equal(t, rec.Data(), gen.Data())
}

func TestModelSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "000_model.born")
	src := NewModel(ModelConfig{LatentDim: 2}, newRNG(1), cpu.New())
	require.NoError(t, src.Save(path, &nn.Checkpoint{Step: 3, Loss: 9.5}))

	dst := NewModel(ModelConfig{LatentDim: 2}, newRNG(2), cpu.New())
	ckpt, err := dst.Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(3), ckpt.Step)
	assert.Equal(t, "cVAE_MNIST", ckpt.ModelType)
	assert.Equal(t, "2", ckpt.Metadata["latent_dim"])

	for i, g := range src.Groups() {
		for key, raw := range g.StateDict() {
			assert.Equal(t, raw.Data(), dst.Groups()[i].StateDict()[key].Data(), key)
		}
	}

	other := NewModel(ModelConfig{LatentDim: 4}, newRNG(3), cpu.New())
	_, err = other.Load(path)
	assert.ErrorContains(t, err, "shape mismatch")
}

func TestLoadModelReadsConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.born")
	src := NewModel(ModelConfig{NetworkType: "digits", LatentDim: 3}, newRNG(1), cpu.New())
	require.NoError(t, src.Save(path, &nn.Checkpoint{Step: 12}))

	m, ckpt, err := LoadModel(path, newRNG(9), cpu.New())
	require.NoError(t, err)
	assert.Equal(t, ModelConfig{NetworkType: "digits", LatentDim: 3}, m.Config())
	assert.Equal(t, int64(12), ckpt.Step)
	assert.Equal(t, "digits_vaeD", m.Groups()[1].Name())

	_, _, err = LoadModel(filepath.Join(t.TempDir(), "missing.born"), newRNG(9), cpu.New())
	assert.Error(t, err)
}
