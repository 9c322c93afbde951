package cvae

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/born-ml/cvae/internal/nn"
	"github.com/born-ml/cvae/internal/serialization"
	"github.com/born-ml/cvae/internal/tensor"
)

// Default model settings.
const (
	DefaultNetworkType = "cVAE_MNIST"
	DefaultLatentDim   = 2
)

// ModelConfig selects the model architecture.
type ModelConfig struct {
	NetworkType string // Prefix of the parameter group names
	LatentDim   int
}

// EncoderGroupName returns the name of the encoder parameter group.
func (c ModelConfig) EncoderGroupName() string {
	return c.NetworkType + "_vaeE"
}

// DecoderGroupName returns the name of the decoder parameter group.
func (c ModelConfig) DecoderGroupName() string {
	return c.NetworkType + "_vaeD"
}

// Model owns one encoder and one decoder.
//
// Reconstruct and Generate share the decoder, so both always see the same
// weights.
type Model[B tensor.Backend] struct {
	config  ModelConfig
	encoder *Encoder[B]
	decoder *Decoder[B]
	backend B
}

// NewModel constructs a model with weights drawn from rng.
func NewModel[B tensor.Backend](config ModelConfig, rng *rand.Rand, backend B) *Model[B] {
	if config.NetworkType == "" {
		config.NetworkType = DefaultNetworkType
	}
	if config.LatentDim == 0 {
		config.LatentDim = DefaultLatentDim
	}
	return &Model[B]{
		config:  config,
		encoder: NewEncoder(config.EncoderGroupName(), config.LatentDim, rng, backend),
		decoder: NewDecoder(config.DecoderGroupName(), config.LatentDim, rng, backend),
		backend: backend,
	}
}

// Config returns the model configuration.
func (m *Model[B]) Config() ModelConfig {
	return m.config
}

// Backend returns the backend the model computes on.
func (m *Model[B]) Backend() B {
	return m.backend
}

// Encoder returns the encoder.
func (m *Model[B]) Encoder() *Encoder[B] {
	return m.encoder
}

// Decoder returns the decoder.
func (m *Model[B]) Decoder() *Decoder[B] {
	return m.decoder
}

// Groups returns [encoder group, decoder group].
func (m *Model[B]) Groups() []*nn.ParameterGroup[B] {
	return []*nn.ParameterGroup[B]{m.encoder.Group(), m.decoder.Group()}
}

// StateDicters returns the groups as checkpoint sources.
func (m *Model[B]) StateDicters() []nn.StateDicter {
	return []nn.StateDicter{m.encoder.Group(), m.decoder.Group()}
}

// Parameters returns the encoder parameters followed by the decoder parameters.
func (m *Model[B]) Parameters() []*nn.Parameter[B] {
	return append(m.encoder.Group().Parameters(), m.decoder.Group().Parameters()...)
}

// NumParameters returns the number of trainable scalars.
func (m *Model[B]) NumParameters() int {
	return m.encoder.Group().NumParameters() + m.decoder.Group().NumParameters()
}

// SetTraining switches batch normalization between batch and running statistics.
func (m *Model[B]) SetTraining(training bool) {
	for _, g := range m.Groups() {
		g.SetTraining(training)
	}
}

// snapshotBuffers copies the non-trainable state of both groups and returns
// the function writing it back.
func (m *Model[B]) snapshotBuffers() func() {
	type saved struct {
		dst  *tensor.RawTensor
		data []float32
	}
	var snap []saved
	for _, g := range m.Groups() {
		for _, raw := range g.Buffers() {
			snap = append(snap, saved{raw, append([]float32(nil), raw.Data()...)})
		}
	}
	return func() {
		for _, s := range snap {
			copy(s.dst.Data(), s.data)
		}
	}
}

// Reconstruct encodes images, samples z with eps and decodes it.
func (m *Model[B]) Reconstruct(images, labels, eps *tensor.Tensor[B]) (*tensor.Tensor[B], Posterior[B]) {
	post := m.encoder.Forward(images, labels)
	z := Reparameterize(post, eps)
	return m.decoder.Forward(z, labels), post
}

// Generate decodes an arbitrary latent z [N, LatentDim] for labels [N, 10].
func (m *Model[B]) Generate(z, labels *tensor.Tensor[B]) *tensor.Tensor[B] {
	return m.decoder.Forward(z, labels)
}

// Loss computes the negative ELBO of a batch for noise eps.
func (m *Model[B]) Loss(images, labels, eps *tensor.Tensor[B]) LossTerms[B] {
	xRec, post := m.Reconstruct(images, labels, eps)
	return ELBOLoss(images, xRec, post)
}

// Save writes both groups to a checkpoint.
func (m *Model[B]) Save(path string, ckpt *nn.Checkpoint) error {
	if ckpt.ModelType == "" {
		ckpt.ModelType = m.config.NetworkType
	}
	if ckpt.Metadata == nil {
		ckpt.Metadata = make(map[string]string)
	}
	ckpt.Metadata["latent_dim"] = fmt.Sprint(m.config.LatentDim)
	return ckpt.Save(path, m.StateDicters()...)
}

// Load restores both groups from a checkpoint written by Save.
func (m *Model[B]) Load(path string) (*nn.Checkpoint, error) {
	return nn.LoadCheckpoint(path, m.StateDicters()...)
}

// LoadModel builds a model whose configuration is read from the checkpoint
// at path and restores its weights.
func LoadModel[B tensor.Backend](path string, rng *rand.Rand, backend B) (*Model[B], *nn.Checkpoint, error) {
	file, err := serialization.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	config := ModelConfig{NetworkType: file.Header.ModelType}
	if v, ok := file.Header.Metadata["latent_dim"]; ok {
		if config.LatentDim, err = strconv.Atoi(v); err != nil || config.LatentDim <= 0 {
			return nil, nil, fmt.Errorf("%s: invalid latent_dim %q", path, v)
		}
	}

	m := NewModel(config, rng, backend)
	ckpt, err := m.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return m, ckpt, nil
}
