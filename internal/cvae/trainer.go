package cvae

import (
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/cvae/internal/autodiff"
	"github.com/born-ml/cvae/internal/data"
	"github.com/born-ml/cvae/internal/optim"
	"github.com/born-ml/cvae/internal/tensor"
)

// Default optimizer settings.
const (
	DefaultLearningRate = 1e-5
	AdamBeta1           = 0.9
	AdamBeta2           = 0.999
	AdamEps             = 1e-8
)

// ErrNonFiniteLoss is returned by Step when the loss is NaN or infinite.
// The parameters and batch norm running statistics are left untouched in
// that case.
var ErrNonFiniteLoss = errors.New("cvae: non-finite loss")

// Trainer runs optimization steps and evaluations of a Model.
//
// B must be an autodiff backend; the trainer owns its tape for the duration
// of each call.
type Trainer[B autodiff.BackwardCapable] struct {
	model     *Model[B]
	optimizer *optim.Adam[B]
	backend   B
}

// NewTrainer creates a trainer with Adam over the encoder and decoder groups.
// A zero learningRate selects DefaultLearningRate.
func NewTrainer[B autodiff.BackwardCapable](model *Model[B], learningRate float32) *Trainer[B] {
	if learningRate == 0 {
		learningRate = DefaultLearningRate
	}
	opt := optim.NewAdam(model.Parameters(), optim.AdamConfig{
		LR:    learningRate,
		Betas: [2]float32{AdamBeta1, AdamBeta2},
		Eps:   AdamEps,
	}, model.Backend())
	return &Trainer[B]{
		model:     model,
		optimizer: opt,
		backend:   model.Backend(),
	}
}

// Model returns the trained model.
func (t *Trainer[B]) Model() *Model[B] {
	return t.model
}

// Optimizer returns the optimizer.
func (t *Trainer[B]) Optimizer() *optim.Adam[B] {
	return t.optimizer
}

// Step performs one training step on batch with noise eps [n, LatentDim]
// and returns the loss measured before the update.
func (t *Trainer[B]) Step(batch *data.Batch, eps *tensor.Tensor[B]) (Loss, error) {
	images, labels, err := t.inputs(batch, eps)
	if err != nil {
		return Loss{}, err
	}

	tape := t.backend.GetTape()
	tape.Clear()
	tape.StartRecording()
	defer func() {
		tape.StopRecording()
		tape.Clear()
	}()

	t.model.SetTraining(true)
	restore := t.model.snapshotBuffers()
	terms := t.model.Loss(images, labels, eps)
	loss := terms.Values()
	if !isFinite(loss.Total) {
		restore()
		return loss, ErrNonFiniteLoss
	}

	grads := autodiff.Backward(terms.Total, t.backend)
	t.optimizer.Step(grads)
	t.optimizer.ZeroGrad()
	return loss, nil
}

// Evaluate computes the loss of batch in inference mode. Nothing is
// recorded and no parameter or running statistic changes.
func (t *Trainer[B]) Evaluate(batch *data.Batch, eps *tensor.Tensor[B]) (Loss, error) {
	images, labels, err := t.inputs(batch, eps)
	if err != nil {
		return Loss{}, err
	}
	defer t.inference()()

	return t.model.Loss(images, labels, eps).Values(), nil
}

// Generate decodes z for labels in inference mode and returns [N,28,28,1].
func (t *Trainer[B]) Generate(z, labels *tensor.Tensor[B]) *tensor.RawTensor {
	defer t.inference()()
	return t.model.Generate(z, labels).Raw()
}

// inference switches to eval mode with recording off and returns the
// function restoring training mode.
func (t *Trainer[B]) inference() func() {
	tape := t.backend.GetTape()
	tape.StopRecording()
	t.model.SetTraining(false)
	return func() {
		t.model.SetTraining(true)
	}
}

func (t *Trainer[B]) inputs(batch *data.Batch, eps *tensor.Tensor[B]) (images, labels *tensor.Tensor[B], err error) {
	if batch == nil || batch.Images == nil || batch.Labels == nil {
		return nil, nil, errors.New("cvae: empty batch")
	}
	n := batch.Images.Shape()[0]
	if s := batch.Labels.Shape(); len(s) != 2 || s[0] != n || s[1] != NumClasses {
		return nil, nil, fmt.Errorf("cvae: labels shape %v does not match %d images", s, n)
	}
	want := tensor.Shape{n, t.model.Config().LatentDim}
	if !eps.Shape().Equal(want) {
		return nil, nil, fmt.Errorf("cvae: noise shape %v, want %v", eps.Shape(), want)
	}
	return tensor.New(batch.Images, t.backend), tensor.New(batch.Labels, t.backend), nil
}

func isFinite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}
