// Package train drives a cvae.Trainer through a fixed schedule of training
// steps and periodic evaluations, keeping the best model on disk.
package train

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/born-ml/cvae/internal/autodiff"
	"github.com/born-ml/cvae/internal/cvae"
	"github.com/born-ml/cvae/internal/data"
	"github.com/born-ml/cvae/internal/logutil"
	"github.com/born-ml/cvae/internal/tensor"
	"github.com/born-ml/cvae/internal/vis"
)

// History records every loss the loop measured.
type History struct {
	Train    []cvae.Loss // one per iteration
	Test     []cvae.Loss // one per evaluation, iteration = index * TestInterval
	Best     float64     // lowest test loss, +Inf before the first evaluation
	BestIter int         // iteration of Best, -1 before the first evaluation
}

// Config holds the loop settings. Checkpoints, Samples and Logger are optional.
type Config struct {
	BatchSize   int
	Schedule    Schedule
	GridSide    int // visualization grid is GridSide×GridSide; 0 means vis.GridSide
	Checkpoints CheckpointWriter
	Samples     SampleWriter
	Logger      *slog.Logger
}

// Loop runs training for a schedule.
type Loop[B autodiff.BackwardCapable] struct {
	trainer *cvae.Trainer[B]
	train   data.Source
	test    data.Source
	cfg     Config
	rng     *rand.Rand
	logger  *slog.Logger

	visZ      *tensor.Tensor[B]
	visLabels *tensor.Tensor[B]
}

// NewLoop creates a loop over the train and test sources. rng drives the
// per-iteration noise and the fixed visualization pair.
func NewLoop[B autodiff.BackwardCapable](trainer *cvae.Trainer[B], train, test data.Source, cfg Config, rng *rand.Rand) (*Loop[B], error) {
	if trainer == nil || train == nil || test == nil || rng == nil {
		return nil, errors.New("train: trainer, sources and rng are required")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("train: invalid batch size %d", cfg.BatchSize)
	}
	if cfg.Schedule.TestInterval <= 0 || cfg.Schedule.DisplayInterval <= 0 || cfg.Schedule.TestIter <= 0 {
		return nil, fmt.Errorf("train: incomplete schedule %+v", cfg.Schedule)
	}
	if cfg.GridSide < 0 {
		return nil, fmt.Errorf("train: invalid grid side %d", cfg.GridSide)
	}
	if cfg.GridSide == 0 {
		cfg.GridSide = vis.GridSide
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loop[B]{trainer: trainer, train: train, test: test, cfg: cfg, rng: rng, logger: logger}, nil
}

// Run executes the schedule. It returns early with ctx.Err() when ctx is
// done between iterations, and on the first training or I/O error. The
// history gathered so far is returned in every case.
func (l *Loop[B]) Run(ctx context.Context) (*History, error) {
	s := l.cfg.Schedule
	model := l.trainer.Model()
	latent := model.Config().LatentDim
	l.drawVisualizationPair()

	h := &History{
		Train:    make([]cvae.Loss, 0, s.MaxIter),
		Test:     make([]cvae.Loss, 0, s.MaxIter/s.TestInterval+1),
		Best:     math.Inf(1),
		BestIter: -1,
	}
	l.logger.Info("training started", "max_iter", s.MaxIter, "iters_per_epoch", s.ItersPerEpoch,
		"test_interval", s.TestInterval, "test_iter", s.TestIter, "batch_size", l.cfg.BatchSize)

	for it := 0; it < s.MaxIter; it++ {
		if err := ctx.Err(); err != nil {
			l.logger.Warn("training interrupted", "iter", it)
			return h, err
		}
		eps := cvae.SampleNoise(l.rng, l.cfg.BatchSize, latent, model.Backend())

		if s.IsTest(it) {
			loss, err := l.evaluate(eps)
			if err != nil {
				return h, fmt.Errorf("evaluate at iteration %d: %w", it, err)
			}
			h.Test = append(h.Test, loss)
			l.logger.Info("test", "iter", it, "epoch", fmt.Sprintf("%.2f", s.Epoch(it)), "loss", loss.Total)
			l.logger.Debug("test breakdown", "iter", it, "reconstruction", loss.Reconstruction, "kl", loss.KL)

			if float64(loss.Total) < h.Best {
				h.Best, h.BestIter = float64(loss.Total), it
				if err := l.improved(it, loss); err != nil {
					return h, err
				}
			}
		}

		batch, err := l.train.NextBatch(l.cfg.BatchSize)
		if err != nil {
			return h, fmt.Errorf("training batch at iteration %d: %w", it, err)
		}
		loss, err := l.trainer.Step(batch, eps)
		if err != nil {
			return h, fmt.Errorf("iteration %d: %w", it, err)
		}
		h.Train = append(h.Train, loss)

		if s.IsDisplay(it) {
			l.logger.Info("train", "iter", it, "loss", loss.Total)
			l.logger.Debug("train breakdown", "iter", it, "reconstruction", loss.Reconstruction, "kl", loss.KL)
		}
		logutil.Trace(l.logger, "step", "iter", it, "adam_t", l.trainer.Optimizer().GetTimestep())
	}

	l.logger.Info("training finished", "best_loss", h.Best, "best_iter", h.BestIter)
	return h, nil
}

// evaluate averages TestIter test batches under the shared noise eps.
func (l *Loop[B]) evaluate(eps *tensor.Tensor[B]) (cvae.Loss, error) {
	var sum cvae.Loss
	for range l.cfg.Schedule.TestIter {
		batch, err := l.test.NextBatch(l.cfg.BatchSize)
		if err != nil {
			return cvae.Loss{}, err
		}
		loss, err := l.trainer.Evaluate(batch, eps)
		if err != nil {
			return cvae.Loss{}, err
		}
		sum.Total += loss.Total
		sum.Reconstruction += loss.Reconstruction
		sum.KL += loss.KL
	}
	n := float32(l.cfg.Schedule.TestIter)
	return cvae.Loss{Total: sum.Total / n, Reconstruction: sum.Reconstruction / n, KL: sum.KL / n}, nil
}

// improved writes one sample grid and one checkpoint for iteration it.
func (l *Loop[B]) improved(it int, loss cvae.Loss) error {
	if l.cfg.Samples != nil {
		images := l.trainer.Generate(l.visZ, l.visLabels)
		if err := l.cfg.Samples.WriteSamples(it, images); err != nil {
			return fmt.Errorf("write samples at iteration %d: %w", it, err)
		}
	}
	if l.cfg.Checkpoints != nil {
		if err := l.cfg.Checkpoints.WriteCheckpoint(it, loss); err != nil {
			return fmt.Errorf("write checkpoint at iteration %d: %w", it, err)
		}
	}
	l.logger.Info("new best", "iter", it, "loss", loss.Total)
	return nil
}

// drawVisualizationPair fixes the noise and labels rendered on every
// improvement so that grids are comparable across iterations.
func (l *Loop[B]) drawVisualizationPair() {
	model := l.trainer.Model()
	n := l.cfg.GridSide * l.cfg.GridSide
	classes := make([]int, n)
	for i := range classes {
		classes[i] = l.rng.IntN(data.NumClasses)
	}
	l.visZ = cvae.SampleNoise(l.rng, n, model.Config().LatentDim, model.Backend())
	l.visLabels = tensor.New(data.OneHot(classes), model.Backend())
}
