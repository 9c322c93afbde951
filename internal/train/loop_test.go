package train

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/cvae/internal/autodiff"
	"github.com/born-ml/cvae/internal/backend/cpu"
	"github.com/born-ml/cvae/internal/cvae"
	"github.com/born-ml/cvae/internal/data"
	"github.com/born-ml/cvae/internal/logutil"
	"github.com/born-ml/cvae/internal/nn"
	"github.com/born-ml/cvae/internal/tensor"
	"github.com/born-ml/cvae/internal/vis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

type recordingWriter struct {
	checkpoints []int
	samples     []int
	shapes      []tensor.Shape
	failAt      int
}

func (w *recordingWriter) WriteCheckpoint(iter int, _ cvae.Loss) error {
	if iter == w.failAt {
		return errors.New("disk full")
	}
	w.checkpoints = append(w.checkpoints, iter)
	return nil
}

func (w *recordingWriter) WriteSamples(iter int, images *tensor.RawTensor) error {
	w.samples = append(w.samples, iter)
	w.shapes = append(w.shapes, images.Shape())
	return nil
}

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// fixture builds a trainer over 4 synthetic training and 2 test digits.
func fixture(t *testing.T) (*cvae.Trainer[Backend], *data.Datasets) {
	t.Helper()
	backend := autodiff.New(cpu.New())
	model := cvae.NewModel(cvae.ModelConfig{LatentDim: 2}, newRNG(1), backend)
	ds, err := data.Synthetic(newRNG(2), 4, 2)
	require.NoError(t, err)
	return cvae.NewTrainer(model, 1e-3), ds
}

func smallSchedule(t *testing.T) Schedule {
	t.Helper()
	// 2 iterations per epoch, 2 epochs, evaluation every iteration.
	s, err := NewSchedule(4, 2, 2, 2, 2, 0)
	require.NoError(t, err)
	require.Equal(t, 4, s.MaxIter)
	require.Equal(t, 1, s.TestInterval)
	return s
}

// improvements returns the iterations at which the test loss strictly
// improved on every earlier evaluation.
func improvements(h *History, interval int) []int {
	var out []int
	best := math.Inf(1)
	for i, l := range h.Test {
		if float64(l.Total) < best {
			best = float64(l.Total)
			out = append(out, i*interval)
		}
	}
	return out
}

func TestLoopWritesOncePerImprovement(t *testing.T) {
	trainer, ds := fixture(t)
	s := smallSchedule(t)
	w := &recordingWriter{failAt: -1}

	var logs bytes.Buffer
	loop, err := NewLoop(trainer, ds.Train, ds.Test, Config{
		BatchSize:   2,
		Schedule:    s,
		GridSide:    2,
		Checkpoints: w,
		Samples:     w,
		Logger:      logutil.NewLogger(&logs, logutil.LevelTrace),
	}, newRNG(3))
	require.NoError(t, err)

	h, err := loop.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, h.Train, s.MaxIter)
	require.Len(t, h.Test, s.MaxIter/s.TestInterval)
	for _, l := range append(h.Train, h.Test...) {
		assert.False(t, math.IsNaN(float64(l.Total)) || math.IsInf(float64(l.Total), 0))
	}

	want := improvements(h, s.TestInterval)
	require.NotEmpty(t, want)
	assert.Equal(t, 0, want[0])
	assert.Equal(t, want, w.checkpoints)
	assert.Equal(t, want, w.samples)
	assert.Equal(t, want[len(want)-1], h.BestIter)
	for _, shape := range w.shapes {
		assert.Equal(t, tensor.Shape{4, 28, 28, 1}, shape)
	}

	assert.Equal(t, s.MaxIter, trainer.Optimizer().GetTimestep())
	assert.Contains(t, logs.String(), "training finished")
	assert.Contains(t, logs.String(), "level=TRACE")
}

func TestLoopStopsOnWriterError(t *testing.T) {
	trainer, ds := fixture(t)
	w := &recordingWriter{failAt: 0}
	loop, err := NewLoop(trainer, ds.Train, ds.Test, Config{
		BatchSize:   2,
		Schedule:    smallSchedule(t),
		GridSide:    1,
		Checkpoints: w,
		Samples:     w,
	}, newRNG(3))
	require.NoError(t, err)

	h, err := loop.Run(context.Background())
	assert.ErrorContains(t, err, "disk full")
	assert.Empty(t, h.Train)
	assert.Len(t, h.Test, 1)
	assert.Equal(t, 0, trainer.Optimizer().GetTimestep())
}

func TestLoopHonorsCancellation(t *testing.T) {
	trainer, ds := fixture(t)
	loop, err := NewLoop(trainer, ds.Train, ds.Test, Config{BatchSize: 2, Schedule: smallSchedule(t)}, newRNG(3))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h, err := loop.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.Train)
	assert.Empty(t, h.Test)
}

func TestNewLoopValidates(t *testing.T) {
	trainer, ds := fixture(t)
	s := smallSchedule(t)

	_, err := NewLoop(trainer, ds.Train, nil, Config{BatchSize: 2, Schedule: s}, newRNG(1))
	assert.Error(t, err)
	_, err = NewLoop(trainer, ds.Train, ds.Test, Config{BatchSize: 0, Schedule: s}, newRNG(1))
	assert.Error(t, err)
	_, err = NewLoop(trainer, ds.Train, ds.Test, Config{BatchSize: 2}, newRNG(1))
	assert.Error(t, err)
	_, err = NewLoop(trainer, ds.Train, ds.Test, Config{BatchSize: 2, Schedule: s, GridSide: -1}, newRNG(1))
	assert.Error(t, err)
}

func TestSaverRetention(t *testing.T) {
	dir := t.TempDir()
	model := cvae.NewModel(cvae.ModelConfig{}, newRNG(1), cpu.New())
	saver := NewSaver(model, dir, SaverOptions{MaxToKeep: 2, Precision: tensor.Float16, Producer: "test"})
	require.NotEmpty(t, saver.RunID())

	for _, it := range []int{0, 7, 1234} {
		require.NoError(t, saver.WriteCheckpoint(it, cvae.Loss{Total: float32(100 - it), KL: 1.5}))
	}

	assert.Equal(t, []string{
		filepath.Join(dir, "007_model.born"),
		filepath.Join(dir, "1234_model.born"),
	}, saver.Kept())
	_, err := os.Stat(filepath.Join(dir, "000_model.born"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	restored := cvae.NewModel(cvae.ModelConfig{}, newRNG(2), cpu.New())
	ckpt, err := restored.Load(filepath.Join(dir, "007_model.born"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), ckpt.Step)
	assert.InDelta(t, 93, ckpt.Loss, 1e-9)
	assert.Equal(t, saver.RunID(), ckpt.RunID)
	assert.Equal(t, "1.5", ckpt.Metadata["kl"])
	assert.Equal(t, tensor.Float16, ckpt.Precision)
}

func TestSaverKeepsAllWhenUnlimited(t *testing.T) {
	dir := t.TempDir()
	saver := NewSaver(cvae.NewModel(cvae.ModelConfig{}, newRNG(1), cpu.New()), dir,
		SaverOptions{RunID: "run-1"})
	for it := range 3 {
		require.NoError(t, saver.WriteCheckpoint(it, cvae.Loss{}))
	}
	assert.Len(t, saver.Kept(), 3)
	assert.Equal(t, "run-1", saver.RunID())

	_, err := nn.LoadCheckpoint(filepath.Join(dir, CheckpointName(2)))
	assert.NoError(t, err)
}

func TestGridWriter(t *testing.T) {
	dir := t.TempDir()
	w := NewGridWriter(dir, vis.Options{Scale: 1})
	images := tensor.MustNewRaw(tensor.Shape{9, 28, 28, 1}, tensor.CPU)
	require.NoError(t, w.WriteSamples(42, images))

	info, err := os.Stat(filepath.Join(dir, "Iter_42.jpg"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Error(t, w.WriteSamples(1, tensor.MustNewRaw(tensor.Shape{5, 28, 28, 1}, tensor.CPU)))
}
