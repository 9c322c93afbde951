package train

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/born-ml/cvae/internal/cvae"
	"github.com/born-ml/cvae/internal/nn"
	"github.com/born-ml/cvae/internal/tensor"
	"github.com/born-ml/cvae/internal/vis"
	"github.com/google/uuid"
)

// CheckpointWriter persists the model after an improving evaluation.
type CheckpointWriter interface {
	WriteCheckpoint(iter int, testLoss cvae.Loss) error
}

// SampleWriter persists the fixed visualization samples, [side², 28, 28, 1].
type SampleWriter interface {
	WriteSamples(iter int, images *tensor.RawTensor) error
}

// DefaultMaxToKeep is the number of checkpoints a Saver retains.
const DefaultMaxToKeep = 100

// CheckpointName is the file name of the checkpoint taken at iter.
func CheckpointName(iter int) string {
	return fmt.Sprintf("%03d_model.born", iter)
}

// SampleName is the file name of the sample grid rendered at iter.
func SampleName(iter int) string {
	return fmt.Sprintf("Iter_%d.jpg", iter)
}

// SaverOptions configures a Saver.
type SaverOptions struct {
	MaxToKeep       int             // 0 keeps every checkpoint
	Precision       tensor.DataType // payload encoding
	RunID           string          // generated when empty
	Producer        string
	Hyperparameters *Hyperparameters
}

// Saver writes model checkpoints into a directory and removes the oldest
// ones it wrote once more than MaxToKeep exist.
type Saver[B tensor.Backend] struct {
	model *cvae.Model[B]
	dir   string
	opts  SaverOptions
	kept  []string
}

// NewSaver creates a Saver for model writing into dir.
func NewSaver[B tensor.Backend](model *cvae.Model[B], dir string, opts SaverOptions) *Saver[B] {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	return &Saver[B]{model: model, dir: dir, opts: opts}
}

// RunID returns the identifier stamped into every checkpoint.
func (s *Saver[B]) RunID() string {
	return s.opts.RunID
}

// Kept returns the paths of the retained checkpoints, oldest first.
func (s *Saver[B]) Kept() []string {
	return append([]string(nil), s.kept...)
}

// WriteCheckpoint saves the model as CheckpointName(iter).
func (s *Saver[B]) WriteCheckpoint(iter int, testLoss cvae.Loss) error {
	path := filepath.Join(s.dir, CheckpointName(iter))
	var trainingMeta map[string]any
	if s.opts.Hyperparameters != nil {
		var err error
		if trainingMeta, err = s.opts.Hyperparameters.Meta(); err != nil {
			return err
		}
	}
	ckpt := &nn.Checkpoint{
		Step:      int64(iter),
		Loss:      float64(testLoss.Total),
		RunID:     s.opts.RunID,
		Producer:  s.opts.Producer,
		Precision: s.opts.Precision,
		Metadata: map[string]string{
			"reconstruction": strconv.FormatFloat(float64(testLoss.Reconstruction), 'g', -1, 32),
			"kl":             strconv.FormatFloat(float64(testLoss.KL), 'g', -1, 32),
		},
		TrainingMeta: trainingMeta,
	}
	if err := s.model.Save(path, ckpt); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	s.kept = append(s.kept, path)
	for s.opts.MaxToKeep > 0 && len(s.kept) > s.opts.MaxToKeep {
		if err := os.Remove(s.kept[0]); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove old checkpoint: %w", err)
		}
		s.kept = s.kept[1:]
	}
	return nil
}

// GridWriter renders sample grids as SampleName(iter) into a directory.
type GridWriter struct {
	dir  string
	opts vis.Options
}

// NewGridWriter creates a GridWriter writing into dir.
func NewGridWriter(dir string, opts vis.Options) *GridWriter {
	return &GridWriter{dir: dir, opts: opts}
}

// WriteSamples implements SampleWriter. The grid is square.
func (g *GridWriter) WriteSamples(iter int, images *tensor.RawTensor) error {
	side := int(math.Round(math.Sqrt(float64(images.Shape()[0]))))
	return vis.SaveGrid(filepath.Join(g.dir, SampleName(iter)), images, side, g.opts)
}
