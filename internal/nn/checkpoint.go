package nn

import (
	"fmt"
	"time"

	"github.com/born-ml/cvae/internal/serialization"
	"github.com/born-ml/cvae/internal/tensor"
)

// Checkpoint is a snapshot of one or more parameter groups.
//
// Only parameters and buffers are stored. Optimizer state is
// absent: restoring a checkpoint starts a fresh Adam.
//
// Example:
//
//	ckpt := &nn.Checkpoint{Step: it, Loss: testLoss, ModelType: "cVAE_MNIST"}
//	err := ckpt.Save("042_model.born", encoder, decoder)
//
// To restore:
//
//	ckpt, err := nn.LoadCheckpoint("042_model.born", encoder, decoder)
type Checkpoint struct {
	Step         int64             // Training iteration
	Loss         float64           // Test loss at this checkpoint
	RunID        string            // Identifier of the training run
	ModelType    string            // Network type, e.g. "cVAE_MNIST"
	Producer     string            // Program version that wrote the file
	Metadata     map[string]string // Free-form string metadata (latent_dim, ...)
	TrainingMeta map[string]any    // Hyperparameters
	Precision    tensor.DataType   // Payload encoding, Float32 unless set
	CreatedAt    time.Time         // Filled on load
}

// Save writes the state of every module into one .born file at path.
//
// State dict keys must be unique across modules; groups guarantee this by
// prefixing their name.
func (c *Checkpoint) Save(path string, modules ...StateDicter) error {
	combined := make(map[string]*tensor.RawTensor)
	for _, m := range modules {
		for name, raw := range m.StateDict() {
			if _, dup := combined[name]; dup {
				return fmt.Errorf("duplicate state dict key %q", name)
			}
			combined[name] = raw
		}
	}

	header := serialization.Header{
		Producer:  c.Producer,
		ModelType: c.ModelType,
		Metadata:  c.Metadata,
		CheckpointMeta: &serialization.CheckpointMeta{
			Step:         c.Step,
			Loss:         c.Loss,
			RunID:        c.RunID,
			TrainingMeta: c.TrainingMeta,
		},
	}

	if err := serialization.WriteFile(path, combined, header, c.Precision); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads path and restores every module from it.
//
// The modules must be constructed with the same architecture as the ones
// that were saved.
func LoadCheckpoint(path string, modules ...StateDicter) (*Checkpoint, error) {
	file, err := serialization.ReadFile(path)
	if err != nil {
		return nil, err
	}
	header := file.Header
	if header.CheckpointMeta == nil {
		return nil, fmt.Errorf("%s: file is not a checkpoint", path)
	}

	for _, m := range modules {
		if err := m.LoadStateDict(file.StateDict); err != nil {
			return nil, fmt.Errorf("failed to load model state: %w", err)
		}
	}

	precision := tensor.Float32
	if len(header.Tensors) > 0 {
		if dt, err := tensor.ParseDataType(header.Tensors[0].DType); err == nil {
			precision = dt
		}
	}

	return &Checkpoint{
		Step:         header.CheckpointMeta.Step,
		Loss:         header.CheckpointMeta.Loss,
		RunID:        header.CheckpointMeta.RunID,
		ModelType:    header.ModelType,
		Producer:     header.Producer,
		Metadata:     header.Metadata,
		TrainingMeta: header.CheckpointMeta.TrainingMeta,
		Precision:    precision,
		CreatedAt:    header.CreatedAt,
	}, nil
}
