package train

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Hyperparameters are the training settings stamped into each checkpoint's
// training metadata.
type Hyperparameters struct {
	LearningRate float64 `mapstructure:"learning_rate"`
	BatchSize    int     `mapstructure:"batch_size"`
	Epochs       int     `mapstructure:"epochs"`
	LatentDim    int     `mapstructure:"latent_dim"`
	Seed         uint64  `mapstructure:"seed"`
	Synthetic    bool    `mapstructure:"synthetic"`
}

// Meta flattens h into a checkpoint training-metadata map.
func (h Hyperparameters) Meta() (map[string]any, error) {
	meta := make(map[string]any)
	if err := mapstructure.Decode(h, &meta); err != nil {
		return nil, fmt.Errorf("encode hyperparameters: %w", err)
	}
	return meta, nil
}

// ParseHyperparameters reads the settings back from checkpoint training
// metadata. Numbers arrive as float64 after the JSON round trip and unknown
// keys are ignored.
func ParseHyperparameters(meta map[string]any) (Hyperparameters, error) {
	var h Hyperparameters
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &h,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return h, err
	}
	if err := dec.Decode(meta); err != nil {
		return h, fmt.Errorf("decode hyperparameters: %w", err)
	}
	return h, nil
}
