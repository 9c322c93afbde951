// Package config holds the training configuration: defaults, YAML files and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/born-ml/cvae/internal/tensor"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete set of training options.
type Config struct {
	NetworkType  string  `yaml:"network_type"`
	LearningRate float64 `yaml:"learning_rate"`
	BatchSize    int     `yaml:"batch_size"`
	Epochs       int     `yaml:"epochs"`
	LatentDim    int     `yaml:"latent_dim"`
	Seed         uint64  `yaml:"seed"`

	DataDir   string `yaml:"data_dir"`
	ExprDir   string `yaml:"expr_dir"`
	Synthetic bool   `yaml:"synthetic"`

	TestsPerEpoch   int `yaml:"tests_per_epoch"`
	DisplayInterval int `yaml:"display_interval"`

	MaxToKeep           int    `yaml:"max_to_keep"`
	CheckpointPrecision string `yaml:"checkpoint_precision"`
	VisScale            int    `yaml:"vis_scale"`

	Debug bool `yaml:"debug"`
}

// Default returns the configuration of the reference MNIST run.
func Default() Config {
	return Config{
		NetworkType:         "cVAE_MNIST",
		LearningRate:        1e-5,
		BatchSize:           128,
		Epochs:              60,
		LatentDim:           2,
		Seed:                1,
		DataDir:             "data/mnist",
		ExprDir:             "expr",
		TestsPerEpoch:       1,
		MaxToKeep:           100,
		CheckpointPrecision: tensor.Float32.String(),
		VisScale:            2,
	}
}

// Load reads a YAML file on top of Default. Keys absent from the file keep
// their default values; unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// EnvVar describes one environment override.
type EnvVar struct {
	Name        string
	Description string
}

// EnvVars lists the environment variables ApplyEnv reads.
func EnvVars() []EnvVar {
	return []EnvVar{
		{"CVAE_DATA_DIR", "Directory holding the MNIST IDX files"},
		{"CVAE_EXPR_DIR", "Root directory for checkpoints and sample grids"},
		{"CVAE_DEBUG", "Show debug logging (e.g. CVAE_DEBUG=1)"},
	}
}

// ApplyEnv overrides fields from CVAE_* variables that are set and non-empty.
func (c *Config) ApplyEnv() error {
	if v := clean(os.Getenv("CVAE_DATA_DIR")); v != "" {
		c.DataDir = v
	}
	if v := clean(os.Getenv("CVAE_EXPR_DIR")); v != "" {
		c.ExprDir = v
	}
	if v := clean(os.Getenv("CVAE_DEBUG")); v != "" {
		d, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CVAE_DEBUG: %w", err)
		}
		c.Debug = d
	}
	return nil
}

// clean strips whitespace and surrounding quotes.
func clean(s string) string {
	return strings.Trim(strings.TrimSpace(s), "\"'")
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.NetworkType == "" || strings.ContainsAny(c.NetworkType, `/\`):
		return invalid("network_type", c.NetworkType)
	case c.LearningRate <= 0:
		return invalid("learning_rate", c.LearningRate)
	case c.BatchSize <= 0:
		return invalid("batch_size", c.BatchSize)
	case c.Epochs <= 0:
		return invalid("epochs", c.Epochs)
	case c.LatentDim <= 0:
		return invalid("latent_dim", c.LatentDim)
	case c.TestsPerEpoch <= 0:
		return invalid("tests_per_epoch", c.TestsPerEpoch)
	case c.DisplayInterval < 0:
		return invalid("display_interval", c.DisplayInterval)
	case c.MaxToKeep < 0:
		return invalid("max_to_keep", c.MaxToKeep)
	case c.VisScale <= 0:
		return invalid("vis_scale", c.VisScale)
	case !c.Synthetic && c.DataDir == "":
		return invalid("data_dir", c.DataDir)
	}
	if _, err := c.Precision(); err != nil {
		return fmt.Errorf("%w: checkpoint_precision: %v", ErrInvalidConfig, err)
	}
	return nil
}

func invalid(field string, value any) error {
	return fmt.Errorf("%w: %s = %v", ErrInvalidConfig, field, value)
}

// Precision returns the checkpoint payload type.
func (c Config) Precision() (tensor.DataType, error) {
	return tensor.ParseDataType(c.CheckpointPrecision)
}

// WorkDir returns <expr_dir>/<network_type>/<YYYYMMDD> for the given day.
func (c Config) WorkDir(now time.Time) string {
	return filepath.Join(c.ExprDir, c.NetworkType, now.Format("20060102"))
}

// Write stores c as YAML at path.
func (c Config) Write(path string) error {
	out, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
