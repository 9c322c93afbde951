package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/born-ml/cvae/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "cVAE_MNIST", cfg.NetworkType)
	assert.Equal(t, 1e-5, cfg.LearningRate)
	assert.Equal(t, 128, cfg.BatchSize)
	assert.Equal(t, 60, cfg.Epochs)
	assert.Equal(t, 2, cfg.LatentDim)
	assert.Equal(t, 1, cfg.TestsPerEpoch)
	assert.Equal(t, 100, cfg.MaxToKeep)
	require.NoError(t, cfg.Validate())

	p, err := cfg.Precision()
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, p)
}

func TestLoadOverridesOnlyGivenKeys(t *testing.T) {
	path := writeFile(t, `
batch_size: 64
latent_dim: 8
checkpoint_precision: float16
synthetic: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.BatchSize)
	assert.Equal(t, 8, cfg.LatentDim)
	assert.True(t, cfg.Synthetic)
	assert.Equal(t, 60, cfg.Epochs)
	assert.Equal(t, "cVAE_MNIST", cfg.NetworkType)

	p, err := cfg.Precision()
	require.NoError(t, err)
	assert.Equal(t, tensor.Float16, p)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "batch_sise: 3\n"))
	assert.ErrorContains(t, err, "batch_sise")

	_, err = Load(writeFile(t, "epochs: many\n"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CVAE_DATA_DIR", " /mnt/mnist ")
	t.Setenv("CVAE_EXPR_DIR", `"/tmp/runs"`)
	t.Setenv("CVAE_DEBUG", "1")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "/mnt/mnist", cfg.DataDir)
	assert.Equal(t, "/tmp/runs", cfg.ExprDir)
	assert.True(t, cfg.Debug)

	t.Setenv("CVAE_DEBUG", "maybe")
	assert.Error(t, cfg.ApplyEnv())
}

func TestApplyEnvUnsetKeepsValues(t *testing.T) {
	t.Setenv("CVAE_DATA_DIR", "")
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, Default().DataDir, cfg.DataDir)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"EmptyNetworkType", func(c *Config) { c.NetworkType = "" }, "network_type"},
		{"SlashNetworkType", func(c *Config) { c.NetworkType = "a/b" }, "network_type"},
		{"LearningRate", func(c *Config) { c.LearningRate = 0 }, "learning_rate"},
		{"BatchSize", func(c *Config) { c.BatchSize = -1 }, "batch_size"},
		{"Epochs", func(c *Config) { c.Epochs = 0 }, "epochs"},
		{"LatentDim", func(c *Config) { c.LatentDim = 0 }, "latent_dim"},
		{"TestsPerEpoch", func(c *Config) { c.TestsPerEpoch = 0 }, "tests_per_epoch"},
		{"DisplayInterval", func(c *Config) { c.DisplayInterval = -2 }, "display_interval"},
		{"MaxToKeep", func(c *Config) { c.MaxToKeep = -1 }, "max_to_keep"},
		{"VisScale", func(c *Config) { c.VisScale = 0 }, "vis_scale"},
		{"DataDir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"Precision", func(c *Config) { c.CheckpointPrecision = "int8" }, "checkpoint_precision"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.ErrorContains(t, err, tt.field)
		})
	}

	cfg := Default()
	cfg.DataDir = ""
	cfg.Synthetic = true
	assert.NoError(t, cfg.Validate())
}

func TestWorkDir(t *testing.T) {
	cfg := Default()
	cfg.ExprDir = "/runs"
	day := time.Date(2024, time.March, 7, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, filepath.Join("/runs", "cVAE_MNIST", "20240307"), cfg.WorkDir(day))
}

func TestEnvVarsDocumented(t *testing.T) {
	names := make([]string, 0)
	for _, v := range EnvVars() {
		names = append(names, v.Name)
		assert.NotEmpty(t, v.Description)
	}
	assert.ElementsMatch(t, []string{"CVAE_DATA_DIR", "CVAE_EXPR_DIR", "CVAE_DEBUG"}, names)
}

func TestWriteLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.LatentDim = 16
	cfg.Synthetic = true
	cfg.CheckpointPrecision = "float16"

	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, cfg.Write(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
