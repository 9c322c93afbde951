package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/born-ml/cvae/internal/autodiff"
	"github.com/born-ml/cvae/internal/backend/cpu"
	"github.com/born-ml/cvae/internal/config"
	"github.com/born-ml/cvae/internal/cvae"
	"github.com/born-ml/cvae/internal/data"
	"github.com/born-ml/cvae/internal/logutil"
	"github.com/born-ml/cvae/internal/train"
	"github.com/born-ml/cvae/internal/vis"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// Sizes of the generated dataset used with --synthetic.
const (
	syntheticTrain = 2048
	syntheticTest  = 512
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model, saving checkpoints and sample grids on every test improvement",
		Args:  cobra.NoArgs,
		RunE:  trainHandler,
	}
	cmd.SetUsageTemplate(cmd.UsageTemplate() + envHelp())

	def := config.Default()
	f := cmd.Flags()
	f.StringP("config", "c", "", "YAML configuration file")
	f.String("network-type", def.NetworkType, "Network name, prefix of the experiment directory and parameter groups")
	f.Float64("lr", def.LearningRate, "Adam learning rate")
	f.Int("batch-size", def.BatchSize, "Minibatch size")
	f.Int("epochs", def.Epochs, "Number of epochs")
	f.Int("latent-dim", def.LatentDim, "Latent code size")
	f.Uint64("seed", def.Seed, "Random seed for weights, shuffling and noise")
	f.String("data-dir", def.DataDir, "Directory holding the MNIST IDX files")
	f.String("expr-dir", def.ExprDir, "Root directory for run outputs")
	f.Bool("synthetic", false, "Train on generated digits instead of MNIST")
	f.Int("tests-per-epoch", def.TestsPerEpoch, "Evaluations per epoch")
	f.Int("display-interval", def.DisplayInterval, "Iterations between training loss reports (0 = automatic)")
	f.Int("max-to-keep", def.MaxToKeep, "Checkpoints to retain (0 = all)")
	f.Int("vis-scale", def.VisScale, "Upscaling factor of sample grids")
	f.String("precision", def.CheckpointPrecision, "Checkpoint payload: float32, float16 or bfloat16")
	f.String("restore", "", "Checkpoint to initialize the model from")
	return cmd
}

// loadConfig merges defaults, the config file, the environment and the
// flags set on the command line, in that order.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	f := cmd.Flags()
	cfg := config.Default()
	if path, _ := f.GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	var err error
	set := func(name string, apply func() error) {
		if err == nil && f.Changed(name) {
			err = apply()
		}
	}
	set("network-type", func() (e error) { cfg.NetworkType, e = f.GetString("network-type"); return })
	set("lr", func() (e error) { cfg.LearningRate, e = f.GetFloat64("lr"); return })
	set("batch-size", func() (e error) { cfg.BatchSize, e = f.GetInt("batch-size"); return })
	set("epochs", func() (e error) { cfg.Epochs, e = f.GetInt("epochs"); return })
	set("latent-dim", func() (e error) { cfg.LatentDim, e = f.GetInt("latent-dim"); return })
	set("seed", func() (e error) { cfg.Seed, e = f.GetUint64("seed"); return })
	set("data-dir", func() (e error) { cfg.DataDir, e = f.GetString("data-dir"); return })
	set("expr-dir", func() (e error) { cfg.ExprDir, e = f.GetString("expr-dir"); return })
	set("synthetic", func() (e error) { cfg.Synthetic, e = f.GetBool("synthetic"); return })
	set("tests-per-epoch", func() (e error) { cfg.TestsPerEpoch, e = f.GetInt("tests-per-epoch"); return })
	set("display-interval", func() (e error) { cfg.DisplayInterval, e = f.GetInt("display-interval"); return })
	set("max-to-keep", func() (e error) { cfg.MaxToKeep, e = f.GetInt("max-to-keep"); return })
	set("vis-scale", func() (e error) { cfg.VisScale, e = f.GetInt("vis-scale"); return })
	set("precision", func() (e error) { cfg.CheckpointPrecision, e = f.GetString("precision"); return })
	set("verbose", func() (e error) { cfg.Debug, e = f.GetBool("verbose"); return })
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// newLogger builds the process logger from --log-level, falling back to
// debug when cfg.Debug is set.
func newLogger(cmd *cobra.Command, w io.Writer, debug bool) (*slog.Logger, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	if name, _ := cmd.Flags().GetString("log-level"); name != "" {
		var err error
		if level, err = logutil.ParseLevel(name); err != nil {
			return nil, err
		}
	}
	logger := logutil.NewLogger(w, level)
	slog.SetDefault(logger)
	return logger, nil
}

func trainHandler(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cmd.ErrOrStderr(), cfg.Debug)
	if err != nil {
		return err
	}
	precision, err := cfg.Precision()
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	ds, err := loadData(cfg, rng)
	if err != nil {
		return err
	}

	backend := autodiff.New(cpu.New())
	model := cvae.NewModel(cvae.ModelConfig{NetworkType: cfg.NetworkType, LatentDim: cfg.LatentDim}, rng, backend)
	if path, _ := cmd.Flags().GetString("restore"); path != "" {
		ckpt, err := model.Load(path)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		logger.Info("restored checkpoint", "path", path, "iter", ckpt.Step, "loss", ckpt.Loss, "run_id", ckpt.RunID)
		if prev, err := train.ParseHyperparameters(ckpt.TrainingMeta); err != nil {
			logger.Warn("unreadable hyperparameters in checkpoint", "error", err)
		} else if prev.LearningRate != 0 && prev.LearningRate != cfg.LearningRate {
			logger.Warn("learning rate differs from restored run", "restored", prev.LearningRate, "current", cfg.LearningRate)
		}
	}
	trainer := cvae.NewTrainer(model, float32(cfg.LearningRate))

	schedule, err := train.NewSchedule(ds.Train.NumExamples(), ds.Test.NumExamples(),
		cfg.BatchSize, cfg.Epochs, cfg.TestsPerEpoch, cfg.DisplayInterval)
	if err != nil {
		return err
	}

	workDir := cfg.WorkDir(time.Now())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	if err := cfg.Write(filepath.Join(workDir, "config.yaml")); err != nil {
		return err
	}

	runID := uuid.NewString()
	saver := train.NewSaver(model, workDir, train.SaverOptions{
		MaxToKeep: cfg.MaxToKeep,
		Precision: precision,
		RunID:     runID,
		Producer:  "cvae " + version,
		Hyperparameters: &train.Hyperparameters{
			LearningRate: cfg.LearningRate,
			BatchSize:    cfg.BatchSize,
			Epochs:       cfg.Epochs,
			LatentDim:    cfg.LatentDim,
			Seed:         cfg.Seed,
			Synthetic:    cfg.Synthetic,
		},
	})

	printSummary(cmd.OutOrStdout(), cfg, schedule, model.NumParameters(), workDir, runID)

	loop, err := train.NewLoop(trainer, ds.Train, ds.Test, train.Config{
		BatchSize:   cfg.BatchSize,
		Schedule:    schedule,
		Checkpoints: saver,
		Samples:     train.NewGridWriter(workDir, vis.Options{Scale: cfg.VisScale}),
		Logger:      logger.With("run_id", runID),
	}, rng)
	if err != nil {
		return err
	}

	history, err := loop.Run(cmd.Context())
	if errors.Is(err, context.Canceled) {
		logger.Warn("stopped by signal", "completed_iters", len(history.Train))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "best test loss %.4f at iteration %d\n", history.Best, history.BestIter)
	return nil
}

func loadData(cfg config.Config, rng *rand.Rand) (*data.Datasets, error) {
	if cfg.Synthetic {
		return data.Synthetic(rng, syntheticTrain, syntheticTest)
	}
	ds, err := data.LoadMNIST(cfg.DataDir, rng)
	if err != nil {
		return nil, fmt.Errorf("%w (use --synthetic to train on generated digits)", err)
	}
	return ds, nil
}

func printSummary(w io.Writer, cfg config.Config, s train.Schedule, params int, workDir, runID string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"SETTING", "VALUE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.AppendBulk([][]string{
		{"network", cfg.NetworkType},
		{"run id", runID},
		{"work dir", workDir},
		{"parameters", fmt.Sprint(params)},
		{"latent dim", fmt.Sprint(cfg.LatentDim)},
		{"learning rate", fmt.Sprint(cfg.LearningRate)},
		{"batch size", fmt.Sprint(cfg.BatchSize)},
		{"epochs", fmt.Sprint(cfg.Epochs)},
		{"iterations", fmt.Sprint(s.MaxIter)},
		{"test interval", fmt.Sprint(s.TestInterval)},
		{"test batches", fmt.Sprint(s.TestIter)},
		{"checkpoint precision", cfg.CheckpointPrecision},
	})
	table.Render()
}
