// Package parallel provides bounded parallel loops for CPU kernels.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Maximum number of concurrent goroutines.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns defaults for cheap per-item work (element-wise loops).
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64, // Typical cache line aware chunk.
	}
}

// CoarseConfig returns defaults for expensive per-item work such as one
// (sample, channel) plane of a convolution.
func CoarseConfig() Config {
	cfg := DefaultConfig()
	cfg.MinChunkSize = 1
	return cfg
}

// For executes f(i) for i in [0, n).
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers < 2 || n < 2*max(cfg.MinChunkSize, 1) {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)

	var g errgroup.Group
	g.SetLimit(cfg.NumWorkers)
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				f(i)
			}
			return nil
		})
	}
	_ = g.Wait() // workers never fail
}

// ForBatch iterates over every (batch, channel) pair.
// Common in CNN operations like Conv2D.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	For(batch*channels, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
