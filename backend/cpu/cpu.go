// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/cvae/internal/backend/cpu"
	"github.com/born-ml/cvae/tensor"
)

// Backend is the pure Go CPU backend.
type Backend = internalcpu.CPUBackend

var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend that parallelizes kernels across all CPUs.
func New() *Backend {
	return internalcpu.New()
}
