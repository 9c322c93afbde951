package serialization

import (
	"time"

	"github.com/born-ml/cvae/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "BORN"
	FormatVersion   = 2    // With SHA-256 checksum
	HeaderAlignment = 64   // Align tensor data to 64 bytes
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
)

// Flags for the .born format.
const (
	FlagHasMetadata   uint32 = 1 << 2 // custom metadata included
	FlagCheckpoint    uint32 = 1 << 3 // training checkpoint
	FlagHalfPrecision uint32 = 1 << 4 // tensor payload stored as float16 or bfloat16
)

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	Producer       string            `json:"producer"`   // Program version that wrote the file
	ModelType      string            `json:"model_type"` // e.g. "cVAE_MNIST"
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata"`
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	Step         int64          `json:"step"`          // Training iteration
	Loss         float64        `json:"loss"`          // Test loss that triggered the save
	RunID        string         `json:"run_id"`        // Identifier of the training run
	TrainingMeta map[string]any `json:"training_meta"` // Hyperparameters and other context
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name   string `json:"name"`   // e.g. "cVAE_MNIST_vaeE/conv1.weight"
	DType  string `json:"dtype"`  // "float32" or "float16"
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Bytes from the start of the data section
	Size   int64  `json:"size"`   // Size in bytes
}

// dataOffset returns where tensor data starts for a header of headerSize bytes.
func dataOffset(headerSize int64) int64 {
	currentPos := int64(FixedHeaderSize) + headerSize
	padding := (HeaderAlignment - (currentPos % HeaderAlignment)) % HeaderAlignment
	return currentPos + padding
}

// sizeOf returns the payload size in bytes of n elements of dt.
func sizeOf(n int, dt tensor.DataType) int64 {
	return int64(n) * int64(dt.Size())
}
