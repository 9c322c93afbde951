package serialization

import (
	"fmt"
	"sort"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxTensorCount   = 100_000           // Maximum number of tensors in a file
	MaxTensorNameLen = 4096              // Maximum tensor name length
)

// ValidateTensorOffsets checks for overlapping tensor offsets and out-of-bounds access.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	// Sort tensors by offset for efficient overlap detection.
	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d (negative values not allowed)", t.Offset, t.Size),
			}
		}

		if t.Offset+t.Size > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
			}
		}

		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}

	return nil
}

// validateTensorNames rejects empty, overlong and duplicate names.
func validateTensorNames(tensors []TensorMeta) error {
	seen := make(map[string]struct{}, len(tensors))
	for _, t := range tensors {
		switch {
		case t.Name == "":
			return &ValidationError{Type: "invalid_name", Details: "empty tensor name"}
		case len(t.Name) > MaxTensorNameLen:
			return &ValidationError{Type: "invalid_name", Tensor: t.Name[:32] + "...", Details: "name too long"}
		}
		if _, dup := seen[t.Name]; dup {
			return &ValidationError{Type: "duplicate_name", Tensor: t.Name, Details: "tensor name appears twice"}
		}
		seen[t.Name] = struct{}{}
	}
	return nil
}
