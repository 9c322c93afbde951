package tensor

import "fmt"

// DataType identifies an element encoding.
//
// Tensors are computed in float32; Float16 and BFloat16 exist so that
// serialized checkpoints can store a half-width payload.
type DataType int

// Supported element encodings.
const (
	Float32 DataType = iota
	Float16
	BFloat16
)

// Size returns the size of one element in bytes.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float16, BFloat16:
		return 2
	default:
		panic(fmt.Sprintf("unknown dtype: %d", dt))
	}
}

// String returns the canonical dtype name.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	case BFloat16:
		return "bfloat16"
	default:
		return "unknown"
	}
}

// ParseDataType is the inverse of String.
func ParseDataType(name string) (DataType, error) {
	switch name {
	case "float32", "f32":
		return Float32, nil
	case "float16", "f16":
		return Float16, nil
	case "bfloat16", "bf16":
		return BFloat16, nil
	default:
		return 0, fmt.Errorf("unsupported dtype %q", name)
	}
}
