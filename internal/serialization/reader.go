package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/born-ml/cvae/internal/tensor"
	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// File is a decoded .born file.
type File struct {
	Header    Header
	Flags     uint32
	StateDict map[string]*tensor.RawTensor
}

// ReadFile reads and decodes a .born file.
func ReadFile(path string) (*File, error) {
	//nolint:gosec // G304: checkpoint path is user-provided by design
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	file, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// Decode parses a complete .born file held in memory.
//
// The checksum, tensor offsets and element counts are all verified before
// any tensor is materialized.
func Decode(data []byte) (*File, error) {
	if len(data) < FixedHeaderSize {
		return nil, ErrTruncated
	}
	if string(data[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}

	version := binary.LittleEndian.Uint32(data[4:8])
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	flags := binary.LittleEndian.Uint32(data[8:12])
	headerSize := binary.LittleEndian.Uint64(data[16:24])
	dataSize := binary.LittleEndian.Uint64(data[24:32])
	var stored [32]byte
	copy(stored[:], data[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	if uint64(len(data)) < uint64(FixedHeaderSize)+headerSize {
		return nil, ErrTruncated
	}

	var header Header
	if err := json.Unmarshal(data[FixedHeaderSize:FixedHeaderSize+int(headerSize)], &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	offset := dataOffset(int64(headerSize))
	if uint64(len(data)) < uint64(offset)+dataSize {
		return nil, ErrTruncated
	}
	payload := data[offset : uint64(offset)+dataSize]

	if err := ValidateChecksum(ComputeChecksum(payload), stored); err != nil {
		return nil, err
	}
	if err := ValidateTensorOffsets(header.Tensors, int64(dataSize)); err != nil {
		return nil, err
	}
	if err := validateTensorNames(header.Tensors); err != nil {
		return nil, err
	}

	stateDict := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		raw, err := decodeTensor(meta, payload)
		if err != nil {
			return nil, err
		}
		stateDict[meta.Name] = raw
	}

	return &File{
		Header:    header,
		Flags:     flags,
		StateDict: stateDict,
	}, nil
}

// decodeTensor materializes one tensor as float32.
func decodeTensor(meta TensorMeta, payload []byte) (*tensor.RawTensor, error) {
	dtype, err := tensor.ParseDataType(meta.DType)
	if err != nil {
		return nil, fmt.Errorf("tensor %q: %w: %s", meta.Name, ErrUnsupportedDType, meta.DType)
	}

	shape := tensor.Shape(meta.Shape)
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("tensor %q: %w", meta.Name, err)
	}
	if sizeOf(shape.NumElements(), dtype) != meta.Size {
		return nil, &ValidationError{
			Type:    "size_mismatch",
			Tensor:  meta.Name,
			Details: fmt.Sprintf("shape %v as %s needs %d bytes, header says %d", shape, dtype, sizeOf(shape.NumElements(), dtype), meta.Size),
		}
	}

	raw, err := tensor.NewRaw(shape, tensor.CPU)
	if err != nil {
		return nil, err
	}
	src := payload[meta.Offset : meta.Offset+meta.Size]
	dst := raw.Data()
	switch dtype {
	case tensor.Float16:
		for i := range dst {
			dst[i] = float16.Frombits(binary.LittleEndian.Uint16(src[2*i:])).Float32()
		}
	case tensor.BFloat16:
		copy(dst, bfloat16.DecodeFloat32(src))
	default:
		for i := range dst {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
		}
	}
	return raw, nil
}
