package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/born-ml/cvae/internal/tensor"
	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// Encode writes stateDict in .born format to w.
//
// Tensors are written in name order so that identical state produces
// identical files (apart from CreatedAt). dtype selects the payload
// encoding: tensor.Float32 is exact, tensor.Float16 and tensor.BFloat16
// halve the size.
func Encode(w io.Writer, stateDict map[string]*tensor.RawTensor, header Header, dtype tensor.DataType) error {
	if dtype != tensor.Float32 && dtype != tensor.Float16 && dtype != tensor.BFloat16 {
		return fmt.Errorf("%w: %s", ErrUnsupportedDType, dtype)
	}

	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	// Calculate tensor offsets
	var dataSize int64
	header.Tensors = make([]TensorMeta, 0, len(names))
	for _, name := range names {
		raw := stateDict[name]
		size := sizeOf(raw.NumElements(), dtype)
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  dtype.String(),
			Shape:  []int(raw.Shape().Clone()),
			Offset: dataSize,
			Size:   size,
		})
		dataSize += size
	}
	if err := validateTensorNames(header.Tensors); err != nil {
		return err
	}

	header.FormatVersion = FormatVersion
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	data := make([]byte, dataSize)
	for i, name := range names {
		meta := header.Tensors[i]
		encodeTensor(data[meta.Offset:meta.Offset+meta.Size], stateDict[name].Data(), dtype)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.CheckpointMeta != nil {
		flags |= FlagCheckpoint
	}
	if dtype.Size() == 2 {
		flags |= FlagHalfPrecision
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(dataSize))
	checksum := ComputeChecksum(data)
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	headerSize := int64(len(headerJSON))
	padding := dataOffset(headerSize) - int64(FixedHeaderSize) - headerSize
	if padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// WriteFile encodes stateDict into path.
//
// The file is first written next to path and then renamed, so a crash never
// leaves a half-written checkpoint under the final name.
func WriteFile(path string, stateDict map[string]*tensor.RawTensor, header Header, dtype tensor.DataType) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = Encode(tmp, stateDict, header, dtype); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// encodeTensor writes values into dst as little-endian dtype elements.
func encodeTensor(dst []byte, values []float32, dtype tensor.DataType) {
	switch dtype {
	case tensor.Float16:
		for i, v := range values {
			binary.LittleEndian.PutUint16(dst[2*i:], float16.Fromfloat32(v).Bits())
		}
	case tensor.BFloat16:
		copy(dst, bfloat16.EncodeFloat32(values))
	default:
		for i, v := range values {
			binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(v))
		}
	}
}
