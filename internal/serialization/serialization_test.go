package serialization

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/cvae/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStateDict(t *testing.T) map[string]*tensor.RawTensor {
	t.Helper()
	w, err := tensor.NewRawFrom([]float32{0.5, -1.25, 3, 1e-3, 2, -7}, tensor.Shape{2, 3}, tensor.CPU)
	require.NoError(t, err)
	b, err := tensor.NewRawFrom([]float32{0.1, 0.2}, tensor.Shape{2}, tensor.CPU)
	require.NoError(t, err)
	return map[string]*tensor.RawTensor{
		"enc/dense.weight": w,
		"enc/dense.bias":   b,
	}
}

func encode(t *testing.T, sd map[string]*tensor.RawTensor, h Header, dt tensor.DataType) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sd, h, dt))
	return buf.Bytes()
}

func TestRoundTripFloat32(t *testing.T) {
	sd := testStateDict(t)
	header := Header{
		ModelType: "cVAE_MNIST",
		Metadata:  map[string]string{"latent_dim": "2"},
		CheckpointMeta: &CheckpointMeta{
			Step:  42,
			Loss:  123.5,
			RunID: "run-1",
		},
	}

	data := encode(t, sd, header, tensor.Float32)
	assert.Equal(t, MagicBytes, string(data[:4]))

	file, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, FormatVersion, file.Header.FormatVersion)
	assert.Equal(t, "cVAE_MNIST", file.Header.ModelType)
	assert.Equal(t, "2", file.Header.Metadata["latent_dim"])
	require.NotNil(t, file.Header.CheckpointMeta)
	assert.Equal(t, int64(42), file.Header.CheckpointMeta.Step)
	assert.Equal(t, "run-1", file.Header.CheckpointMeta.RunID)
	assert.NotZero(t, file.Flags&FlagCheckpoint)
	assert.NotZero(t, file.Flags&FlagHasMetadata)
	assert.Zero(t, file.Flags&FlagHalfPrecision)

	require.Len(t, file.StateDict, 2)
	for name, want := range sd {
		got := file.StateDict[name]
		require.NotNil(t, got, name)
		assert.Equal(t, want.Shape(), got.Shape())
		assert.Equal(t, want.Data(), got.Data())
	}
}

func TestRoundTripFloat16(t *testing.T) {
	sd := testStateDict(t)
	full := encode(t, sd, Header{}, tensor.Float32)
	half := encode(t, sd, Header{}, tensor.Float16)

	file, err := Decode(half)
	require.NoError(t, err)
	assert.NotZero(t, file.Flags&FlagHalfPrecision)
	assert.Equal(t, "float16", file.Header.Tensors[0].DType)

	for name, want := range sd {
		assert.InDeltaSlice(t, want.Data(), file.StateDict[name].Data(), 5e-3, name)
	}
	// payload halves, header grows by at most the dtype strings
	assert.LessOrEqual(t, len(half), len(full))
}

func TestRoundTripBFloat16(t *testing.T) {
	sd := testStateDict(t)
	file, err := Decode(encode(t, sd, Header{}, tensor.BFloat16))
	require.NoError(t, err)
	assert.NotZero(t, file.Flags&FlagHalfPrecision)
	assert.Equal(t, "bfloat16", file.Header.Tensors[1].DType)

	// bfloat16 keeps 8 significant bits
	for name, want := range sd {
		got := file.StateDict[name].Data()
		for i, v := range want.Data() {
			assert.InDelta(t, v, got[i], 1e-2*max(1, math.Abs(float64(v))), "%s[%d]", name, i)
		}
	}
}

func TestTensorsSortedAndAligned(t *testing.T) {
	data := encode(t, testStateDict(t), Header{}, tensor.Float32)
	file, err := Decode(data)
	require.NoError(t, err)

	require.Len(t, file.Header.Tensors, 2)
	assert.Equal(t, "enc/dense.bias", file.Header.Tensors[0].Name)
	assert.Equal(t, int64(0), file.Header.Tensors[0].Offset)
	assert.Equal(t, int64(8), file.Header.Tensors[1].Offset)
	assert.Zero(t, (len(data)-32)%HeaderAlignment, "payload must start 64-byte aligned")
}

func TestDecodeRejectsCorruption(t *testing.T) {
	good := encode(t, testStateDict(t), Header{}, tensor.Float32)

	t.Run("Magic", func(t *testing.T) {
		bad := bytes.Clone(good)
		copy(bad, "NOPE")
		_, err := Decode(bad)
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("Version", func(t *testing.T) {
		bad := bytes.Clone(good)
		bad[4] = 9
		_, err := Decode(bad)
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("Payload", func(t *testing.T) {
		bad := bytes.Clone(good)
		bad[len(bad)-1] ^= 0xFF
		_, err := Decode(bad)
		assert.ErrorIs(t, err, ErrChecksumMismatch)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := Decode(good[:len(good)-4])
		assert.ErrorIs(t, err, ErrTruncated)
		_, err = Decode(good[:10])
		assert.ErrorIs(t, err, ErrTruncated)
	})
}

func TestEncodeRejectsUnknownDType(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, testStateDict(t), Header{}, tensor.DataType(99))
	assert.ErrorIs(t, err, ErrUnsupportedDType)
}

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		wantType string
	}{
		{"ok", []TensorMeta{{Name: "a", Offset: 0, Size: 8}, {Name: "b", Offset: 8, Size: 8}}, ""},
		{"overlap", []TensorMeta{{Name: "a", Offset: 0, Size: 12}, {Name: "b", Offset: 8, Size: 8}}, "offset_overlap"},
		{"bounds", []TensorMeta{{Name: "a", Offset: 8, Size: 16}}, "out_of_bounds"},
		{"negative", []TensorMeta{{Name: "a", Offset: -1, Size: 4}}, "negative_offset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, 16)
			if tt.wantType == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantType, verr.Type)
		})
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "000_model.born")

	require.NoError(t, WriteFile(path, testStateDict(t), Header{ModelType: "x"}, tensor.Float32))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file must be renamed away")

	file, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x", file.Header.ModelType)

	_, err = ReadFile(filepath.Join(dir, "missing.born"))
	assert.Error(t, err)
}
