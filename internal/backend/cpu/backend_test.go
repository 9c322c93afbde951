package cpu

import (
	"math"
	"testing"

	"github.com/born-ml/cvae/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRawFrom(data, tensor.Shape(shape), tensor.CPU)
	require.NoError(t, err)
	return r
}

func TestCPUBackendNew(t *testing.T) {
	backend := New()
	assert.Equal(t, "CPU", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
}

func TestBinaryOps(t *testing.T) {
	backend := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := raw(t, []float32{10, 11, 12, 13, 14, 15}, 2, 3)

	assert.Equal(t, []float32{11, 13, 15, 17, 19, 21}, backend.Add(a, b).Data())
	assert.Equal(t, []float32{9, 9, 9, 9, 9, 9}, backend.Sub(b, a).Data())
	assert.Equal(t, []float32{10, 22, 36, 52, 70, 90}, backend.Mul(a, b).Data())
	assert.InDeltaSlice(t, []float32{10, 5.5, 4, 3.25, 2.8, 2.5}, backend.Div(b, a).Data(), 1e-6)

	// Inputs are untouched
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, a.Data())
}

func TestBinaryBroadcast(t *testing.T) {
	backend := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	t.Run("Row", func(t *testing.T) {
		row := raw(t, []float32{10, 20, 30}, 3)
		assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, backend.Add(a, row).Data())
	})

	t.Run("Column", func(t *testing.T) {
		col := raw(t, []float32{1, 2}, 2, 1)
		assert.Equal(t, []float32{1, 2, 3, 8, 10, 12}, backend.Mul(a, col).Data())
	})

	t.Run("Scalar", func(t *testing.T) {
		s := raw(t, []float32{2}, []int{}...)
		out := backend.Sub(s, a)
		assert.Equal(t, tensor.Shape{2, 3}, out.Shape())
		assert.Equal(t, []float32{1, 0, -1, -2, -3, -4}, out.Data())
	})

	t.Run("Incompatible", func(t *testing.T) {
		bad := raw(t, []float32{1, 2}, 2)
		assert.Panics(t, func() { backend.Add(a, bad) })
	})
}

func TestUnaryOps(t *testing.T) {
	backend := New()
	x := raw(t, []float32{-2, 0, 1, 4}, 4)

	assert.Equal(t, []float32{0, 0, 1, 4}, backend.ReLU(x).Data())
	assert.Equal(t, []float32{-4, 0, 2, 8}, backend.MulScalar(x, 2).Data())
	assert.Equal(t, []float32{-1, 1, 2, 5}, backend.AddScalar(x, 1).Data())
	assert.InDeltaSlice(t, []float32{0.5}, backend.Rsqrt(raw(t, []float32{4}, 1)).Data(), 1e-6)

	exp := backend.Exp(x).Data()
	assert.InDelta(t, math.Exp(-2), exp[0], 1e-6)
	assert.InDelta(t, 1.0, exp[1], 1e-6)

	logv := backend.Log(raw(t, []float32{1, float32(math.E)}, 2)).Data()
	assert.InDeltaSlice(t, []float32{0, 1}, logv, 1e-6)
}

func TestSigmoidIsStable(t *testing.T) {
	backend := New()
	out := backend.Sigmoid(raw(t, []float32{-1000, 0, 1000}, 3)).Data()
	assert.Equal(t, float32(0), out[0])
	assert.Equal(t, float32(0.5), out[1])
	assert.Equal(t, float32(1), out[2])
	for _, v := range out {
		assert.False(t, math.IsNaN(float64(v)))
	}
}

func TestMatMul(t *testing.T) {
	backend := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := raw(t, []float32{7, 8, 9, 10, 11, 12}, 3, 2)

	out := backend.MatMul(a, b)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{58, 64, 139, 154}, out.Data())

	assert.Panics(t, func() { backend.MatMul(a, a) })
}

func TestTranspose(t *testing.T) {
	backend := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	out := backend.Transpose(a)
	assert.Equal(t, tensor.Shape{3, 2}, out.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, out.Data())

	// NHWC -> NCHW and back is the identity
	x := make([]float32, 2*3*4*5)
	for i := range x {
		x[i] = float32(i)
	}
	nhwc := raw(t, x, 2, 3, 4, 5)
	nchw := backend.Transpose(nhwc, 0, 3, 1, 2)
	assert.Equal(t, tensor.Shape{2, 5, 3, 4}, nchw.Shape())
	// element [n=1, c=2, h=1, w=3] == nhwc[1,1,3,2]
	assert.Equal(t, x[1*60+1*20+3*5+2], nchw.Data()[1*60+2*12+1*4+3])
	back := backend.Transpose(nchw, 0, 2, 3, 1)
	assert.Equal(t, x, back.Data())

	assert.Panics(t, func() { backend.Transpose(a, 0, 0) })
}

func TestReshapeSharesBuffer(t *testing.T) {
	backend := New()
	a := raw(t, []float32{1, 2, 3, 4}, 4)
	r := backend.Reshape(a, tensor.Shape{2, 2})
	assert.Equal(t, tensor.Shape{2, 2}, r.Shape())
	assert.Equal(t, a.Data(), r.Data())
	assert.Panics(t, func() { backend.Reshape(a, tensor.Shape{3}) })
}

func TestExpand(t *testing.T) {
	backend := New()
	x := raw(t, []float32{1, 2}, 2, 1, 1, 1)
	out := backend.Expand(x, tensor.Shape{2, 2, 1, 2})
	assert.Equal(t, []float32{1, 1, 1, 1, 2, 2, 2, 2}, out.Data())

	assert.Panics(t, func() { backend.Expand(x, tensor.Shape{3, 2}) })
}

func TestCat(t *testing.T) {
	backend := New()
	a := raw(t, []float32{1, 2, 3, 4}, 2, 2)
	b := raw(t, []float32{5, 6}, 2, 1)

	out := backend.Cat([]*tensor.RawTensor{a, b}, 1)
	assert.Equal(t, tensor.Shape{2, 3}, out.Shape())
	assert.Equal(t, []float32{1, 2, 5, 3, 4, 6}, out.Data())

	rows := backend.Cat([]*tensor.RawTensor{a, a}, 0)
	assert.Equal(t, []float32{1, 2, 3, 4, 1, 2, 3, 4}, rows.Data())

	assert.Panics(t, func() { backend.Cat([]*tensor.RawTensor{a, b}, 0) })
}

func TestReductions(t *testing.T) {
	backend := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	sum := backend.Sum(a)
	assert.Equal(t, 0, len(sum.Shape()))
	assert.Equal(t, float32(21), sum.Data()[0])

	assert.Equal(t, []float32{5, 7, 9}, backend.SumDim(a, 0, false).Data())
	assert.Equal(t, tensor.Shape{2, 1}, backend.SumDim(a, 1, true).Shape())
	assert.Equal(t, []float32{6, 15}, backend.SumDim(a, -1, true).Data())
	assert.Equal(t, []float32{2, 5}, backend.MeanDim(a, 1, false).Data())
}
