package ops

import (
	"fmt"

	"github.com/born-ml/cvae/internal/tensor"
)

// ReLUOp represents a ReLU (Rectified Linear Unit) activation: output = max(0, x).
//
// Backward pass:
//   - d(ReLU(x))/dx = 1 if x > 0, else 0
type ReLUOp struct {
	input  *tensor.RawTensor // x
	output *tensor.RawTensor // max(0, x)
}

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{
		input:  input,
		output: output,
	}
}

// Backward computes input gradient for ReLU.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	mask := createReLUMask(op.input, backend)
	return []*tensor.RawTensor{backend.Mul(outputGrad, mask)}
}

// Inputs returns the input tensor [x].
func (op *ReLUOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor max(0, x).
func (op *ReLUOp) Output() *tensor.RawTensor {
	return op.output
}

// createReLUMask creates a binary mask where input > 0.
func createReLUMask(input *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	mask, err := tensor.NewRaw(input.Shape(), backend.Device())
	if err != nil {
		panic(fmt.Sprintf("relu: failed to create mask: %v", err))
	}

	maskData := mask.Data()
	for i, val := range input.Data() {
		if val > 0 {
			maskData[i] = 1
		}
	}
	return mask
}
