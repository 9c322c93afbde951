package autodiff

import (
	"fmt"

	"github.com/born-ml/cvae/internal/tensor"
)

// BackwardCapable is an interface for backends that support backward pass.
// AutodiffBackend implements this interface.
type BackwardCapable interface {
	tensor.Backend
	// GetTape returns the gradient tape for backward computation.
	GetTape() *GradientTape
}

// GetTape returns the gradient tape (implements BackwardCapable interface).
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward computes gradients of t with respect to every recorded tensor,
// seeding t's gradient with ones.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x := tensor.Ones(tensor.Shape{2}, backend)
//	y := x.Mul(x).Sum()
//	gradients := autodiff.Backward(y, backend)
//	grad := gradients[x.Raw()] // dy/dx = 2x
func Backward[B BackwardCapable](t *tensor.Tensor[B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()

	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}

	outputGrad, err := tensor.NewRaw(t.Shape(), backend.Device())
	if err != nil {
		panic(fmt.Sprintf("backward: failed to create output gradient: %v", err))
	}
	outputGrad.Fill(1)

	return tape.Backward(t.Raw(), outputGrad, backend)
}
