package cpu

import (
	"fmt"

	"github.com/born-ml/cvae/internal/tensor"
)

// ConvTranspose2D performs a 2D transposed convolution ("deconvolution").
//
// Input shape: [N, C_in, H, W]
// Kernel shape: [C_in, C_out, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out] with
//
//	H_out = (H-1)*stride - 2*padding + K_h
//
// Every input element is multiplied by the kernel and scattered into the
// output at stride spacing. This is exactly the input gradient of a Conv2D
// whose kernel is the same tensor, so the two share scatterFloat32.
func (cpu *CPUBackend) ConvTranspose2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := transposedGeometry("conv_transpose2d", input.Shape(), kernel.Shape(), stride, padding)

	output, err := tensor.NewRaw(tensor.Shape{g.N, g.CIn, g.H, g.W}, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("conv_transpose2d: failed to create output tensor: %v", err))
	}

	scatterFloat32(output.Data(), input.Data(), kernel.Data(), g, cpu.parallel)
	return output
}

// transposedGeometry describes a transposed convolution as the Conv2D it is
// the adjoint of: the transposed output is that convolution's input.
func transposedGeometry(op string, inputShape, kernelShape tensor.Shape, stride, padding int) convGeometry {
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %dD", op, len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D [C_in,C_out,K_h,K_w], got %dD", op, len(kernelShape)))
	}
	if inputShape[1] != kernelShape[0] {
		panic(fmt.Sprintf("%s: input channels %d != kernel channels %d", op, inputShape[1], kernelShape[0]))
	}
	if stride < 1 || padding < 0 {
		panic(fmt.Sprintf("%s: invalid stride %d / padding %d", op, stride, padding))
	}

	hOut := (inputShape[2]-1)*stride - 2*padding + kernelShape[2]
	wOut := (inputShape[3]-1)*stride - 2*padding + kernelShape[3]
	if hOut <= 0 || wOut <= 0 {
		panic(fmt.Sprintf("%s: invalid output dimensions: out_h=%d, out_w=%d", op, hOut, wOut))
	}

	g := newConvGeometry(op,
		tensor.Shape{inputShape[0], kernelShape[1], hOut, wOut},
		kernelShape, stride, padding)
	if g.HOut != inputShape[2] || g.WOut != inputShape[3] {
		panic(fmt.Sprintf("%s: inconsistent geometry for input %v", op, inputShape))
	}
	return g
}
