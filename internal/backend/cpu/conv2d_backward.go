package cpu

import (
	"fmt"

	"github.com/born-ml/cvae/internal/parallel"
	"github.com/born-ml/cvae/internal/tensor"
)

// Conv2DInputBackward computes the gradient w.r.t. the input of Conv2D.
//
// Per sample: columns = kernelᵀ @ grad, then col2im folds the columns back
// onto the input grid (each input position receives the sum of the output
// positions whose receptive field covered it).
//
// References:
//   - "A guide to convolution arithmetic for deep learning" (Dumoulin & Visin, 2016)
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry("conv2d_input_backward", input.Shape(), kernel.Shape(), stride, padding)
	checkConvGrad("conv2d_input_backward", grad.Shape(), g)

	inputGrad, err := tensor.NewRaw(tensor.Shape{g.N, g.CIn, g.H, g.W}, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("conv2d_input_backward: failed to create gradient tensor: %v", err))
	}

	scatterFloat32(inputGrad.Data(), grad.Data(), kernel.Data(), g, cpu.parallel)
	return inputGrad
}

// Conv2DKernelBackward computes the gradient w.r.t. the kernel of Conv2D.
//
// dK[c_out, :] = Σ_n grad[n, c_out, :] @ im2col(input[n])ᵀ
//
// Samples are accumulated sequentially; output channels in parallel.
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry("conv2d_kernel_backward", input.Shape(), kernel.Shape(), stride, padding)
	checkConvGrad("conv2d_kernel_backward", grad.Shape(), g)

	kernelGrad, err := tensor.NewRaw(kernel.Shape(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("conv2d_kernel_backward: failed to create gradient tensor: %v", err))
	}

	rows, cols := g.colRows(), g.colCols()
	inPlane := g.CIn * g.H * g.W
	gradPlane := g.COut * cols
	in, gd, dK := input.Data(), grad.Data(), kernelGrad.Data()
	col := make([]float32, rows*cols)

	for n := 0; n < g.N; n++ {
		im2colFloat32(col, in[n*inPlane:(n+1)*inPlane], g)
		gradN := gd[n*gradPlane : (n+1)*gradPlane]

		parallel.For(g.COut, func(co int) {
			gRow := gradN[co*cols : (co+1)*cols]
			dRow := dK[co*rows : (co+1)*rows]
			for k := range dRow {
				colRow := col[k*cols : (k+1)*cols]
				var sum float32
				for p, gv := range gRow {
					sum += gv * colRow[p]
				}
				dRow[k] += sum
			}
		}, cpu.parallel)
	}

	return kernelGrad
}

// checkConvGrad verifies that grad has the convolution's output shape.
func checkConvGrad(op string, gradShape tensor.Shape, g convGeometry) {
	want := tensor.Shape{g.N, g.COut, g.HOut, g.WOut}
	if !gradShape.Equal(want) {
		panic(fmt.Sprintf("%s: grad shape %v, expected %v", op, gradShape, want))
	}
}

// scatterFloat32 computes dst[n] = col2im(kernelᵀ @ src[n]) for every sample.
//
// src is [N, C_out, H_out, W_out], kernel is [C_out, C_in*K_h*K_w] and dst is
// [N, C_in, H, W] in terms of g. This is both the input gradient of Conv2D
// and the forward pass of ConvTranspose2D.
func scatterFloat32(dst, src, kernel []float32, g convGeometry, cfg parallel.Config) {
	rows, cols := g.colRows(), g.colCols()
	dstPlane := g.CIn * g.H * g.W
	srcPlane := g.COut * cols

	parallel.For(g.N, func(n int) {
		col := make([]float32, rows*cols)
		srcN := src[n*srcPlane : (n+1)*srcPlane]
		for co := 0; co < g.COut; co++ {
			sRow := srcN[co*cols : (co+1)*cols]
			kRow := kernel[co*rows : (co+1)*rows]
			for k, kv := range kRow {
				if kv == 0 {
					continue
				}
				colRow := col[k*cols : (k+1)*cols]
				for p, sv := range sRow {
					colRow[p] += kv * sv
				}
			}
		}
		col2imFloat32(dst[n*dstPlane:(n+1)*dstPlane], col, g)
	}, cfg)
}
