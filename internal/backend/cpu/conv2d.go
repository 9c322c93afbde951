package cpu

import (
	"fmt"

	"github.com/born-ml/cvae/internal/parallel"
	"github.com/born-ml/cvae/internal/tensor"
)

// convGeometry holds the dimensions of one convolution.
// "in" is the side the kernel slides over, "out" the side it produces.
type convGeometry struct {
	N, CIn, H, W     int
	COut, HOut, WOut int
	KH, KW           int
	stride, padding  int
}

// colRows is the number of rows of the im2col matrix (C_in * K_h * K_w).
func (g convGeometry) colRows() int { return g.CIn * g.KH * g.KW }

// colCols is the number of columns of the im2col matrix (H_out * W_out).
func (g convGeometry) colCols() int { return g.HOut * g.WOut }

// newConvGeometry validates NCHW input and [C_out, C_in, K_h, K_w] kernel shapes.
func newConvGeometry(op string, inputShape, kernelShape tensor.Shape, stride, padding int) convGeometry {
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %dD", op, len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D, got %dD", op, len(kernelShape)))
	}
	if stride < 1 || padding < 0 {
		panic(fmt.Sprintf("%s: invalid stride %d / padding %d", op, stride, padding))
	}

	g := convGeometry{
		N:       inputShape[0],
		CIn:     inputShape[1],
		H:       inputShape[2],
		W:       inputShape[3],
		COut:    kernelShape[0],
		KH:      kernelShape[2],
		KW:      kernelShape[3],
		stride:  stride,
		padding: padding,
	}
	if kernelShape[1] != g.CIn {
		panic(fmt.Sprintf("%s: input channels %d != kernel channels %d", op, g.CIn, kernelShape[1]))
	}

	// out = (in + 2*padding - kernel) / stride + 1
	g.HOut = (g.H+2*padding-g.KH)/stride + 1
	g.WOut = (g.W+2*padding-g.KW)/stride + 1
	if g.HOut <= 0 || g.WOut <= 0 {
		panic(fmt.Sprintf("%s: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", op, g.HOut, g.WOut))
	}
	return g
}

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape: [N, C_in, H, W]
// Kernel shape: [C_out, C_in, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
//
// Per sample:
//  1. Im2col: patches of the input become columns [C_in*K_h*K_w, H_out*W_out]
//  2. MatMul: kernel [C_out, C_in*K_h*K_w] @ columns -> [C_out, H_out*W_out]
//
// Samples are processed in parallel.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry("conv2d", input.Shape(), kernel.Shape(), stride, padding)

	output, err := tensor.NewRaw(tensor.Shape{g.N, g.COut, g.HOut, g.WOut}, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("conv2d: failed to create output tensor: %v", err))
	}

	conv2dFloat32(output.Data(), input.Data(), kernel.Data(), g, cpu.parallel)
	return output
}

// conv2dFloat32 runs im2col + matmul per sample.
func conv2dFloat32(out, in, kernel []float32, g convGeometry, cfg parallel.Config) {
	rows, cols := g.colRows(), g.colCols()
	inPlane := g.CIn * g.H * g.W
	outPlane := g.COut * cols

	parallel.For(g.N, func(n int) {
		col := make([]float32, rows*cols)
		im2colFloat32(col, in[n*inPlane:(n+1)*inPlane], g)

		dst := out[n*outPlane : (n+1)*outPlane]
		for co := 0; co < g.COut; co++ {
			dstRow := dst[co*cols : (co+1)*cols]
			kRow := kernel[co*rows : (co+1)*rows]
			for k, kv := range kRow {
				if kv == 0 {
					continue
				}
				colRow := col[k*cols : (k+1)*cols]
				for p, cv := range colRow {
					dstRow[p] += kv * cv
				}
			}
		}
	}, cfg)
}

// im2colFloat32 unfolds one sample [C, H, W] into col [C*K_h*K_w, H_out*W_out].
// Out-of-bounds (padding) positions are zero.
func im2colFloat32(col, in []float32, g convGeometry) {
	cols := g.colCols()
	row := 0
	for c := 0; c < g.CIn; c++ {
		plane := in[c*g.H*g.W : (c+1)*g.H*g.W]
		for kh := 0; kh < g.KH; kh++ {
			for kw := 0; kw < g.KW; kw++ {
				dst := col[row*cols : (row+1)*cols]
				p := 0
				for oh := 0; oh < g.HOut; oh++ {
					h := oh*g.stride - g.padding + kh
					for ow := 0; ow < g.WOut; ow++ {
						w := ow*g.stride - g.padding + kw
						if h >= 0 && h < g.H && w >= 0 && w < g.W {
							dst[p] = plane[h*g.W+w]
						} else {
							dst[p] = 0
						}
						p++
					}
				}
				row++
			}
		}
	}
}

// col2imFloat32 folds col [C*K_h*K_w, H_out*W_out] back onto one sample
// [C, H, W], accumulating overlapping contributions.
func col2imFloat32(dst, col []float32, g convGeometry) {
	cols := g.colCols()
	row := 0
	for c := 0; c < g.CIn; c++ {
		plane := dst[c*g.H*g.W : (c+1)*g.H*g.W]
		for kh := 0; kh < g.KH; kh++ {
			for kw := 0; kw < g.KW; kw++ {
				src := col[row*cols : (row+1)*cols]
				p := 0
				for oh := 0; oh < g.HOut; oh++ {
					h := oh*g.stride - g.padding + kh
					for ow := 0; ow < g.WOut; ow++ {
						w := ow*g.stride - g.padding + kw
						if h >= 0 && h < g.H && w >= 0 && w < g.W {
							plane[h*g.W+w] += src[p]
						}
						p++
					}
				}
				row++
			}
		}
	}
}
