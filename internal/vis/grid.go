// Package vis renders batches of generated digits as image grids.
package vis

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/born-ml/cvae/internal/tensor"
	"golang.org/x/image/draw"
)

// Grid layout used for the fixed visualization samples.
const (
	GridSide    = 11
	GridSamples = GridSide * GridSide
)

// Options controls grid rendering.
type Options struct {
	// Scale upsamples the grid by an integer factor with nearest-neighbor
	// interpolation. Values below 1 are treated as 1.
	Scale int
	// JPEGQuality is used for .jpg/.jpeg output (default 95).
	JPEGQuality int
}

// Grid tiles images [n, h, w, 1] into a side×side mosaic separated by
// 1-pixel white lines. n must equal side*side. Values are clamped to [0, 1].
func Grid(images *tensor.RawTensor, side int, opts Options) (image.Image, error) {
	shape := images.Shape()
	if len(shape) != 4 || shape[3] != 1 {
		return nil, fmt.Errorf("vis: expected [n, h, w, 1] images, got %v", shape)
	}
	n, h, w := shape[0], shape[1], shape[2]
	if side <= 0 || n != side*side {
		return nil, fmt.Errorf("vis: %d images do not fill a %dx%d grid", n, side, side)
	}

	width := side*w + side - 1
	height := side*h + side - 1
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	data := images.Data()
	for k := 0; k < n; k++ {
		ox := (k % side) * (w + 1)
		oy := (k / side) * (h + 1)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.SetGray(ox+x, oy+y, color.Gray{Y: toByte(data[(k*h+y)*w+x])})
			}
		}
	}

	scale := max(opts.Scale, 1)
	if scale == 1 {
		return img, nil
	}
	dst := image.NewGray(image.Rect(0, 0, width*scale, height*scale))
	draw.NearestNeighbor.Scale(dst, dst.Rect, img, img.Bounds(), draw.Src, nil)
	return dst, nil
}

func toByte(v float32) uint8 {
	if math.IsNaN(float64(v)) {
		return 0
	}
	return uint8(math.Round(float64(min(max(v, 0), 1)) * 255))
}

// Encode writes img in the format named by ext (".jpg", ".jpeg" or ".png").
func Encode(w io.Writer, img image.Image, ext string, opts Options) error {
	switch strings.ToLower(ext) {
	case ".png":
		return png.Encode(w, img)
	case ".jpg", ".jpeg":
		quality := opts.JPEGQuality
		if quality == 0 {
			quality = 95
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	default:
		return fmt.Errorf("vis: unsupported image format %q", ext)
	}
}

// SaveGrid renders images as a grid and writes it to path, choosing the
// encoding from the file extension. The file is written to a temporary
// name and renamed into place, so path never holds a partial image.
func SaveGrid(path string, images *tensor.RawTensor, side int, opts Options) (err error) {
	img, err := Grid(images, side, opts)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("vis: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = Encode(tmp, img, filepath.Ext(path), opts); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("vis: encode %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("vis: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("vis: %w", err)
	}
	return nil
}
