package data

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/klauspost/compress/gzip"
)

// IDX magic numbers.
const (
	idxImagesMagic = 0x00000803 // 2051
	idxLabelsMagic = 0x00000801 // 2049
)

// maxIDXItems bounds the item count accepted from a file header.
const maxIDXItems = 1 << 20

// readIDXMagic reads the leading magic number and checks it against want.
func readIDXMagic(r io.Reader, want uint32) error {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return fmt.Errorf("failed to read magic number: %w", err)
	}
	if magic != want {
		return fmt.Errorf("invalid magic number: got %d, want %d", magic, want)
	}
	return nil
}

// readIDXCount reads an item count and rejects values above maxIDXItems.
func readIDXCount(r io.Reader) (int, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return 0, fmt.Errorf("failed to read item count: %w", err)
	}
	if n > maxIDXItems {
		return 0, fmt.Errorf("item count %d exceeds limit %d", n, maxIDXItems)
	}
	return int(n), nil
}

// ReadIDXImages reads an MNIST image file in IDX format.
//
// IDX file format for images:
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes (28)
//	number of cols: 4 bytes (28)
//	pixel data: unsigned bytes (0-255)
//
// Pixels are returned flat, image after image, row-major. Images must be
// ImageSize x ImageSize.
func ReadIDXImages(r io.Reader) (pixels []byte, count, rows, cols int, err error) {
	if err := readIDXMagic(r, idxImagesMagic); err != nil {
		return nil, 0, 0, 0, err
	}
	if count, err = readIDXCount(r); err != nil {
		return nil, 0, 0, 0, err
	}
	var dims [2]uint32
	if err := binary.Read(r, binary.BigEndian, &dims); err != nil {
		return nil, 0, 0, 0, fmt.Errorf("failed to read dimensions: %w", err)
	}
	if dims[0] != ImageSize || dims[1] != ImageSize {
		return nil, 0, 0, 0, fmt.Errorf("images are %dx%d, want %dx%d", dims[0], dims[1], ImageSize, ImageSize)
	}
	rows, cols = ImageSize, ImageSize

	// Grow one image at a time so a lying header fails on EOF, not on allocation.
	pixels = make([]byte, 0, min(count, 1024)*ImagePixels)
	img := make([]byte, ImagePixels)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, img); err != nil {
			return nil, 0, 0, 0, fmt.Errorf("failed to read image %d of %d: %w", i, count, err)
		}
		pixels = append(pixels, img...)
	}
	return pixels, count, rows, cols, nil
}

// ReadIDXLabels reads an MNIST label file in IDX format.
//
// IDX file format for labels:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes
//	label data: unsigned bytes (0-9)
func ReadIDXLabels(r io.Reader) ([]byte, error) {
	if err := readIDXMagic(r, idxLabelsMagic); err != nil {
		return nil, err
	}
	count, err := readIDXCount(r)
	if err != nil {
		return nil, err
	}

	labels, err := io.ReadAll(io.LimitReader(r, int64(count)))
	if err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	if len(labels) != count {
		return nil, fmt.Errorf("failed to read labels: got %d of %d: %w", len(labels), count, io.ErrUnexpectedEOF)
	}
	for i, l := range labels {
		if int(l) >= NumClasses {
			return nil, fmt.Errorf("label out of range [0, %d) at index %d: %d", NumClasses, i, l)
		}
	}
	return labels, nil
}

// openIDX opens path, falling back to path+".gz".
// Gzip content is detected by its magic bytes rather than by the file name.
func openIDX(path string) (io.ReadCloser, error) {
	//nolint:gosec // G304: data directory is user-provided
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		//nolint:gosec // G304: data directory is user-provided
		f, err = os.Open(path + ".gz")
	}
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(f)
	magic, err := br.Peek(2)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", f.Name(), err)
	}
	if magic[0] != 0x1f || magic[1] != 0x8b {
		return &readCloser{Reader: br, closers: []io.Closer{f}}, nil
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", f.Name(), err)
	}
	return &readCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (rc *readCloser) Close() error {
	var errs []error
	for _, c := range rc.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
