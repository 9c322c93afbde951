// Package data provides the labelled digit images the cVAE trains on.
//
// Images are served as NHWC batches [n, 28, 28, 1] with values in [0, 1]
// and one-hot labels [n, 10]. A DataSet cycles through its examples,
// reshuffling at every epoch boundary.
package data

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"

	"github.com/born-ml/cvae/internal/tensor"
)

// Image geometry and label space.
const (
	ImageSize   = 28
	ImagePixels = ImageSize * ImageSize
	NumClasses  = 10
)

// Batch is one minibatch. Images and Labels are row-aligned.
type Batch struct {
	Images  *tensor.RawTensor // [n, 28, 28, 1]
	Labels  *tensor.RawTensor // [n, 10] one-hot
	Classes []int             // [n] class index of each row
}

// Size returns the number of examples in the batch.
func (b *Batch) Size() int {
	return len(b.Classes)
}

// Source yields minibatches.
type Source interface {
	NextBatch(n int) (*Batch, error)
	NumExamples() int
}

// DataSet is an in-memory collection of labelled images.
type DataSet struct {
	images []float32 // NumExamples * ImagePixels, in [0, 1]
	labels []uint8
	rng    *rand.Rand
	perm   []int
	pos    int
	epochs int
}

// NewDataSet wraps images (flat, ImagePixels per example) and labels.
// rng drives the per-epoch shuffle.
func NewDataSet(images []float32, labels []uint8, rng *rand.Rand) (*DataSet, error) {
	if len(labels) == 0 {
		return nil, errors.New("empty dataset")
	}
	if len(images) != len(labels)*ImagePixels {
		return nil, fmt.Errorf("image data has %d values, want %d for %d labels",
			len(images), len(labels)*ImagePixels, len(labels))
	}
	for i, l := range labels {
		if int(l) >= NumClasses {
			return nil, fmt.Errorf("label out of range [0, %d) at index %d: %d", NumClasses, i, l)
		}
	}
	return &DataSet{
		images: images,
		labels: labels,
		rng:    rng,
	}, nil
}

// NumExamples returns the number of examples.
func (d *DataSet) NumExamples() int {
	return len(d.labels)
}

// EpochsCompleted returns how many full passes NextBatch has made.
func (d *DataSet) EpochsCompleted() int {
	return d.epochs
}

// NextBatch returns the next n examples of the current shuffled epoch.
//
// A batch that crosses an epoch boundary is completed from a fresh shuffle,
// so every batch has exactly n rows.
func (d *DataSet) NextBatch(n int) (*Batch, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid batch size %d", n)
	}

	indices := make([]int, 0, n)
	for len(indices) < n {
		if d.perm == nil || d.pos == len(d.perm) {
			if d.perm != nil {
				d.epochs++
			}
			d.perm = d.rng.Perm(len(d.labels))
			d.pos = 0
		}
		take := min(n-len(indices), len(d.perm)-d.pos)
		indices = append(indices, d.perm[d.pos:d.pos+take]...)
		d.pos += take
	}
	return d.gather(indices), nil
}

// gather copies the given examples into a new batch.
func (d *DataSet) gather(indices []int) *Batch {
	n := len(indices)
	images := tensor.MustNewRaw(tensor.Shape{n, ImageSize, ImageSize, 1}, tensor.CPU)
	classes := make([]int, n)
	dst := images.Data()
	for row, idx := range indices {
		copy(dst[row*ImagePixels:(row+1)*ImagePixels], d.images[idx*ImagePixels:(idx+1)*ImagePixels])
		classes[row] = int(d.labels[idx])
	}
	return &Batch{
		Images:  images,
		Labels:  OneHot(classes),
		Classes: classes,
	}
}

// OneHot encodes class indices as a [len(classes), 10] tensor.
func OneHot(classes []int) *tensor.RawTensor {
	out := tensor.MustNewRaw(tensor.Shape{len(classes), NumClasses}, tensor.CPU)
	data := out.Data()
	for i, c := range classes {
		if c < 0 || c >= NumClasses {
			panic(fmt.Sprintf("data: class %d out of range [0, %d)", c, NumClasses))
		}
		data[i*NumClasses+c] = 1
	}
	return out
}

// Datasets holds the training and test splits.
type Datasets struct {
	Train *DataSet
	Test  *DataSet
}

// MNIST file names, each optionally gzipped with a ".gz" suffix.
const (
	TrainImagesFile = "train-images-idx3-ubyte"
	TrainLabelsFile = "train-labels-idx1-ubyte"
	TestImagesFile  = "t10k-images-idx3-ubyte"
	TestLabelsFile  = "t10k-labels-idx1-ubyte"
)

// LoadMNIST reads the four MNIST IDX files from dir.
//
// Each split gets its own shuffle stream derived from rng.
func LoadMNIST(dir string, rng *rand.Rand) (*Datasets, error) {
	train, err := loadSplit(dir, TrainImagesFile, TrainLabelsFile, split(rng))
	if err != nil {
		return nil, fmt.Errorf("failed to load training set: %w", err)
	}
	test, err := loadSplit(dir, TestImagesFile, TestLabelsFile, split(rng))
	if err != nil {
		return nil, fmt.Errorf("failed to load test set: %w", err)
	}
	return &Datasets{Train: train, Test: test}, nil
}

func loadSplit(dir, imagesFile, labelsFile string, rng *rand.Rand) (*DataSet, error) {
	ir, err := openIDX(filepath.Join(dir, imagesFile))
	if err != nil {
		return nil, err
	}
	defer ir.Close()
	pixels, count, _, _, err := ReadIDXImages(ir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", imagesFile, err)
	}

	lr, err := openIDX(filepath.Join(dir, labelsFile))
	if err != nil {
		return nil, err
	}
	defer lr.Close()
	labels, err := ReadIDXLabels(lr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", labelsFile, err)
	}
	if len(labels) != count {
		return nil, fmt.Errorf("image count (%d) != label count (%d)", count, len(labels))
	}

	images := make([]float32, len(pixels))
	for i, p := range pixels {
		images[i] = float32(p) / 255.0
	}
	return NewDataSet(images, labels, rng)
}

// split derives an independent generator from rng.
func split(rng *rand.Rand) *rand.Rand {
	return rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))
}
