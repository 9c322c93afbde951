package data

import (
	"math/rand/v2"
)

// Seven-segment layout of each digit: a (top), b (top right), c (bottom right),
// d (bottom), e (bottom left), f (top left), g (middle).
var segments = [NumClasses]string{
	"abcdef", "bc", "abged", "abgcd", "fgbc",
	"afgcd", "afgedc", "abc", "abcdefg", "abcdfg",
}

// Glyph geometry in pixels.
const (
	glyphWidth  = 12
	glyphHeight = 20
	stroke      = 2
	jitter      = 3
)

// Synthetic builds a labelled dataset of seven-segment digits with random
// placement and stroke intensity. It stands in for MNIST in tests and when
// no data directory is available.
func Synthetic(rng *rand.Rand, trainN, testN int) (*Datasets, error) {
	train, err := syntheticSplit(rng, trainN)
	if err != nil {
		return nil, err
	}
	test, err := syntheticSplit(rng, testN)
	if err != nil {
		return nil, err
	}
	return &Datasets{Train: train, Test: test}, nil
}

func syntheticSplit(rng *rand.Rand, n int) (*DataSet, error) {
	images := make([]float32, n*ImagePixels)
	labels := make([]uint8, n)
	for i := range labels {
		class := i % NumClasses
		labels[i] = uint8(class)
		RenderDigit(images[i*ImagePixels:(i+1)*ImagePixels], class, rng)
	}
	return NewDataSet(images, labels, split(rng))
}

// RenderDigit draws class into img (ImagePixels values, row-major).
func RenderDigit(img []float32, class int, rng *rand.Rand) {
	x0 := (ImageSize-glyphWidth)/2 + rng.IntN(2*jitter+1) - jitter
	y0 := (ImageSize-glyphHeight)/2 + rng.IntN(2*jitter+1) - jitter
	intensity := 0.7 + 0.3*rng.Float32()
	mid := y0 + glyphHeight/2 - stroke/2

	fill := func(x, y, w, h int) {
		for r := max(y, 0); r < min(y+h, ImageSize); r++ {
			for c := max(x, 0); c < min(x+w, ImageSize); c++ {
				img[r*ImageSize+c] = intensity
			}
		}
	}

	for _, s := range segments[class] {
		switch s {
		case 'a':
			fill(x0, y0, glyphWidth, stroke)
		case 'b':
			fill(x0+glyphWidth-stroke, y0, stroke, glyphHeight/2)
		case 'c':
			fill(x0+glyphWidth-stroke, mid, stroke, glyphHeight-(mid-y0))
		case 'd':
			fill(x0, y0+glyphHeight-stroke, glyphWidth, stroke)
		case 'e':
			fill(x0, mid, stroke, glyphHeight-(mid-y0))
		case 'f':
			fill(x0, y0, stroke, glyphHeight/2)
		case 'g':
			fill(x0, mid, glyphWidth, stroke)
		}
	}
}
