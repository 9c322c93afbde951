package cvae

import (
	"fmt"

	"github.com/born-ml/cvae/internal/tensor"
)

// NumClasses is the size of the one-hot label vector.
const NumClasses = 10

// ConcatLabels appends the label as constant feature planes.
//
// For a 4-D input x [N, H, W, C] the result is [N, H, W, C+10], where added
// channel k of example n is filled with labels[n, k]. Inputs of any other
// rank are returned unchanged; flat conditioning is a Cat on the feature
// axis.
func ConcatLabels[B tensor.Backend](x, labels *tensor.Tensor[B]) *tensor.Tensor[B] {
	shape := x.Shape()
	if len(shape) != 4 {
		return x
	}
	if ls := labels.Shape(); len(ls) != 2 || ls[0] != shape[0] || ls[1] != NumClasses {
		panic(fmt.Sprintf("cvae: labels shape %v does not match batch %d", labels.Shape(), shape[0]))
	}

	planes := labels.Reshape(shape[0], 1, 1, NumClasses).
		Expand(tensor.Shape{shape[0], shape[1], shape[2], NumClasses})
	return tensor.Cat([]*tensor.Tensor[B]{x, planes}, 3)
}
