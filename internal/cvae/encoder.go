package cvae

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/cvae/internal/nn"
	"github.com/born-ml/cvae/internal/tensor"
)

// Posterior holds the parameters of q(z|x, y).
type Posterior[B tensor.Backend] struct {
	Mu     *tensor.Tensor[B] // [N, LatentDim]
	LogVar *tensor.Tensor[B] // [N, LatentDim]
}

// Encoder maps (image, label) to the posterior.
//
//	[N,28,28,1] ++ label planes -> [N,28,28,11] -> NCHW
//	conv1 11->64  k4 s2 p1 + BN + ReLU   14x14
//	conv2 64->128 k4 s2 p1 + BN + ReLU   7x7
//	flatten 6272 -> dense_mean, dense_var
type Encoder[B tensor.Backend] struct {
	group     *nn.ParameterGroup[B]
	latentDim int

	conv1     *nn.Conv2D[B]
	bn1       *nn.BatchNorm[B]
	conv2     *nn.Conv2D[B]
	bn2       *nn.BatchNorm[B]
	denseMean *nn.Linear[B]
	denseVar  *nn.Linear[B]
}

const encoderFlat = 128 * 7 * 7

// NewEncoder builds an encoder whose parameters live in a group named name.
func NewEncoder[B tensor.Backend](name string, latentDim int, rng *rand.Rand, backend B) *Encoder[B] {
	if latentDim <= 0 {
		panic(fmt.Sprintf("cvae: invalid latent dim %d", latentDim))
	}
	g := nn.NewParameterGroup[B](name)
	e := &Encoder[B]{group: g, latentDim: latentDim}
	e.conv1 = nn.Register(g, "conv1", nn.NewConv2D(1+NumClasses, 64, 4, 2, 1, rng, backend))
	e.bn1 = nn.Register(g, "conv1_bn", nn.NewBatchNorm(64, backend))
	e.conv2 = nn.Register(g, "conv2", nn.NewConv2D(64, 128, 4, 2, 1, rng, backend))
	e.bn2 = nn.Register(g, "conv2_bn", nn.NewBatchNorm(128, backend))
	e.denseMean = nn.Register(g, "dense_mean", nn.NewLinear(encoderFlat, latentDim, rng, backend))
	e.denseVar = nn.Register(g, "dense_var", nn.NewLinear(encoderFlat, latentDim, rng, backend))
	return e
}

// Forward encodes images [N,28,28,1] with labels [N,10].
func (e *Encoder[B]) Forward(images, labels *tensor.Tensor[B]) Posterior[B] {
	checkImages("encoder", images)
	n := images.Shape()[0]

	h := ConcatLabels(images, labels).Transpose(0, 3, 1, 2)
	h = e.bn1.Forward(e.conv1.Forward(h)).ReLU()
	h = e.bn2.Forward(e.conv2.Forward(h)).ReLU()
	h = h.Reshape(n, encoderFlat)

	return Posterior[B]{
		Mu:     e.denseMean.Forward(h),
		LogVar: e.denseVar.Forward(h),
	}
}

// Group returns the encoder's parameter group.
func (e *Encoder[B]) Group() *nn.ParameterGroup[B] {
	return e.group
}

// LatentDim returns the size of the latent code.
func (e *Encoder[B]) LatentDim() int {
	return e.latentDim
}

func checkImages[B tensor.Backend](op string, images *tensor.Tensor[B]) {
	s := images.Shape()
	if len(s) != 4 || s[1] != ImageSize || s[2] != ImageSize || s[3] != 1 {
		panic(fmt.Sprintf("%s: expected images [N,%d,%d,1], got %v", op, ImageSize, ImageSize, s))
	}
}
