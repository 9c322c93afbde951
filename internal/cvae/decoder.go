package cvae

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/cvae/internal/nn"
	"github.com/born-ml/cvae/internal/tensor"
)

// ImageSize is the side of the square images the model handles.
const ImageSize = 28

// Decoder maps (latent, label) to Bernoulli means.
//
//	[z, label] -> dense1 (4096) + BN + ReLU -> [N,256,4,4]
//	deconv1 256->256 k5 s2 + BN + ReLU   11x11
//	deconv2 256->128 k5 s2 + BN + ReLU   25x25
//	deconv3 128->1   k4 s1               28x28
//	sigmoid -> NHWC [N,28,28,1]
type Decoder[B tensor.Backend] struct {
	group     *nn.ParameterGroup[B]
	latentDim int

	dense1  *nn.Linear[B]
	bn0     *nn.BatchNorm[B]
	deconv1 *nn.ConvTranspose2D[B]
	bn1     *nn.BatchNorm[B]
	deconv2 *nn.ConvTranspose2D[B]
	bn2     *nn.BatchNorm[B]
	deconv3 *nn.ConvTranspose2D[B]
	sigmoid *nn.Sigmoid[B]
}

// NewDecoder builds a decoder whose parameters live in a group named name.
func NewDecoder[B tensor.Backend](name string, latentDim int, rng *rand.Rand, backend B) *Decoder[B] {
	if latentDim <= 0 {
		panic(fmt.Sprintf("cvae: invalid latent dim %d", latentDim))
	}
	g := nn.NewParameterGroup[B](name)
	d := &Decoder[B]{group: g, latentDim: latentDim, sigmoid: nn.NewSigmoid[B]()}
	d.dense1 = nn.Register(g, "dense1", nn.NewLinear(latentDim+NumClasses, 4*4*256, rng, backend))
	d.bn0 = nn.Register(g, "dense1_bn", nn.NewBatchNorm(4*4*256, backend))
	d.deconv1 = nn.Register(g, "deconv1", nn.NewConvTranspose2D(256, 256, 5, 2, 0, rng, backend))
	d.bn1 = nn.Register(g, "deconv1_bn", nn.NewBatchNorm(256, backend))
	d.deconv2 = nn.Register(g, "deconv2", nn.NewConvTranspose2D(256, 128, 5, 2, 0, rng, backend))
	d.bn2 = nn.Register(g, "deconv2_bn", nn.NewBatchNorm(128, backend))
	d.deconv3 = nn.Register(g, "deconv3", nn.NewConvTranspose2D(128, 1, 4, 1, 0, rng, backend))

	if size := d.deconv3.OutputSize(d.deconv2.OutputSize(d.deconv1.OutputSize(4))); size != ImageSize {
		panic(fmt.Sprintf("cvae: decoder produces %dx%d images, want %dx%d", size, size, ImageSize, ImageSize))
	}
	return d
}

// Forward decodes z [N, LatentDim] with labels [N, 10] into [N,28,28,1].
func (d *Decoder[B]) Forward(z, labels *tensor.Tensor[B]) *tensor.Tensor[B] {
	if s := z.Shape(); len(s) != 2 || s[1] != d.latentDim {
		panic(fmt.Sprintf("decoder: expected z [N,%d], got %v", d.latentDim, s))
	}
	n := z.Shape()[0]

	h := tensor.Cat([]*tensor.Tensor[B]{z, labels}, 1)
	h = d.bn0.Forward(d.dense1.Forward(h)).ReLU()
	h = h.Reshape(n, 256, 4, 4)
	h = d.bn1.Forward(d.deconv1.Forward(h)).ReLU()
	h = d.bn2.Forward(d.deconv2.Forward(h)).ReLU()
	h = d.sigmoid.Forward(d.deconv3.Forward(h))

	return h.Transpose(0, 2, 3, 1)
}

// Group returns the decoder's parameter group.
func (d *Decoder[B]) Group() *nn.ParameterGroup[B] {
	return d.group
}
