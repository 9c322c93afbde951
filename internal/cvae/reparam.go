package cvae

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/cvae/internal/tensor"
)

// Reparameterize draws z = exp(0.5·logvar)·ε + μ.
//
// ε is supplied by the caller, which keeps the only source of randomness
// outside the graph: ε = 0 yields z = μ exactly.
func Reparameterize[B tensor.Backend](post Posterior[B], eps *tensor.Tensor[B]) *tensor.Tensor[B] {
	if !eps.Shape().Equal(post.Mu.Shape()) {
		panic(fmt.Sprintf("reparameterize: eps shape %v != mu shape %v", eps.Shape(), post.Mu.Shape()))
	}
	sigma := post.LogVar.MulScalar(0.5).Exp()
	return sigma.Mul(eps).Add(post.Mu)
}

// SampleNoise draws ε ~ N(0, I) with shape [n, latentDim].
func SampleNoise[B tensor.Backend](rng *rand.Rand, n, latentDim int, backend B) *tensor.Tensor[B] {
	return tensor.Randn(tensor.Shape{n, latentDim}, rng, backend)
}
