package cvae

import (
	"fmt"

	"github.com/born-ml/cvae/internal/tensor"
)

// LogEpsilon keeps log() finite when a reconstruction saturates at 0 or 1.
const LogEpsilon = 1e-5

// Loss holds the scalar values of one loss evaluation, each a batch mean.
type Loss struct {
	Total          float32
	Reconstruction float32
	KL             float32
}

// LossTerms are the differentiable loss scalars.
//
// Total is the optimized objective; Reconstruction and KL are reported
// alongside it.
type LossTerms[B tensor.Backend] struct {
	Total          *tensor.Tensor[B]
	Reconstruction *tensor.Tensor[B]
	KL             *tensor.Tensor[B]
}

// Values extracts the scalar values.
func (t LossTerms[B]) Values() Loss {
	return Loss{
		Total:          t.Total.Item(),
		Reconstruction: t.Reconstruction.Item(),
		KL:             t.KL.Item(),
	}
}

// ReconstructionLoss is the per-example Bernoulli cross-entropy
//
//	-Σ_pixels [x·log(x̂ + ε) + (1 - x)·log(1 - x̂ + ε)]
//
// for images x and reconstructions x̂ of the same shape [N, ...].
// Returns [N].
func ReconstructionLoss[B tensor.Backend](x, xRec *tensor.Tensor[B]) *tensor.Tensor[B] {
	if !x.Shape().Equal(xRec.Shape()) {
		panic(fmt.Sprintf("reconstruction loss: shapes %v and %v differ", x.Shape(), xRec.Shape()))
	}
	n := x.Shape()[0]

	logP := xRec.AddScalar(LogEpsilon).Log()
	logQ := xRec.Neg().AddScalar(1 + LogEpsilon).Log()
	ll := x.Mul(logP).Add(x.Neg().AddScalar(1).Mul(logQ))

	return ll.Reshape(n, -1).SumDim(1, false).Neg()
}

// KLDivergence is the per-example KL(q(z|x,y) || N(0, I))
//
//	0.5·Σ (exp(logvar) + μ² - 1 - logvar)
//
// Returns [N].
func KLDivergence[B tensor.Backend](post Posterior[B]) *tensor.Tensor[B] {
	mu, logVar := post.Mu, post.LogVar
	terms := logVar.Exp().Add(mu.Mul(mu)).AddScalar(-1).Sub(logVar)
	return terms.SumDim(1, false).MulScalar(0.5)
}

// ELBOLoss assembles the negative ELBO averaged over the batch.
func ELBOLoss[B tensor.Backend](x, xRec *tensor.Tensor[B], post Posterior[B]) LossTerms[B] {
	rec := ReconstructionLoss(x, xRec)
	kl := KLDivergence(post)
	return LossTerms[B]{
		Total:          rec.Add(kl).Mean(),
		Reconstruction: rec.Mean(),
		KL:             kl.Mean(),
	}
}
