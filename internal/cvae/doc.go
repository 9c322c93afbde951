// Package cvae implements a conditional variational autoencoder for 28×28
// grayscale digits.
//
// The encoder maps an image and its one-hot label to the mean and
// log-variance of a diagonal Gaussian posterior over a latent code. The
// decoder maps a latent code and a label back to per-pixel Bernoulli means.
// Training minimizes the negative ELBO: Bernoulli reconstruction
// cross-entropy plus the KL divergence to a standard-normal prior.
//
// Shapes at every public boundary are NHWC:
//
//	images  [N, 28, 28, 1]   values in [0, 1]
//	labels  [N, 10]          one-hot
//	latent  [N, LatentDim]
//
// Noise ε is always an explicit input, so a forward pass is a pure function
// of parameters and inputs.
package cvae
