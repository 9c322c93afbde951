package nn

import (
	"fmt"

	"github.com/born-ml/cvae/internal/tensor"
)

// BatchNorm defaults.
const (
	DefaultBatchNormEps      = 1e-5
	DefaultBatchNormMomentum = 0.1
)

// BatchNorm normalizes each feature (channel) over the batch.
//
// Accepts [N, C] or [N, C, H, W] inputs. In training mode the batch mean and
// biased variance are used and the running statistics are updated:
//
//	running = (1 - momentum) * running + momentum * batch
//
// with the unbiased variance. In eval mode the running statistics are used.
//
//	y = (x - mean) / sqrt(var + eps) * gamma + beta
//
// Running statistics are buffers: saved with the state dict, never optimized.
type BatchNorm[B tensor.Backend] struct {
	numFeatures int
	eps         float32
	momentum    float32
	training    bool

	gamma *Parameter[B] // [C], init 1
	beta  *Parameter[B] // [C], init 0

	runningMean *tensor.RawTensor // [C], init 0
	runningVar  *tensor.RawTensor // [C], init 1
}

// NewBatchNorm creates a batch normalization layer in training mode.
func NewBatchNorm[B tensor.Backend](numFeatures int, backend B) *BatchNorm[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm: invalid num_features %d", numFeatures))
	}
	runningVar := tensor.MustNewRaw(tensor.Shape{numFeatures}, backend.Device())
	runningVar.Fill(1)

	return &BatchNorm[B]{
		numFeatures: numFeatures,
		eps:         DefaultBatchNormEps,
		momentum:    DefaultBatchNormMomentum,
		training:    true,
		gamma:       NewParameter("weight", Ones(tensor.Shape{numFeatures}, backend)),
		beta:        NewParameter("bias", Zeros(tensor.Shape{numFeatures}, backend)),
		runningMean: tensor.MustNewRaw(tensor.Shape{numFeatures}, backend.Device()),
		runningVar:  runningVar,
	}
}

// Forward normalizes input.
func (bn *BatchNorm[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	shape := input.Shape()
	var reduceDims []int
	var paramShape []int
	switch len(shape) {
	case 2:
		reduceDims = []int{0}
		paramShape = []int{1, bn.numFeatures}
	case 4:
		reduceDims = []int{0, 2, 3}
		paramShape = []int{1, bn.numFeatures, 1, 1}
	default:
		panic(fmt.Sprintf("batchnorm: expected 2D or 4D input, got shape %v", shape))
	}
	if shape[1] != bn.numFeatures {
		panic(fmt.Sprintf("batchnorm: input features %d != expected %d", shape[1], bn.numFeatures))
	}

	backend := input.Backend()
	var normalized *tensor.Tensor[B]
	if bn.training {
		mean := input
		for _, d := range reduceDims {
			mean = mean.MeanDim(d, true)
		}
		centered := input.Sub(mean)
		variance := centered.Mul(centered)
		for _, d := range reduceDims {
			variance = variance.MeanDim(d, true)
		}
		normalized = centered.Mul(variance.AddScalar(bn.eps).Rsqrt())

		bn.updateRunningStats(mean.Data(), variance.Data(), shape.NumElements()/bn.numFeatures)
	} else {
		mean := tensor.New(bn.runningMean, backend).Reshape(paramShape...)
		invStd := tensor.New(bn.runningVar, backend).AddScalar(bn.eps).Rsqrt().Reshape(paramShape...)
		normalized = input.Sub(mean).Mul(invStd)
	}

	gamma := bn.gamma.Tensor().Reshape(paramShape...)
	beta := bn.beta.Tensor().Reshape(paramShape...)
	return normalized.Mul(gamma).Add(beta)
}

// updateRunningStats folds one batch into the running statistics.
// n is the number of values each statistic was computed from.
func (bn *BatchNorm[B]) updateRunningStats(mean, variance []float32, n int) {
	correction := float32(1)
	if n > 1 {
		correction = float32(n) / float32(n-1)
	}
	rm, rv := bn.runningMean.Data(), bn.runningVar.Data()
	for c := range rm {
		rm[c] = (1-bn.momentum)*rm[c] + bn.momentum*mean[c]
		rv[c] = (1-bn.momentum)*rv[c] + bn.momentum*variance[c]*correction
	}
}

// SetTraining switches between batch statistics (true) and running statistics (false).
func (bn *BatchNorm[B]) SetTraining(training bool) {
	bn.training = training
}

// Training reports whether the layer uses batch statistics.
func (bn *BatchNorm[B]) Training() bool {
	return bn.training
}

// Parameters returns [gamma, beta].
func (bn *BatchNorm[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.gamma, bn.beta}
}

// RunningMean returns the running mean buffer.
func (bn *BatchNorm[B]) RunningMean() *tensor.RawTensor {
	return bn.runningMean
}

// RunningVar returns the running variance buffer.
func (bn *BatchNorm[B]) RunningVar() *tensor.RawTensor {
	return bn.runningVar
}

// StateDict returns parameters and running statistics.
func (bn *BatchNorm[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight":       bn.gamma.Tensor().Raw(),
		"bias":         bn.beta.Tensor().Raw(),
		"running_mean": bn.runningMean,
		"running_var":  bn.runningVar,
	}
}

// LoadStateDict loads parameters and running statistics.
func (bn *BatchNorm[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for key, dst := range bn.StateDict() {
		if err := loadInto(dst, stateDict, key); err != nil {
			return err
		}
	}
	return nil
}

// String returns a string representation of the layer.
func (bn *BatchNorm[B]) String() string {
	return fmt.Sprintf("BatchNorm(num_features=%d, eps=%g, momentum=%g)", bn.numFeatures, bn.eps, bn.momentum)
}
