package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/cvae/internal/nn"
	"github.com/born-ml/cvae/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
//
// Moment buffers are owned by the optimizer and never appear in a
// ParameterGroup, so they are not part of checkpoints.
type Adam[B tensor.Backend] struct {
	params []*nn.Parameter[B]
	lr     float32
	beta1  float32
	beta2  float32
	eps    float32
	t      int                                   // Timestep for bias correction
	m      map[*nn.Parameter[B]]*tensor.RawTensor // First moment estimates
	v      map[*nn.Parameter[B]]*tensor.RawTensor // Second moment estimates
	device tensor.Device
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float32    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer.
//
// Zero fields of config take the defaults LR 0.001, Betas [0.9, 0.999],
// Eps 1e-8. The same parameter must not be listed twice.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	seen := make(map[*nn.Parameter[B]]struct{}, len(params))
	for _, p := range params {
		if _, dup := seen[p]; dup {
			panic(fmt.Sprintf("adam: parameter %q listed twice", p.Name()))
		}
		seen[p] = struct{}{}
	}

	return &Adam[B]{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make(map[*nn.Parameter[B]]*tensor.RawTensor),
		v:      make(map[*nn.Parameter[B]]*tensor.RawTensor),
		device: backend.Device(),
	}
}

// Step performs a single optimization step using Adam algorithm.
//
// Parameters with no gradient are skipped.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++

	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}
		if !grad.Shape().Equal(param.Tensor().Shape()) {
			panic(fmt.Sprintf("adam: gradient shape %v != parameter %q shape %v",
				grad.Shape(), param.Name(), param.Tensor().Shape()))
		}
		param.SetGrad(tensor.New(grad, param.Tensor().Backend()))

		m, ok := a.m[param]
		if !ok {
			m = tensor.MustNewRaw(param.Tensor().Shape(), a.device)
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = tensor.MustNewRaw(param.Tensor().Shape(), a.device)
			a.v[param] = v
		}

		a.updateParameter(param, grad.Data(), m.Data(), v.Data(), biasCorrection1, biasCorrection2)
	}
}

// updateParameter performs Adam update for a single parameter.
func (a *Adam[B]) updateParameter(
	param *nn.Parameter[B],
	gradData, mData, vData []float32,
	biasCorrection1, biasCorrection2 float32,
) {
	paramData := param.Tensor().Raw().Data()
	for i := range paramData {
		g := gradData[i]

		mData[i] = a.beta1*mData[i] + (1.0-a.beta1)*g
		vData[i] = a.beta2*vData[i] + (1.0-a.beta2)*g*g

		mHat := mData[i] / biasCorrection1
		vHat := vData[i] / biasCorrection2

		paramData[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam[B]) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam[B]) SetLR(lr float32) {
	a.lr = lr
}

// GetTimestep returns the current timestep.
func (a *Adam[B]) GetTimestep() int {
	return a.t
}

// NumParameters returns how many parameters the optimizer updates.
func (a *Adam[B]) NumParameters() int {
	return len(a.params)
}
