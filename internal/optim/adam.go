package optim

import (
	"math"

	"github.com/born-ml/exprgraph/internal/backend"
	"github.com/born-ml/exprgraph/internal/graph"
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
type Adam struct {
	params  []*graph.ParamNode
	lr      float32
	beta1   float32
	beta2   float32
	eps     float32
	t       int   // Timestep for bias correction
	m       slots // First moment estimates
	v       slots // Second moment estimates
	backend backend.Backend
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float32    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer, filling unset hyperparameters with
// the defaults above.
func NewAdam(params []*graph.ParamNode, config AdamConfig, b backend.Backend) *Adam {
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
	return &Adam{
		params:  params,
		lr:      config.LR,
		beta1:   config.Betas[0],
		beta2:   config.Betas[1],
		eps:     config.Eps,
		m:       newSlots(b),
		v:       newSlots(b),
		backend: b,
	}
}

// Step performs a single optimization step.
func (a *Adam) Step() error {
	a.backend.Synchronize()
	a.t++
	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, p := range a.params {
		grad := p.Grad()
		if grad == nil {
			continue
		}
		if err := checkParam(p); err != nil {
			return err
		}
		m, err := a.m.get(p)
		if err != nil {
			return err
		}
		v, err := a.v.get(p)
		if err != nil {
			return err
		}

		g, mData, vData, w := grad.AsFloat32(), m.AsFloat32(), v.AsFloat32(), p.Val().AsFloat32()
		for i := range w {
			mData[i] = a.beta1*mData[i] + (1-a.beta1)*g[i]
			vData[i] = a.beta2*vData[i] + (1-a.beta2)*g[i]*g[i]
			mHat := mData[i] / biasCorrection1
			vHat := vData[i] / biasCorrection2
			w[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
		}
	}
	return nil
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam) ZeroGrad() {
	zeroGrads(a.backend, a.params)
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float32) {
	a.lr = lr
}

// GetTimestep returns the number of steps taken.
func (a *Adam) GetTimestep() int {
	return a.t
}

// Close releases the moment buffers.
func (a *Adam) Close() {
	a.m.release()
	a.v.release()
}
