package training

import (
	"fmt"
	"math"
	"sync"

	"github.com/samrelins/seq2seq-go/tensor"
)

// Optimizer interface defines the methods that all optimizers must implement
type Optimizer interface {
	Step() error      // Updates model parameters based on gradients
	ZeroGrad()        // Resets gradients to zero for all parameters
	GetLR() float64   // Gets current learning rate
	SetLR(lr float64) // Sets learning rate
}

// SGD implements Stochastic Gradient Descent optimizer
type SGD struct {
	parameters   []*tensor.Tensor
	learningRate float64
	momentum     float64
	weightDecay  float64
	dampening    float64
	nesterov     bool
	velocities   map[*tensor.Tensor]*tensor.Tensor
	mutex        sync.RWMutex
}

// NewSGD creates a new SGD optimizer
func NewSGD(parameters []*tensor.Tensor, lr float64, momentum float64, weightDecay float64, dampening float64, nesterov bool) *SGD {
	sgd := &SGD{
		parameters:   parameters,
		learningRate: lr,
		momentum:     momentum,
		weightDecay:  weightDecay,
		dampening:    dampening,
		nesterov:     nesterov,
		velocities:   make(map[*tensor.Tensor]*tensor.Tensor),
	}

	if momentum > 0 {
		for _, param := range parameters {
			if param.RequiresGrad() {
				velocity, _ := tensor.Zeros(param.Shape, param.DType)
				sgd.velocities[param] = velocity
			}
		}
	}

	return sgd
}

// Step performs a single optimization step
func (sgd *SGD) Step() error {
	sgd.mutex.Lock()
	defer sgd.mutex.Unlock()

	for _, param := range sgd.parameters {
		if !param.RequiresGrad() || param.Grad() == nil {
			continue
		}

		grad := param.Grad()

		if sgd.weightDecay > 0 {
			// grad = grad + weight_decay * param.data
			weightDecayTerm, err := tensor.Mul(param, tensor.FromScalar(sgd.weightDecay, param.DType))
			if err != nil {
				return fmt.Errorf("weight decay multiplication failed: %v", err)
			}
			grad, err = tensor.Add(grad, weightDecayTerm)
			if err != nil {
				return fmt.Errorf("weight decay addition failed: %v", err)
			}
		}

		if sgd.momentum > 0 {
			velocity := sgd.velocities[param]
			if velocity == nil {
				v, err := tensor.Zeros(param.Shape, param.DType)
				if err != nil {
					return fmt.Errorf("velocity initialization failed: %v", err)
				}
				velocity = v
				sgd.velocities[param] = velocity
			}

			// velocity = momentum * velocity + (1 - dampening) * grad
			momentumTerm, err := tensor.Mul(velocity, tensor.FromScalar(sgd.momentum, param.DType))
			if err != nil {
				return fmt.Errorf("momentum term calculation failed: %v", err)
			}

			gradTerm, err := tensor.Mul(grad, tensor.FromScalar(1.0-sgd.dampening, param.DType))
			if err != nil {
				return fmt.Errorf("gradient term calculation failed: %v", err)
			}

			newVelocity, err := tensor.Add(momentumTerm, gradTerm)
			if err != nil {
				return fmt.Errorf("velocity update failed: %v", err)
			}

			err = velocity.SetData(newVelocity.Data)
			if err != nil {
				return fmt.Errorf("velocity data update failed: %v", err)
			}

			if sgd.nesterov {
				// grad = grad + momentum * velocity
				nesterovTerm, err := tensor.Mul(newVelocity, tensor.FromScalar(sgd.momentum, param.DType))
				if err != nil {
					return fmt.Errorf("nesterov term calculation failed: %v", err)
				}
				grad, err = tensor.Add(grad, nesterovTerm)
				if err != nil {
					return fmt.Errorf("nesterov update failed: %v", err)
				}
			} else {
				grad = newVelocity
			}
		}

		// param.data = param.data - lr * grad
		lrGrad, err := tensor.Mul(grad, tensor.FromScalar(sgd.learningRate, param.DType))
		if err != nil {
			return fmt.Errorf("learning rate scaling failed: %v", err)
		}

		newData, err := tensor.Sub(param, lrGrad)
		if err != nil {
			return fmt.Errorf("parameter update failed: %v", err)
		}

		err = param.SetData(newData.Data)
		if err != nil {
			return fmt.Errorf("parameter data update failed: %v", err)
		}
	}

	return nil
}

// ZeroGrad resets gradients to zero for all parameters
func (sgd *SGD) ZeroGrad() {
	tensor.ZeroGrad(sgd.parameters)
}

// GetLR returns the current learning rate
func (sgd *SGD) GetLR() float64 {
	sgd.mutex.RLock()
	defer sgd.mutex.RUnlock()
	return sgd.learningRate
}

// SetLR sets the learning rate
func (sgd *SGD) SetLR(lr float64) {
	sgd.mutex.Lock()
	defer sgd.mutex.Unlock()
	sgd.learningRate = lr
}

// Adam implements the Adam optimizer
type Adam struct {
	parameters  []*tensor.Tensor
	lr          float64
	beta1       float64
	beta2       float64
	eps         float64
	weightDecay float64
	step        int64
	m           map[*tensor.Tensor]*tensor.Tensor // First moment estimates
	v           map[*tensor.Tensor]*tensor.Tensor // Second moment estimates
	mutex       sync.RWMutex
}

// NewAdam creates a new Adam optimizer
func NewAdam(parameters []*tensor.Tensor, lr, beta1, beta2, eps, weightDecay float64) *Adam {
	adam := &Adam{
		parameters:  parameters,
		lr:          lr,
		beta1:       beta1,
		beta2:       beta2,
		eps:         eps,
		weightDecay: weightDecay,
		step:        0,
		m:           make(map[*tensor.Tensor]*tensor.Tensor),
		v:           make(map[*tensor.Tensor]*tensor.Tensor),
	}

	for _, param := range parameters {
		if param.RequiresGrad() {
			m, _ := tensor.Zeros(param.Shape, param.DType)
			v, _ := tensor.Zeros(param.Shape, param.DType)
			adam.m[param] = m
			adam.v[param] = v
		}
	}

	return adam
}

// NewDefaultAdam creates an Adam optimizer with the standard hyperparameters
func NewDefaultAdam(parameters []*tensor.Tensor, lr float64) *Adam {
	return NewAdam(parameters, lr, 0.9, 0.999, 1e-8, 0.0)
}

// Step performs a single optimization step
func (adam *Adam) Step() error {
	adam.mutex.Lock()
	defer adam.mutex.Unlock()

	adam.step++

	// Bias correction factors
	bias1 := 1.0 - math.Pow(adam.beta1, float64(adam.step))
	bias2 := 1.0 - math.Pow(adam.beta2, float64(adam.step))

	for _, param := range adam.parameters {
		if !param.RequiresGrad() || param.Grad() == nil {
			continue
		}

		gradData, err := param.Grad().GetFloat32Data()
		if err != nil {
			return fmt.Errorf("gradient data access failed: %v", err)
		}

		m := adam.m[param]
		v := adam.v[param]
		if m == nil || v == nil {
			mNew, err := tensor.Zeros(param.Shape, param.DType)
			if err != nil {
				return fmt.Errorf("first moment initialization failed: %v", err)
			}
			vNew, err := tensor.Zeros(param.Shape, param.DType)
			if err != nil {
				return fmt.Errorf("second moment initialization failed: %v", err)
			}
			m = mNew
			v = vNew
			adam.m[param] = m
			adam.v[param] = v
		}

		mData, _ := m.GetFloat32Data()
		vData, _ := v.GetFloat32Data()
		paramData, err := param.GetFloat32Data()
		if err != nil {
			return fmt.Errorf("parameter data access failed: %v", err)
		}

		for i := range paramData {
			g := float64(gradData[i])
			if adam.weightDecay > 0 {
				g += adam.weightDecay * float64(paramData[i])
			}

			// m = beta1 * m + (1 - beta1) * grad
			mi := adam.beta1*float64(mData[i]) + (1.0-adam.beta1)*g
			// v = beta2 * v + (1 - beta2) * grad^2
			vi := adam.beta2*float64(vData[i]) + (1.0-adam.beta2)*g*g
			mData[i] = float32(mi)
			vData[i] = float32(vi)

			mHat := mi / bias1
			vHat := vi / bias2
			paramData[i] -= float32(adam.lr * mHat / (math.Sqrt(vHat) + adam.eps))
		}
	}

	return nil
}

// ZeroGrad resets gradients to zero for all parameters
func (adam *Adam) ZeroGrad() {
	tensor.ZeroGrad(adam.parameters)
}

// GetLR returns the current learning rate
func (adam *Adam) GetLR() float64 {
	adam.mutex.RLock()
	defer adam.mutex.RUnlock()
	return adam.lr
}

// SetLR sets the learning rate
func (adam *Adam) SetLR(lr float64) {
	adam.mutex.Lock()
	defer adam.mutex.Unlock()
	adam.lr = lr
}

// StepCount returns the number of optimization steps taken
func (adam *Adam) StepCount() int64 {
	adam.mutex.RLock()
	defer adam.mutex.RUnlock()
	return adam.step
}
