package training

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/samrelins/seq2seq-go/tensor"
)

// Global random source for deterministic initialization
var globalRng *rand.Rand = rand.New(rand.NewSource(1))

// SetRandomSeed sets the global random seed for deterministic weight initialization
func SetRandomSeed(seed int64) {
	globalRng = rand.New(rand.NewSource(seed))
}

// Module interface defines methods that all neural network layers must implement
type Module interface {
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)
	Parameters() []*tensor.Tensor // Returns trainable parameters (tensors with requiresGrad=true)
	Train()                       // Sets module to training mode
	Eval()                        // Sets module to evaluation mode
	IsTraining() bool             // Returns true if in training mode
}

// Linear implements a fully connected (dense) layer: y = xW + b
type Linear struct {
	weight   *tensor.Tensor
	bias     *tensor.Tensor
	training bool

	input *tensor.Tensor // cached for backward
}

// NewLinear creates a new Linear layer
func NewLinear(inputSize, outputSize int, bias bool) (*Linear, error) {
	// Initialize weights using Xavier/Glorot uniform initialization
	// W ~ U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
	bound := math.Sqrt(6.0 / float64(inputSize+outputSize))

	weightData := make([]float32, inputSize*outputSize)
	for i := range weightData {
		weightData[i] = float32((globalRng.Float64()*2.0 - 1.0) * bound)
	}

	weight, err := tensor.NewTensor([]int{inputSize, outputSize}, tensor.Float32, weightData)
	if err != nil {
		return nil, fmt.Errorf("failed to create weight tensor: %v", err)
	}
	weight.SetRequiresGrad(true)

	linear := &Linear{
		weight:   weight,
		training: true,
	}

	if bias {
		biasData := make([]float32, outputSize)
		biasT, err := tensor.NewTensor([]int{outputSize}, tensor.Float32, biasData)
		if err != nil {
			return nil, fmt.Errorf("failed to create bias tensor: %v", err)
		}
		biasT.SetRequiresGrad(true)
		linear.bias = biasT
	}

	return linear, nil
}

// Forward computes y = xW + b for a 2D input [batch, inputSize]
func (l *Linear) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 2 {
		return nil, fmt.Errorf("linear layer expects 2D input, got %dD", len(input.Shape))
	}
	if input.Shape[1] != l.weight.Shape[0] {
		return nil, fmt.Errorf("input feature size %d does not match weight input size %d",
			input.Shape[1], l.weight.Shape[0])
	}

	output, err := tensor.MatMul(input, l.weight)
	if err != nil {
		return nil, fmt.Errorf("matmul failed: %v", err)
	}

	if l.bias != nil {
		outData, _ := output.GetFloat32Data()
		biasData, _ := l.bias.GetFloat32Data()
		outSize := l.weight.Shape[1]
		for i := 0; i < output.Shape[0]; i++ {
			row := outData[i*outSize : (i+1)*outSize]
			for j := range row {
				row[j] += biasData[j]
			}
		}
	}

	if l.training {
		l.input = input
	}
	return output, nil
}

// Backward accumulates parameter gradients and returns the gradient with
// respect to the layer input. Forward must have been called in training mode.
func (l *Linear) Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error) {
	if l.input == nil {
		return nil, fmt.Errorf("backward called before forward")
	}

	// dW = x^T * dY
	inputT, err := tensor.Transpose(l.input)
	if err != nil {
		return nil, fmt.Errorf("input transpose failed: %v", err)
	}
	gradWeight, err := tensor.MatMul(inputT, gradOutput)
	if err != nil {
		return nil, fmt.Errorf("weight gradient matmul failed: %v", err)
	}
	if err := l.weight.AccumulateGrad(gradWeight); err != nil {
		return nil, fmt.Errorf("weight gradient accumulation failed: %v", err)
	}

	// db = sum over batch of dY
	if l.bias != nil {
		gradBias, err := tensor.Sum(gradOutput, 0, false)
		if err != nil {
			return nil, fmt.Errorf("bias gradient sum failed: %v", err)
		}
		if err := l.bias.AccumulateGrad(gradBias); err != nil {
			return nil, fmt.Errorf("bias gradient accumulation failed: %v", err)
		}
	}

	// dX = dY * W^T
	weightT, err := tensor.Transpose(l.weight)
	if err != nil {
		return nil, fmt.Errorf("weight transpose failed: %v", err)
	}
	gradInput, err := tensor.MatMul(gradOutput, weightT)
	if err != nil {
		return nil, fmt.Errorf("input gradient matmul failed: %v", err)
	}
	return gradInput, nil
}

// Parameters returns the trainable parameters
func (l *Linear) Parameters() []*tensor.Tensor {
	params := []*tensor.Tensor{l.weight}
	if l.bias != nil {
		params = append(params, l.bias)
	}
	return params
}

// Weight returns the weight tensor
func (l *Linear) Weight() *tensor.Tensor {
	return l.weight
}

// Bias returns the bias tensor (may be nil)
func (l *Linear) Bias() *tensor.Tensor {
	return l.bias
}

// Train sets the module to training mode
func (l *Linear) Train() {
	l.training = true
}

// Eval sets the module to evaluation mode
func (l *Linear) Eval() {
	l.training = false
	l.input = nil
}

// IsTraining returns true if in training mode
func (l *Linear) IsTraining() bool {
	return l.training
}
