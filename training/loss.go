package training

import (
	"fmt"
	"math"

	"github.com/samrelins/seq2seq-go/tensor"
)

// Loss interface defines methods that all loss functions must implement
type Loss interface {
	Forward(predicted, target *tensor.Tensor) (*tensor.Tensor, error)
	Backward(predicted, target *tensor.Tensor) (*tensor.Tensor, error)
}

// CategoricalCrossEntropy computes cross-entropy between unnormalized
// scores and one-hot targets, with the softmax fused in. Inputs are
// [batch, steps, classes] and the loss is averaged over batch*steps.
type CategoricalCrossEntropy struct {
	probs []float32 // cached softmax output from the last Forward
}

// NewCategoricalCrossEntropy creates the loss function
func NewCategoricalCrossEntropy() *CategoricalCrossEntropy {
	return &CategoricalCrossEntropy{}
}

const logEps = 1e-9

// Forward computes the mean cross-entropy loss as a scalar tensor
func (ce *CategoricalCrossEntropy) Forward(predicted, target *tensor.Tensor) (*tensor.Tensor, error) {
	if err := ce.checkShapes(predicted, target); err != nil {
		return nil, err
	}

	scores, err := predicted.GetFloat32Data()
	if err != nil {
		return nil, err
	}
	labels, err := target.GetFloat32Data()
	if err != nil {
		return nil, err
	}

	classes := predicted.Shape[len(predicted.Shape)-1]
	rows := predicted.NumElems / classes

	probs := make([]float32, len(scores))
	var total float64
	for r := 0; r < rows; r++ {
		row := scores[r*classes : (r+1)*classes]
		out := probs[r*classes : (r+1)*classes]

		maxV := row[0]
		for _, v := range row[1:] {
			if v > maxV {
				maxV = v
			}
		}
		var sum float64
		for j, v := range row {
			e := math.Exp(float64(v - maxV))
			out[j] = float32(e)
			sum += e
		}
		for j := range out {
			out[j] = float32(float64(out[j]) / sum)
		}

		lrow := labels[r*classes : (r+1)*classes]
		for j, y := range lrow {
			if y != 0 {
				total -= float64(y) * math.Log(float64(out[j])+logEps)
			}
		}
	}

	ce.probs = probs
	mean := total / float64(rows)
	return tensor.NewTensor([]int{1}, tensor.Float32, []float32{float32(mean)})
}

// Backward returns the gradient of the mean loss with respect to the
// scores: (softmax(scores) - target) / rows
func (ce *CategoricalCrossEntropy) Backward(predicted, target *tensor.Tensor) (*tensor.Tensor, error) {
	if err := ce.checkShapes(predicted, target); err != nil {
		return nil, err
	}
	if ce.probs == nil || len(ce.probs) != predicted.NumElems {
		if _, err := ce.Forward(predicted, target); err != nil {
			return nil, err
		}
	}

	labels, err := target.GetFloat32Data()
	if err != nil {
		return nil, err
	}

	classes := predicted.Shape[len(predicted.Shape)-1]
	rows := predicted.NumElems / classes
	scale := float32(1.0 / float64(rows))

	grad := make([]float32, predicted.NumElems)
	for i := range grad {
		grad[i] = (ce.probs[i] - labels[i]) * scale
	}
	return tensor.NewTensor(predicted.Shape, tensor.Float32, grad)
}

func (ce *CategoricalCrossEntropy) checkShapes(predicted, target *tensor.Tensor) error {
	if predicted.DType != tensor.Float32 || target.DType != tensor.Float32 {
		return fmt.Errorf("cross-entropy requires Float32 tensors")
	}
	if len(predicted.Shape) != len(target.Shape) {
		return fmt.Errorf("predicted shape %v does not match target shape %v", predicted.Shape, target.Shape)
	}
	for i := range predicted.Shape {
		if predicted.Shape[i] != target.Shape[i] {
			return fmt.Errorf("predicted shape %v does not match target shape %v", predicted.Shape, target.Shape)
		}
	}
	if predicted.Shape[len(predicted.Shape)-1] < 2 {
		return fmt.Errorf("cross-entropy requires at least 2 classes")
	}
	return nil
}
