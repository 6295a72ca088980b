package checkpoints

import (
	"fmt"

	"github.com/samrelins/seq2seq-go/layers"
	"github.com/samrelins/seq2seq-go/tensor"
)

// parameterRoles maps a layer type to the names of its parameters in the
// order a model exposes them
func parameterRoles(layerType layers.LayerType) []string {
	switch layerType {
	case layers.Embedding:
		return []string{"weight"}
	case layers.LSTM:
		return []string{"kernel", "recurrent_kernel", "bias"}
	case layers.TimeDistributedDense:
		return []string{"weight", "bias"}
	default:
		return nil
	}
}

// ExtractWeights converts a model's parameter tensors into named weight
// records by walking the model spec. The params slice must list the
// parameters of each spec layer in order.
func ExtractWeights(spec *layers.ModelSpec, params []*tensor.Tensor) ([]WeightTensor, error) {
	if spec == nil {
		return nil, fmt.Errorf("model spec is nil")
	}

	weights := make([]WeightTensor, 0, len(params))
	idx := 0
	for _, layer := range spec.Layers {
		roles := parameterRoles(layer.Type)
		expected := len(layer.ParameterShapes)
		if len(roles) < expected {
			return nil, fmt.Errorf("layer %s has %d parameters but only %d known roles",
				layer.Name, expected, len(roles))
		}

		for p := 0; p < expected; p++ {
			if idx >= len(params) {
				return nil, fmt.Errorf("ran out of parameter tensors at layer %s", layer.Name)
			}
			param := params[idx]
			idx++

			data, err := param.GetFloat32Data()
			if err != nil {
				return nil, fmt.Errorf("layer %s parameter %s: %v", layer.Name, roles[p], err)
			}

			shape := make([]int, len(param.Shape))
			copy(shape, param.Shape)
			dataCopy := make([]float32, len(data))
			copy(dataCopy, data)

			weights = append(weights, WeightTensor{
				Name:  fmt.Sprintf("%s.%s", layer.Name, roles[p]),
				Shape: shape,
				Data:  dataCopy,
				Layer: layer.Name,
				Type:  roles[p],
			})
		}
	}

	if idx != len(params) {
		return nil, fmt.Errorf("model has %d parameter tensors but spec accounts for %d", len(params), idx)
	}
	return weights, nil
}

// WeightsToTensors converts named weight records back into tensors in
// record order, ready to load into a model
func WeightsToTensors(weights []WeightTensor) ([]*tensor.Tensor, error) {
	tensors := make([]*tensor.Tensor, 0, len(weights))
	for _, w := range weights {
		data := make([]float32, len(w.Data))
		copy(data, w.Data)
		t, err := tensor.NewTensor(w.Shape, tensor.Float32, data)
		if err != nil {
			return nil, fmt.Errorf("weight %s: %v", w.Name, err)
		}
		tensors = append(tensors, t)
	}
	return tensors, nil
}
