package layers

import (
	"fmt"
)

// LayerType represents the type of neural network layer
type LayerType int

const (
	Embedding LayerType = iota
	LSTM
	RepeatVector
	TimeDistributedDense
	Softmax
)

func (lt LayerType) String() string {
	switch lt {
	case Embedding:
		return "Embedding"
	case LSTM:
		return "LSTM"
	case RepeatVector:
		return "RepeatVector"
	case TimeDistributedDense:
		return "TimeDistributedDense"
	case Softmax:
		return "Softmax"
	default:
		return "Unknown"
	}
}

// LayerSpec defines layer configuration. This is pure configuration - no
// execution logic. The runtime modules in the training package are built
// from these specs, and checkpoints serialize them alongside the weights.
type LayerSpec struct {
	Type       LayerType              `json:"type"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`

	// Shape information (computed during model compilation)
	InputShape  []int `json:"input_shape,omitempty"`
	OutputShape []int `json:"output_shape,omitempty"`

	// Parameter metadata (computed during model compilation)
	ParameterShapes [][]int `json:"parameter_shapes,omitempty"`
	ParameterCount  int64   `json:"parameter_count,omitempty"`
}

// IntParam reads an integer layer parameter, tolerating the float64 values
// that appear after a JSON round trip.
func (ls LayerSpec) IntParam(key string) (int, error) {
	v, ok := ls.Parameters[key]
	if !ok {
		return 0, fmt.Errorf("layer %s missing parameter %q", ls.Name, key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("layer %s parameter %q has unexpected type %T", ls.Name, key, v)
	}
}

// BoolParam reads a boolean layer parameter.
func (ls LayerSpec) BoolParam(key string) (bool, error) {
	v, ok := ls.Parameters[key]
	if !ok {
		return false, fmt.Errorf("layer %s missing parameter %q", ls.Name, key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("layer %s parameter %q has unexpected type %T", ls.Name, key, v)
	}
	return b, nil
}

// ModelSpec defines a complete neural network model as layer configuration
type ModelSpec struct {
	Layers []LayerSpec `json:"layers"`

	// Compiled model information
	TotalParameters int64   `json:"total_parameters"`
	ParameterShapes [][]int `json:"parameter_shapes"`
	InputShape      []int   `json:"input_shape"`
	OutputShape     []int   `json:"output_shape"`
	Compiled        bool    `json:"compiled"`
}

// LayerFactory creates layer specifications (configuration only)
type LayerFactory struct{}

// NewFactory creates a new layer factory
func NewFactory() *LayerFactory {
	return &LayerFactory{}
}

// CreateEmbeddingSpec creates an embedding layer specification. mask_zero
// marks id 0 as padding to be skipped by downstream recurrences.
func (lf *LayerFactory) CreateEmbeddingSpec(vocabSize, embedDim int, maskZero bool, name string) LayerSpec {
	return LayerSpec{
		Type: Embedding,
		Name: name,
		Parameters: map[string]interface{}{
			"vocab_size": vocabSize,
			"embed_dim":  embedDim,
			"mask_zero":  maskZero,
		},
	}
}

// CreateLSTMSpec creates an LSTM layer specification. When return_sequences
// is false the layer emits only its final hidden state.
func (lf *LayerFactory) CreateLSTMSpec(units int, returnSequences bool, name string) LayerSpec {
	return LayerSpec{
		Type: LSTM,
		Name: name,
		Parameters: map[string]interface{}{
			"units":            units,
			"return_sequences": returnSequences,
		},
	}
}

// CreateRepeatVectorSpec creates a context-broadcast specification: the
// input vector is repeated steps times along a new time axis.
func (lf *LayerFactory) CreateRepeatVectorSpec(steps int, name string) LayerSpec {
	return LayerSpec{
		Type: RepeatVector,
		Name: name,
		Parameters: map[string]interface{}{
			"steps": steps,
		},
	}
}

// CreateTimeDistributedDenseSpec creates a per-timestep dense projection
// specification.
func (lf *LayerFactory) CreateTimeDistributedDenseSpec(outputSize int, useBias bool, name string) LayerSpec {
	return LayerSpec{
		Type: TimeDistributedDense,
		Name: name,
		Parameters: map[string]interface{}{
			"output_size": outputSize,
			"use_bias":    useBias,
		},
	}
}

// CreateSoftmaxSpec creates a Softmax activation specification
func (lf *LayerFactory) CreateSoftmaxSpec(axis int, name string) LayerSpec {
	return LayerSpec{
		Type: Softmax,
		Name: name,
		Parameters: map[string]interface{}{
			"axis": axis,
		},
	}
}

// ModelBuilder helps construct neural network models
type ModelBuilder struct {
	layers     []LayerSpec
	inputShape []int
	compiled   bool
}

// NewModelBuilder creates a new model builder. The input shape excludes the
// batch dimension: a sequence model takes [seqLen].
func NewModelBuilder(inputShape []int) *ModelBuilder {
	return &ModelBuilder{
		layers:     make([]LayerSpec, 0),
		inputShape: inputShape,
		compiled:   false,
	}
}

// AddLayer adds a layer to the model
func (mb *ModelBuilder) AddLayer(layer LayerSpec) *ModelBuilder {
	mb.layers = append(mb.layers, layer)
	mb.compiled = false
	return mb
}

// AddEmbedding adds an embedding layer to the model
func (mb *ModelBuilder) AddEmbedding(vocabSize, embedDim int, maskZero bool, name string) *ModelBuilder {
	return mb.AddLayer(NewFactory().CreateEmbeddingSpec(vocabSize, embedDim, maskZero, name))
}

// AddLSTM adds an LSTM layer to the model
func (mb *ModelBuilder) AddLSTM(units int, returnSequences bool, name string) *ModelBuilder {
	return mb.AddLayer(NewFactory().CreateLSTMSpec(units, returnSequences, name))
}

// AddRepeatVector adds a context-broadcast layer to the model
func (mb *ModelBuilder) AddRepeatVector(steps int, name string) *ModelBuilder {
	return mb.AddLayer(NewFactory().CreateRepeatVectorSpec(steps, name))
}

// AddTimeDistributedDense adds a per-timestep dense projection to the model
func (mb *ModelBuilder) AddTimeDistributedDense(outputSize int, useBias bool, name string) *ModelBuilder {
	return mb.AddLayer(NewFactory().CreateTimeDistributedDenseSpec(outputSize, useBias, name))
}

// AddSoftmax adds a Softmax activation to the model
func (mb *ModelBuilder) AddSoftmax(axis int, name string) *ModelBuilder {
	return mb.AddLayer(NewFactory().CreateSoftmaxSpec(axis, name))
}

// Compile walks the layer stack, propagating shapes and computing parameter
// metadata. It must be called before the result is used to build a runtime
// model or a checkpoint.
func (mb *ModelBuilder) Compile() (*ModelSpec, error) {
	if len(mb.layers) == 0 {
		return nil, fmt.Errorf("cannot compile an empty model")
	}

	spec := &ModelSpec{
		Layers:     make([]LayerSpec, len(mb.layers)),
		InputShape: mb.inputShape,
	}
	copy(spec.Layers, mb.layers)

	currentShape := mb.inputShape
	var totalParams int64

	for i := range spec.Layers {
		layer := &spec.Layers[i]
		layer.InputShape = currentShape

		outputShape, paramShapes, err := inferLayerShapes(*layer, currentShape)
		if err != nil {
			return nil, fmt.Errorf("failed to compile layer %d (%s): %v", i, layer.Name, err)
		}

		layer.OutputShape = outputShape
		layer.ParameterShapes = paramShapes

		var layerParams int64
		for _, shape := range paramShapes {
			count := int64(1)
			for _, dim := range shape {
				count *= int64(dim)
			}
			layerParams += count
		}
		layer.ParameterCount = layerParams
		totalParams += layerParams

		spec.ParameterShapes = append(spec.ParameterShapes, paramShapes...)
		currentShape = outputShape
	}

	spec.OutputShape = currentShape
	spec.TotalParameters = totalParams
	spec.Compiled = true
	mb.compiled = true

	return spec, nil
}

// inferLayerShapes computes a layer's output shape and parameter shapes from
// its input shape (batch dimension excluded).
func inferLayerShapes(layer LayerSpec, inputShape []int) ([]int, [][]int, error) {
	switch layer.Type {
	case Embedding:
		if len(inputShape) != 1 {
			return nil, nil, fmt.Errorf("embedding expects input shape [seqLen], got %v", inputShape)
		}
		vocabSize, err := layer.IntParam("vocab_size")
		if err != nil {
			return nil, nil, err
		}
		embedDim, err := layer.IntParam("embed_dim")
		if err != nil {
			return nil, nil, err
		}
		return []int{inputShape[0], embedDim}, [][]int{{vocabSize, embedDim}}, nil

	case LSTM:
		if len(inputShape) != 2 {
			return nil, nil, fmt.Errorf("lstm expects input shape [steps, features], got %v", inputShape)
		}
		units, err := layer.IntParam("units")
		if err != nil {
			return nil, nil, err
		}
		returnSequences, err := layer.BoolParam("return_sequences")
		if err != nil {
			return nil, nil, err
		}
		features := inputShape[1]
		paramShapes := [][]int{
			{features, 4 * units}, // input kernel
			{units, 4 * units},    // recurrent kernel
			{4 * units},           // bias
		}
		if returnSequences {
			return []int{inputShape[0], units}, paramShapes, nil
		}
		return []int{units}, paramShapes, nil

	case RepeatVector:
		if len(inputShape) != 1 {
			return nil, nil, fmt.Errorf("repeat vector expects input shape [features], got %v", inputShape)
		}
		steps, err := layer.IntParam("steps")
		if err != nil {
			return nil, nil, err
		}
		return []int{steps, inputShape[0]}, nil, nil

	case TimeDistributedDense:
		if len(inputShape) != 2 {
			return nil, nil, fmt.Errorf("time-distributed dense expects input shape [steps, features], got %v", inputShape)
		}
		outputSize, err := layer.IntParam("output_size")
		if err != nil {
			return nil, nil, err
		}
		useBias, err := layer.BoolParam("use_bias")
		if err != nil {
			return nil, nil, err
		}
		paramShapes := [][]int{{inputShape[1], outputSize}}
		if useBias {
			paramShapes = append(paramShapes, []int{outputSize})
		}
		return []int{inputShape[0], outputSize}, paramShapes, nil

	case Softmax:
		return inputShape, nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported layer type: %s", layer.Type)
	}
}
