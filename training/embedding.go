package training

import (
	"fmt"

	"github.com/samrelins/seq2seq-go/tensor"
)

// Embedding maps integer token ids to dense vectors. With maskZero enabled,
// id 0 is the padding token: its row is held at zero and excluded from
// gradient updates, and Mask reports padded positions so recurrent layers
// can skip them.
type Embedding struct {
	weight   *tensor.Tensor // [vocabSize, embedDim]
	maskZero bool
	training bool

	input *tensor.Tensor // cached ids for backward
}

// NewEmbedding creates an embedding layer with weights drawn from U(-0.05, 0.05)
func NewEmbedding(vocabSize, embedDim int, maskZero bool) (*Embedding, error) {
	if vocabSize <= 0 || embedDim <= 0 {
		return nil, fmt.Errorf("invalid embedding dimensions: vocab=%d embed=%d", vocabSize, embedDim)
	}

	weight, err := tensor.RandomUniform([]int{vocabSize, embedDim}, -0.05, 0.05, globalRng)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding weights: %v", err)
	}
	if maskZero {
		data, _ := weight.GetFloat32Data()
		for j := 0; j < embedDim; j++ {
			data[j] = 0
		}
	}
	weight.SetRequiresGrad(true)

	return &Embedding{
		weight:   weight,
		maskZero: maskZero,
		training: true,
	}, nil
}

// Forward looks up embedding rows for a batch of id sequences [batch, steps]
// and returns a [batch, steps, embedDim] tensor.
func (e *Embedding) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if input.DType != tensor.Int32 {
		return nil, fmt.Errorf("embedding expects Int32 input, got %s", input.DType)
	}
	if len(input.Shape) != 2 {
		return nil, fmt.Errorf("embedding expects 2D input [batch, steps], got %dD", len(input.Shape))
	}

	ids, err := input.GetInt32Data()
	if err != nil {
		return nil, err
	}
	weights, _ := e.weight.GetFloat32Data()

	batch, steps := input.Shape[0], input.Shape[1]
	vocabSize, embedDim := e.weight.Shape[0], e.weight.Shape[1]

	outData := make([]float32, batch*steps*embedDim)
	for i, id := range ids {
		if id < 0 || int(id) >= vocabSize {
			return nil, fmt.Errorf("token id %d out of range for vocabulary of size %d", id, vocabSize)
		}
		copy(outData[i*embedDim:(i+1)*embedDim], weights[int(id)*embedDim:(int(id)+1)*embedDim])
	}

	output, err := tensor.NewTensor([]int{batch, steps, embedDim}, tensor.Float32, outData)
	if err != nil {
		return nil, err
	}

	if e.training {
		e.input = input
	}
	return output, nil
}

// Mask returns a [batch][steps] validity mask for an id batch. Without
// maskZero every position is valid.
func (e *Embedding) Mask(input *tensor.Tensor) ([][]bool, error) {
	if len(input.Shape) != 2 {
		return nil, fmt.Errorf("expected 2D input [batch, steps], got %dD", len(input.Shape))
	}
	ids, err := input.GetInt32Data()
	if err != nil {
		return nil, err
	}

	batch, steps := input.Shape[0], input.Shape[1]
	mask := make([][]bool, batch)
	for b := 0; b < batch; b++ {
		mask[b] = make([]bool, steps)
		for t := 0; t < steps; t++ {
			mask[b][t] = !e.maskZero || ids[b*steps+t] != 0
		}
	}
	return mask, nil
}

// Backward scatters the output gradient [batch, steps, embedDim] into the
// rows of the weight gradient. The padding row stays frozen when maskZero
// is enabled.
func (e *Embedding) Backward(gradOutput *tensor.Tensor) error {
	if e.input == nil {
		return fmt.Errorf("backward called before forward")
	}

	ids, err := e.input.GetInt32Data()
	if err != nil {
		return err
	}
	gradData, err := gradOutput.GetFloat32Data()
	if err != nil {
		return err
	}

	embedDim := e.weight.Shape[1]
	gradWeight := make([]float32, e.weight.NumElems)
	for i, id := range ids {
		if e.maskZero && id == 0 {
			continue
		}
		row := gradWeight[int(id)*embedDim : (int(id)+1)*embedDim]
		src := gradData[i*embedDim : (i+1)*embedDim]
		for j := range row {
			row[j] += src[j]
		}
	}

	gradTensor, err := tensor.NewTensor(e.weight.Shape, tensor.Float32, gradWeight)
	if err != nil {
		return err
	}
	return e.weight.AccumulateGrad(gradTensor)
}

// Parameters returns the trainable parameters
func (e *Embedding) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{e.weight}
}

// Weight returns the embedding matrix
func (e *Embedding) Weight() *tensor.Tensor {
	return e.weight
}

// Train sets the module to training mode
func (e *Embedding) Train() {
	e.training = true
}

// Eval sets the module to evaluation mode
func (e *Embedding) Eval() {
	e.training = false
	e.input = nil
}

// IsTraining returns true if in training mode
func (e *Embedding) IsTraining() bool {
	return e.training
}
