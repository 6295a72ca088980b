package training

import (
	"fmt"

	"github.com/samrelins/seq2seq-go/layers"
	"github.com/samrelins/seq2seq-go/tensor"
)

// Seq2SeqConfig describes the fixed encoder-decoder topology: embedding
// with zero-masking, an LSTM encoder reduced to its final state, the state
// repeated across the target length, an LSTM decoder and a per-timestep
// dense projection onto the target vocabulary.
type Seq2SeqConfig struct {
	SrcVocabSize int
	TgtVocabSize int
	SrcLen       int
	TgtLen       int
	EmbedDim     int
	HiddenDim    int
}

// Validate checks that every dimension is usable
func (c Seq2SeqConfig) Validate() error {
	if c.SrcVocabSize <= 0 || c.TgtVocabSize <= 0 {
		return fmt.Errorf("vocabulary sizes must be positive, got src=%d tgt=%d", c.SrcVocabSize, c.TgtVocabSize)
	}
	if c.SrcLen <= 0 || c.TgtLen <= 0 {
		return fmt.Errorf("sequence lengths must be positive, got src=%d tgt=%d", c.SrcLen, c.TgtLen)
	}
	if c.EmbedDim <= 0 || c.HiddenDim <= 0 {
		return fmt.Errorf("layer sizes must be positive, got embed=%d hidden=%d", c.EmbedDim, c.HiddenDim)
	}
	return nil
}

// Seq2Seq is the translation model. Forward maps a batch of padded source
// id sequences [batch, srcLen] to unnormalized target scores
// [batch, tgtLen, tgtVocabSize]; the softmax is fused into the loss, and
// greedy decoding takes the argmax which the softmax does not change.
type Seq2Seq struct {
	config Seq2SeqConfig

	embedding  *Embedding
	encoder    *LSTM
	decoder    *LSTM
	projection *Linear

	training bool

	// cached between Forward and Backward
	batch int
}

// NewSeq2Seq builds the model with freshly initialized weights
func NewSeq2Seq(config Seq2SeqConfig) (*Seq2Seq, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedding, err := NewEmbedding(config.SrcVocabSize, config.EmbedDim, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %v", err)
	}
	encoder, err := NewLSTM(config.EmbedDim, config.HiddenDim, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %v", err)
	}
	decoder, err := NewLSTM(config.HiddenDim, config.HiddenDim, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %v", err)
	}
	projection, err := NewLinear(config.HiddenDim, config.TgtVocabSize, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create projection: %v", err)
	}

	return &Seq2Seq{
		config:     config,
		embedding:  embedding,
		encoder:    encoder,
		decoder:    decoder,
		projection: projection,
		training:   true,
	}, nil
}

// Config returns the model configuration
func (m *Seq2Seq) Config() Seq2SeqConfig {
	return m.config
}

// Forward runs the full encoder-decoder pass
func (m *Seq2Seq) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 2 || input.Shape[1] != m.config.SrcLen {
		return nil, fmt.Errorf("expected input shape [batch, %d], got %v", m.config.SrcLen, input.Shape)
	}
	batch := input.Shape[0]
	m.batch = batch

	embedded, err := m.embedding.Forward(input)
	if err != nil {
		return nil, fmt.Errorf("embedding forward failed: %v", err)
	}
	mask, err := m.embedding.Mask(input)
	if err != nil {
		return nil, fmt.Errorf("mask computation failed: %v", err)
	}

	state, err := m.encoder.ForwardMasked(embedded, mask)
	if err != nil {
		return nil, fmt.Errorf("encoder forward failed: %v", err)
	}

	repeated, err := m.repeatState(state)
	if err != nil {
		return nil, err
	}

	decoded, err := m.decoder.Forward(repeated)
	if err != nil {
		return nil, fmt.Errorf("decoder forward failed: %v", err)
	}

	flat, err := decoded.Reshape([]int{batch * m.config.TgtLen, m.config.HiddenDim})
	if err != nil {
		return nil, err
	}
	scores, err := m.projection.Forward(flat)
	if err != nil {
		return nil, fmt.Errorf("projection forward failed: %v", err)
	}
	return scores.Reshape([]int{batch, m.config.TgtLen, m.config.TgtVocabSize})
}

// repeatState tiles the encoder state [batch, hidden] across the target
// length to [batch, tgtLen, hidden]
func (m *Seq2Seq) repeatState(state *tensor.Tensor) (*tensor.Tensor, error) {
	data, err := state.GetFloat32Data()
	if err != nil {
		return nil, err
	}
	batch := state.Shape[0]
	H := m.config.HiddenDim
	T := m.config.TgtLen

	out := make([]float32, batch*T*H)
	for b := 0; b < batch; b++ {
		src := data[b*H : (b+1)*H]
		for t := 0; t < T; t++ {
			copy(out[(b*T+t)*H:(b*T+t+1)*H], src)
		}
	}
	return tensor.NewTensor([]int{batch, T, H}, tensor.Float32, out)
}

// Backward propagates the score gradient [batch, tgtLen, tgtVocabSize]
// through the whole model, accumulating parameter gradients
func (m *Seq2Seq) Backward(gradScores *tensor.Tensor) error {
	batch := m.batch
	T := m.config.TgtLen
	H := m.config.HiddenDim

	flat, err := gradScores.Reshape([]int{batch * T, m.config.TgtVocabSize})
	if err != nil {
		return err
	}
	gradDecodedFlat, err := m.projection.Backward(flat)
	if err != nil {
		return fmt.Errorf("projection backward failed: %v", err)
	}
	gradDecoded, err := gradDecodedFlat.Reshape([]int{batch, T, H})
	if err != nil {
		return err
	}

	gradRepeated, err := m.decoder.Backward(gradDecoded)
	if err != nil {
		return fmt.Errorf("decoder backward failed: %v", err)
	}

	// collapse the tiled state gradient back to [batch, hidden]
	repData, err := gradRepeated.GetFloat32Data()
	if err != nil {
		return err
	}
	gradState := make([]float32, batch*H)
	for b := 0; b < batch; b++ {
		for t := 0; t < T; t++ {
			src := repData[(b*T+t)*H : (b*T+t+1)*H]
			for j := 0; j < H; j++ {
				gradState[b*H+j] += src[j]
			}
		}
	}
	gradStateT, err := tensor.NewTensor([]int{batch, H}, tensor.Float32, gradState)
	if err != nil {
		return err
	}

	gradEmbedded, err := m.encoder.Backward(gradStateT)
	if err != nil {
		return fmt.Errorf("encoder backward failed: %v", err)
	}

	if err := m.embedding.Backward(gradEmbedded); err != nil {
		return fmt.Errorf("embedding backward failed: %v", err)
	}
	return nil
}

// Parameters returns all trainable parameters in a stable order:
// embedding weight, encoder kernel/recurrent/bias, decoder
// kernel/recurrent/bias, projection weight/bias
func (m *Seq2Seq) Parameters() []*tensor.Tensor {
	params := m.embedding.Parameters()
	params = append(params, m.encoder.Parameters()...)
	params = append(params, m.decoder.Parameters()...)
	params = append(params, m.projection.Parameters()...)
	return params
}

// LoadWeights replaces every parameter's data with the given tensors,
// which must match Parameters() in order and shape
func (m *Seq2Seq) LoadWeights(weights []*tensor.Tensor) error {
	params := m.Parameters()
	if len(weights) != len(params) {
		return fmt.Errorf("expected %d weight tensors, got %d", len(params), len(weights))
	}
	for i, w := range weights {
		if len(w.Shape) != len(params[i].Shape) {
			return fmt.Errorf("weight %d shape %v does not match parameter shape %v", i, w.Shape, params[i].Shape)
		}
		for j := range w.Shape {
			if w.Shape[j] != params[i].Shape[j] {
				return fmt.Errorf("weight %d shape %v does not match parameter shape %v", i, w.Shape, params[i].Shape)
			}
		}
		if err := params[i].SetData(w.Data); err != nil {
			return fmt.Errorf("failed to load weight %d: %v", i, err)
		}
	}
	return nil
}

// Spec describes the model topology for checkpointing and summaries
func (m *Seq2Seq) Spec() (*layers.ModelSpec, error) {
	builder := layers.NewModelBuilder([]int{m.config.SrcLen})
	builder.AddEmbedding(m.config.SrcVocabSize, m.config.EmbedDim, true, "embedding").
		AddLSTM(m.config.HiddenDim, false, "encoder").
		AddRepeatVector(m.config.TgtLen, "repeat").
		AddLSTM(m.config.HiddenDim, true, "decoder").
		AddTimeDistributedDense(m.config.TgtVocabSize, true, "projection").
		AddSoftmax(-1, "softmax")
	return builder.Compile()
}

// Embedding returns the embedding layer
func (m *Seq2Seq) Embedding() *Embedding { return m.embedding }

// Encoder returns the encoder LSTM
func (m *Seq2Seq) Encoder() *LSTM { return m.encoder }

// Decoder returns the decoder LSTM
func (m *Seq2Seq) Decoder() *LSTM { return m.decoder }

// Projection returns the output projection layer
func (m *Seq2Seq) Projection() *Linear { return m.projection }

// Train sets the model and all layers to training mode
func (m *Seq2Seq) Train() {
	m.training = true
	m.embedding.Train()
	m.encoder.Train()
	m.decoder.Train()
	m.projection.Train()
}

// Eval sets the model and all layers to evaluation mode
func (m *Seq2Seq) Eval() {
	m.training = false
	m.embedding.Eval()
	m.encoder.Eval()
	m.decoder.Eval()
	m.projection.Eval()
}

// IsTraining returns true if in training mode
func (m *Seq2Seq) IsTraining() bool {
	return m.training
}
