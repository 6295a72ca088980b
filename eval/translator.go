// Package eval decodes translations from a trained model and scores them
// against reference sentences.
package eval

import (
	"fmt"

	"github.com/samrelins/seq2seq-go/tensor"
	"github.com/samrelins/seq2seq-go/text"
	"github.com/samrelins/seq2seq-go/training"
)

// Translator wraps a trained model with the vocabularies needed to map
// between sentences and id sequences
type Translator struct {
	model    *training.Seq2Seq
	srcVocab *text.Vocabulary
	tgtVocab *text.Vocabulary
}

// NewTranslator creates a translator. The vocabularies must be the ones
// the model was trained with.
func NewTranslator(model *training.Seq2Seq, srcVocab, tgtVocab *text.Vocabulary) (*Translator, error) {
	if model == nil {
		return nil, fmt.Errorf("model must not be nil")
	}
	if srcVocab == nil || tgtVocab == nil {
		return nil, fmt.Errorf("vocabularies must not be nil")
	}
	cfg := model.Config()
	if srcVocab.Size() != cfg.SrcVocabSize {
		return nil, fmt.Errorf("source vocabulary size %d does not match model %d", srcVocab.Size(), cfg.SrcVocabSize)
	}
	if tgtVocab.Size() != cfg.TgtVocabSize {
		return nil, fmt.Errorf("target vocabulary size %d does not match model %d", tgtVocab.Size(), cfg.TgtVocabSize)
	}
	return &Translator{
		model:    model,
		srcVocab: srcVocab,
		tgtVocab: tgtVocab,
	}, nil
}

// Translate greedily decodes a single sentence: each output step takes the
// highest-scoring vocabulary entry, and padding positions are dropped from
// the result
func (tr *Translator) Translate(sentence string) (string, error) {
	ids := tr.srcVocab.Encode(sentence, tr.model.Config().SrcLen)
	decoded, err := tr.decodeBatch([][]int32{ids})
	if err != nil {
		return "", err
	}
	return decoded[0], nil
}

// TranslateAll decodes a batch of already-encoded source sequences
func (tr *Translator) TranslateAll(sources [][]int32) ([]string, error) {
	return tr.decodeBatch(sources)
}

func (tr *Translator) decodeBatch(sources [][]int32) ([]string, error) {
	cfg := tr.model.Config()
	batch := len(sources)
	if batch == 0 {
		return nil, fmt.Errorf("no sequences to decode")
	}

	flat := make([]int32, 0, batch*cfg.SrcLen)
	for i, src := range sources {
		if len(src) != cfg.SrcLen {
			return nil, fmt.Errorf("sequence %d has length %d, expected %d", i, len(src), cfg.SrcLen)
		}
		flat = append(flat, src...)
	}
	input, err := tensor.NewTensor([]int{batch, cfg.SrcLen}, tensor.Int32, flat)
	if err != nil {
		return nil, err
	}

	tr.model.Eval()
	scores, err := tr.model.Forward(input)
	if err != nil {
		return nil, fmt.Errorf("forward pass failed: %v", err)
	}
	scoreData, err := scores.GetFloat32Data()
	if err != nil {
		return nil, err
	}

	sentences := make([]string, batch)
	V := cfg.TgtVocabSize
	for b := 0; b < batch; b++ {
		ids := make([]int32, cfg.TgtLen)
		for t := 0; t < cfg.TgtLen; t++ {
			row := scoreData[(b*cfg.TgtLen+t)*V : (b*cfg.TgtLen+t+1)*V]
			best := 0
			for j := 1; j < V; j++ {
				if row[j] > row[best] {
					best = j
				}
			}
			ids[t] = int32(best)
		}
		sentences[b] = tr.tgtVocab.Decode(ids)
	}
	return sentences, nil
}
