package text

import (
	"fmt"

	"github.com/samrelins/seq2seq-go/tensor"
)

// OneHot converts a target id sequence into per-timestep one-hot probability
// vectors of width vocabSize, shaped [len(seq), vocabSize]. Every row has
// exactly one entry equal to 1, at the true id's position. Ids outside
// [0, vocabSize) are rejected; the sequence encoder guarantees they cannot
// occur, so hitting this error means the vocabulary and the sequence were
// built against different corpora.
func OneHot(seq []int32, vocabSize int) (*tensor.Tensor, error) {
	if vocabSize <= 0 {
		return nil, fmt.Errorf("vocab size must be positive, got %d", vocabSize)
	}
	if len(seq) == 0 {
		return nil, fmt.Errorf("cannot one-hot encode an empty sequence")
	}

	labels, err := tensor.Zeros([]int{len(seq), vocabSize}, tensor.Float32)
	if err != nil {
		return nil, err
	}

	data := labels.Data.([]float32)
	for t, id := range seq {
		if id < 0 || int(id) >= vocabSize {
			return nil, fmt.Errorf("id %d at timestep %d out of range [0, %d)", id, t, vocabSize)
		}
		data[t*vocabSize+int(id)] = 1.0
	}

	return labels, nil
}

// OneHotAll encodes a batch of sequences into a single [batch, steps, vocab]
// label tensor. All sequences must share the same length.
func OneHotAll(seqs [][]int32, vocabSize int) (*tensor.Tensor, error) {
	if len(seqs) == 0 {
		return nil, fmt.Errorf("cannot one-hot encode an empty batch")
	}

	steps := len(seqs[0])
	labels, err := tensor.Zeros([]int{len(seqs), steps, vocabSize}, tensor.Float32)
	if err != nil {
		return nil, err
	}

	data := labels.Data.([]float32)
	for i, seq := range seqs {
		if len(seq) != steps {
			return nil, fmt.Errorf("sequence %d has length %d, want %d", i, len(seq), steps)
		}
		for t, id := range seq {
			if id < 0 || int(id) >= vocabSize {
				return nil, fmt.Errorf("id %d at sequence %d timestep %d out of range [0, %d)", id, i, t, vocabSize)
			}
			data[(i*steps+t)*vocabSize+int(id)] = 1.0
		}
	}

	return labels, nil
}
