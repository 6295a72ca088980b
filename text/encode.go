package text

import (
	"strings"
)

// Encode maps a sentence to a fixed-length id sequence of length maxLen.
// Out-of-vocabulary tokens are dropped rather than substituted, which shifts
// the positions of any following words; shorter results are right-padded with
// the pad sentinel and longer results are truncated.
func (v *Vocabulary) Encode(sentence string, maxLen int) []int32 {
	seq := make([]int32, 0, maxLen)
	for _, tok := range Tokenize(sentence) {
		id, ok := v.Index[tok]
		if !ok {
			continue
		}
		if len(seq) == maxLen {
			break
		}
		seq = append(seq, id)
	}
	for len(seq) < maxLen {
		seq = append(seq, PadID)
	}
	return seq
}

// EncodeAll encodes a batch of sentences; every row has length maxLen.
func (v *Vocabulary) EncodeAll(sentences []string, maxLen int) [][]int32 {
	seqs := make([][]int32, len(sentences))
	for i, s := range sentences {
		seqs[i] = v.Encode(s, maxLen)
	}
	return seqs
}

// Decode converts an id sequence back to text via inverse lookup, joining
// with single spaces. Pad and out-of-range ids are omitted.
func (v *Vocabulary) Decode(seq []int32) string {
	words := make([]string, 0, len(seq))
	for _, id := range seq {
		w := v.Word(id)
		if w == "" {
			continue
		}
		words = append(words, w)
	}
	return strings.Join(words, " ")
}
