package eval

import (
	"fmt"
	"strings"

	"github.com/samrelins/seq2seq-go/corpus"
	"github.com/samrelins/seq2seq-go/text"
)

// Sample pairs a decoded translation with its source and reference for
// inspection
type Sample struct {
	Source    string
	Reference string
	Candidate string
}

// Report holds the evaluation result for one partition
type Report struct {
	BLEU    float64
	Samples []Sample
}

// Evaluate decodes every pair in the partition and scores the decoded
// sentences against the references with corpus BLEU. sampleCount sets how
// many leading pairs are kept in the report for inspection.
func (tr *Translator) Evaluate(pairs []corpus.Pair, sampleCount int) (*Report, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no pairs to evaluate")
	}

	srcLen := tr.model.Config().SrcLen
	sources := make([][]int32, len(pairs))
	for i, pair := range pairs {
		sources[i] = tr.srcVocab.Encode(pair.Source, srcLen)
	}

	candidates, err := tr.TranslateAll(sources)
	if err != nil {
		return nil, fmt.Errorf("decoding failed: %v", err)
	}

	// references go through the same text normalization as the training
	// data but keep words outside the model vocabulary
	references := make([]string, len(pairs))
	for i, pair := range pairs {
		references[i] = strings.Join(text.Tokenize(pair.Target), " ")
	}

	if sampleCount > len(pairs) {
		sampleCount = len(pairs)
	}
	samples := make([]Sample, sampleCount)
	for i := 0; i < sampleCount; i++ {
		samples[i] = Sample{
			Source:    pairs[i].Source,
			Reference: references[i],
			Candidate: candidates[i],
		}
	}

	return &Report{
		BLEU:    CorpusBLEU(candidates, references),
		Samples: samples,
	}, nil
}
