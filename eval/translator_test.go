package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samrelins/seq2seq-go/corpus"
	"github.com/samrelins/seq2seq-go/tensor"
	"github.com/samrelins/seq2seq-go/text"
	"github.com/samrelins/seq2seq-go/training"
)

func fixtureVocabs(t *testing.T) (*text.Vocabulary, *text.Vocabulary) {
	t.Helper()
	srcVocab, err := text.BuildVocabulary([]string{"der hund läuft", "die katze schläft"})
	require.NoError(t, err)
	tgtVocab, err := text.BuildVocabulary([]string{"the dog runs", "the cat sleeps"})
	require.NoError(t, err)
	return srcVocab, tgtVocab
}

func fixtureTranslator(t *testing.T) (*Translator, *training.Seq2Seq) {
	t.Helper()
	srcVocab, tgtVocab := fixtureVocabs(t)

	training.SetRandomSeed(17)
	model, err := training.NewSeq2Seq(training.Seq2SeqConfig{
		SrcVocabSize: srcVocab.Size(),
		TgtVocabSize: tgtVocab.Size(),
		SrcLen:       4,
		TgtLen:       4,
		EmbedDim:     8,
		HiddenDim:    12,
	})
	require.NoError(t, err)

	tr, err := NewTranslator(model, srcVocab, tgtVocab)
	require.NoError(t, err)
	return tr, model
}

func TestNewTranslatorValidatesVocabSizes(t *testing.T) {
	srcVocab, tgtVocab := fixtureVocabs(t)

	training.SetRandomSeed(17)
	model, err := training.NewSeq2Seq(training.Seq2SeqConfig{
		SrcVocabSize: srcVocab.Size() + 3,
		TgtVocabSize: tgtVocab.Size(),
		SrcLen:       4,
		TgtLen:       4,
		EmbedDim:     8,
		HiddenDim:    12,
	})
	require.NoError(t, err)

	_, err = NewTranslator(model, srcVocab, tgtVocab)
	assert.Error(t, err)

	_, err = NewTranslator(nil, srcVocab, tgtVocab)
	assert.Error(t, err)
}

func TestTranslateProducesVocabularyWords(t *testing.T) {
	tr, _ := fixtureTranslator(t)

	out, err := tr.Translate("der hund läuft")
	require.NoError(t, err)

	for _, word := range text.Tokenize(out) {
		_, ok := tr.tgtVocab.Lookup(word)
		assert.True(t, ok, "decoded word %q not in target vocabulary", word)
	}
}

func TestTranslateIsDeterministic(t *testing.T) {
	tr, _ := fixtureTranslator(t)

	first, err := tr.Translate("die katze schläft")
	require.NoError(t, err)
	second, err := tr.Translate("die katze schläft")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTranslateMatchesArgmaxOfScores(t *testing.T) {
	tr, model := fixtureTranslator(t)
	cfg := model.Config()

	sentence := "der hund läuft"
	ids := tr.srcVocab.Encode(sentence, cfg.SrcLen)

	input, err := tensor.NewTensor([]int{1, cfg.SrcLen}, tensor.Int32, append([]int32{}, ids...))
	require.NoError(t, err)
	model.Eval()
	scores, err := model.Forward(input)
	require.NoError(t, err)
	scoreData, err := scores.GetFloat32Data()
	require.NoError(t, err)

	wantIDs := make([]int32, cfg.TgtLen)
	for step := 0; step < cfg.TgtLen; step++ {
		row := scoreData[step*cfg.TgtVocabSize : (step+1)*cfg.TgtVocabSize]
		best := 0
		for j := 1; j < cfg.TgtVocabSize; j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		wantIDs[step] = int32(best)
	}

	got, err := tr.Translate(sentence)
	require.NoError(t, err)
	assert.Equal(t, tr.tgtVocab.Decode(wantIDs), got)
}

func TestTranslateAllRejectsWrongLengths(t *testing.T) {
	tr, _ := fixtureTranslator(t)

	_, err := tr.TranslateAll([][]int32{{1, 2}})
	assert.Error(t, err)
	_, err = tr.TranslateAll(nil)
	assert.Error(t, err)
}

func TestEvaluateReport(t *testing.T) {
	tr, _ := fixtureTranslator(t)

	pairs := []corpus.Pair{
		{Source: "der hund läuft", Target: "the dog runs"},
		{Source: "die katze schläft", Target: "the cat sleeps"},
	}
	report, err := tr.Evaluate(pairs, 1)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, report.BLEU, 0.0)
	assert.LessOrEqual(t, report.BLEU, 1.0)
	require.Len(t, report.Samples, 1)
	assert.Equal(t, "der hund läuft", report.Samples[0].Source)
	assert.Equal(t, "the dog runs", report.Samples[0].Reference)
	for _, word := range text.Tokenize(report.Samples[0].Candidate) {
		_, ok := tr.tgtVocab.Lookup(word)
		assert.True(t, ok, "candidate word %q not in target vocabulary", word)
	}
}

func TestEvaluateEmptyPartition(t *testing.T) {
	tr, _ := fixtureTranslator(t)
	_, err := tr.Evaluate(nil, 3)
	assert.Error(t, err)
}

func TestEvaluateSampleCountClamped(t *testing.T) {
	tr, _ := fixtureTranslator(t)

	pairs := []corpus.Pair{{Source: "der hund läuft", Target: "the dog runs"}}
	report, err := tr.Evaluate(pairs, 10)
	require.NoError(t, err)
	assert.Len(t, report.Samples, 1)
}
