package main

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/samrelins/seq2seq-go/checkpoints"
	"github.com/samrelins/seq2seq-go/config"
	"github.com/samrelins/seq2seq-go/corpus"
	"github.com/samrelins/seq2seq-go/eval"
	"github.com/samrelins/seq2seq-go/text"
	"github.com/samrelins/seq2seq-go/training"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func run(cfg config.Config) error {
	training.SetRandomSeed(cfg.Seed)

	pairs, err := corpus.LoadURI(cfg.DataURI, corpus.Options{SampleCap: cfg.SampleCap})
	if err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}
	log.Printf("loaded %d sentence pairs from %s", len(pairs), cfg.DataURI)

	split, err := corpus.SplitPairs(pairs, cfg.Seed)
	if err != nil {
		return fmt.Errorf("splitting corpus: %w", err)
	}
	log.Printf("partitions: train=%d val=%d test=%d", len(split.Train), len(split.Val), len(split.Test))
	for i := 0; i < 3 && i < len(split.Train); i++ {
		log.Printf("example pair: %q -> %q", split.Train[i].Source, split.Train[i].Target)
	}

	srcVocab, err := text.BuildVocabulary(corpus.Sources(split.Train))
	if err != nil {
		return fmt.Errorf("building source vocabulary: %w", err)
	}
	tgtVocab, err := text.BuildVocabulary(corpus.Targets(split.Train))
	if err != nil {
		return fmt.Errorf("building target vocabulary: %w", err)
	}
	log.Printf("source vocabulary: %d entries, max length %d", srcVocab.Size(), srcVocab.MaxLen)
	log.Printf("target vocabulary: %d entries, max length %d", tgtVocab.Size(), tgtVocab.MaxLen)

	model, err := training.NewSeq2Seq(training.Seq2SeqConfig{
		SrcVocabSize: srcVocab.Size(),
		TgtVocabSize: tgtVocab.Size(),
		SrcLen:       srcVocab.MaxLen,
		TgtLen:       tgtVocab.MaxLen,
		EmbedDim:     cfg.EmbedDim,
		HiddenDim:    cfg.HiddenDim,
	})
	if err != nil {
		return fmt.Errorf("building model: %w", err)
	}
	spec, err := model.Spec()
	if err != nil {
		return fmt.Errorf("compiling model spec: %w", err)
	}
	log.Printf("model: %d layers, %d parameters", len(spec.Layers), spec.TotalParameters)

	trainLoader, err := makeLoader(split.Train, srcVocab, tgtVocab, cfg.BatchSize, true)
	if err != nil {
		return fmt.Errorf("building training loader: %w", err)
	}
	valLoader, err := makeLoader(split.Val, srcVocab, tgtVocab, cfg.BatchSize, false)
	if err != nil {
		return fmt.Errorf("building validation loader: %w", err)
	}

	format := checkpoints.FormatJSON
	filename := "best_model.json"
	if cfg.CheckpointFormat == "pb" {
		format = checkpoints.FormatPB
		filename = "best_model.pb"
	}
	manager := training.NewCheckpointManager(training.CheckpointConfig{
		SaveDirectory: cfg.CheckpointDir,
		Filename:      filename,
		Format:        format,
	})

	trainer, err := training.NewTrainer(model, training.NewCategoricalCrossEntropy(),
		training.NewDefaultAdam(model.Parameters(), cfg.LearningRate), manager,
		training.TrainerConfig{
			Epochs:        cfg.Epochs,
			LogEvery:      cfg.LogEvery,
			EarlyStopping: cfg.EarlyStopping,
			Patience:      cfg.Patience,
		}, nil)
	if err != nil {
		return fmt.Errorf("building trainer: %w", err)
	}

	if _, err := trainer.Fit(trainLoader, valLoader); err != nil {
		return fmt.Errorf("training: %w", err)
	}

	if manager.HasSaved() {
		if _, err := manager.LoadBest(model); err != nil {
			return fmt.Errorf("restoring best model: %w", err)
		}
		log.Printf("restored best model (val_loss=%.4f) from %s", manager.BestLoss(), manager.Path())
	}

	translator, err := eval.NewTranslator(model, srcVocab, tgtVocab)
	if err != nil {
		return fmt.Errorf("building translator: %w", err)
	}

	for _, partition := range []struct {
		name  string
		pairs []corpus.Pair
	}{
		{"train", split.Train},
		{"test", split.Test},
	} {
		report, err := translator.Evaluate(partition.pairs, cfg.ReportSamples)
		if err != nil {
			return fmt.Errorf("evaluating %s partition: %w", partition.name, err)
		}
		for _, sample := range report.Samples {
			log.Printf("[%s] src=%q ref=%q out=%q", partition.name, sample.Source, sample.Reference, sample.Candidate)
		}
		log.Printf("%s BLEU: %.4f", partition.name, report.BLEU)
	}

	return nil
}

func makeLoader(pairs []corpus.Pair, srcVocab, tgtVocab *text.Vocabulary, batchSize int, shuffle bool) (*training.DataLoader, error) {
	sources := srcVocab.EncodeAll(corpus.Sources(pairs), srcVocab.MaxLen)
	targets := tgtVocab.EncodeAll(corpus.Targets(pairs), tgtVocab.MaxLen)

	dataset, err := training.NewTranslationDataset(sources, targets)
	if err != nil {
		return nil, err
	}
	return training.NewDataLoader(dataset, batchSize, shuffle, nil), nil
}
