package training

import (
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/samrelins/seq2seq-go/checkpoints"
)

func trainerFixture(t *testing.T, dir string) (*Trainer, *DataLoader, *DataLoader) {
	t.Helper()
	SetRandomSeed(21)

	cfg := Seq2SeqConfig{
		SrcVocabSize: 6,
		TgtVocabSize: 5,
		SrcLen:       3,
		TgtLen:       2,
		EmbedDim:     4,
		HiddenDim:    6,
	}
	model, err := NewSeq2Seq(cfg)
	if err != nil {
		t.Fatalf("NewSeq2Seq failed: %v", err)
	}

	sources := [][]int32{
		{1, 2, 0}, {3, 4, 5}, {2, 3, 0}, {1, 5, 4},
		{4, 1, 0}, {5, 2, 3}, {3, 1, 0}, {2, 4, 0},
	}
	targets := [][]int32{
		{1, 0}, {2, 3}, {4, 0}, {3, 1},
		{2, 0}, {1, 4}, {3, 0}, {4, 2},
	}
	trainDS, err := NewTranslationDataset(sources[:6], targets[:6])
	if err != nil {
		t.Fatalf("train dataset failed: %v", err)
	}
	valDS, err := NewTranslationDataset(sources[6:], targets[6:])
	if err != nil {
		t.Fatalf("val dataset failed: %v", err)
	}

	trainLoader := NewDataLoader(trainDS, 2, true, rand.New(rand.NewSource(1)))
	valLoader := NewDataLoader(valDS, 2, false, nil)

	var manager *CheckpointManager
	if dir != "" {
		manager = NewCheckpointManager(CheckpointConfig{
			SaveDirectory: dir,
			Filename:      "best_model.json",
			Format:        checkpoints.FormatJSON,
		})
	}

	trainer, err := NewTrainer(model, NewCategoricalCrossEntropy(),
		NewDefaultAdam(model.Parameters(), 0.01), manager,
		TrainerConfig{Epochs: 3}, log.New(os.Stderr, "", 0))
	if err != nil {
		t.Fatalf("NewTrainer failed: %v", err)
	}
	return trainer, trainLoader, valLoader
}

func TestTrainerValidatesConfig(t *testing.T) {
	SetRandomSeed(21)
	model, _ := NewSeq2Seq(smallModelConfig())

	if _, err := NewTrainer(nil, NewCategoricalCrossEntropy(), NewDefaultAdam(nil, 0.01), nil, TrainerConfig{Epochs: 1}, nil); err == nil {
		t.Error("expected error for nil model")
	}
	if _, err := NewTrainer(model, NewCategoricalCrossEntropy(), NewDefaultAdam(model.Parameters(), 0.01), nil, TrainerConfig{Epochs: 0}, nil); err == nil {
		t.Error("expected error for zero epochs")
	}
	if _, err := NewTrainer(model, NewCategoricalCrossEntropy(), NewDefaultAdam(model.Parameters(), 0.01), nil, TrainerConfig{Epochs: 1, EarlyStopping: true, Patience: -1}, nil); err == nil {
		t.Error("expected error for negative patience")
	}
}

func TestTrainerEarlyStopping(t *testing.T) {
	SetRandomSeed(21)
	model, err := NewSeq2Seq(Seq2SeqConfig{
		SrcVocabSize: 6,
		TgtVocabSize: 5,
		SrcLen:       3,
		TgtLen:       2,
		EmbedDim:     4,
		HiddenDim:    6,
	})
	if err != nil {
		t.Fatalf("NewSeq2Seq failed: %v", err)
	}

	sources := [][]int32{{1, 2, 0}, {3, 4, 5}, {2, 3, 0}, {1, 5, 4}}
	targets := [][]int32{{1, 0}, {2, 3}, {4, 0}, {3, 1}}
	trainDS, err := NewTranslationDataset(sources[:3], targets[:3])
	if err != nil {
		t.Fatalf("train dataset failed: %v", err)
	}
	valDS, err := NewTranslationDataset(sources[3:], targets[3:])
	if err != nil {
		t.Fatalf("val dataset failed: %v", err)
	}
	trainLoader := NewDataLoader(trainDS, 2, true, rand.New(rand.NewSource(1)))
	valLoader := NewDataLoader(valDS, 2, false, nil)

	// A zero learning rate keeps validation loss flat. The first epoch sets
	// the best loss and the second exhausts the patience budget.
	trainer, err := NewTrainer(model, NewCategoricalCrossEntropy(),
		NewDefaultAdam(model.Parameters(), 0), nil,
		TrainerConfig{Epochs: 10, EarlyStopping: true, Patience: 1},
		log.New(os.Stderr, "", 0))
	if err != nil {
		t.Fatalf("NewTrainer failed: %v", err)
	}

	history, err := trainer.Fit(trainLoader, valLoader)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].ValLoss != history[1].ValLoss {
		t.Errorf("validation loss changed with zero learning rate: %v vs %v",
			history[0].ValLoss, history[1].ValLoss)
	}
}

func TestTrainerEarlyStoppingOffRunsAllEpochs(t *testing.T) {
	trainer, trainLoader, valLoader := trainerFixture(t, "")

	history, err := trainer.Fit(trainLoader, valLoader)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if len(history) != trainer.config.Epochs {
		t.Errorf("history length = %d, want %d", len(history), trainer.config.Epochs)
	}
}

func TestTrainerFitProducesHistory(t *testing.T) {
	trainer, trainLoader, valLoader := trainerFixture(t, "")

	history, err := trainer.Fit(trainLoader, valLoader)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	for i, stats := range history {
		if stats.Epoch != i+1 {
			t.Errorf("history[%d].Epoch = %d, want %d", i, stats.Epoch, i+1)
		}
		if stats.TrainLoss <= 0 || stats.ValLoss <= 0 {
			t.Errorf("epoch %d has non-positive losses: train=%f val=%f", stats.Epoch, stats.TrainLoss, stats.ValLoss)
		}
	}
}

func TestTrainerSavesBestCheckpoint(t *testing.T) {
	dir := t.TempDir()
	trainer, trainLoader, valLoader := trainerFixture(t, dir)

	history, err := trainer.Fit(trainLoader, valLoader)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	// the first epoch always improves on the initial sentinel
	if !history[0].Improved {
		t.Error("first epoch should write a snapshot")
	}

	path := filepath.Join(dir, "best_model.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("best model file missing: %v", err)
	}

	// the persisted best loss must match the minimum seen
	best := history[0].ValLoss
	for _, stats := range history[1:] {
		if stats.ValLoss < best {
			best = stats.ValLoss
		}
	}
	if trainer.manager.BestLoss() != best {
		t.Errorf("manager best loss %f, want %f", trainer.manager.BestLoss(), best)
	}
	if !trainer.manager.HasSaved() {
		t.Error("manager reports no snapshot saved")
	}
}

func TestCheckpointManagerSkipsWorseLoss(t *testing.T) {
	dir := t.TempDir()
	SetRandomSeed(21)
	model, _ := NewSeq2Seq(smallModelConfig())

	manager := NewCheckpointManager(CheckpointConfig{
		SaveDirectory: dir,
		Format:        checkpoints.FormatJSON,
	})

	saved, err := manager.SaveIfBest(model, checkpoints.TrainingState{Epoch: 1}, 2.0)
	if err != nil {
		t.Fatalf("SaveIfBest failed: %v", err)
	}
	if !saved {
		t.Error("first save should succeed")
	}

	saved, err = manager.SaveIfBest(model, checkpoints.TrainingState{Epoch: 2}, 3.0)
	if err != nil {
		t.Fatalf("SaveIfBest failed: %v", err)
	}
	if saved {
		t.Error("worse loss should not overwrite the snapshot")
	}

	saved, err = manager.SaveIfBest(model, checkpoints.TrainingState{Epoch: 3}, 1.5)
	if err != nil {
		t.Fatalf("SaveIfBest failed: %v", err)
	}
	if !saved {
		t.Error("improved loss should overwrite the snapshot")
	}
	if manager.BestLoss() != 1.5 {
		t.Errorf("best loss = %f, want 1.5", manager.BestLoss())
	}
}

func TestCheckpointManagerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	SetRandomSeed(33)
	model, _ := NewSeq2Seq(smallModelConfig())

	manager := NewCheckpointManager(CheckpointConfig{
		SaveDirectory: dir,
		Format:        checkpoints.FormatJSON,
	})
	if _, err := manager.SaveIfBest(model, checkpoints.TrainingState{Epoch: 4, Step: 40}, 0.8); err != nil {
		t.Fatalf("SaveIfBest failed: %v", err)
	}

	SetRandomSeed(99)
	restored, _ := NewSeq2Seq(smallModelConfig())
	checkpoint, err := manager.LoadBest(restored)
	if err != nil {
		t.Fatalf("LoadBest failed: %v", err)
	}

	if checkpoint.TrainingState.Epoch != 4 {
		t.Errorf("restored epoch = %d, want 4", checkpoint.TrainingState.Epoch)
	}
	if checkpoint.TrainingState.BestLoss != 0.8 {
		t.Errorf("restored best loss = %f, want 0.8", checkpoint.TrainingState.BestLoss)
	}

	for i, p := range model.Parameters() {
		restoredData, _ := restored.Parameters()[i].GetFloat32Data()
		originalData, _ := p.GetFloat32Data()
		for j := range originalData {
			if originalData[j] != restoredData[j] {
				t.Fatalf("parameter %d differs at %d after restore", i, j)
			}
		}
	}
}
