package training

import (
	"fmt"
	"log"

	"github.com/samrelins/seq2seq-go/checkpoints"
	"github.com/samrelins/seq2seq-go/tensor"
	"github.com/samrelins/seq2seq-go/text"
)

// TrainerConfig configures the training loop
type TrainerConfig struct {
	Epochs        int
	LogEvery      int  // log progress every N batches (0 = epoch summaries only)
	EarlyStopping bool // stop when validation loss stops improving
	Patience      int  // epochs to wait for improvement before stopping
}

// DefaultTrainerConfig returns the standard training configuration
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Epochs:        30,
		LogEvery:      0,
		EarlyStopping: false,
		Patience:      5,
	}
}

// EpochStats summarizes one training epoch
type EpochStats struct {
	Epoch       int
	TrainLoss   float32
	ValLoss     float32
	ValAccuracy float32
	Improved    bool
}

// Trainer drives the training loop: each epoch reshuffles and consumes the
// training loader, runs a full pass over the validation loader, and asks
// the checkpoint manager to snapshot the model when validation loss
// improves.
type Trainer struct {
	model     *Seq2Seq
	loss      Loss
	optimizer Optimizer
	manager   *CheckpointManager
	config    TrainerConfig
	logger    *log.Logger
}

// NewTrainer creates a trainer. The checkpoint manager may be nil to
// disable snapshotting; a nil logger uses the standard logger.
func NewTrainer(model *Seq2Seq, loss Loss, optimizer Optimizer, manager *CheckpointManager, config TrainerConfig, logger *log.Logger) (*Trainer, error) {
	if model == nil {
		return nil, fmt.Errorf("model must not be nil")
	}
	if loss == nil || optimizer == nil {
		return nil, fmt.Errorf("loss and optimizer must not be nil")
	}
	if config.Epochs <= 0 {
		return nil, fmt.Errorf("epochs must be positive, got %d", config.Epochs)
	}
	if config.EarlyStopping && config.Patience < 0 {
		return nil, fmt.Errorf("patience must not be negative, got %d", config.Patience)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Trainer{
		model:     model,
		loss:      loss,
		optimizer: optimizer,
		manager:   manager,
		config:    config,
		logger:    logger,
	}, nil
}

// Fit runs the configured number of epochs and returns per-epoch stats
func (t *Trainer) Fit(trainLoader, valLoader *DataLoader) ([]EpochStats, error) {
	if trainLoader == nil || valLoader == nil {
		return nil, fmt.Errorf("train and validation loaders must not be nil")
	}

	history := make([]EpochStats, 0, t.config.Epochs)
	totalSteps := 0
	bestValLoss := float32(1e9)
	patienceCounter := 0

	for epoch := 1; epoch <= t.config.Epochs; epoch++ {
		t.model.Train()

		var trainLoss float64
		var batchCount int

		batches, errs, stop := trainLoader.Iterator()
		for batch := range batches {
			loss, err := t.trainBatch(batch)
			if err != nil {
				stop()
				return history, fmt.Errorf("epoch %d batch %d: %v", epoch, batchCount, err)
			}
			trainLoss += float64(loss)
			batchCount++
			totalSteps++

			if t.config.LogEvery > 0 && batchCount%t.config.LogEvery == 0 {
				t.logger.Printf("epoch %d batch %d/%d loss=%.4f", epoch, batchCount, trainLoader.Len(), loss)
			}
		}
		if err := <-errs; err != nil {
			return history, fmt.Errorf("epoch %d: data loading failed: %v", epoch, err)
		}
		if batchCount == 0 {
			return history, fmt.Errorf("epoch %d produced no batches", epoch)
		}

		stats := EpochStats{
			Epoch:     epoch,
			TrainLoss: float32(trainLoss / float64(batchCount)),
		}

		valLoss, valAcc, err := t.Evaluate(valLoader)
		if err != nil {
			return history, fmt.Errorf("epoch %d validation failed: %v", epoch, err)
		}
		stats.ValLoss = valLoss
		stats.ValAccuracy = valAcc

		if t.manager != nil {
			improved, err := t.manager.SaveIfBest(t.model, checkpoints.TrainingState{
				Epoch:        epoch,
				Step:         totalSteps,
				LearningRate: float32(t.optimizer.GetLR()),
				TotalSteps:   totalSteps,
			}, valLoss)
			if err != nil {
				return history, fmt.Errorf("epoch %d checkpoint failed: %v", epoch, err)
			}
			stats.Improved = improved
		}

		marker := ""
		if stats.Improved {
			marker = " *"
		}
		t.logger.Printf("epoch %d/%d train_loss=%.4f val_loss=%.4f val_acc=%.4f%s",
			epoch, t.config.Epochs, stats.TrainLoss, stats.ValLoss, stats.ValAccuracy, marker)

		history = append(history, stats)

		if t.config.EarlyStopping {
			if stats.ValLoss < bestValLoss {
				bestValLoss = stats.ValLoss
				patienceCounter = 0
			} else {
				patienceCounter++
				if patienceCounter >= t.config.Patience {
					t.logger.Printf("early stopping at epoch %d: no improvement for %d epochs", epoch, patienceCounter)
					break
				}
			}
		}
	}

	return history, nil
}

// trainBatch runs one optimization step and returns the batch loss
func (t *Trainer) trainBatch(batch *Batch) (float32, error) {
	targets, err := t.oneHotTargets(batch.Labels)
	if err != nil {
		return 0, err
	}

	t.optimizer.ZeroGrad()

	scores, err := t.model.Forward(batch.Data)
	if err != nil {
		return 0, fmt.Errorf("forward pass failed: %v", err)
	}

	lossT, err := t.loss.Forward(scores, targets)
	if err != nil {
		return 0, fmt.Errorf("loss computation failed: %v", err)
	}
	lossData, err := lossT.GetFloat32Data()
	if err != nil {
		return 0, err
	}

	grad, err := t.loss.Backward(scores, targets)
	if err != nil {
		return 0, fmt.Errorf("loss gradient failed: %v", err)
	}
	if err := t.model.Backward(grad); err != nil {
		return 0, fmt.Errorf("backward pass failed: %v", err)
	}
	if err := t.optimizer.Step(); err != nil {
		return 0, fmt.Errorf("optimizer step failed: %v", err)
	}

	return lossData[0], nil
}

// Evaluate runs a full pass over a loader without updating weights and
// returns mean loss and non-padding token accuracy
func (t *Trainer) Evaluate(loader *DataLoader) (float32, float32, error) {
	t.model.Eval()
	defer t.model.Train()

	var totalLoss float64
	var batchCount int
	var correct, counted int

	batches, errs, stop := loader.Iterator()
	defer stop()
	for batch := range batches {
		targets, err := t.oneHotTargets(batch.Labels)
		if err != nil {
			return 0, 0, err
		}

		scores, err := t.model.Forward(batch.Data)
		if err != nil {
			return 0, 0, fmt.Errorf("forward pass failed: %v", err)
		}

		lossT, err := t.loss.Forward(scores, targets)
		if err != nil {
			return 0, 0, fmt.Errorf("loss computation failed: %v", err)
		}
		lossData, err := lossT.GetFloat32Data()
		if err != nil {
			return 0, 0, err
		}
		totalLoss += float64(lossData[0])
		batchCount++

		c, n, err := tokenAccuracy(scores, batch.Labels)
		if err != nil {
			return 0, 0, err
		}
		correct += c
		counted += n
	}
	if err := <-errs; err != nil {
		return 0, 0, fmt.Errorf("data loading failed: %v", err)
	}
	if batchCount == 0 {
		return 0, 0, fmt.Errorf("loader produced no batches")
	}

	accuracy := float32(0)
	if counted > 0 {
		accuracy = float32(correct) / float32(counted)
	}
	return float32(totalLoss / float64(batchCount)), accuracy, nil
}

// oneHotTargets expands a [batch, steps] Int32 label tensor into one-hot
// [batch, steps, vocab] targets
func (t *Trainer) oneHotTargets(labels *tensor.Tensor) (*tensor.Tensor, error) {
	ids, err := labels.GetInt32Data()
	if err != nil {
		return nil, err
	}
	batch, steps := labels.Shape[0], labels.Shape[1]

	seqs := make([][]int32, batch)
	for b := 0; b < batch; b++ {
		seqs[b] = ids[b*steps : (b+1)*steps]
	}
	return text.OneHotAll(seqs, t.model.Config().TgtVocabSize)
}

// tokenAccuracy counts greedy predictions matching non-padding labels
func tokenAccuracy(scores, labels *tensor.Tensor) (correct, counted int, err error) {
	scoreData, err := scores.GetFloat32Data()
	if err != nil {
		return 0, 0, err
	}
	ids, err := labels.GetInt32Data()
	if err != nil {
		return 0, 0, err
	}

	classes := scores.Shape[len(scores.Shape)-1]
	for i, id := range ids {
		if id == text.PadID {
			continue
		}
		row := scoreData[i*classes : (i+1)*classes]
		best := 0
		for j := 1; j < classes; j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		if int32(best) == id {
			correct++
		}
		counted++
	}
	return correct, counted, nil
}
