package training

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samrelins/seq2seq-go/checkpoints"
)

// CheckpointConfig configures checkpoint saving behavior
type CheckpointConfig struct {
	SaveDirectory string                       // Directory to save checkpoints
	Filename      string                       // Best-model filename within the directory
	Format        checkpoints.CheckpointFormat // JSON or Protobuf
}

// DefaultCheckpointConfig returns a sensible default configuration
func DefaultCheckpointConfig() CheckpointConfig {
	return CheckpointConfig{
		SaveDirectory: "./checkpoints",
		Filename:      "best_model.json",
		Format:        checkpoints.FormatJSON,
	}
}

// CheckpointManager persists the best model seen so far. A snapshot is
// written only when validation loss improves on the previous best, always
// to the same file, so the file on disk is the best model of the run.
type CheckpointManager struct {
	config   CheckpointConfig
	saver    *checkpoints.CheckpointSaver
	bestLoss float32
	saved    bool
}

// NewCheckpointManager creates a new checkpoint manager
func NewCheckpointManager(config CheckpointConfig) *CheckpointManager {
	if config.Filename == "" {
		config.Filename = "best_model.json"
	}
	return &CheckpointManager{
		config:   config,
		saver:    checkpoints.NewCheckpointSaver(config.Format),
		bestLoss: float32(1e9),
	}
}

// Path returns the location of the best-model file
func (cm *CheckpointManager) Path() string {
	return filepath.Join(cm.config.SaveDirectory, cm.config.Filename)
}

// BestLoss returns the best validation loss seen so far
func (cm *CheckpointManager) BestLoss() float32 {
	return cm.bestLoss
}

// HasSaved returns true if at least one snapshot has been written
func (cm *CheckpointManager) HasSaved() bool {
	return cm.saved
}

// SaveIfBest writes a snapshot of the model when valLoss improves on the
// best seen so far and reports whether it did
func (cm *CheckpointManager) SaveIfBest(model *Seq2Seq, state checkpoints.TrainingState, valLoss float32) (bool, error) {
	if valLoss >= cm.bestLoss {
		return false, nil
	}

	spec, err := model.Spec()
	if err != nil {
		return false, fmt.Errorf("failed to build model spec: %v", err)
	}

	weights, err := checkpoints.ExtractWeights(spec, model.Parameters())
	if err != nil {
		return false, fmt.Errorf("failed to extract weights: %v", err)
	}

	state.BestLoss = valLoss
	checkpoint := &checkpoints.Checkpoint{
		ModelSpec:     spec,
		Weights:       weights,
		TrainingState: state,
		Metadata: checkpoints.CheckpointMetadata{
			Description: fmt.Sprintf("best validation loss %.4f at epoch %d", valLoss, state.Epoch),
		},
	}

	if err := os.MkdirAll(cm.config.SaveDirectory, 0755); err != nil {
		return false, fmt.Errorf("failed to create checkpoint directory: %v", err)
	}
	if err := cm.saver.SaveCheckpoint(checkpoint, cm.Path()); err != nil {
		return false, fmt.Errorf("failed to save checkpoint: %v", err)
	}

	cm.bestLoss = valLoss
	cm.saved = true
	return true, nil
}

// LoadBest reads the best-model file back and restores its weights into
// the model
func (cm *CheckpointManager) LoadBest(model *Seq2Seq) (*checkpoints.Checkpoint, error) {
	checkpoint, err := cm.saver.LoadCheckpoint(cm.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %v", err)
	}

	tensors, err := checkpoints.WeightsToTensors(checkpoint.Weights)
	if err != nil {
		return nil, fmt.Errorf("failed to convert weights: %v", err)
	}
	if err := model.LoadWeights(tensors); err != nil {
		return nil, fmt.Errorf("failed to restore weights: %v", err)
	}
	return checkpoint, nil
}
