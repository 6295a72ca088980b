package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// The protobuf format wraps the checkpoint in a structpb.Struct and writes
// the binary wire encoding.

// savePB saves checkpoint in binary protobuf format
func (cs *CheckpointSaver) savePB(checkpoint *Checkpoint, path string) error {
	jsonData, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(jsonData, &fields); err != nil {
		return fmt.Errorf("failed to prepare checkpoint fields: %v", err)
	}

	structValue, err := structpb.NewStruct(fields)
	if err != nil {
		return fmt.Errorf("failed to build protobuf struct: %v", err)
	}

	data, err := proto.Marshal(structValue)
	if err != nil {
		return fmt.Errorf("failed to marshal protobuf: %v", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %v", err)
	}

	return nil
}

// loadPB loads checkpoint from binary protobuf format
func (cs *CheckpointSaver) loadPB(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %v", err)
	}

	structValue := &structpb.Struct{}
	if err := proto.Unmarshal(data, structValue); err != nil {
		return nil, fmt.Errorf("failed to unmarshal protobuf: %v", err)
	}

	jsonData, err := json.Marshal(structValue.AsMap())
	if err != nil {
		return nil, fmt.Errorf("failed to convert checkpoint fields: %v", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(jsonData, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %v", err)
	}

	if err := validateCheckpoint(&checkpoint); err != nil {
		return nil, fmt.Errorf("invalid checkpoint: %v", err)
	}

	return &checkpoint, nil
}
