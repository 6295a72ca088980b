package checkpoints

import (
	"path/filepath"
	"testing"

	"github.com/samrelins/seq2seq-go/layers"
	"github.com/samrelins/seq2seq-go/tensor"
)

func testSpec(t *testing.T) *layers.ModelSpec {
	t.Helper()
	builder := layers.NewModelBuilder([]int{3})
	builder.AddEmbedding(10, 4, true, "embedding").
		AddLSTM(5, false, "encoder").
		AddRepeatVector(2, "repeat").
		AddLSTM(5, true, "decoder").
		AddTimeDistributedDense(8, true, "projection").
		AddSoftmax(-1, "softmax")
	spec, err := builder.Compile()
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return spec
}

func testParams(t *testing.T, spec *layers.ModelSpec) []*tensor.Tensor {
	t.Helper()
	params := []*tensor.Tensor{}
	value := float32(0)
	for _, layer := range spec.Layers {
		for _, shape := range layer.ParameterShapes {
			n := 1
			for _, d := range shape {
				n *= d
			}
			data := make([]float32, n)
			for i := range data {
				value += 0.01
				data[i] = value
			}
			p, err := tensor.NewTensor(shape, tensor.Float32, data)
			if err != nil {
				t.Fatalf("NewTensor failed: %v", err)
			}
			params = append(params, p)
		}
	}
	return params
}

func TestExtractWeightsNaming(t *testing.T) {
	spec := testSpec(t)
	params := testParams(t, spec)

	weights, err := ExtractWeights(spec, params)
	if err != nil {
		t.Fatalf("ExtractWeights failed: %v", err)
	}

	wantNames := []string{
		"embedding.weight",
		"encoder.kernel", "encoder.recurrent_kernel", "encoder.bias",
		"decoder.kernel", "decoder.recurrent_kernel", "decoder.bias",
		"projection.weight", "projection.bias",
	}
	if len(weights) != len(wantNames) {
		t.Fatalf("weight count = %d, want %d", len(weights), len(wantNames))
	}
	for i, want := range wantNames {
		if weights[i].Name != want {
			t.Errorf("weight %d name = %q, want %q", i, weights[i].Name, want)
		}
	}
}

func TestExtractWeightsCountMismatch(t *testing.T) {
	spec := testSpec(t)
	params := testParams(t, spec)

	if _, err := ExtractWeights(spec, params[:4]); err == nil {
		t.Error("expected error for too few parameter tensors")
	}
	extra, _ := tensor.Zeros([]int{2, 2}, tensor.Float32)
	if _, err := ExtractWeights(spec, append(params, extra)); err == nil {
		t.Error("expected error for too many parameter tensors")
	}
}

func TestWeightsToTensorsRoundTrip(t *testing.T) {
	spec := testSpec(t)
	params := testParams(t, spec)

	weights, err := ExtractWeights(spec, params)
	if err != nil {
		t.Fatalf("ExtractWeights failed: %v", err)
	}
	tensors, err := WeightsToTensors(weights)
	if err != nil {
		t.Fatalf("WeightsToTensors failed: %v", err)
	}

	for i := range params {
		original, _ := params[i].GetFloat32Data()
		restored, _ := tensors[i].GetFloat32Data()
		if len(original) != len(restored) {
			t.Fatalf("tensor %d size changed", i)
		}
		for j := range original {
			if original[j] != restored[j] {
				t.Fatalf("tensor %d differs at %d", i, j)
			}
		}
	}
}

func saveLoadRoundTrip(t *testing.T, format CheckpointFormat, filename string) {
	t.Helper()
	spec := testSpec(t)
	params := testParams(t, spec)
	weights, err := ExtractWeights(spec, params)
	if err != nil {
		t.Fatalf("ExtractWeights failed: %v", err)
	}

	checkpoint := &Checkpoint{
		ModelSpec: spec,
		Weights:   weights,
		TrainingState: TrainingState{
			Epoch:        7,
			Step:         140,
			LearningRate: 0.001,
			BestLoss:     0.42,
		},
		OptimizerState: &OptimizerState{
			Type:       "Adam",
			Parameters: map[string]interface{}{"beta1": 0.9, "beta2": 0.999},
		},
		Metadata: CheckpointMetadata{
			Description: "test snapshot",
		},
	}

	path := filepath.Join(t.TempDir(), filename)
	saver := NewCheckpointSaver(format)
	if err := saver.SaveCheckpoint(checkpoint, path); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	loaded, err := saver.LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}

	if loaded.TrainingState.Epoch != 7 || loaded.TrainingState.Step != 140 {
		t.Errorf("training state = %+v", loaded.TrainingState)
	}
	if loaded.Metadata.RunID == "" {
		t.Error("run id not assigned on save")
	}
	if loaded.Metadata.Framework != "seq2seq-go" {
		t.Errorf("framework = %q", loaded.Metadata.Framework)
	}
	if len(loaded.Weights) != len(weights) {
		t.Fatalf("weight count = %d, want %d", len(loaded.Weights), len(weights))
	}
	for i := range weights {
		if loaded.Weights[i].Name != weights[i].Name {
			t.Errorf("weight %d name = %q, want %q", i, loaded.Weights[i].Name, weights[i].Name)
		}
		for j := range weights[i].Data {
			if loaded.Weights[i].Data[j] != weights[i].Data[j] {
				t.Fatalf("weight %s differs at %d", weights[i].Name, j)
			}
		}
	}
	if len(loaded.ModelSpec.Layers) != len(spec.Layers) {
		t.Errorf("layer count = %d, want %d", len(loaded.ModelSpec.Layers), len(spec.Layers))
	}
}

func TestSaveLoadJSON(t *testing.T) {
	saveLoadRoundTrip(t, FormatJSON, "model.json")
}

func TestSaveLoadProtobuf(t *testing.T) {
	saveLoadRoundTrip(t, FormatPB, "model.pb")
}

func TestLoadRejectsCorruptWeights(t *testing.T) {
	spec := testSpec(t)
	checkpoint := &Checkpoint{
		ModelSpec: spec,
		Weights: []WeightTensor{
			{Name: "bad", Shape: []int{2, 2}, Data: []float32{1, 2, 3}},
		},
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	saver := NewCheckpointSaver(FormatJSON)
	if err := saver.SaveCheckpoint(checkpoint, path); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}
	if _, err := saver.LoadCheckpoint(path); err == nil {
		t.Error("expected validation error for inconsistent weight data")
	}
}

func TestLoadMissingFile(t *testing.T) {
	saver := NewCheckpointSaver(FormatJSON)
	if _, err := saver.LoadCheckpoint(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
