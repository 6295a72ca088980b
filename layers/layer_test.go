package layers

import (
	"testing"
)

func TestLayerTypeString(t *testing.T) {
	cases := map[LayerType]string{
		Embedding:            "Embedding",
		LSTM:                 "LSTM",
		RepeatVector:         "RepeatVector",
		TimeDistributedDense: "TimeDistributedDense",
		Softmax:              "Softmax",
		LayerType(99):        "Unknown",
	}

	for lt, want := range cases {
		if got := lt.String(); got != want {
			t.Errorf("LayerType(%d).String() = %q, want %q", lt, got, want)
		}
	}
}

func TestFactorySpecs(t *testing.T) {
	factory := NewFactory()

	emb := factory.CreateEmbeddingSpec(1000, 256, true, "encoder_embedding")
	if emb.Type != Embedding || emb.Name != "encoder_embedding" {
		t.Errorf("unexpected embedding spec: %+v", emb)
	}
	if emb.Parameters["vocab_size"] != 1000 || emb.Parameters["mask_zero"] != true {
		t.Errorf("unexpected embedding parameters: %v", emb.Parameters)
	}

	lstm := factory.CreateLSTMSpec(256, false, "encoder")
	if lstm.Parameters["units"] != 256 || lstm.Parameters["return_sequences"] != false {
		t.Errorf("unexpected lstm parameters: %v", lstm.Parameters)
	}
}

func buildTestModel(t *testing.T) *ModelSpec {
	t.Helper()

	builder := NewModelBuilder([]int{5}) // source length 5
	builder.AddEmbedding(100, 16, true, "embedding").
		AddLSTM(32, false, "encoder").
		AddRepeatVector(6, "context").
		AddLSTM(32, true, "decoder").
		AddTimeDistributedDense(80, true, "projection").
		AddSoftmax(-1, "softmax")

	spec, err := builder.Compile()
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return spec
}

func TestCompileShapePropagation(t *testing.T) {
	spec := buildTestModel(t)

	if !spec.Compiled {
		t.Error("spec not marked compiled")
	}

	wantShapes := [][]int{
		{5, 16}, // embedding
		{32},    // encoder final state
		{6, 32}, // repeated context
		{6, 32}, // decoder sequence
		{6, 80}, // projection
		{6, 80}, // softmax
	}
	for i, want := range wantShapes {
		got := spec.Layers[i].OutputShape
		if len(got) != len(want) {
			t.Fatalf("layer %d output shape = %v, want %v", i, got, want)
		}
		for j := range want {
			if got[j] != want[j] {
				t.Errorf("layer %d output shape = %v, want %v", i, got, want)
				break
			}
		}
	}

	if spec.OutputShape[0] != 6 || spec.OutputShape[1] != 80 {
		t.Errorf("model output shape = %v, want [6 80]", spec.OutputShape)
	}
}

func TestCompileParameterCounts(t *testing.T) {
	spec := buildTestModel(t)

	// embedding: 100*16
	// each lstm: 16*128 + 32*128 + 128 (encoder), 32*128 + 32*128 + 128 (decoder)
	// projection: 32*80 + 80
	wantEmbedding := int64(100 * 16)
	if spec.Layers[0].ParameterCount != wantEmbedding {
		t.Errorf("embedding parameter count = %d, want %d", spec.Layers[0].ParameterCount, wantEmbedding)
	}

	wantEncoder := int64(16*128 + 32*128 + 128)
	if spec.Layers[1].ParameterCount != wantEncoder {
		t.Errorf("encoder parameter count = %d, want %d", spec.Layers[1].ParameterCount, wantEncoder)
	}

	var total int64
	for _, layer := range spec.Layers {
		total += layer.ParameterCount
	}
	if spec.TotalParameters != total {
		t.Errorf("total parameters = %d, want %d", spec.TotalParameters, total)
	}

	if spec.Layers[2].ParameterCount != 0 {
		t.Error("repeat vector should have no parameters")
	}
	if spec.Layers[5].ParameterCount != 0 {
		t.Error("softmax should have no parameters")
	}
}

func TestCompileEmptyModel(t *testing.T) {
	if _, err := NewModelBuilder([]int{5}).Compile(); err == nil {
		t.Error("expected error compiling empty model")
	}
}

func TestCompileShapeMismatch(t *testing.T) {
	// LSTM directly on [seqLen] input must fail: it needs [steps, features].
	builder := NewModelBuilder([]int{5})
	builder.AddLSTM(32, false, "encoder")
	if _, err := builder.Compile(); err == nil {
		t.Error("expected shape error for LSTM on 1D input")
	}
}

func TestIntParamJSONRoundTripTolerance(t *testing.T) {
	spec := LayerSpec{
		Name:       "test",
		Parameters: map[string]interface{}{"units": float64(64)},
	}

	units, err := spec.IntParam("units")
	if err != nil {
		t.Fatalf("IntParam failed: %v", err)
	}
	if units != 64 {
		t.Errorf("units = %d, want 64", units)
	}

	if _, err := spec.IntParam("missing"); err == nil {
		t.Error("expected error for missing parameter")
	}
}
