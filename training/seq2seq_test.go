package training

import (
	"math"
	"testing"

	"github.com/samrelins/seq2seq-go/tensor"
)

func smallModelConfig() Seq2SeqConfig {
	return Seq2SeqConfig{
		SrcVocabSize: 8,
		TgtVocabSize: 6,
		SrcLen:       4,
		TgtLen:       3,
		EmbedDim:     5,
		HiddenDim:    7,
	}
}

func TestSeq2SeqConfigValidation(t *testing.T) {
	cfg := smallModelConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	bad := cfg
	bad.SrcVocabSize = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero vocabulary")
	}

	bad = cfg
	bad.TgtLen = -1
	if err := bad.Validate(); err == nil {
		t.Error("expected error for negative target length")
	}
}

func TestSeq2SeqForwardShape(t *testing.T) {
	SetRandomSeed(42)
	model, err := NewSeq2Seq(smallModelConfig())
	if err != nil {
		t.Fatalf("NewSeq2Seq failed: %v", err)
	}

	input, _ := tensor.NewTensor([]int{2, 4}, tensor.Int32, []int32{
		1, 2, 3, 0,
		4, 0, 0, 0,
	})
	out, err := model.Forward(input)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if len(out.Shape) != 3 || out.Shape[0] != 2 || out.Shape[1] != 3 || out.Shape[2] != 6 {
		t.Errorf("output shape = %v, want [2 3 6]", out.Shape)
	}
}

func TestSeq2SeqRejectsWrongLength(t *testing.T) {
	SetRandomSeed(42)
	model, _ := NewSeq2Seq(smallModelConfig())

	input, _ := tensor.NewTensor([]int{1, 6}, tensor.Int32, make([]int32, 6))
	if _, err := model.Forward(input); err == nil {
		t.Error("expected error for wrong source length")
	}
}

func TestSeq2SeqParameterCount(t *testing.T) {
	SetRandomSeed(42)
	model, _ := NewSeq2Seq(smallModelConfig())

	// embedding + 2x(kernel, recurrent, bias) + projection weight and bias
	if len(model.Parameters()) != 9 {
		t.Errorf("parameter tensor count = %d, want 9", len(model.Parameters()))
	}

	spec, err := model.Spec()
	if err != nil {
		t.Fatalf("Spec failed: %v", err)
	}

	var fromSpec int64
	for _, layer := range spec.Layers {
		fromSpec += layer.ParameterCount
	}
	var fromModel int64
	for _, p := range model.Parameters() {
		fromModel += int64(p.NumElems)
	}
	if fromSpec != fromModel {
		t.Errorf("spec parameter count %d != model parameter count %d", fromSpec, fromModel)
	}
}

func TestSeq2SeqBatchIndependence(t *testing.T) {
	SetRandomSeed(42)
	model, _ := NewSeq2Seq(smallModelConfig())
	model.Eval()

	single, _ := tensor.NewTensor([]int{1, 4}, tensor.Int32, []int32{1, 2, 0, 0})
	batched, _ := tensor.NewTensor([]int{2, 4}, tensor.Int32, []int32{
		1, 2, 0, 0,
		5, 6, 7, 3,
	})

	outSingle, err := model.Forward(single)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	outBatched, err := model.Forward(batched)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	singleData, _ := outSingle.GetFloat32Data()
	batchedData, _ := outBatched.GetFloat32Data()
	for i := range singleData {
		if math.Abs(float64(singleData[i]-batchedData[i])) > 1e-6 {
			t.Fatalf("first batch row differs from single-sample result at %d", i)
		}
	}
}

func TestSeq2SeqBackwardNumericalGradient(t *testing.T) {
	SetRandomSeed(13)
	cfg := Seq2SeqConfig{
		SrcVocabSize: 5,
		TgtVocabSize: 4,
		SrcLen:       3,
		TgtLen:       2,
		EmbedDim:     3,
		HiddenDim:    4,
	}
	model, err := NewSeq2Seq(cfg)
	if err != nil {
		t.Fatalf("NewSeq2Seq failed: %v", err)
	}

	input, _ := tensor.NewTensor([]int{1, 3}, tensor.Int32, []int32{1, 2, 0})
	target, _ := tensor.NewTensor([]int{1, 2, 4}, tensor.Float32, []float32{
		0, 1, 0, 0,
		0, 0, 1, 0,
	})
	ce := NewCategoricalCrossEntropy()

	lossValue := func() float64 {
		out, err := model.Forward(input)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		l, err := ce.Forward(out, target)
		if err != nil {
			t.Fatalf("loss failed: %v", err)
		}
		data, _ := l.GetFloat32Data()
		return float64(data[0])
	}

	out, err := model.Forward(input)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if _, err := ce.Forward(out, target); err != nil {
		t.Fatalf("loss failed: %v", err)
	}
	grad, err := ce.Backward(out, target)
	if err != nil {
		t.Fatalf("loss backward failed: %v", err)
	}
	if err := model.Backward(grad); err != nil {
		t.Fatalf("model backward failed: %v", err)
	}

	checks := []struct {
		name  string
		param *tensor.Tensor
		idx   int
	}{
		{"encoder kernel", model.Encoder().Kernel(), 2},
		{"decoder recurrent", model.Decoder().Recurrent(), 5},
		{"projection weight", model.Projection().Weight(), 1},
		{"embedding row 1", model.Embedding().Weight(), cfg.EmbedDim},
	}

	const eps = 1e-2
	for _, check := range checks {
		analytic, _ := check.param.Grad().GetFloat32Data()
		data, _ := check.param.GetFloat32Data()

		orig := data[check.idx]
		data[check.idx] = orig + eps
		plus := lossValue()
		data[check.idx] = orig - eps
		minus := lossValue()
		data[check.idx] = orig

		numeric := (plus - minus) / (2 * eps)
		diff := math.Abs(numeric - float64(analytic[check.idx]))
		if diff > 1e-2 && diff/(math.Abs(numeric)+1e-8) > 0.1 {
			t.Errorf("%s[%d]: numeric gradient %f, analytic %f", check.name, check.idx, numeric, analytic[check.idx])
		}
	}
}

func TestSeq2SeqLoadWeights(t *testing.T) {
	SetRandomSeed(1)
	source, _ := NewSeq2Seq(smallModelConfig())
	SetRandomSeed(2)
	dest, _ := NewSeq2Seq(smallModelConfig())

	weights := make([]*tensor.Tensor, 0)
	for _, p := range source.Parameters() {
		clone, err := p.Clone()
		if err != nil {
			t.Fatalf("Clone failed: %v", err)
		}
		weights = append(weights, clone)
	}
	if err := dest.LoadWeights(weights); err != nil {
		t.Fatalf("LoadWeights failed: %v", err)
	}

	input, _ := tensor.NewTensor([]int{1, 4}, tensor.Int32, []int32{1, 2, 3, 0})
	source.Eval()
	dest.Eval()

	outSrc, _ := source.Forward(input)
	outDst, _ := dest.Forward(input)
	srcData, _ := outSrc.GetFloat32Data()
	dstData, _ := outDst.GetFloat32Data()
	for i := range srcData {
		if srcData[i] != dstData[i] {
			t.Fatalf("outputs differ at %d after weight transfer", i)
		}
	}

	if err := dest.LoadWeights(weights[:3]); err == nil {
		t.Error("expected error for wrong weight count")
	}
}

func TestSeq2SeqOverfitsTinyBatch(t *testing.T) {
	SetRandomSeed(3)
	cfg := Seq2SeqConfig{
		SrcVocabSize: 6,
		TgtVocabSize: 5,
		SrcLen:       3,
		TgtLen:       3,
		EmbedDim:     8,
		HiddenDim:    16,
	}
	model, err := NewSeq2Seq(cfg)
	if err != nil {
		t.Fatalf("NewSeq2Seq failed: %v", err)
	}

	input, _ := tensor.NewTensor([]int{2, 3}, tensor.Int32, []int32{
		1, 2, 0,
		3, 4, 5,
	})
	target, _ := tensor.NewTensor([]int{2, 3, 5}, tensor.Float32, []float32{
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		1, 0, 0, 0, 0,
		0, 0, 0, 1, 0,
		0, 0, 0, 0, 1,
		0, 1, 0, 0, 0,
	})

	ce := NewCategoricalCrossEntropy()
	adam := NewDefaultAdam(model.Parameters(), 0.01)

	step := func() float32 {
		adam.ZeroGrad()
		out, err := model.Forward(input)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		l, err := ce.Forward(out, target)
		if err != nil {
			t.Fatalf("loss failed: %v", err)
		}
		grad, err := ce.Backward(out, target)
		if err != nil {
			t.Fatalf("loss backward failed: %v", err)
		}
		if err := model.Backward(grad); err != nil {
			t.Fatalf("model backward failed: %v", err)
		}
		if err := adam.Step(); err != nil {
			t.Fatalf("optimizer step failed: %v", err)
		}
		data, _ := l.GetFloat32Data()
		return data[0]
	}

	initial := step()
	var final float32
	for i := 0; i < 60; i++ {
		final = step()
	}

	if final >= initial {
		t.Errorf("loss did not decrease: initial %f, final %f", initial, final)
	}
}
