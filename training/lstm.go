package training

import (
	"fmt"
	"math"

	"github.com/samrelins/seq2seq-go/tensor"
)

// LSTM implements a single-layer long short-term memory RNN. Gate weights
// are stored with the input, forget, candidate and output gate columns
// concatenated in that order: kernel [inputSize, 4*units], recurrent kernel
// [units, 4*units], bias [4*units]. The forget gate bias is initialized
// to one.
type LSTM struct {
	inputSize       int
	units           int
	returnSequences bool

	kernel    *tensor.Tensor
	recurrent *tensor.Tensor
	bias      *tensor.Tensor

	training bool
	cache    *lstmCache
}

// lstmCache holds forward-pass activations needed for backpropagation
// through time. States are indexed t=0..steps with index 0 the initial
// zero state; gates are indexed per processed timestep.
type lstmCache struct {
	input        []float32
	mask         [][]bool
	batch, steps int

	iGate, fGate, gGate, oGate [][]float32
	cState, hState             [][]float32
	tanhC                      [][]float32
}

// NewLSTM creates an LSTM layer with Xavier-initialized kernels
func NewLSTM(inputSize, units int, returnSequences bool) (*LSTM, error) {
	if inputSize <= 0 || units <= 0 {
		return nil, fmt.Errorf("invalid LSTM dimensions: input=%d units=%d", inputSize, units)
	}

	kBound := float32(math.Sqrt(6.0 / float64(inputSize+4*units)))
	kernel, err := tensor.RandomUniform([]int{inputSize, 4 * units}, -kBound, kBound, globalRng)
	if err != nil {
		return nil, fmt.Errorf("failed to create kernel: %v", err)
	}
	kernel.SetRequiresGrad(true)

	rBound := float32(math.Sqrt(6.0 / float64(units+4*units)))
	recurrent, err := tensor.RandomUniform([]int{units, 4 * units}, -rBound, rBound, globalRng)
	if err != nil {
		return nil, fmt.Errorf("failed to create recurrent kernel: %v", err)
	}
	recurrent.SetRequiresGrad(true)

	biasData := make([]float32, 4*units)
	for j := units; j < 2*units; j++ {
		biasData[j] = 1.0 // forget gate bias
	}
	bias, err := tensor.NewTensor([]int{4 * units}, tensor.Float32, biasData)
	if err != nil {
		return nil, fmt.Errorf("failed to create bias: %v", err)
	}
	bias.SetRequiresGrad(true)

	return &LSTM{
		inputSize:       inputSize,
		units:           units,
		returnSequences: returnSequences,
		kernel:          kernel,
		recurrent:       recurrent,
		bias:            bias,
		training:        true,
	}, nil
}

// Forward processes an unmasked [batch, steps, inputSize] sequence
func (l *LSTM) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return l.ForwardMasked(input, nil)
}

// ForwardMasked processes a [batch, steps, inputSize] sequence. Positions
// where mask is false carry the previous hidden and cell state forward
// unchanged, so trailing padding does not disturb the final state. A nil
// mask treats every position as valid.
func (l *LSTM) ForwardMasked(input *tensor.Tensor, mask [][]bool) (*tensor.Tensor, error) {
	if len(input.Shape) != 3 {
		return nil, fmt.Errorf("LSTM expects 3D input [batch, steps, features], got %dD", len(input.Shape))
	}
	if input.Shape[2] != l.inputSize {
		return nil, fmt.Errorf("input feature size %d does not match LSTM input size %d",
			input.Shape[2], l.inputSize)
	}

	x, err := input.GetFloat32Data()
	if err != nil {
		return nil, err
	}
	batch, steps := input.Shape[0], input.Shape[1]
	if mask != nil {
		if len(mask) != batch {
			return nil, fmt.Errorf("mask batch size %d does not match input batch size %d", len(mask), batch)
		}
		for b := range mask {
			if len(mask[b]) != steps {
				return nil, fmt.Errorf("mask length %d does not match sequence length %d", len(mask[b]), steps)
			}
		}
	}

	w, _ := l.kernel.GetFloat32Data()
	u, _ := l.recurrent.GetFloat32Data()
	bv, _ := l.bias.GetFloat32Data()

	H := l.units
	D := l.inputSize

	cache := &lstmCache{
		input:  x,
		mask:   mask,
		batch:  batch,
		steps:  steps,
		iGate:  make([][]float32, steps),
		fGate:  make([][]float32, steps),
		gGate:  make([][]float32, steps),
		oGate:  make([][]float32, steps),
		tanhC:  make([][]float32, steps),
		cState: make([][]float32, steps+1),
		hState: make([][]float32, steps+1),
	}
	cache.cState[0] = make([]float32, batch*H)
	cache.hState[0] = make([]float32, batch*H)

	z := make([]float32, 4*H)
	for t := 0; t < steps; t++ {
		iG := make([]float32, batch*H)
		fG := make([]float32, batch*H)
		gG := make([]float32, batch*H)
		oG := make([]float32, batch*H)
		tc := make([]float32, batch*H)
		cNew := make([]float32, batch*H)
		hNew := make([]float32, batch*H)

		hPrev := cache.hState[t]
		cPrev := cache.cState[t]

		for b := 0; b < batch; b++ {
			if mask != nil && !mask[b][t] {
				copy(cNew[b*H:(b+1)*H], cPrev[b*H:(b+1)*H])
				copy(hNew[b*H:(b+1)*H], hPrev[b*H:(b+1)*H])
				continue
			}

			xRow := x[(b*steps+t)*D : (b*steps+t+1)*D]
			hRow := hPrev[b*H : (b+1)*H]

			copy(z, bv)
			for d := 0; d < D; d++ {
				xv := xRow[d]
				if xv == 0 {
					continue
				}
				wRow := w[d*4*H : (d+1)*4*H]
				for k := 0; k < 4*H; k++ {
					z[k] += xv * wRow[k]
				}
			}
			for j := 0; j < H; j++ {
				hv := hRow[j]
				if hv == 0 {
					continue
				}
				uRow := u[j*4*H : (j+1)*4*H]
				for k := 0; k < 4*H; k++ {
					z[k] += hv * uRow[k]
				}
			}

			for j := 0; j < H; j++ {
				iv := sigmoid32(z[j])
				fv := sigmoid32(z[H+j])
				gv := tanh32(z[2*H+j])
				ov := sigmoid32(z[3*H+j])

				cv := fv*cPrev[b*H+j] + iv*gv
				tcv := tanh32(cv)

				iG[b*H+j] = iv
				fG[b*H+j] = fv
				gG[b*H+j] = gv
				oG[b*H+j] = ov
				cNew[b*H+j] = cv
				tc[b*H+j] = tcv
				hNew[b*H+j] = ov * tcv
			}
		}

		cache.iGate[t] = iG
		cache.fGate[t] = fG
		cache.gGate[t] = gG
		cache.oGate[t] = oG
		cache.tanhC[t] = tc
		cache.cState[t+1] = cNew
		cache.hState[t+1] = hNew
	}

	if l.training {
		l.cache = cache
	}

	if l.returnSequences {
		outData := make([]float32, batch*steps*H)
		for t := 0; t < steps; t++ {
			hT := cache.hState[t+1]
			for b := 0; b < batch; b++ {
				copy(outData[(b*steps+t)*H:(b*steps+t+1)*H], hT[b*H:(b+1)*H])
			}
		}
		return tensor.NewTensor([]int{batch, steps, H}, tensor.Float32, outData)
	}

	final := make([]float32, batch*H)
	copy(final, cache.hState[steps])
	return tensor.NewTensor([]int{batch, H}, tensor.Float32, final)
}

// Backward runs backpropagation through time. gradOutput is [batch, steps,
// units] when the layer returns sequences and [batch, units] otherwise.
// Parameter gradients are accumulated and the gradient with respect to the
// input sequence [batch, steps, inputSize] is returned.
func (l *LSTM) Backward(gradOutput *tensor.Tensor) (*tensor.Tensor, error) {
	cache := l.cache
	if cache == nil {
		return nil, fmt.Errorf("backward called before forward")
	}

	gradOut, err := gradOutput.GetFloat32Data()
	if err != nil {
		return nil, err
	}

	batch, steps := cache.batch, cache.steps
	H := l.units
	D := l.inputSize

	w, _ := l.kernel.GetFloat32Data()
	u, _ := l.recurrent.GetFloat32Data()

	gradW := make([]float32, D*4*H)
	gradU := make([]float32, H*4*H)
	gradB := make([]float32, 4*H)
	gradX := make([]float32, batch*steps*D)

	dh := make([]float32, batch*H)
	dc := make([]float32, batch*H)
	if !l.returnSequences {
		copy(dh, gradOut)
	}

	dz := make([]float32, 4*H)
	for t := steps - 1; t >= 0; t-- {
		if l.returnSequences {
			for b := 0; b < batch; b++ {
				src := gradOut[(b*steps+t)*H : (b*steps+t+1)*H]
				for j := 0; j < H; j++ {
					dh[b*H+j] += src[j]
				}
			}
		}

		iG := cache.iGate[t]
		fG := cache.fGate[t]
		gG := cache.gGate[t]
		oG := cache.oGate[t]
		tc := cache.tanhC[t]
		cPrev := cache.cState[t]
		hPrev := cache.hState[t]

		for b := 0; b < batch; b++ {
			if cache.mask != nil && !cache.mask[b][t] {
				// state carried through unchanged; dh and dc pass straight back
				continue
			}

			for j := 0; j < H; j++ {
				idx := b*H + j

				do := dh[idx] * tc[idx]
				dcj := dc[idx] + dh[idx]*oG[idx]*(1-tc[idx]*tc[idx])

				di := dcj * gG[idx]
				df := dcj * cPrev[idx]
				dg := dcj * iG[idx]

				dz[j] = di * iG[idx] * (1 - iG[idx])
				dz[H+j] = df * fG[idx] * (1 - fG[idx])
				dz[2*H+j] = dg * (1 - gG[idx]*gG[idx])
				dz[3*H+j] = do * oG[idx] * (1 - oG[idx])

				dc[idx] = dcj * fG[idx]
			}

			xRow := cache.input[(b*steps+t)*D : (b*steps+t+1)*D]
			hRow := hPrev[b*H : (b+1)*H]
			dxRow := gradX[(b*steps+t)*D : (b*steps+t+1)*D]

			for k := 0; k < 4*H; k++ {
				dzk := dz[k]
				if dzk == 0 {
					continue
				}
				gradB[k] += dzk
				for d := 0; d < D; d++ {
					gradW[d*4*H+k] += xRow[d] * dzk
					dxRow[d] += w[d*4*H+k] * dzk
				}
				for j := 0; j < H; j++ {
					gradU[j*4*H+k] += hRow[j] * dzk
				}
			}

			for j := 0; j < H; j++ {
				var sum float32
				uRow := u[j*4*H : (j+1)*4*H]
				for k := 0; k < 4*H; k++ {
					sum += uRow[k] * dz[k]
				}
				dh[b*H+j] = sum
			}
		}
	}

	if err := accumulateInto(l.kernel, gradW); err != nil {
		return nil, err
	}
	if err := accumulateInto(l.recurrent, gradU); err != nil {
		return nil, err
	}
	if err := accumulateInto(l.bias, gradB); err != nil {
		return nil, err
	}

	return tensor.NewTensor([]int{batch, steps, D}, tensor.Float32, gradX)
}

func accumulateInto(param *tensor.Tensor, grad []float32) error {
	g, err := tensor.NewTensor(param.Shape, tensor.Float32, grad)
	if err != nil {
		return err
	}
	return param.AccumulateGrad(g)
}

// Parameters returns the trainable parameters
func (l *LSTM) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{l.kernel, l.recurrent, l.bias}
}

// Kernel returns the input kernel tensor
func (l *LSTM) Kernel() *tensor.Tensor { return l.kernel }

// Recurrent returns the recurrent kernel tensor
func (l *LSTM) Recurrent() *tensor.Tensor { return l.recurrent }

// Bias returns the bias tensor
func (l *LSTM) Bias() *tensor.Tensor { return l.bias }

// Units returns the hidden state size
func (l *LSTM) Units() int { return l.units }

// Train sets the module to training mode
func (l *LSTM) Train() {
	l.training = true
}

// Eval sets the module to evaluation mode
func (l *LSTM) Eval() {
	l.training = false
	l.cache = nil
}

// IsTraining returns true if in training mode
func (l *LSTM) IsTraining() bool {
	return l.training
}

func sigmoid32(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}

func tanh32(x float32) float32 {
	return float32(math.Tanh(float64(x)))
}
