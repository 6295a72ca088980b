package tensor

import (
	"fmt"
)

type DType int

const (
	Float32 DType = iota
	Int32
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "Float32"
	case Int32:
		return "Int32"
	default:
		return "Unknown"
	}
}

// Tensor is a dense, row-major multi-dimensional array.
// It is not safe for concurrent mutation.
type Tensor struct {
	Shape        []int
	Strides      []int
	DType        DType
	Data         interface{}
	NumElems     int
	requiresGrad bool
	grad         *Tensor
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, dtype=%s, elements=%d)",
		t.Shape, t.DType, t.NumElems)
}

func (t *Tensor) RequiresGrad() bool {
	return t.requiresGrad
}

func (t *Tensor) SetRequiresGrad(requires bool) {
	t.requiresGrad = requires
}

// Grad returns the gradient tensor, or nil if none has been accumulated.
func (t *Tensor) Grad() *Tensor {
	return t.grad
}

// AccumulateGrad adds grad into the tensor's gradient buffer, allocating it
// lazily on first use. Only Float32 tensors can carry gradients.
func (t *Tensor) AccumulateGrad(grad *Tensor) error {
	if t.DType != Float32 {
		return fmt.Errorf("gradients only supported for Float32 tensors, got %s", t.DType)
	}
	if grad.DType != Float32 {
		return fmt.Errorf("gradient must be Float32, got %s", grad.DType)
	}
	if grad.NumElems != t.NumElems {
		return fmt.Errorf("gradient size %d does not match tensor size %d", grad.NumElems, t.NumElems)
	}

	if t.grad == nil {
		g, err := Zeros(t.Shape, Float32)
		if err != nil {
			return fmt.Errorf("failed to allocate gradient buffer: %v", err)
		}
		t.grad = g
	}

	dst := t.grad.Data.([]float32)
	src := grad.Data.([]float32)
	for i := range dst {
		dst[i] += src[i]
	}
	return nil
}

func calculateStrides(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}

	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

func calculateNumElements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}

	elements := 1
	for _, dim := range shape {
		elements *= dim
	}
	return elements
}

func validateShape(shape []int) error {
	if len(shape) == 0 {
		return fmt.Errorf("invalid shape: must have at least one dimension")
	}
	for i, dim := range shape {
		if dim <= 0 {
			return fmt.Errorf("invalid shape: dimension %d has size %d, must be positive", i, dim)
		}
	}
	return nil
}
