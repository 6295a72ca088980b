package tensor

import (
	"fmt"
)

// MatMul multiplies the last two dimensions of two Float32 tensors. Both
// tensors must be 2D: [m, k] x [k, n] -> [m, n].
func MatMul(t1, t2 *Tensor) (*Tensor, error) {
	if t1.DType != Float32 || t2.DType != Float32 {
		return nil, fmt.Errorf("MatMul only supports Float32 tensors")
	}

	if len(t1.Shape) != 2 || len(t2.Shape) != 2 {
		return nil, fmt.Errorf("MatMul requires 2D tensors, got %v x %v", t1.Shape, t2.Shape)
	}

	rows1 := t1.Shape[0]
	cols1 := t1.Shape[1]
	rows2 := t2.Shape[0]
	cols2 := t2.Shape[1]

	if cols1 != rows2 {
		return nil, fmt.Errorf("incompatible dimensions for matmul: (%d, %d) x (%d, %d)", rows1, cols1, rows2, cols2)
	}

	result, err := Zeros([]int{rows1, cols2}, Float32)
	if err != nil {
		return nil, err
	}

	data1 := t1.Data.([]float32)
	data2 := t2.Data.([]float32)
	resultData := result.Data.([]float32)

	for i := 0; i < rows1; i++ {
		for k := 0; k < cols1; k++ {
			a := data1[i*cols1+k]
			if a == 0 {
				continue
			}
			row2 := data2[k*cols2 : (k+1)*cols2]
			out := resultData[i*cols2 : (i+1)*cols2]
			for j := range row2 {
				out[j] += a * row2[j]
			}
		}
	}

	return result, nil
}

// Transpose swaps the two dimensions of a 2D tensor.
func Transpose(t *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("Transpose requires a 2D tensor, got shape %v", t.Shape)
	}
	if t.DType != Float32 {
		return nil, fmt.Errorf("Transpose only supports Float32 tensors")
	}

	rows := t.Shape[0]
	cols := t.Shape[1]

	result, err := Zeros([]int{cols, rows}, Float32)
	if err != nil {
		return nil, err
	}

	data := t.Data.([]float32)
	resultData := result.Data.([]float32)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			resultData[j*rows+i] = data[i*cols+j]
		}
	}

	return result, nil
}

// Sum reduces a Float32 tensor over the given dimension.
func Sum(t *Tensor, dim int, keepDim bool) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("Sum only supports Float32 tensors")
	}
	if dim < 0 || dim >= len(t.Shape) {
		return nil, fmt.Errorf("dim %d out of range for tensor with %d dimensions", dim, len(t.Shape))
	}

	outShape := make([]int, 0, len(t.Shape))
	for i, d := range t.Shape {
		if i == dim {
			if keepDim {
				outShape = append(outShape, 1)
			}
			continue
		}
		outShape = append(outShape, d)
	}
	if len(outShape) == 0 {
		outShape = []int{1}
	}

	result, err := Zeros(outShape, Float32)
	if err != nil {
		return nil, err
	}

	data := t.Data.([]float32)
	resultData := result.Data.([]float32)

	// outer iterates over dimensions before dim, inner over those after it.
	outer := 1
	for i := 0; i < dim; i++ {
		outer *= t.Shape[i]
	}
	inner := 1
	for i := dim + 1; i < len(t.Shape); i++ {
		inner *= t.Shape[i]
	}
	dimSize := t.Shape[dim]

	for o := 0; o < outer; o++ {
		for d := 0; d < dimSize; d++ {
			base := (o*dimSize + d) * inner
			outBase := o * inner
			for in := 0; in < inner; in++ {
				resultData[outBase+in] += data[base+in]
			}
		}
	}

	return result, nil
}

// SumAll reduces every element of a Float32 tensor to a single scalar tensor.
func SumAll(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("SumAll only supports Float32 tensors")
	}

	data := t.Data.([]float32)
	var sum float32
	for _, val := range data {
		sum += val
	}

	return NewTensor([]int{1}, Float32, []float32{sum})
}
