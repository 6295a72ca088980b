package tensor

import (
	"fmt"
	"math"
)

func checkCompatibility(t1, t2 *Tensor) error {
	if t1.DType != t2.DType {
		return fmt.Errorf("tensors must have same dtype: %s vs %s", t1.DType, t2.DType)
	}
	return nil
}

// binaryOutputShape returns the output shape for an elementwise operation.
// Shapes must either match exactly or one operand must be a one-element
// scalar tensor, which broadcasts against the other.
func binaryOutputShape(t1, t2 *Tensor) ([]int, error) {
	if t1.NumElems == 1 && t2.NumElems > 1 {
		return t2.Shape, nil
	}
	if t2.NumElems == 1 && t1.NumElems > 1 {
		return t1.Shape, nil
	}

	if len(t1.Shape) != len(t2.Shape) {
		return nil, fmt.Errorf("tensor shapes must have same number of dimensions: %v vs %v", t1.Shape, t2.Shape)
	}
	for i := range t1.Shape {
		if t1.Shape[i] != t2.Shape[i] {
			return nil, fmt.Errorf("tensor shapes must match: %v vs %v", t1.Shape, t2.Shape)
		}
	}
	return t1.Shape, nil
}

func Add(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}

	outputShape, err := binaryOutputShape(t1, t2)
	if err != nil {
		return nil, err
	}

	result, err := Zeros(outputShape, t1.DType)
	if err != nil {
		return nil, err
	}

	switch t1.DType {
	case Float32:
		data1 := t1.Data.([]float32)
		data2 := t2.Data.([]float32)
		resultData := result.Data.([]float32)

		for i := 0; i < result.NumElems; i++ {
			resultData[i] = data1[i%t1.NumElems] + data2[i%t2.NumElems]
		}
	case Int32:
		data1 := t1.Data.([]int32)
		data2 := t2.Data.([]int32)
		resultData := result.Data.([]int32)

		for i := 0; i < result.NumElems; i++ {
			resultData[i] = data1[i%t1.NumElems] + data2[i%t2.NumElems]
		}
	default:
		return nil, fmt.Errorf("unsupported dtype for Add: %s", t1.DType)
	}

	return result, nil
}

func Sub(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}

	outputShape, err := binaryOutputShape(t1, t2)
	if err != nil {
		return nil, err
	}

	result, err := Zeros(outputShape, t1.DType)
	if err != nil {
		return nil, err
	}

	switch t1.DType {
	case Float32:
		data1 := t1.Data.([]float32)
		data2 := t2.Data.([]float32)
		resultData := result.Data.([]float32)

		for i := 0; i < result.NumElems; i++ {
			resultData[i] = data1[i%t1.NumElems] - data2[i%t2.NumElems]
		}
	case Int32:
		data1 := t1.Data.([]int32)
		data2 := t2.Data.([]int32)
		resultData := result.Data.([]int32)

		for i := 0; i < result.NumElems; i++ {
			resultData[i] = data1[i%t1.NumElems] - data2[i%t2.NumElems]
		}
	default:
		return nil, fmt.Errorf("unsupported dtype for Sub: %s", t1.DType)
	}

	return result, nil
}

func Mul(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}

	outputShape, err := binaryOutputShape(t1, t2)
	if err != nil {
		return nil, err
	}

	result, err := Zeros(outputShape, t1.DType)
	if err != nil {
		return nil, err
	}

	switch t1.DType {
	case Float32:
		data1 := t1.Data.([]float32)
		data2 := t2.Data.([]float32)
		resultData := result.Data.([]float32)

		for i := 0; i < result.NumElems; i++ {
			resultData[i] = data1[i%t1.NumElems] * data2[i%t2.NumElems]
		}
	case Int32:
		data1 := t1.Data.([]int32)
		data2 := t2.Data.([]int32)
		resultData := result.Data.([]int32)

		for i := 0; i < result.NumElems; i++ {
			resultData[i] = data1[i%t1.NumElems] * data2[i%t2.NumElems]
		}
	default:
		return nil, fmt.Errorf("unsupported dtype for Mul: %s", t1.DType)
	}

	return result, nil
}

func Div(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}

	outputShape, err := binaryOutputShape(t1, t2)
	if err != nil {
		return nil, err
	}

	result, err := Zeros(outputShape, t1.DType)
	if err != nil {
		return nil, err
	}

	switch t1.DType {
	case Float32:
		data1 := t1.Data.([]float32)
		data2 := t2.Data.([]float32)
		resultData := result.Data.([]float32)

		for i := 0; i < result.NumElems; i++ {
			d := data2[i%t2.NumElems]
			if d == 0 {
				return nil, fmt.Errorf("division by zero at index %d", i)
			}
			resultData[i] = data1[i%t1.NumElems] / d
		}
	case Int32:
		data1 := t1.Data.([]int32)
		data2 := t2.Data.([]int32)
		resultData := result.Data.([]int32)

		for i := 0; i < result.NumElems; i++ {
			d := data2[i%t2.NumElems]
			if d == 0 {
				return nil, fmt.Errorf("division by zero at index %d", i)
			}
			resultData[i] = data1[i%t1.NumElems] / d
		}
	default:
		return nil, fmt.Errorf("unsupported dtype for Div: %s", t1.DType)
	}

	return result, nil
}

func Sigmoid(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("Sigmoid only supports Float32 dtype")
	}

	result, err := Zeros(t.Shape, t.DType)
	if err != nil {
		return nil, err
	}

	data := t.Data.([]float32)
	resultData := result.Data.([]float32)

	for i := 0; i < t.NumElems; i++ {
		resultData[i] = float32(1.0 / (1.0 + math.Exp(-float64(data[i]))))
	}

	return result, nil
}

func Tanh(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("Tanh only supports Float32 dtype")
	}

	result, err := Zeros(t.Shape, t.DType)
	if err != nil {
		return nil, err
	}

	data := t.Data.([]float32)
	resultData := result.Data.([]float32)

	for i := 0; i < t.NumElems; i++ {
		resultData[i] = float32(math.Tanh(float64(data[i])))
	}

	return result, nil
}

func Exp(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("Exp only supports Float32 dtype")
	}

	result, err := Zeros(t.Shape, t.DType)
	if err != nil {
		return nil, err
	}

	data := t.Data.([]float32)
	resultData := result.Data.([]float32)

	for i := 0; i < t.NumElems; i++ {
		resultData[i] = float32(math.Exp(float64(data[i])))
	}

	return result, nil
}

func Log(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("Log only supports Float32 dtype")
	}

	result, err := Zeros(t.Shape, t.DType)
	if err != nil {
		return nil, err
	}

	data := t.Data.([]float32)
	resultData := result.Data.([]float32)

	for i := 0; i < t.NumElems; i++ {
		if data[i] <= 0 {
			return nil, fmt.Errorf("log of non-positive value at index %d: %f", i, data[i])
		}
		resultData[i] = float32(math.Log(float64(data[i])))
	}

	return result, nil
}

func Sqrt(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("Sqrt only supports Float32 dtype")
	}

	result, err := Zeros(t.Shape, t.DType)
	if err != nil {
		return nil, err
	}

	data := t.Data.([]float32)
	resultData := result.Data.([]float32)

	for i := 0; i < t.NumElems; i++ {
		if data[i] < 0 {
			resultData[i] = float32(math.NaN())
		} else {
			resultData[i] = float32(math.Sqrt(float64(data[i])))
		}
	}

	return result, nil
}
