package emotion

import (
	"fmt"
)

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor allocates a zeroed tensor of the given shape.
func NewTensor(shape ...int) Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return Tensor{Shape: append([]int(nil), shape...), Data: make([]float32, n)}
}

// Len returns the number of elements the shape describes.
func (t Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Reshape returns a tensor with the same data and a new shape. The element
// counts must match.
func (t Tensor) Reshape(shape ...int) (Tensor, error) {
	r := Tensor{Shape: append([]int(nil), shape...), Data: t.Data}
	if r.Len() != len(t.Data) {
		return Tensor{}, fmt.Errorf("cannot reshape %d elements to %v", len(t.Data), shape)
	}
	return r, nil
}

// At3 returns the element at [i][j][k] of a 3-dimensional tensor.
func (t Tensor) At3(i, j, k int) float32 {
	return t.Data[(i*t.Shape[1]+j)*t.Shape[2]+k]
}

// String returns the shape, eg "[1 40 128]".
func (t Tensor) String() string {
	return fmt.Sprintf("%v", t.Shape)
}
