package tensor

import "fmt"

// Tensor is a float32 tensor bound to a computation backend B.
//
// All arithmetic is dispatched to the backend, so the same model code runs
// on a plain CPU backend or on an autodiff decorator that records a tape.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros(tensor.Shape{3, 4}, backend)
//	result := t.Add(t)
type Tensor[B Backend] struct {
	raw     *RawTensor
	backend B
}

// New creates a Tensor from a RawTensor and backend.
func New[B Backend](raw *RawTensor, b B) *Tensor[B] {
	return &Tensor[B]{
		raw:     raw,
		backend: b,
	}
}

// Shape returns the tensor's shape.
func (t *Tensor[B]) Shape() Shape {
	return t.raw.Shape()
}

// NumElements returns the total number of elements.
func (t *Tensor[B]) NumElements() int {
	return t.raw.NumElements()
}

// Raw returns the underlying RawTensor.
// Used by backend implementations and the autodiff tape.
func (t *Tensor[B]) Raw() *RawTensor {
	return t.raw
}

// Backend returns the computation backend.
func (t *Tensor[B]) Backend() B {
	return t.backend
}

// Data returns the tensor's buffer (zero-copy).
//
// WARNING: Modifications to the returned slice will modify the tensor.
func (t *Tensor[B]) Data() []float32 {
	return t.raw.Data()
}

// Item returns the value of a single-element tensor.
// Panics if the tensor has more than one element.
func (t *Tensor[B]) Item() float32 {
	if t.NumElements() != 1 {
		panic(fmt.Sprintf("Item() only works for single-element tensors, got shape %v", t.Shape()))
	}
	return t.Data()[0]
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor[B]) At(indices ...int) float32 {
	shape := t.Shape()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(shape), len(indices)))
	}

	offset := 0
	strides := t.raw.Strides()
	for i, idx := range indices {
		if idx < 0 || idx >= shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, shape[i]))
		}
		offset += idx * strides[i]
	}

	return t.Data()[offset]
}

// Detach returns a tensor over a copy of the data that no recorded operation
// refers to, which stops gradient flow.
func (t *Tensor[B]) Detach() *Tensor[B] {
	return New(t.raw.Clone(), t.backend)
}

// String implements fmt.Stringer.
func (t *Tensor[B]) String() string {
	return fmt.Sprintf("Tensor(shape=%v, backend=%s)", t.Shape(), t.backend.Name())
}
