package tensor

import "fmt"

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	default:
		return "Unknown"
	}
}

// RawTensor is the low-level tensor representation: a contiguous row-major
// float32 buffer plus its shape.
//
// Backends never mutate their inputs. Reshape may return a RawTensor that
// shares the buffer of its input; every other operation allocates.
type RawTensor struct {
	data    []float32
	shape   Shape
	strides []int
	device  Device
}

// NewRaw allocates a zero-filled RawTensor.
func NewRaw(shape Shape, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &RawTensor{
		data:    make([]float32, shape.NumElements()),
		shape:   shape.Clone(),
		strides: shape.ComputeStrides(),
		device:  device,
	}, nil
}

// MustNewRaw is NewRaw for shapes known to be valid. Panics on error.
func MustNewRaw(shape Shape, device Device) *RawTensor {
	raw, err := NewRaw(shape, device)
	if err != nil {
		panic(fmt.Sprintf("tensor: %v", err))
	}
	return raw
}

// NewRawFrom wraps data without copying.
func NewRawFrom(data []float32, shape Shape, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	return &RawTensor{
		data:    data,
		shape:   shape.Clone(),
		strides: shape.ComputeStrides(),
		device:  device,
	}, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the row-major strides.
func (r *RawTensor) Strides() []int {
	return r.strides
}

// Device returns the device the buffer lives on.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return len(r.data)
}

// Data returns the underlying buffer (zero-copy).
//
// WARNING: Modifications to the returned slice will modify the tensor.
func (r *RawTensor) Data() []float32 {
	return r.data
}

// Clone returns a deep copy.
func (r *RawTensor) Clone() *RawTensor {
	data := make([]float32, len(r.data))
	copy(data, r.data)
	return &RawTensor{
		data:    data,
		shape:   r.shape.Clone(),
		strides: append([]int(nil), r.strides...),
		device:  r.device,
	}
}

// View returns a RawTensor with a new shape over the same buffer.
func (r *RawTensor) View(shape Shape) (*RawTensor, error) {
	return NewRawFrom(r.data, shape, r.device)
}

// Fill sets every element to value.
func (r *RawTensor) Fill(value float32) {
	for i := range r.data {
		r.data[i] = value
	}
}
