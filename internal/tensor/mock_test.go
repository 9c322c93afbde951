package tensor

// MockBackend satisfies Backend for tests that only need creation helpers.
// Every compute method panics.
type MockBackend struct{}

func (m *MockBackend) Add(_, _ *RawTensor) *RawTensor    { panic("mock") }
func (m *MockBackend) Sub(_, _ *RawTensor) *RawTensor    { panic("mock") }
func (m *MockBackend) Mul(_, _ *RawTensor) *RawTensor    { panic("mock") }
func (m *MockBackend) Div(_, _ *RawTensor) *RawTensor    { panic("mock") }
func (m *MockBackend) MatMul(_, _ *RawTensor) *RawTensor { panic("mock") }

func (m *MockBackend) Conv2D(_, _ *RawTensor, _, _ int) *RawTensor { panic("mock") }
func (m *MockBackend) Conv2DInputBackward(_, _, _ *RawTensor, _, _ int) *RawTensor {
	panic("mock")
}
func (m *MockBackend) Conv2DKernelBackward(_, _, _ *RawTensor, _, _ int) *RawTensor {
	panic("mock")
}
func (m *MockBackend) ConvTranspose2D(_, _ *RawTensor, _, _ int) *RawTensor { panic("mock") }

func (m *MockBackend) Reshape(_ *RawTensor, _ Shape) *RawTensor     { panic("mock") }
func (m *MockBackend) Transpose(_ *RawTensor, _ ...int) *RawTensor  { panic("mock") }
func (m *MockBackend) Expand(_ *RawTensor, _ Shape) *RawTensor      { panic("mock") }
func (m *MockBackend) Cat(_ []*RawTensor, _ int) *RawTensor         { panic("mock") }
func (m *MockBackend) MulScalar(_ *RawTensor, _ float32) *RawTensor { panic("mock") }
func (m *MockBackend) AddScalar(_ *RawTensor, _ float32) *RawTensor { panic("mock") }

func (m *MockBackend) Exp(_ *RawTensor) *RawTensor     { panic("mock") }
func (m *MockBackend) Log(_ *RawTensor) *RawTensor     { panic("mock") }
func (m *MockBackend) Rsqrt(_ *RawTensor) *RawTensor   { panic("mock") }
func (m *MockBackend) ReLU(_ *RawTensor) *RawTensor    { panic("mock") }
func (m *MockBackend) Sigmoid(_ *RawTensor) *RawTensor { panic("mock") }
func (m *MockBackend) Sum(_ *RawTensor) *RawTensor     { panic("mock") }

func (m *MockBackend) SumDim(_ *RawTensor, _ int, _ bool) *RawTensor  { panic("mock") }
func (m *MockBackend) MeanDim(_ *RawTensor, _ int, _ bool) *RawTensor { panic("mock") }

func (m *MockBackend) Name() string   { return "Mock" }
func (m *MockBackend) Device() Device { return CPU }
